package echoapi

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/talenttune/talenttune/core"
	"github.com/talenttune/talenttune/core/auth"
	"github.com/talenttune/talenttune/core/institution"
	"github.com/talenttune/talenttune/core/tenancy"
	"github.com/talenttune/talenttune/core/user"
	billingsvc "github.com/talenttune/talenttune/services/billing"
)

type (
	Options struct {
		Address        string
		DisableReqLogs bool

		Conf   *core.Config
		Logger core.Logger

		UserSvc         user.Service
		InstitutionSvc  institution.Service
		InstitutionRepo institution.Repository
		Billing         *billingsvc.StripeService
	}

	Server interface {
		http.Handler
		Start()
		Stop(context.Context) error
	}

	server struct {
		opts *Options
		app  *echo.Echo

		jwt      *jwtContext
		resolver *tenancy.Resolver
		guard    *tenancy.Guard
		subGate  *tenancy.SubscriptionGate
		flow     *auth.Flow

		shutdown chan struct{}
	}
)

var _ Server = (*server)(nil)

func NewServer(opts *Options) Server {
	s := &server{
		opts:     opts,
		app:      echo.New(),
		jwt:      newJWTContext(opts.Conf),
		resolver: tenancy.NewResolver(opts.Conf, opts.InstitutionRepo),
		guard:    tenancy.NewGuard(opts.Conf, opts.InstitutionRepo),
		subGate:  tenancy.NewSubscriptionGate(),
		flow:     auth.NewFlow(opts.Conf, opts.UserSvc, opts.InstitutionRepo),
		shutdown: make(chan struct{}),
	}
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.opts.Conf

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", home)

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(s.jwt.config)

	registerAuthAPI(v1, jwt, s)
	registerInstitutionAPI(v1, jwt, s)
	registerUserAPI(v1, jwt, s)
	registerDashboardAPI(v1, jwt, s)
}

func (s *server) Start() {
	go func() {
		<-s.shutdown
		s.app.Logger.Error("shutdown signaled, stopping server")
		_ = s.Stop(context.Background())
	}()
	s.app.Logger.Fatal(s.app.Start(s.opts.Address))
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *server) signalShutdown() {
	close(s.shutdown)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to TalentTune!")
}
