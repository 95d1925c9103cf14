package echoapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/talenttune/talenttune/core"
	"github.com/talenttune/talenttune/core/auth"
	"github.com/talenttune/talenttune/core/user"
)

var (
	contextUserKey        = "user"
	contextTokenKey       = "userToken"
	contextInstitutionKey = "institution"

	sessionCookieName  = "tt_session"
	csrfCookieName     = "tt_csrf"
	intendedCookieName = "tt_intended"
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt    int64  `json:"oriat,omitempty"`
	Name            string `json:"name,omitempty"`
	Email           string `json:"email,omitempty"`
	Role            string `json:"role,omitempty"`
	InstitutionID   int    `json:"institution_id,omitempty"`
	InstitutionSlug string `json:"institution_slug,omitempty"`
}

func (c Claims) UserID() int {
	id, _ := strconv.Atoi(c.Subject)
	return id
}

// jwtContext holds per-server JWT material; the signing key comes from
// configuration instead of package state so tests can build isolated
// servers.
type jwtContext struct {
	conf   *core.Config
	config middleware.JWTConfig
}

func newJWTContext(conf *core.Config) *jwtContext {
	return &jwtContext{
		conf: conf,
		config: middleware.JWTConfig{
			SigningKey:    conf.SecretKey,
			SigningMethod: middleware.AlgorithmHS256,
			ContextKey:    contextTokenKey,
			Claims:        new(Claims),
		},
	}
}

func (j *jwtContext) getUserClaims(usr user.User, instSlug string, origIat ...int64) *Claims {
	now := time.Now()
	nownix := now.Unix()

	var oriat int64
	if len(origIat) > 0 {
		oriat = origIat[0]
	} else {
		oriat = nownix
	}

	claims := &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    j.conf.AppName,
			Subject:   strconv.Itoa(usr.ID),
			Audience:  "TalentTune",
			ExpiresAt: now.Add(j.conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt:    oriat,
		Name:            usr.Name,
		Email:           usr.Email,
		Role:            usr.Role,
		InstitutionSlug: instSlug,
	}
	if usr.InstitutionID.Valid {
		claims.InstitutionID = usr.InstitutionID.Int
	}
	return claims
}

// GenerateToken generates a signed JWT token string representing the user Claims.
func (j *jwtContext) GenerateToken(claims *Claims) (string, error) {
	method := jwt.GetSigningMethod(j.config.SigningMethod)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString(j.config.SigningKey)
	if err != nil {
		return "", errors.New("signing token")
	}
	return ss, nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

func (j *jwtContext) getContextUser(ctx echo.Context, svc user.Service, clms ...Claims) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}

	var claims Claims
	var err error
	if len(clms) > 0 {
		claims = clms[0]
	} else {
		claims, err = getContextClaims(ctx)
		if err != nil {
			return user.User{}, errors.Wrap(err, "getting context claims")
		}
	}

	usr, err := svc.GetByID(ctx.Request().Context(), claims.UserID())
	if err != nil {
		return user.User{}, errors.Wrap(err, "finding user by ID")
	}
	ctx.Set(contextUserKey, usr)
	return usr, nil
}

func (j *jwtContext) refreshToken(ctx echo.Context, svc user.Service) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", errors.Wrap(err, "getting context claims")
	}

	usr, err := j.getContextUser(ctx, svc, claims)
	if err != nil {
		return "", errors.Wrap(err, "getting context user")
	}

	if !usr.IsActive {
		return "", errAccountDeactivated
	}

	// check if refresh has not expired
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(j.conf.Server.JWTRefreshExpirationDelta)
	if time.Now().After(expTime) {
		return "", errRefreshExpired
	}

	newClaims := j.getUserClaims(usr, claims.InstitutionSlug, claims.OrigIssuedAt)
	token, err := j.GenerateToken(newClaims)
	return token, errors.Wrap(err, "generating token")
}

// cookieSession adapts echo cookies to the login flow's session surface.
// The JWT carries identity; these cookies carry the rotating session and
// CSRF identifiers the flow manages.
type cookieSession struct {
	ctx echo.Context
}

var _ auth.Session = (*cookieSession)(nil)

func newCookieSession(ctx echo.Context) *cookieSession {
	return &cookieSession{ctx: ctx}
}

func (s *cookieSession) setCookie(name, value string, maxAge int) {
	s.ctx.SetCookie(&http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *cookieSession) Regenerate() error {
	id, err := core.RandomString(32)
	if err != nil {
		return errors.Wrap(err, "generating session id")
	}
	s.setCookie(sessionCookieName, id, 0)
	return nil
}

func (s *cookieSession) Invalidate() error {
	s.setCookie(sessionCookieName, "", -1)
	s.setCookie(intendedCookieName, "", -1)
	return nil
}

func (s *cookieSession) RegenerateToken() error {
	token, err := core.RandomString(32)
	if err != nil {
		return errors.Wrap(err, "generating csrf token")
	}
	s.setCookie(csrfCookieName, token, 0)
	return nil
}

func (s *cookieSession) ForgetIntended() {
	s.setCookie(intendedCookieName, "", -1)
}

// API

type authApi struct {
	s *server
}

func registerAuthAPI(g *echo.Group, jwt echo.MiddlewareFunc, s *server) {
	api := authApi{s: s}

	ag := g.Group("/auth", s.institutionContext())
	ag.GET("/login", api.loginPage)
	ag.POST("/login", api.login)

	authed := ag.Group("", jwt)
	authed.POST("/logout", api.logout)
	authed.POST("/token-refresh", api.refresh)
}

// loginPage returns what the login screen needs: the resolved tenant's
// branding (when on an institution host) and the selectable roles.
func (api *authApi) loginPage(ctx echo.Context) error {
	res := LoginPageResponse{Roles: []string{user.RoleStudent, user.RoleLecturer, user.RoleInstitutionAdmin}}
	if inst := getContextInstitution(ctx); inst != nil {
		res.Institution = &InstitutionBranding{
			Name:         inst.Name,
			Slug:         inst.Slug,
			PrimaryColor: inst.PrimaryColor,
		}
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *authApi) login(ctx echo.Context) error {
	var creds auth.Credentials
	if err := ctx.Bind(&creds); err != nil {
		return errors.Wrap(err, "binding to Credentials")
	}
	if err := creds.Validate(); err != nil {
		return err
	}

	rc := api.s.requestContext(ctx)
	res, err := api.s.flow.Login(ctx.Request().Context(), creds, rc, newCookieSession(ctx))
	if err != nil {
		return err
	}

	var instSlug string
	if rc.Institution != nil {
		instSlug = rc.Institution.Slug
	}
	token, err := api.s.jwt.GenerateToken(api.s.jwt.getUserClaims(res.User, instSlug))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}

	return ctx.JSON(http.StatusOK, LoginResponse{
		Token:       token,
		RedirectURL: res.RedirectURL,
		TwoFactor:   res.TwoFactor,
		User:        res.User,
	})
}

func (api *authApi) logout(ctx echo.Context) error {
	redirect, err := api.s.flow.Logout(newCookieSession(ctx))
	if err != nil {
		return errors.Wrap(err, "logging out")
	}
	return ctx.JSON(http.StatusOK, LogoutResponse{RedirectURL: redirect})
}

func (api *authApi) refresh(ctx echo.Context) error {
	token, err := api.s.jwt.refreshToken(ctx, api.s.opts.UserSvc)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, TokenResponse{Token: token})
}
