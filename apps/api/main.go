package main

import (
	"fmt"
	"log"
	"os"

	echoapi "github.com/talenttune/talenttune/apps/api/echo"
	"github.com/talenttune/talenttune/core"
	"github.com/talenttune/talenttune/core/institution"
	"github.com/talenttune/talenttune/core/user"
	appfs "github.com/talenttune/talenttune/fs"
	billingsvc "github.com/talenttune/talenttune/services/billing"
	domainsvc "github.com/talenttune/talenttune/services/domains"
	emailsvc "github.com/talenttune/talenttune/services/email"
	logsvc "github.com/talenttune/talenttune/services/logger"
	"github.com/talenttune/talenttune/storage/database"
	sqlxrepos "github.com/talenttune/talenttune/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	core.SetMailTemplates(appfs.FS)

	std := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	var logger core.Logger
	if conf.Debug || conf.TestMode {
		logger = core.NewStdLogger(std)
	} else {
		logger = logsvc.NewRollbarLogger(std, conf)
	}

	// set up DB
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err))
	}
	defer func() { _ = db.Close() }()

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	usrRepo := sqlxrepos.NewUserRepository(db)
	instRepo := sqlxrepos.NewInstitutionRepository(db)

	usrSvc := user.NewService(conf, usrRepo, mailSvc)
	domains := domainsvc.NewDockployService(conf, logger)
	instSvc := institution.NewService(conf, logger, instRepo, mailSvc, domains, usrSvc)
	billing := billingsvc.NewStripeService(conf, logger)

	// start API server
	app := echoapi.NewServer(&echoapi.Options{
		Address:         fmt.Sprintf("%s:%d", conf.Server.Host, conf.Server.Port),
		Conf:            conf,
		Logger:          logger,
		UserSvc:         usrSvc,
		InstitutionSvc:  instSvc,
		InstitutionRepo: instRepo,
		Billing:         billing,
	})
	app.Start()
}
