package main

import (
	"log"
	"os"

	"github.com/talenttune/talenttune/core"
	"github.com/talenttune/talenttune/core/institution"
	"github.com/talenttune/talenttune/core/user"
	appfs "github.com/talenttune/talenttune/fs"
	domainsvc "github.com/talenttune/talenttune/services/domains"
	emailsvc "github.com/talenttune/talenttune/services/email"
	"github.com/talenttune/talenttune/storage/database"
	sqlxrepos "github.com/talenttune/talenttune/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf := core.NewConfig()
	core.SetMailTemplates(appfs.FS)
	coreLogger := core.NewStdLogger(logger)

	// set up DB
	db, err := database.Open(conf)
	errAndDie(err)
	defer func() { _ = db.Close() }()
	errAndDie(db.Ping())

	mailSvc := emailsvc.NewConsoleService(conf)
	usrRepo := sqlxrepos.NewUserRepository(db)
	instRepo := sqlxrepos.NewInstitutionRepository(db)
	usrSvc := user.NewService(conf, usrRepo, mailSvc)
	instSvc := institution.NewService(
		conf, coreLogger, instRepo, mailSvc, domainsvc.NewDockployService(conf, coreLogger), usrSvc)

	// start CLI
	cli := commandLine{
		conf:    conf,
		db:      db,
		usrRepo: usrRepo,
		usrSvc:  usrSvc,
		instSvc: instSvc,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
