package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jmoiron/sqlx"

	echoapi "github.com/kozihub/kozi/apps/api/echo"
	"github.com/kozihub/kozi/core"
	"github.com/kozihub/kozi/core/notification"
	"github.com/kozihub/kozi/core/user"
	emailsvc "github.com/kozihub/kozi/services/email"
	logsvc "github.com/kozihub/kozi/services/logger"
	"github.com/kozihub/kozi/storage/database"
	sqlxrepos "github.com/kozihub/kozi/storage/database/sqlx"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf, err := core.NewConfig(core.Getwd())
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	var logger core.Logger
	stdLog := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	if conf.Debug {
		logger = logsvc.NewStdLogger(stdLog)
	} else {
		logger = logsvc.NewRollbarLogger(stdLog, conf)
	}

	// set up DB
	db, err := setUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			logger.Error("closing database", err)
		}
	}()

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	usrRepo := sqlxrepos.NewUserRepository(db)
	usrSvc := user.NewService(usrRepo, mailSvc, conf)

	notifDeps := notification.Deps{
		Log:      sqlxrepos.NewLogStore(db),
		Users:    usrRepo,
		Courses:  sqlxrepos.NewCourseRepository(db),
		Events:   sqlxrepos.NewEventRepository(db),
		Venues:   sqlxrepos.NewVenueRepository(db),
		Regions:  sqlxrepos.NewRegionRepository(db),
		Groups:   sqlxrepos.NewGroupRepository(db),
		Comments: sqlxrepos.NewCommentRepository(db),
		Mail:     mailSvc,
		Logger:   logger,
		Conf:     conf,
	}

	// =========================================================================
	// Start API Service

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	server := echoapi.NewServer(echoapi.ServerDeps{
		Conf:    conf,
		Logger:  logger,
		UserSvc: usrSvc,
		Notif:   notifDeps,
	})

	go server.Start()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func setUpDB(conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}
	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}
	if err = database.Migrate(db.DB); err != nil {
		return nil, err
	}
	return db, nil
}
