// Command dispatch is the notification delivery daemon. It periodically
// scans the application log for recorded send intents and attempts delivery
// of every recipient that has no outcome yet. Re-scanning already-handled
// intents is safe: recipients with a recorded outcome are skipped.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kozihub/kozi/core"
	"github.com/kozihub/kozi/core/alog"
	"github.com/kozihub/kozi/core/notification"
	emailsvc "github.com/kozihub/kozi/services/email"
	logsvc "github.com/kozihub/kozi/services/logger"
	"github.com/kozihub/kozi/storage/database"
	sqlxrepos "github.com/kozihub/kozi/storage/database/sqlx"
)

func main() {
	conf, err := core.NewConfig(core.Getwd())
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	var logger core.Logger
	stdLog := log.New(os.Stdout, "DISPATCH : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	if conf.Debug {
		logger = logsvc.NewStdLogger(stdLog)
	} else {
		logger = logsvc.NewRollbarLogger(stdLog, conf)
	}

	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}
	defer func() { _ = db.Close() }()

	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	logStore := sqlxrepos.NewLogStore(db)
	notifier := notification.NewNotifier(notification.Deps{
		Log:      logStore,
		Users:    sqlxrepos.NewUserRepository(db),
		Courses:  sqlxrepos.NewCourseRepository(db),
		Events:   sqlxrepos.NewEventRepository(db),
		Venues:   sqlxrepos.NewVenueRepository(db),
		Regions:  sqlxrepos.NewRegionRepository(db),
		Groups:   sqlxrepos.NewGroupRepository(db),
		Comments: sqlxrepos.NewCommentRepository(db),
		Mail:     mailSvc,
		Logger:   logger,
		Conf:     conf,
	})

	logger.Info(fmt.Sprintf("Dispatcher starting : interval %v", conf.DispatchInterval))
	defer logger.Info("Dispatcher stopped")

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(conf.DispatchInterval)
	defer ticker.Stop()

	// Intents whose recipients all have a recorded outcome. Outcomes are
	// append-only, so membership here is permanent and the per-tick work
	// stays proportional to the unfinished intents, not to log history.
	retired := make(map[string]struct{})

	for {
		select {
		case <-ticker.C:
			dispatch(logStore, notifier, logger, retired)
		case sig := <-shutdown:
			logger.Info(fmt.Sprintf("%v: shutting down", sig))
			return
		}
	}
}

func dispatch(store alog.Store, notifier *notification.Notifier, logger core.Logger, retired map[string]struct{}) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	intents, err := store.Find(ctx, alog.Query{Track: notification.TrackSend})
	if err != nil {
		logger.Error("finding send intents", err)
		return
	}
	for _, intent := range intents {
		if _, done := retired[intent.ID]; done {
			continue
		}

		pending, err := notifier.Pending(ctx, intent)
		if err != nil {
			logger.Error(fmt.Sprintf("checking intent %s", intent.ID), err)
			continue
		}
		if pending {
			if err = notifier.Send(ctx, intent); err != nil {
				logger.Error(fmt.Sprintf("dispatching intent %s", intent.ID), err)
				continue
			}
			if pending, err = notifier.Pending(ctx, intent); err != nil || pending {
				continue
			}
		}
		retired[intent.ID] = struct{}{}
	}
}
