package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/robinjoseph08/golib/signals"
	"github.com/tsundokuapp/tsundoku/pkg/backfill"
	"github.com/tsundokuapp/tsundoku/pkg/config"
	"github.com/tsundokuapp/tsundoku/pkg/database"
	"github.com/tsundokuapp/tsundoku/pkg/migrations"
	"github.com/tsundokuapp/tsundoku/pkg/mutations"
	"github.com/tsundokuapp/tsundoku/pkg/notify"
	"github.com/tsundokuapp/tsundoku/pkg/reconciler"
	"github.com/tsundokuapp/tsundoku/pkg/remote"
	"github.com/tsundokuapp/tsundoku/pkg/server"
	"github.com/tsundokuapp/tsundoku/pkg/session"
	"github.com/tsundokuapp/tsundoku/pkg/version"
)

func main() {
	ctx := context.Background()
	log := logger.New()

	log.Info("starting tsundoku", logger.Data{"version": version.Version})

	cfg, err := config.New()
	if err != nil {
		log.Err(err).Fatal("config error")
	}

	if err := initCacheDir(cfg.CacheDir); err != nil {
		log.Err(err).Fatal("cache directory error")
	}
	log.Info("cache directory initialized", logger.Data{"path": cfg.CacheDir})

	db, err := database.New(cfg)
	if err != nil {
		log.Err(err).Fatal("database error")
	}

	group, err := migrations.BringUpToDate(ctx, db)
	if err != nil {
		log.Err(err).Fatal("migrations error")
	}
	if group.ID == 0 {
		log.Info("no new migrations to run")
	} else {
		log.Info("migrated to new group", logger.Data{"group_id": group.ID, "migration_names": group.Migrations.String()})
	}

	sess := session.New(cfg.RemoteUserID, cfg.RemoteUsername, cfg.RemoteAuthToken)
	if err := sess.Validate(); err != nil {
		log.Err(err).Fatal("session error")
	}
	client := remote.NewGraphQLClient(cfg, sess)
	hub := notify.NewHub()

	scheduler := backfill.New(cfg, db, client, hub)
	mutationService := mutations.NewService(db, client)
	mutationRunner := mutations.NewRunner(cfg, mutationService)
	syncService := reconciler.NewService(cfg, db, client, mutationService, scheduler, hub)
	syncRunner := reconciler.NewRunner(cfg, syncService)

	srv, err := server.New(cfg, db, client, mutationService, scheduler, syncService, hub)
	if err != nil {
		log.Err(err).Fatal("server error")
	}

	graceful := signals.Setup()

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort)
		lc := net.ListenConfig{}
		listener, err := lc.Listen(ctx, "tcp", addr)
		if err != nil {
			log.Err(err).Fatal("failed to bind port")
		}

		actualPort := listener.Addr().(*net.TCPAddr).Port
		log.Info("server started", logger.Data{"port": actualPort})

		err = srv.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Err(err).Fatal("server stopped")
		}
		log.Info("server stopped")
	}()

	scheduler.Start()
	log.Info("backfill scheduler started")

	mutationRunner.Start()
	log.Info("mutation runner started")

	syncRunner.Start()
	log.Info("sync runner started")

	<-graceful
	log.Info("starting graceful shutdown")

	err = srv.Shutdown(ctx)
	if err != nil {
		log.Err(err).Error("server shutdown error")
	}
	log.Info("server shutdown")

	// Runners first so nothing new reaches the scheduler or the queue while
	// they wind down.
	syncRunner.Shutdown()
	log.Info("sync runner shutdown")

	mutationRunner.Shutdown()
	log.Info("mutation runner shutdown")

	scheduler.Shutdown()
	log.Info("backfill scheduler shutdown")

	err = db.Close()
	if err != nil {
		log.Err(err).Error("database close error")
	}
	log.Info("database closed")
}

// initCacheDir creates the cache directories and verifies write permissions.
// The documents subdirectory holds downloaded PDF bytes.
func initCacheDir(dir string) error {
	if err := os.MkdirAll(filepath.Join(dir, "documents"), 0755); err != nil {
		return errors.Wrapf(err, "failed to create cache directory: %s", dir)
	}

	testFile := filepath.Join(dir, ".write_test")
	f, err := os.Create(testFile)
	if err != nil {
		return errors.Wrapf(err, "cache directory is not writable: %s", dir)
	}
	f.Close()

	if err := os.Remove(testFile); err != nil {
		return errors.Wrapf(err, "failed to clean up write test file: %s", testFile)
	}

	return nil
}
