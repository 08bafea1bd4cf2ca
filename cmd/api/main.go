package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/timmy/reelforge/internal/api"
	"github.com/timmy/reelforge/internal/app"
	"github.com/timmy/reelforge/internal/config"
	"github.com/timmy/reelforge/internal/logger"
	"github.com/timmy/reelforge/internal/scheduler"
	"github.com/timmy/reelforge/internal/storage"
)

func main() {
	appLogger := logger.NewDefault()
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	// Support CONFIG_PATH environment variable for production deployments
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	ctx, cancel := context.WithCancel(appLogger.WithContext(context.Background()))
	defer cancel()

	components, err := app.New(ctx, cfg, appLogger)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize application")
	}
	defer components.Close()

	// Storage browser is optional
	var objects storage.ObjectBrowser
	if cfg.Storage.Endpoint != "" {
		objects, err = storage.NewStorage(&cfg.Storage)
		if err != nil {
			appLogger.WithError(err).Fatal("Failed to initialize storage")
		}
		if err := objects.Ping(ctx); err != nil {
			appLogger.WithError(err).Warn("Storage bucket is not reachable")
		}
	}

	schedulerDone := make(chan struct{})
	if cfg.Automation.SchedulerEnabled {
		sched := scheduler.New(components.Dispatcher, scheduler.Config{
			DailyTime:           cfg.Automation.DailyTime,
			Location:            cfg.Automation.Location(),
			UploadCheckInterval: cfg.Automation.UploadCheckInterval,
		}, appLogger)
		go func() {
			defer close(schedulerDone)
			if err := sched.Run(ctx); err != nil {
				appLogger.WithError(err).Error("Scheduler exited")
			}
		}()
	} else {
		close(schedulerDone)
	}

	sqlDB, err := components.DB.DB()
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to get sql.DB instance")
	}

	router := api.SetupRouter(&api.Dependencies{
		DB:         sqlDB,
		Jobs:       components.Jobs,
		Channels:   components.Channels,
		Snapshots:  components.Snapshots,
		Progress:   components.Progress,
		Dispatcher: components.Dispatcher,
		Timeline:   components.Timeline,
		Storage:    objects,
		Polling:    cfg.Polling,
		Logger:     appLogger,
	}, cfg.Server)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLogger.WithFields(logger.Fields{
			"port": cfg.Server.Port,
			"mode": cfg.Server.Mode,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Error("Server forced to shutdown")
	}
	select {
	case <-schedulerDone:
	case <-shutdownCtx.Done():
		appLogger.Warn("Scheduler did not stop before shutdown deadline")
	}

	appLogger.Info("Server exited")
}
