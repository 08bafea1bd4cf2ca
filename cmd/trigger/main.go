package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/timmy/reelforge/internal/app"
	"github.com/timmy/reelforge/internal/config"
	"github.com/timmy/reelforge/internal/domain"
	"github.com/timmy/reelforge/internal/logger"
)

func main() {
	appLogger := logger.New(&logger.Config{
		Level:       "info",
		Format:      "json",
		Output:      os.Stderr,
		ServiceName: "reelforge-trigger",
	})
	logger.SetDefaultLogger(appLogger)

	action := flag.String("action", "daily", "What to run: daily, uploads, status")
	allowOverlap := flag.Bool("allow-overlap", false, "Start a daily run even if the previous one is still in flight")
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}
	if *allowOverlap {
		cfg.Automation.AllowOverlap = true
	}

	ctx, cancel := context.WithCancel(appLogger.WithContext(context.Background()))
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		appLogger.Info("Received shutdown signal, canceling...")
		cancel()
	}()

	components, err := app.New(ctx, cfg, appLogger)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize application")
	}
	defer components.Close()

	appLogger.WithField("action", *action).Info("Running trigger")

	var result interface{}
	switch *action {
	case "daily":
		result, err = components.Dispatcher.TriggerDaily(ctx)
		if errors.Is(err, domain.ErrAlreadyRunning) {
			appLogger.WithError(err).Warn("Daily run rejected")
			os.Exit(2)
		}
	case "uploads":
		result, err = components.Dispatcher.CheckScheduledUploads(ctx)
	case "status":
		result, err = components.Dispatcher.Status(ctx)
	default:
		appLogger.WithField("action", *action).Fatal("Unknown action")
	}
	if err != nil {
		appLogger.WithError(err).Fatal("Trigger failed")
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
