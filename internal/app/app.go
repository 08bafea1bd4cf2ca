// Package app wires repositories, backends and services from configuration.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/timmy/reelforge/internal/automation"
	"github.com/timmy/reelforge/internal/config"
	"github.com/timmy/reelforge/internal/domain"
	"github.com/timmy/reelforge/internal/lock"
	"github.com/timmy/reelforge/internal/logger"
	"github.com/timmy/reelforge/internal/repository"
	"github.com/timmy/reelforge/internal/service"
	"gorm.io/gorm"
)

var initDB = repository.InitDB

// App holds the wired components shared by the API server and the trigger CLI.
type App struct {
	DB         *gorm.DB
	Jobs       *repository.JobRepository
	Channels   *repository.ChannelRepository
	Triggers   *repository.TriggerRepository
	Timeline   *service.Timeline
	Snapshots  *service.SnapshotService
	Progress   *service.ProgressService
	Dispatcher *service.Dispatcher

	closers []func()
}

// New opens the database, seeds channels and builds the services.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	db, err := initDB(&cfg.Database)
	if err != nil {
		return nil, err
	}

	a := &App{
		DB:       db,
		Jobs:     repository.NewJobRepository(db),
		Channels: repository.NewChannelRepository(db),
		Triggers: repository.NewTriggerRepository(db),
	}

	if len(cfg.Channels) > 0 {
		if err := a.Channels.Upsert(ctx, ChannelsFromConfig(cfg.Channels)); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to seed channels: %w", err)
		}
		log.WithField("count", len(cfg.Channels)).Info("Channels seeded from config")
	}

	locker, err := a.newLocker(ctx, &cfg.Lock)
	if err != nil {
		a.Close()
		return nil, err
	}

	backend := automation.NewHTTPBackend(&automation.HTTPConfig{
		BaseURL:     cfg.Automation.BaseURL,
		APIKey:      cfg.Automation.APIKey,
		Timeout:     cfg.Automation.Timeout,
		CallbackURL: cfg.Automation.CallbackURL,
	})
	queue, err := a.newQueue(&cfg.Automation, backend)
	if err != nil {
		a.Close()
		return nil, err
	}

	loc := cfg.Automation.Location()
	a.Timeline = service.NewTimeline(loc)
	a.Snapshots = service.NewSnapshotService(a.Jobs, log)
	a.Progress = service.NewProgressService(a.Jobs, a.Channels, a.Timeline, log)
	a.Dispatcher = service.NewDispatcher(
		a.Jobs,
		a.Channels,
		a.Triggers,
		a.Progress,
		queue,
		backend,
		locker,
		service.DispatcherConfig{
			Location:     loc,
			DailyTime:    cfg.Automation.DailyTime,
			AllowOverlap: cfg.Automation.AllowOverlap,
			LockTTL:      cfg.Lock.TTL,
		},
		log,
	)
	return a, nil
}

// Close releases backend connections in reverse order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
	if sqlDB, err := a.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// ChannelsFromConfig converts channel seeds, filling in default upload times.
func ChannelsFromConfig(seeds []config.ChannelSeed) []domain.Channel {
	channels := make([]domain.Channel, 0, len(seeds))
	for _, s := range seeds {
		ch := domain.Channel{
			ID:                 s.ID,
			Name:               s.Name,
			LongFormUploadTime: s.LongFormUploadTime,
			ShortUploadTime:    s.ShortUploadTime,
			Timezone:           s.Timezone,
			IsActive:           s.IsActive,
		}
		if ch.LongFormUploadTime == "" {
			ch.LongFormUploadTime = "18:00"
		}
		if ch.ShortUploadTime == "" {
			ch.ShortUploadTime = "12:00"
		}
		channels = append(channels, ch)
	}
	return channels
}

func (a *App) newLocker(ctx context.Context, cfg *config.LockConfig) (lock.Locker, error) {
	if cfg.Driver != "redis" {
		return lock.NewLocalLocker(), nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
	}
	a.closers = append(a.closers, func() { _ = client.Close() })
	return lock.NewRedisLocker(client, "reelforge:"), nil
}

func (a *App) newQueue(cfg *config.AutomationConfig, backend *automation.HTTPBackend) (automation.WorkQueue, error) {
	switch cfg.Queue {
	case "amqp":
		q, err := automation.NewAMQPQueue(cfg.AMQPURL, cfg.AMQPQueue, cfg.CallbackURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = q.Close() })
		return q, nil
	case "none":
		return automation.NoopQueue{}, nil
	default:
		return backend, nil
	}
}
