// Package scheduler runs the daily trigger and the scheduled-upload check inside the API process.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/timmy/reelforge/internal/domain"
	"github.com/timmy/reelforge/internal/logger"
	"github.com/timmy/reelforge/internal/service"
)

// Triggers is the automation surface the scheduler drives.
type Triggers interface {
	TriggerDaily(ctx context.Context) (*service.DailyResult, error)
	CheckScheduledUploads(ctx context.Context) (*service.UploadCheckResult, error)
}

// Config holds scheduling policy.
type Config struct {
	DailyTime           string // HH:MM in Location
	Location            *time.Location
	UploadCheckInterval time.Duration
}

// Scheduler fires the daily run once a day and the upload check on an interval.
type Scheduler struct {
	triggers Triggers
	cfg      Config
	logger   *logger.Logger
	now      func() time.Time
	after    func(time.Duration) <-chan time.Time
}

// New creates a Scheduler.
func New(triggers Triggers, cfg Config, log *logger.Logger) *Scheduler {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Scheduler{
		triggers: triggers,
		cfg:      cfg,
		logger:   log,
		now:      time.Now,
		after:    time.After,
	}
}

// Run blocks until ctx is canceled.
func (s *Scheduler) Run(ctx context.Context) error {
	if _, _, err := service.ParseClock(s.cfg.DailyTime); err != nil {
		return err
	}
	ctx = logger.SetComponent(s.logger.WithContext(ctx), "scheduler")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.runDaily(ctx)
	}()
	go func() {
		defer wg.Done()
		s.runUploadChecks(ctx)
	}()

	s.logger.WithFields(logger.Fields{
		"daily_time":            s.cfg.DailyTime,
		"timezone":              s.cfg.Location.String(),
		"upload_check_interval": s.cfg.UploadCheckInterval.String(),
	}).Info("Scheduler started")

	wg.Wait()
	s.logger.Info("Scheduler stopped")
	return nil
}

func (s *Scheduler) runDaily(ctx context.Context) {
	for {
		now := s.now()
		next, err := service.NextOccurrence(s.cfg.DailyTime, s.cfg.Location, now)
		if err != nil {
			logger.CtxError(ctx, "Cannot compute next daily run: %v", err)
			return
		}
		logger.CtxDebug(ctx, "Next daily run at %s", next.Format(time.RFC3339))

		select {
		case <-ctx.Done():
			return
		case <-s.after(next.Sub(now)):
		}

		result, err := s.triggers.TriggerDaily(ctx)
		switch {
		case errors.Is(err, domain.ErrAlreadyRunning):
			logger.CtxWarn(ctx, "Scheduled daily run skipped: %v", err)
		case err != nil:
			logger.CtxError(ctx, "Scheduled daily run failed: %v", err)
		default:
			logger.CtxInfo(ctx, "Scheduled daily run created %d jobs for %s", len(result.Created), result.RunDate)
		}
	}
}

func (s *Scheduler) runUploadChecks(ctx context.Context) {
	if s.cfg.UploadCheckInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.UploadCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result, err := s.triggers.CheckScheduledUploads(ctx)
			switch {
			case errors.Is(err, domain.ErrAlreadyRunning):
				logger.CtxDebug(ctx, "Upload check skipped: %v", err)
			case err != nil:
				logger.CtxError(ctx, "Upload check failed: %v", err)
			case len(result.Published)+len(result.Failed) > 0:
				logger.CtxInfo(ctx, "Upload check published %d, failed %d", len(result.Published), len(result.Failed))
			}
		}
	}
}
