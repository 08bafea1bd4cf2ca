package service

import (
	"context"
	"fmt"
	"time"

	"github.com/timmy/reelforge/internal/domain"
	"github.com/timmy/reelforge/internal/logger"
)

// maxWriteAttempts bounds optimistic retries for a single job write.
const maxWriteAttempts = 5

// JobWriteStore is the persistence a job writer needs.
type JobWriteStore interface {
	GetByID(ctx context.Context, id string) (*domain.ContentJob, error)
	SaveVersioned(ctx context.Context, job *domain.ContentJob, expectedVersion int) (bool, error)
}

// ChannelLookup resolves a channel by ID.
type ChannelLookup interface {
	GetByID(ctx context.Context, id string) (*domain.Channel, error)
}

// ProgressService applies stage and progress writes to job records.
// Each write is a read-modify-write guarded by the record version.
type ProgressService struct {
	jobs     JobWriteStore
	channels ChannelLookup
	timeline *Timeline
	logger   *logger.Logger
	now      func() time.Time
}

// NewProgressService creates a new progress service.
func NewProgressService(jobs JobWriteStore, channels ChannelLookup, timeline *Timeline, log *logger.Logger) *ProgressService {
	return &ProgressService{
		jobs:     jobs,
		channels: channels,
		timeline: timeline,
		logger:   log,
		now:      time.Now,
	}
}

func (s *ProgressService) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != logger.GetDefault() {
		return l
	}
	return s.logger
}

// UpdateJob validates and applies a worker update.
// Entering scheduling_upload without a scheduled time assigns the channel's next slot.
func (s *ProgressService) UpdateJob(ctx context.Context, id string, u domain.JobUpdate) (*domain.ContentJob, error) {
	ctx = logger.SetJobID(ctx, id)
	return s.mutate(ctx, id, func(job *domain.ContentJob, now time.Time) error {
		from := job.Stage
		changed, err := domain.ApplyUpdate(job, u, now)
		if err != nil {
			return err
		}
		if changed {
			s.log(ctx).WithFields(logger.Fields{
				"from":            from,
				logger.FieldStage: job.Stage,
			}).Info("Job stage advanced")
		}
		if changed && job.Stage == domain.StageSchedulingUpload && job.ScheduledTime == nil {
			s.assignSlot(ctx, job, now)
		}
		return nil
	})
}

// FailJob moves a job to failed with reason.
func (s *ProgressService) FailJob(ctx context.Context, id, reason string) (*domain.ContentJob, error) {
	ctx = logger.SetJobID(ctx, id)
	job, err := s.mutate(ctx, id, func(job *domain.ContentJob, now time.Time) error {
		return domain.Fail(job, reason, now)
	})
	if err == nil {
		s.log(ctx).WithField("reason", reason).Warn("Job marked failed")
	}
	return job, err
}

func (s *ProgressService) mutate(ctx context.Context, id string, apply func(*domain.ContentJob, time.Time) error) (*domain.ContentJob, error) {
	for attempt := 1; attempt <= maxWriteAttempts; attempt++ {
		job, err := s.jobs.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		expected := job.Version
		if err := apply(job, s.now()); err != nil {
			return nil, err
		}
		ok, err := s.jobs.SaveVersioned(ctx, job, expected)
		if err != nil {
			return nil, err
		}
		if ok {
			return job, nil
		}
		s.log(ctx).WithField("attempt", attempt).Debug("Version conflict, retrying job write")
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrWriteConflict, id)
}

func (s *ProgressService) assignSlot(ctx context.Context, job *domain.ContentJob, now time.Time) {
	if job.ChannelID == nil || s.channels == nil {
		s.log(ctx).Warn("Job has no channel, leaving it unscheduled")
		return
	}
	ch, err := s.channels.GetByID(ctx, *job.ChannelID)
	if err != nil {
		s.log(ctx).WithError(err).Warn("Failed to load channel for scheduling")
		return
	}
	slot, err := s.timeline.NextSlot(ch, job.VideoType, now)
	if err != nil {
		s.log(ctx).WithError(err).Warn("Failed to compute upload slot")
		return
	}
	job.ScheduledTime = &slot
	s.log(ctx).WithField("scheduled_time", slot.Format(time.RFC3339)).Info("Upload slot assigned")
}
