package service

import (
	"context"
	"sort"
	"time"

	"github.com/timmy/reelforge/internal/domain"
	"github.com/timmy/reelforge/internal/logger"
)

// JobView is a job as rendered by every read endpoint: the record plus its classification.
type JobView struct {
	domain.ContentJob
	Display domain.StatusView `json:"display"`
}

// Snapshot is the derived pipeline read model.
type Snapshot struct {
	Active      []JobView `json:"active"`
	Scheduled   []JobView `json:"scheduled"`
	IsRunning   bool      `json:"isRunning"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// StageCell is one column of the per-stage overview row.
type StageCell struct {
	Stage   domain.Stage         `json:"stage"`
	Label   string               `json:"label"`
	Status  domain.DisplayStatus `json:"status"`
	Display domain.StatusView    `json:"display"`
}

// Overview is the stage-by-stage completion row driven by a single representative job.
type Overview struct {
	Representative *JobView    `json:"representative"`
	Stages         []StageCell `json:"stages"`
	IsRunning      bool        `json:"isRunning"`
}

// NewJobView classifies a job for display.
func NewJobView(job domain.ContentJob) JobView {
	return JobView{ContentJob: job, Display: job.Display()}
}

// isActive treats unknown stages as non-terminal so they stay visible.
func isActive(job *domain.ContentJob) bool {
	return !job.Stage.IsTerminal()
}

func isScheduled(job *domain.ContentJob) bool {
	return job.ScheduledTime != nil && job.PublishedAt == nil
}

// BuildSnapshot partitions jobs into the active and scheduled views.
// Ordering is total: ties on the sort timestamp fall back to the job ID.
func BuildSnapshot(jobs []domain.ContentJob, now time.Time) Snapshot {
	snap := Snapshot{
		Active:      make([]JobView, 0),
		Scheduled:   make([]JobView, 0),
		GeneratedAt: now,
	}
	for i := range jobs {
		job := &jobs[i]
		if isActive(job) {
			snap.Active = append(snap.Active, NewJobView(*job))
		}
		if isScheduled(job) {
			snap.Scheduled = append(snap.Scheduled, NewJobView(*job))
		}
	}

	sort.SliceStable(snap.Active, func(i, j int) bool {
		a, b := snap.Active[i], snap.Active[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	sort.SliceStable(snap.Scheduled, func(i, j int) bool {
		a, b := snap.Scheduled[i], snap.Scheduled[j]
		if !a.ScheduledTime.Equal(*b.ScheduledTime) {
			return a.ScheduledTime.Before(*b.ScheduledTime)
		}
		return a.ID < b.ID
	})

	snap.IsRunning = len(snap.Active) > 0
	return snap
}

// BuildOverview renders the stage row from the first active job only.
// With no active job every stage is pending.
func BuildOverview(snap Snapshot) Overview {
	stages := domain.PipelineStages()
	ov := Overview{
		Stages:    make([]StageCell, 0, len(stages)),
		IsRunning: snap.IsRunning,
	}

	current := -1
	if len(snap.Active) > 0 {
		rep := snap.Active[0]
		ov.Representative = &rep
		if idx, err := domain.Order(rep.Stage); err == nil {
			current = idx
		}
	}

	for _, s := range stages {
		idx, _ := domain.Order(s)
		status := domain.DisplayPending
		switch {
		case current < 0:
		case idx < current:
			status = domain.DisplayCompleted
		case idx == current:
			status = domain.DisplayActive
		}
		ov.Stages = append(ov.Stages, StageCell{
			Stage:   s,
			Label:   domain.BadgeLabel(string(s)),
			Status:  status,
			Display: domain.DescribeCell(s, status),
		})
	}
	return ov
}

// SnapshotSource loads the jobs a snapshot is built from.
type SnapshotSource interface {
	ListSnapshotCandidates(ctx context.Context) ([]domain.ContentJob, error)
}

// SnapshotService builds a fresh snapshot from the store on every call.
type SnapshotService struct {
	jobs   SnapshotSource
	logger *logger.Logger
	now    func() time.Time
}

// NewSnapshotService creates a new snapshot service.
func NewSnapshotService(jobs SnapshotSource, log *logger.Logger) *SnapshotService {
	return &SnapshotService{jobs: jobs, logger: log, now: time.Now}
}

// Snapshot loads candidate jobs and projects them.
func (s *SnapshotService) Snapshot(ctx context.Context) (Snapshot, error) {
	if s.logger != nil && logger.FromContext(ctx) == logger.GetDefault() {
		ctx = s.logger.WithContext(ctx)
	}
	start := time.Now()
	jobs, err := s.jobs.ListSnapshotCandidates(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	snap := BuildSnapshot(jobs, s.now())
	logger.With(logger.Fields{
		logger.FieldCount:     len(jobs),
		logger.FieldComponent: "snapshot",
	}).WithDuration(time.Since(start).Milliseconds()).Debug(ctx, "Snapshot built")
	return snap, nil
}

// Overview builds the stage overview from a fresh snapshot.
func (s *SnapshotService) Overview(ctx context.Context) (Overview, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return Overview{}, err
	}
	return BuildOverview(snap), nil
}
