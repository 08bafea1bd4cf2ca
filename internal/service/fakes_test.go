package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/timmy/reelforge/internal/automation"
	"github.com/timmy/reelforge/internal/domain"
	"github.com/timmy/reelforge/internal/logger"
)

func quietLogger() *logger.Logger {
	return logger.New(&logger.Config{Level: "error", Format: "json", Output: io.Discard, ServiceName: "test"})
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }
func timePtr(t time.Time) *time.Time {
	return &t
}

// memJobs is an in-memory job store with version checks.
type memJobs struct {
	mu        sync.Mutex
	jobs      map[string]domain.ContentJob
	conflicts int // number of SaveVersioned calls to lose before succeeding
	saveErr   func(job *domain.ContentJob) error
}

func newMemJobs(jobs ...domain.ContentJob) *memJobs {
	m := &memJobs{jobs: make(map[string]domain.ContentJob)}
	for _, j := range jobs {
		m.jobs[j.ID] = j
	}
	return m
}

func (m *memJobs) GetByID(_ context.Context, id string) (*domain.ContentJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrJobNotFound, id)
	}
	j.Metadata = copyMetadata(j.Metadata)
	return &j, nil
}

func (m *memJobs) SaveVersioned(_ context.Context, job *domain.ContentJob, expected int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		if err := m.saveErr(job); err != nil {
			return false, err
		}
	}
	if m.conflicts > 0 {
		m.conflicts--
		stored := m.jobs[job.ID]
		stored.Version++
		m.jobs[job.ID] = stored
		return false, nil
	}
	stored, ok := m.jobs[job.ID]
	if !ok || stored.Version != expected {
		return false, nil
	}
	job.Version = expected + 1
	saved := *job
	saved.Metadata = copyMetadata(job.Metadata)
	m.jobs[job.ID] = saved
	return true, nil
}

func (m *memJobs) CreateIfAbsent(_ context.Context, job *domain.ContentJob) (*domain.ContentJob, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, j := range m.jobs {
		if j.ChannelID != nil && job.ChannelID != nil && *j.ChannelID == *job.ChannelID &&
			j.VideoType == job.VideoType && j.RunDate == job.RunDate {
			j.Metadata = copyMetadata(j.Metadata)
			return &j, false, nil
		}
	}
	job.CreatedAt = time.Now()
	m.jobs[job.ID] = *job
	return job, true, nil
}

func (m *memJobs) setSaveErr(fn func(job *domain.ContentJob) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveErr = fn
}

// flakyJobs fails the failOn-th CreateIfAbsent call and every call after it
// until failOn is reset to zero.
type flakyJobs struct {
	*memJobs
	calls  int
	failOn int
}

func (f *flakyJobs) CreateIfAbsent(ctx context.Context, job *domain.ContentJob) (*domain.ContentJob, bool, error) {
	f.calls++
	if f.failOn > 0 && f.calls >= f.failOn {
		return nil, false, errors.New("database is locked")
	}
	return f.memJobs.CreateIfAbsent(ctx, job)
}

func (m *memJobs) ListByIDs(_ context.Context, ids []string) ([]domain.ContentJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.ContentJob{}
	for _, id := range ids {
		if j, ok := m.jobs[id]; ok {
			out = append(out, j)
		}
	}
	return out, nil
}

func (m *memJobs) ListSnapshotCandidates(_ context.Context) ([]domain.ContentJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.ContentJob{}
	for _, j := range m.jobs {
		if !j.IsTerminal() || (j.ScheduledTime != nil && j.PublishedAt == nil) {
			out = append(out, j)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out, nil
}

func (m *memJobs) all() []domain.ContentJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.ContentJob, 0, len(m.jobs))
	for _, j := range m.jobs {
		out = append(out, j)
	}
	return out
}

func (m *memJobs) get(id string) domain.ContentJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.jobs[id]
}

func (m *memJobs) setStage(id string, stage domain.Stage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j := m.jobs[id]
	j.Stage = stage
	if stage == domain.StageCompleted {
		j.Progress = 100
	}
	m.jobs[id] = j
}

func copyMetadata(md domain.JobMetadata) domain.JobMetadata {
	if md == nil {
		return nil
	}
	out := make(domain.JobMetadata, len(md))
	for k, v := range md {
		out[k] = v
	}
	return out
}

type memChannels struct {
	channels []domain.Channel
}

func (m *memChannels) ListActive(context.Context) ([]domain.Channel, error) {
	var out []domain.Channel
	for _, c := range m.channels {
		if c.IsActive {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memChannels) GetByID(_ context.Context, id string) (*domain.Channel, error) {
	for _, c := range m.channels {
		if c.ID == id {
			c := c
			return &c, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrChannelNotFound, id)
}

type memTriggers struct {
	mu        sync.Mutex
	runs      []domain.TriggerRun
	createErr error
}

func (m *memTriggers) Create(_ context.Context, run *domain.TriggerRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.runs = append(m.runs, *run)
	return nil
}

func (m *memTriggers) SetOutcome(_ context.Context, id string, failed int, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.runs {
		if m.runs[i].ID == id {
			m.runs[i].Failed = failed
			m.runs[i].Message = message
			return nil
		}
	}
	return fmt.Errorf("trigger run %s not found", id)
}

func (m *memTriggers) setCreateErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createErr = err
}

func (m *memTriggers) Latest(_ context.Context, kind domain.TriggerKind, status domain.TriggerStatus) (*domain.TriggerRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.runs) - 1; i >= 0; i-- {
		r := m.runs[i]
		if r.Kind == kind && (status == "" || r.Status == status) {
			return &r, nil
		}
	}
	return nil, nil
}

type fakeQueue struct {
	mu       sync.Mutex
	enqueued []string
	failFor  map[domain.VideoType]bool
}

func (q *fakeQueue) Enqueue(_ context.Context, job *domain.ContentJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.failFor[job.VideoType] {
		return errors.New("broker unavailable")
	}
	q.enqueued = append(q.enqueued, job.ID)
	return nil
}

type fakePublisher struct {
	failIDs map[string]bool
	calls   []string
}

func (p *fakePublisher) Publish(_ context.Context, job *domain.ContentJob) (*automation.PublishReceipt, error) {
	p.calls = append(p.calls, job.ID)
	if p.failIDs[job.ID] {
		return nil, errors.New("quota exceeded")
	}
	return &automation.PublishReceipt{VideoID: "yt-" + job.ID, URL: "https://youtu.be/" + job.ID}, nil
}
