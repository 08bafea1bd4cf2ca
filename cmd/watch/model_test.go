package main

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/reelforge/internal/client"
	"github.com/timmy/reelforge/internal/domain"
	"github.com/timmy/reelforge/internal/service"
)

type fakeAPI struct {
	jobs       []domain.ContentJob
	snapErr    error
	triggerErr error
}

func (f *fakeAPI) Snapshot(context.Context, client.PollOptions) (*service.Snapshot, error) {
	if f.snapErr != nil {
		return nil, f.snapErr
	}
	snap := service.BuildSnapshot(f.jobs, time.Now())
	return &snap, nil
}

func (f *fakeAPI) Overview(ctx context.Context, opts client.PollOptions) (*service.Overview, error) {
	snap, err := f.Snapshot(ctx, opts)
	if err != nil {
		return nil, err
	}
	ov := service.BuildOverview(*snap)
	return &ov, nil
}

func (f *fakeAPI) TriggerDaily(context.Context) (*service.DailyResult, error) {
	if f.triggerErr != nil {
		return nil, f.triggerErr
	}
	return &service.DailyResult{Accepted: true, RunDate: "2026-10-16", Created: []string{"a", "b"}}, nil
}

func testModel(a *fakeAPI) model {
	return newModel(context.Background(), "http://test", a, client.PollOptions{Interval: time.Second})
}

func pollOnce(t *testing.T, m model) model {
	t.Helper()
	next, _ := m.Update(snapshotMsg(m.snapshot.Poll(m.ctx)))
	m = next.(model)
	next, _ = m.Update(overviewMsg(m.overview.Poll(m.ctx)))
	return next.(model)
}

func TestModel_RendersActiveAndScheduled(t *testing.T) {
	at := time.Now().Add(time.Hour)
	a := &fakeAPI{jobs: []domain.ContentJob{
		{ID: "1", Title: "Deep sea facts", Stage: domain.StageVideoCreation, Progress: 40, VideoType: domain.VideoTypeLongForm, CreatedAt: time.Now()},
		{ID: "2", Title: "Quick tip", Stage: domain.StageReadyForUpload, Progress: 100, ScheduledTime: &at, VideoType: domain.VideoTypeShort, CreatedAt: time.Now()},
	}}
	m := pollOnce(t, testModel(a))

	require.NotNil(t, m.snap.Value)
	view := m.View()
	assert.Contains(t, view, "Deep sea facts")
	assert.Contains(t, view, "Quick tip")
	assert.Contains(t, view, domain.BadgeLabel(string(domain.StageVideoCreation)))
	assert.NotContains(t, view, "Nothing scheduled.")
}

func TestModel_KeepsLastGoodSnapshotOnFailure(t *testing.T) {
	a := &fakeAPI{jobs: []domain.ContentJob{{ID: "1", Title: "Still here", Stage: domain.StageAudioGeneration, CreatedAt: time.Now()}}}
	m := pollOnce(t, testModel(a))

	a.snapErr = errors.New("connection refused")
	m = pollOnce(t, m)

	assert.ErrorIs(t, m.snap.Err, client.ErrStaleRead)
	view := m.View()
	assert.Contains(t, view, "Still here")
	assert.Contains(t, view, "connection refused")
}

func TestModel_TriggerFeedback(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		want    string
		isError bool
	}{
		{name: "accepted", want: "2 created", isError: false},
		{name: "rejected", err: domain.ErrAlreadyRunning, want: "previous run still in flight", isError: true},
		{name: "transport", err: errors.New("timeout"), want: "timeout", isError: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := testModel(&fakeAPI{triggerErr: tt.err})
			next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("t")})
			m = next.(model)
			require.NotNil(t, cmd)
			assert.True(t, m.triggering)

			next, _ = m.Update(cmd())
			m = next.(model)
			assert.False(t, m.triggering)
			assert.Contains(t, m.flash, tt.want)
			assert.Equal(t, tt.isError, m.flashErr)
		})
	}
}

func TestModel_QuitKey(t *testing.T) {
	_, cmd := testModel(&fakeAPI{}).Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}
