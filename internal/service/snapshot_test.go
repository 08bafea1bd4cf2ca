package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/reelforge/internal/domain"
)

var base = time.Date(2026, 10, 16, 6, 0, 0, 0, time.UTC)

func job(id string, stage domain.Stage, createdOffset time.Duration) domain.ContentJob {
	j := domain.ContentJob{
		ID:        id,
		VideoType: domain.VideoTypeLongForm,
		Title:     id,
		Stage:     stage,
		CreatedAt: base.Add(createdOffset),
	}
	if stage == domain.StageFailed {
		j.ErrorMessage = strPtr("boom")
	}
	if stage == domain.StageCompleted {
		j.Progress = 100
		j.PublishedAt = timePtr(base)
	}
	return j
}

func ids(views []JobView) []string {
	out := make([]string, 0, len(views))
	for _, v := range views {
		out = append(out, v.ID)
	}
	return out
}

func TestBuildSnapshot_PartitionsAndOrders(t *testing.T) {
	scheduledLate := job("s-late", domain.StageReadyForUpload, time.Minute)
	scheduledLate.ScheduledTime = timePtr(base.Add(12 * time.Hour))
	scheduledEarly := job("s-early", domain.StageSchedulingUpload, 2*time.Minute)
	scheduledEarly.ScheduledTime = timePtr(base.Add(6 * time.Hour))

	jobs := []domain.ContentJob{
		job("old", domain.StageScriptGeneration, 0),
		job("new", domain.StagePending, 10*time.Minute),
		job("done", domain.StageCompleted, 20*time.Minute),
		job("broken", domain.StageFailed, 30*time.Minute),
		scheduledLate,
		scheduledEarly,
	}

	snap := BuildSnapshot(jobs, base)
	assert.Equal(t, []string{"new", "s-early", "s-late", "old"}, ids(snap.Active))
	assert.Equal(t, []string{"s-early", "s-late"}, ids(snap.Scheduled))
	assert.True(t, snap.IsRunning)

	for _, v := range snap.Active {
		assert.False(t, v.Stage.IsTerminal())
		assert.Equal(t, domain.Describe(v.Stage, v.Progress), v.Display)
	}
}

func TestBuildSnapshot_TiesBrokenByID(t *testing.T) {
	jobs := []domain.ContentJob{
		job("c", domain.StagePending, 0),
		job("a", domain.StagePending, 0),
		job("b", domain.StagePending, 0),
	}
	snap := BuildSnapshot(jobs, base)
	assert.Equal(t, []string{"a", "b", "c"}, ids(snap.Active))

	reversed := []domain.ContentJob{jobs[2], jobs[1], jobs[0]}
	assert.Equal(t, ids(snap.Active), ids(BuildSnapshot(reversed, base).Active))
}

func TestBuildSnapshot_IsIdempotentAndConcurrencySafe(t *testing.T) {
	jobs := []domain.ContentJob{
		job("x", domain.StageVideoCreation, 0),
		job("y", domain.StageCompleted, time.Minute),
	}
	first := BuildSnapshot(jobs, base)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, first, BuildSnapshot(jobs, base))
		}()
	}
	wg.Wait()
}

func TestBuildSnapshot_NotRunningWhenAllTerminal(t *testing.T) {
	snap := BuildSnapshot([]domain.ContentJob{
		job("a", domain.StageCompleted, 0),
		job("b", domain.StageFailed, 0),
	}, base)
	assert.False(t, snap.IsRunning)
	assert.Empty(t, snap.Active)
	assert.NotNil(t, snap.Active)
}

func TestBuildSnapshot_UnknownStageStaysVisible(t *testing.T) {
	snap := BuildSnapshot([]domain.ContentJob{job("odd", domain.Stage("subtitle_burn"), 0)}, base)
	require.Len(t, snap.Active, 1)
	assert.Equal(t, domain.DisplayPending, snap.Active[0].Display.Status)
	assert.Equal(t, "SUBTITLE BURN", snap.Active[0].Display.Badge)
}

func TestBuildOverview_RepresentativeDrivesRow(t *testing.T) {
	snap := BuildSnapshot([]domain.ContentJob{
		job("older", domain.StageUploading, 0),
		job("rep", domain.StageVideoCreation, time.Hour),
	}, base)
	ov := BuildOverview(snap)

	require.NotNil(t, ov.Representative)
	assert.Equal(t, "rep", ov.Representative.ID)

	want := map[domain.Stage]domain.DisplayStatus{
		domain.StageScriptGeneration:    domain.DisplayCompleted,
		domain.StageAudioGeneration:     domain.DisplayCompleted,
		domain.StageVideoCreation:       domain.DisplayActive,
		domain.StageVideoProcessing:     domain.DisplayPending,
		domain.StageThumbnailGeneration: domain.DisplayPending,
		domain.StageFileOrganization:    domain.DisplayPending,
		domain.StageSchedulingUpload:    domain.DisplayPending,
		domain.StageReadyForUpload:      domain.DisplayPending,
		domain.StageUploading:           domain.DisplayPending,
	}
	require.Len(t, ov.Stages, len(want))
	for _, cell := range ov.Stages {
		assert.Equal(t, want[cell.Stage], cell.Status, "stage %s", cell.Stage)
		assert.Equal(t, cell.Status, cell.Display.Status)
	}
}

func TestBuildOverview_EmptyIsAllPending(t *testing.T) {
	ov := BuildOverview(BuildSnapshot(nil, base))
	assert.Nil(t, ov.Representative)
	assert.False(t, ov.IsRunning)
	for _, cell := range ov.Stages {
		assert.Equal(t, domain.DisplayPending, cell.Status)
	}
}

func TestSnapshotService_FailedJobLeavesActive(t *testing.T) {
	ctx := context.Background()
	store := newMemJobs(job("j", domain.StageVideoProcessing, 0))
	snapshots := NewSnapshotService(store, quietLogger())
	progress := NewProgressService(store, nil, NewTimeline(time.UTC), quietLogger())

	snap, err := snapshots.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"j"}, ids(snap.Active))

	_, err = progress.FailJob(ctx, "j", "encode error")
	require.NoError(t, err)

	snap, err = snapshots.Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Active)
	assert.False(t, snap.IsRunning)
}
