package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/reelforge/internal/domain"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, Migrate(db))
	return db
}

func strPtr(s string) *string { return &s }

func dailyJob(id, channel string, vt domain.VideoType, runDate string) *domain.ContentJob {
	return &domain.ContentJob{
		ID:        id,
		ChannelID: strPtr(channel),
		VideoType: vt,
		RunDate:   runDate,
		Title:     id,
		Stage:     domain.StagePending,
	}
}

func TestJobRepository_CreateIfAbsentHonoursNaturalKey(t *testing.T) {
	ctx := context.Background()
	repo := NewJobRepository(openTestDB(t))

	stored, created, err := repo.CreateIfAbsent(ctx, dailyJob("a", "ch1", domain.VideoTypeLongForm, "2026-10-16"))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "a", stored.ID)

	stored, created, err = repo.CreateIfAbsent(ctx, dailyJob("b", "ch1", domain.VideoTypeLongForm, "2026-10-16"))
	require.NoError(t, err)
	assert.False(t, created, "same channel/type/date must not create a second job")
	require.NotNil(t, stored)
	assert.Equal(t, "a", stored.ID, "conflict returns the row holding the key")
	assert.Equal(t, domain.StagePending, stored.Stage)

	_, created, err = repo.CreateIfAbsent(ctx, dailyJob("c", "ch1", domain.VideoTypeShort, "2026-10-16"))
	require.NoError(t, err)
	assert.True(t, created)

	_, total, err := repo.List(ctx, JobFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
}

func TestJobRepository_GetByIDNotFound(t *testing.T) {
	repo := NewJobRepository(openTestDB(t))
	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
}

func TestJobRepository_SaveVersionedRejectsStaleWriter(t *testing.T) {
	ctx := context.Background()
	repo := NewJobRepository(openTestDB(t))
	_, _, err := repo.CreateIfAbsent(ctx, dailyJob("a", "ch1", domain.VideoTypeLongForm, "2026-10-16"))
	require.NoError(t, err)

	first, err := repo.GetByID(ctx, "a")
	require.NoError(t, err)
	second, err := repo.GetByID(ctx, "a")
	require.NoError(t, err)

	first.Stage = domain.StageScriptGeneration
	first.Progress = 30
	ok, err := repo.SaveVersioned(ctx, first, first.Version)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, first.Version)

	second.Progress = 10
	ok, err = repo.SaveVersioned(ctx, second, second.Version)
	require.NoError(t, err)
	assert.False(t, ok, "stale version must lose")

	stored, err := repo.GetByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, domain.StageScriptGeneration, stored.Stage)
	assert.Equal(t, 30, stored.Progress)
}

func TestJobRepository_ListSnapshotCandidates(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo := NewJobRepository(db)
	slot := time.Date(2026, 10, 16, 18, 0, 0, 0, time.UTC)
	published := slot.Add(time.Minute)

	jobs := []*domain.ContentJob{
		{ID: "active", VideoType: domain.VideoTypeShort, Title: "a", Stage: domain.StageVideoCreation},
		{ID: "scheduled", VideoType: domain.VideoTypeShort, Title: "s", Stage: domain.StageReadyForUpload, ScheduledTime: &slot},
		{ID: "done", VideoType: domain.VideoTypeShort, Title: "d", Stage: domain.StageCompleted, Progress: 100, ScheduledTime: &slot, PublishedAt: &published},
		{ID: "failed", VideoType: domain.VideoTypeShort, Title: "f", Stage: domain.StageFailed, ErrorMessage: strPtr("boom")},
	}
	for _, j := range jobs {
		require.NoError(t, db.Create(j).Error)
	}

	got, err := repo.ListSnapshotCandidates(ctx)
	require.NoError(t, err)
	ids := make([]string, 0, len(got))
	for _, j := range got {
		ids = append(ids, j.ID)
	}
	assert.ElementsMatch(t, []string{"active", "scheduled"}, ids)
}

func TestChannelRepository_UpsertAndListActive(t *testing.T) {
	ctx := context.Background()
	repo := NewChannelRepository(openTestDB(t))

	require.NoError(t, repo.Upsert(ctx, []domain.Channel{
		{ID: "b", Name: "Beta", LongFormUploadTime: "18:00", ShortUploadTime: "12:00", IsActive: true},
		{ID: "a", Name: "Alpha", LongFormUploadTime: "19:30", ShortUploadTime: "11:00", IsActive: true},
	}))
	require.NoError(t, repo.Upsert(ctx, []domain.Channel{
		{ID: "a", Name: "Alpha", LongFormUploadTime: "20:00", ShortUploadTime: "11:00", IsActive: true},
	}))

	active, err := repo.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "a", active[0].ID)
	assert.Equal(t, "20:00", active[0].LongFormUploadTime)

	_, err = repo.GetByID(ctx, "zzz")
	assert.ErrorIs(t, err, domain.ErrChannelNotFound)
}

func TestTriggerRepository_Latest(t *testing.T) {
	ctx := context.Background()
	repo := NewTriggerRepository(openTestDB(t))

	run, err := repo.Latest(ctx, domain.TriggerDaily, "")
	require.NoError(t, err)
	assert.Nil(t, run)

	base := time.Date(2026, 10, 16, 6, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Create(ctx, &domain.TriggerRun{ID: "1", Kind: domain.TriggerDaily, RunDate: "2026-10-15", Status: domain.TriggerAccepted, JobIDs: domain.StringList{"x"}, TriggeredAt: base.Add(-24 * time.Hour)}))
	require.NoError(t, repo.Create(ctx, &domain.TriggerRun{ID: "2", Kind: domain.TriggerDaily, RunDate: "2026-10-16", Status: domain.TriggerRejected, TriggeredAt: base}))

	latest, err := repo.Latest(ctx, domain.TriggerDaily, "")
	require.NoError(t, err)
	assert.Equal(t, "2", latest.ID)

	accepted, err := repo.Latest(ctx, domain.TriggerDaily, domain.TriggerAccepted)
	require.NoError(t, err)
	assert.Equal(t, "1", accepted.ID)
	assert.Equal(t, domain.StringList{"x"}, accepted.JobIDs)
}

func TestTriggerRepository_SetOutcome(t *testing.T) {
	ctx := context.Background()
	repo := NewTriggerRepository(openTestDB(t))

	require.NoError(t, repo.Create(ctx, &domain.TriggerRun{ID: "1", Kind: domain.TriggerDaily, RunDate: "2026-10-16", Status: domain.TriggerAccepted, TriggeredAt: time.Now()}))
	require.NoError(t, repo.SetOutcome(ctx, "1", 2, "2 jobs failed to start"))

	run, err := repo.Latest(ctx, domain.TriggerDaily, domain.TriggerAccepted)
	require.NoError(t, err)
	assert.Equal(t, 2, run.Failed)
	assert.Equal(t, "2 jobs failed to start", run.Message)
}
