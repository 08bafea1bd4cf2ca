package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/reelforge/internal/domain"
	"github.com/timmy/reelforge/internal/lock"
)

type dispatcherFixture struct {
	d         *Dispatcher
	jobs      *memJobs
	inserts   *flakyJobs
	triggers  *memTriggers
	queue     *fakeQueue
	publisher *fakePublisher
	locker    *lock.LocalLocker
	now       time.Time
}

func newDispatcherFixture(t *testing.T, allowOverlap bool, seed ...domain.ContentJob) *dispatcherFixture {
	t.Helper()
	f := &dispatcherFixture{
		jobs:      newMemJobs(seed...),
		triggers:  &memTriggers{},
		queue:     &fakeQueue{},
		publisher: &fakePublisher{},
		locker:    lock.NewLocalLocker(),
		now:       time.Date(2026, 10, 16, 6, 0, 0, 0, time.UTC),
	}
	f.inserts = &flakyJobs{memJobs: f.jobs}
	channels := &memChannels{channels: []domain.Channel{
		{ID: "main", Name: "Main", LongFormUploadTime: "18:00", ShortUploadTime: "12:00", IsActive: true},
		{ID: "side", Name: "Side", LongFormUploadTime: "19:00", ShortUploadTime: "13:00", IsActive: true},
		{ID: "off", Name: "Off", LongFormUploadTime: "19:00", ShortUploadTime: "13:00", IsActive: false},
	}}
	progress := NewProgressService(f.jobs, channels, NewTimeline(time.UTC), quietLogger())
	progress.now = func() time.Time { return f.now }
	f.d = NewDispatcher(f.inserts, channels, f.triggers, progress, f.queue, f.publisher, f.locker,
		DispatcherConfig{Location: time.UTC, DailyTime: "06:00", AllowOverlap: allowOverlap}, quietLogger())
	f.d.now = func() time.Time { return f.now }
	return f
}

func TestTriggerDaily_CreatesOneJobPerTypePerActiveChannel(t *testing.T) {
	f := newDispatcherFixture(t, false)

	res, err := f.d.TriggerDaily(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Accepted)
	assert.Equal(t, "2026-10-16", res.RunDate)
	assert.Len(t, res.Created, 4)
	assert.Empty(t, res.Failed)
	assert.ElementsMatch(t, res.Created, f.queue.enqueued)

	perChannel := map[string]int{}
	for _, j := range f.jobs.all() {
		assert.Equal(t, domain.StagePending, j.Stage)
		assert.Equal(t, 0, j.Progress)
		perChannel[*j.ChannelID]++
	}
	assert.Equal(t, map[string]int{"main": 2, "side": 2}, perChannel)

	last, _ := f.triggers.Latest(context.Background(), domain.TriggerDaily, "")
	require.NotNil(t, last)
	assert.Equal(t, domain.TriggerAccepted, last.Status)
	assert.Equal(t, 4, last.Created)
}

func TestTriggerDaily_SecondCallWhileInFlightIsRejected(t *testing.T) {
	ctx := context.Background()
	f := newDispatcherFixture(t, false)

	_, err := f.d.TriggerDaily(ctx)
	require.NoError(t, err)
	before := len(f.jobs.all())

	_, err = f.d.TriggerDaily(ctx)
	assert.ErrorIs(t, err, domain.ErrAlreadyRunning)
	assert.Len(t, f.jobs.all(), before, "rejected trigger must not create jobs")

	last, _ := f.triggers.Latest(ctx, domain.TriggerDaily, "")
	assert.Equal(t, domain.TriggerRejected, last.Status)
}

func TestTriggerDaily_RepeatAfterCompletionCreatesNothing(t *testing.T) {
	ctx := context.Background()
	f := newDispatcherFixture(t, false)

	first, err := f.d.TriggerDaily(ctx)
	require.NoError(t, err)
	for _, id := range first.Created {
		f.jobs.setStage(id, domain.StageCompleted)
	}

	second, err := f.d.TriggerDaily(ctx)
	require.NoError(t, err)
	assert.Empty(t, second.Created)
	assert.Equal(t, 4, second.Existing)
	assert.Len(t, f.jobs.all(), 4)
}

func TestTriggerDaily_OverlapAllowedStillDeduplicates(t *testing.T) {
	ctx := context.Background()
	f := newDispatcherFixture(t, true)

	_, err := f.d.TriggerDaily(ctx)
	require.NoError(t, err)
	res, err := f.d.TriggerDaily(ctx)
	require.NoError(t, err)
	assert.Empty(t, res.Created)

	f.now = f.now.Add(24 * time.Hour)
	res, err = f.d.TriggerDaily(ctx)
	require.NoError(t, err)
	assert.Len(t, res.Created, 4)
	assert.Equal(t, "2026-10-17", res.RunDate)
}

func TestTriggerDaily_LockHeldIsAlreadyRunning(t *testing.T) {
	ctx := context.Background()
	f := newDispatcherFixture(t, true)

	release, err := f.locker.TryLock(ctx, dailyLockKey, time.Minute)
	require.NoError(t, err)
	defer release(ctx)

	_, err = f.d.TriggerDaily(ctx)
	assert.ErrorIs(t, err, domain.ErrAlreadyRunning)
	assert.Empty(t, f.jobs.all())
}

func TestTriggerDaily_KickoffFailureMarksJobFailed(t *testing.T) {
	f := newDispatcherFixture(t, false)
	f.queue.failFor = map[domain.VideoType]bool{domain.VideoTypeShort: true}

	res, err := f.d.TriggerDaily(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.Failed, 2)

	for _, id := range res.Failed {
		j := f.jobs.get(id)
		assert.Equal(t, domain.StageFailed, j.Stage)
		require.NotNil(t, j.ErrorMessage)
		assert.Contains(t, *j.ErrorMessage, "broker unavailable")
	}
}

func TestTriggerDaily_KickoffFailureRecordedOnRun(t *testing.T) {
	ctx := context.Background()
	f := newDispatcherFixture(t, false)
	f.queue.failFor = map[domain.VideoType]bool{domain.VideoTypeShort: true}

	res, err := f.d.TriggerDaily(ctx)
	require.NoError(t, err)

	last, _ := f.triggers.Latest(ctx, domain.TriggerDaily, domain.TriggerAccepted)
	require.NotNil(t, last)
	assert.Equal(t, res.TriggerID, last.ID)
	assert.Len(t, last.JobIDs, 4)
	assert.Equal(t, 2, last.Failed)
	assert.Equal(t, "2 jobs failed to start", last.Message)
}

func TestTriggerDaily_InterruptedRunIsResumed(t *testing.T) {
	tests := []struct {
		name string
		fail func(f *dispatcherFixture)
		heal func(f *dispatcherFixture)

		wantErr      string
		wantJobs     int
		wantStarted  int
		wantRunJobs  int // -1 when no run is recorded
		retryCreated int
		retryResumed int
	}{
		{
			name:        "insert fails part way",
			fail:        func(f *dispatcherFixture) { f.inserts.failOn = 3 },
			wantErr:     "database is locked",
			wantJobs:    2,
			wantStarted: 2,
			wantRunJobs: 2,
			heal: func(f *dispatcherFixture) {
				f.inserts.failOn = 0
				for _, j := range f.jobs.all() {
					f.jobs.setStage(j.ID, domain.StageCompleted)
				}
			},
			retryCreated: 2,
		},
		{
			name:         "run record fails",
			fail:         func(f *dispatcherFixture) { f.triggers.setCreateErr(errors.New("disk full")) },
			wantErr:      "disk full",
			wantJobs:     4,
			wantStarted:  0,
			wantRunJobs:  -1,
			heal:         func(f *dispatcherFixture) { f.triggers.setCreateErr(nil) },
			retryResumed: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newDispatcherFixture(t, false)
			tt.fail(f)

			res, err := f.d.TriggerDaily(ctx)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Nil(t, res)
			assert.Len(t, f.jobs.all(), tt.wantJobs)
			assert.Len(t, f.queue.enqueued, tt.wantStarted)

			last, _ := f.triggers.Latest(ctx, domain.TriggerDaily, domain.TriggerAccepted)
			if tt.wantRunJobs < 0 {
				assert.Nil(t, last)
			} else {
				require.NotNil(t, last)
				assert.Len(t, last.JobIDs, tt.wantRunJobs)
				assert.ElementsMatch(t, []string(last.JobIDs), f.queue.enqueued)
				assert.Contains(t, last.Message, "stopped after")
			}

			tt.heal(f)
			retry, err := f.d.TriggerDaily(ctx)
			require.NoError(t, err)
			assert.Len(t, retry.Created, tt.retryCreated)
			assert.Len(t, retry.Resumed, tt.retryResumed)
			assert.Len(t, f.jobs.all(), 4)
			assert.Len(t, f.queue.enqueued, 4, "every job is started exactly once")

			last, _ = f.triggers.Latest(ctx, domain.TriggerDaily, domain.TriggerAccepted)
			require.NotNil(t, last)
			assert.Len(t, last.JobIDs, 4)
		})
	}
}

func TestTriggerDaily_ResumesOnlyUnstartedPendingJobs(t *testing.T) {
	ctx := context.Background()
	orphan := job("orphan", domain.StagePending, 0)
	orphan.ChannelID = strPtr("main")
	orphan.RunDate = "2026-10-16"
	f := newDispatcherFixture(t, true, orphan)

	res, err := f.d.TriggerDaily(ctx)
	require.NoError(t, err)
	assert.Len(t, res.Created, 3)
	assert.Equal(t, []string{"orphan"}, res.Resumed)
	assert.Contains(t, f.queue.enqueued, "orphan")

	// recorded by the first run, so a second run leaves it to its worker
	res, err = f.d.TriggerDaily(ctx)
	require.NoError(t, err)
	assert.Empty(t, res.Created)
	assert.Empty(t, res.Resumed)
	assert.Equal(t, 4, res.Existing)
	assert.Len(t, f.queue.enqueued, 4)
}

func scheduledJob(id string, stage domain.Stage, at time.Time) domain.ContentJob {
	j := job(id, stage, 0)
	j.ScheduledTime = timePtr(at)
	return j
}

func TestCheckScheduledUploads(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 16, 18, 0, 0, 0, time.UTC)
	f := newDispatcherFixture(t, false,
		scheduledJob("due", domain.StageReadyForUpload, now.Add(-time.Minute)),
		scheduledJob("exact", domain.StageReadyForUpload, now),
		scheduledJob("future", domain.StageReadyForUpload, now.Add(time.Hour)),
		scheduledJob("not-ready", domain.StageSchedulingUpload, now.Add(-time.Hour)),
		scheduledJob("rejected", domain.StageReadyForUpload, now.Add(-2*time.Minute)),
	)
	f.now = now
	f.publisher.failIDs = map[string]bool{"rejected": true}

	res, err := f.d.CheckScheduledUploads(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"due", "exact"}, res.Published)
	assert.ElementsMatch(t, []string{"future", "not-ready"}, res.StillPending)
	assert.ElementsMatch(t, []string{"rejected"}, res.Failed)

	due := f.jobs.get("due")
	assert.Equal(t, domain.StageCompleted, due.Stage)
	assert.Equal(t, 100, due.Progress)
	require.NotNil(t, due.PublishedAt)
	assert.True(t, due.PublishedAt.Equal(now))
	assert.Equal(t, "yt-due", due.Metadata["videoId"])
	assert.NoError(t, due.CheckInvariants())

	rejected := f.jobs.get("rejected")
	assert.Equal(t, domain.StageFailed, rejected.Stage)
	require.NotNil(t, rejected.ErrorMessage)
	assert.Contains(t, *rejected.ErrorMessage, "quota exceeded")
	assert.Nil(t, rejected.PublishedAt)

	// published jobs leave the scheduled view
	again, err := f.d.CheckScheduledUploads(ctx)
	require.NoError(t, err)
	assert.Empty(t, again.Published)
	assert.ElementsMatch(t, []string{"future", "not-ready"}, again.StillPending)
	assert.ElementsMatch(t, []string{"due", "exact", "rejected"}, f.publisher.calls)
}

func TestCheckScheduledUploads_CompletionWriteFailsAfterPublish(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 16, 18, 0, 0, 0, time.UTC)
	f := newDispatcherFixture(t, false, scheduledJob("due", domain.StageReadyForUpload, now.Add(-time.Minute)))
	f.now = now
	f.jobs.setSaveErr(func(j *domain.ContentJob) error {
		if j.Stage == domain.StageCompleted {
			return errors.New("disk I/O error")
		}
		return nil
	})

	res, err := f.d.CheckScheduledUploads(ctx)
	require.NoError(t, err)
	assert.Empty(t, res.Published)
	assert.Equal(t, []string{"due"}, res.StillPending)

	due := f.jobs.get("due")
	assert.Equal(t, domain.StageUploading, due.Stage)
	assert.Equal(t, "yt-due", due.Metadata["videoId"])
	assert.NotEmpty(t, due.Metadata["uploadCheckId"])

	f.jobs.setSaveErr(nil)
	res, err = f.d.CheckScheduledUploads(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"due"}, res.Published)
	assert.Empty(t, res.StillPending)
	assert.Equal(t, []string{"due"}, f.publisher.calls, "a published video is not uploaded twice")

	due = f.jobs.get("due")
	assert.Equal(t, domain.StageCompleted, due.Stage)
	require.NotNil(t, due.PublishedAt)
	assert.NoError(t, due.CheckInvariants())
}

func TestCheckScheduledUploads_SettlesInterruptedUploads(t *testing.T) {
	now := time.Date(2026, 10, 16, 18, 0, 0, 0, time.UTC)
	tests := []struct {
		name      string
		metadata  domain.JobMetadata
		wantStage domain.Stage
		wantList  string
	}{
		{
			name:      "receipt stored",
			metadata:  domain.JobMetadata{"uploadCheckId": "earlier", "videoId": "yt-1"},
			wantStage: domain.StageCompleted,
			wantList:  "published",
		},
		{
			name:      "no receipt",
			metadata:  domain.JobMetadata{"uploadCheckId": "earlier"},
			wantStage: domain.StageFailed,
			wantList:  "failed",
		},
		{
			name:      "uploading by a worker",
			metadata:  nil,
			wantStage: domain.StageUploading,
			wantList:  "pending",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := scheduledJob("stuck", domain.StageUploading, now.Add(-time.Hour))
			j.Metadata = tt.metadata
			f := newDispatcherFixture(t, false, j)
			f.now = now

			res, err := f.d.CheckScheduledUploads(context.Background())
			require.NoError(t, err)
			lists := map[string][]string{
				"published": res.Published,
				"failed":    res.Failed,
				"pending":   res.StillPending,
			}
			assert.Equal(t, []string{"stuck"}, lists[tt.wantList])
			assert.Empty(t, f.publisher.calls)

			got := f.jobs.get("stuck")
			assert.Equal(t, tt.wantStage, got.Stage)
			if tt.wantStage == domain.StageFailed {
				require.NotNil(t, got.ErrorMessage)
				assert.Contains(t, *got.ErrorMessage, "publish outcome unknown")
			}
		})
	}
}

func TestDispatcherStatus(t *testing.T) {
	ctx := context.Background()
	f := newDispatcherFixture(t, false)

	status, err := f.d.Status(ctx)
	require.NoError(t, err)
	assert.False(t, status.IsRunning)
	assert.Nil(t, status.LastDaily)
	require.NotNil(t, status.NextDailyRun)
	assert.True(t, status.NextDailyRun.Equal(f.now.Add(24*time.Hour)), "06:00 exactly rolls to tomorrow")

	_, err = f.d.TriggerDaily(ctx)
	require.NoError(t, err)
	status, err = f.d.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status.IsRunning)
	require.NotNil(t, status.LastDaily)
	assert.Equal(t, domain.TriggerAccepted, status.LastDaily.Status)
}
