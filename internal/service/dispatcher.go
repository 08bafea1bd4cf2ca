package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/timmy/reelforge/internal/automation"
	"github.com/timmy/reelforge/internal/domain"
	"github.com/timmy/reelforge/internal/lock"
	"github.com/timmy/reelforge/internal/logger"
)

const (
	dailyLockKey       = "trigger:daily"
	uploadCheckLockKey = "trigger:upload_check"
	runDateLayout      = "2006-01-02"
)

// DispatchJobStore is the job persistence the dispatcher needs.
type DispatchJobStore interface {
	// CreateIfAbsent returns the inserted job, or the job already holding its natural key.
	CreateIfAbsent(ctx context.Context, job *domain.ContentJob) (*domain.ContentJob, bool, error)
	ListByIDs(ctx context.Context, ids []string) ([]domain.ContentJob, error)
	ListSnapshotCandidates(ctx context.Context) ([]domain.ContentJob, error)
}

// ChannelLister lists the channels a daily run produces content for.
type ChannelLister interface {
	ListActive(ctx context.Context) ([]domain.Channel, error)
}

// TriggerStore records trigger invocations.
type TriggerStore interface {
	Create(ctx context.Context, run *domain.TriggerRun) error
	SetOutcome(ctx context.Context, id string, failed int, message string) error
	Latest(ctx context.Context, kind domain.TriggerKind, status domain.TriggerStatus) (*domain.TriggerRun, error)
}

// DispatcherConfig holds trigger policy.
type DispatcherConfig struct {
	Location     *time.Location
	DailyTime    string
	AllowOverlap bool
	LockTTL      time.Duration
}

// DailyResult reports what a daily trigger did.
type DailyResult struct {
	Accepted  bool     `json:"accepted"`
	TriggerID string   `json:"triggerId"`
	RunDate   string   `json:"runDate"`
	Created   []string `json:"created"`
	Existing  int      `json:"existing"`
	Resumed   []string `json:"resumed"` // pending jobs of today that no recorded run had started
	Failed    []string `json:"failed"`
}

// UploadCheckResult reports the outcome of a scheduled-upload scan.
type UploadCheckResult struct {
	Published    []string `json:"published"`
	StillPending []string `json:"stillPending"`
	Failed       []string `json:"failed"`
}

// AutomationStatus summarizes trigger state for the dashboard.
type AutomationStatus struct {
	IsRunning       bool               `json:"isRunning"`
	LastDaily       *domain.TriggerRun `json:"lastDaily"`
	LastUploadCheck *domain.TriggerRun `json:"lastUploadCheck"`
	NextDailyRun    *time.Time         `json:"nextDailyRun"`
}

// Dispatcher creates daily jobs and publishes scheduled ones.
type Dispatcher struct {
	jobs      DispatchJobStore
	channels  ChannelLister
	triggers  TriggerStore
	progress  *ProgressService
	queue     automation.WorkQueue
	publisher automation.Publisher
	locker    lock.Locker
	cfg       DispatcherConfig
	logger    *logger.Logger
	now       func() time.Time
}

// NewDispatcher creates a new trigger dispatcher.
func NewDispatcher(
	jobs DispatchJobStore,
	channels ChannelLister,
	triggers TriggerStore,
	progress *ProgressService,
	queue automation.WorkQueue,
	publisher automation.Publisher,
	locker lock.Locker,
	cfg DispatcherConfig,
	log *logger.Logger,
) *Dispatcher {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 2 * time.Minute
	}
	return &Dispatcher{
		jobs:      jobs,
		channels:  channels,
		triggers:  triggers,
		progress:  progress,
		queue:     queue,
		publisher: publisher,
		locker:    locker,
		cfg:       cfg,
		logger:    log,
		now:       time.Now,
	}
}

func (d *Dispatcher) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != logger.GetDefault() {
		return l
	}
	return d.logger
}

// TriggerDaily creates one long-form and one short job per active channel for today.
// Jobs that already exist for today are left alone, so repeated calls create nothing new,
// except that pending jobs no recorded run ever started are started now.
// It fails with domain.ErrAlreadyRunning while another trigger holds the lock or, unless
// overlap is allowed, while the previous daily run still has non-terminal jobs.
//
// The run is recorded before any job is handed to the work queue. If recording fails,
// nothing is started and the next trigger resumes the jobs. If a job insert fails
// part way, the jobs created so far are still recorded and started.
func (d *Dispatcher) TriggerDaily(ctx context.Context) (*DailyResult, error) {
	ctx = logger.SetTrigger(ctx, string(domain.TriggerDaily))
	start := time.Now()
	now := d.now()
	runDate := now.In(d.cfg.Location).Format(runDateLayout)

	release, err := d.locker.TryLock(ctx, dailyLockKey, d.cfg.LockTTL)
	if err != nil {
		if errors.Is(err, lock.ErrLocked) {
			d.recordRejected(ctx, runDate, now, "another daily trigger is in progress")
			return nil, fmt.Errorf("%w: trigger lock held", domain.ErrAlreadyRunning)
		}
		return nil, err
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			d.log(ctx).WithError(err).Warn("Failed to release daily trigger lock")
		}
	}()

	last, err := d.triggers.Latest(ctx, domain.TriggerDaily, domain.TriggerAccepted)
	if err != nil {
		return nil, err
	}
	if !d.cfg.AllowOverlap {
		inFlight, err := d.inFlight(ctx, last)
		if err != nil {
			return nil, err
		}
		if len(inFlight) > 0 {
			d.recordRejected(ctx, runDate, now, fmt.Sprintf("%d jobs from the previous run are still in flight", len(inFlight)))
			return nil, fmt.Errorf("%w: %d jobs still in flight", domain.ErrAlreadyRunning, len(inFlight))
		}
	}
	started := map[string]bool{}
	if last != nil {
		for _, id := range last.JobIDs {
			started[id] = true
		}
	}

	channels, err := d.channels.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	result := &DailyResult{
		Accepted:  true,
		TriggerID: uuid.New().String(),
		RunDate:   runDate,
		Created:   []string{},
		Resumed:   []string{},
		Failed:    []string{},
	}
	var (
		jobIDs    []string
		toStart   []*domain.ContentJob
		createErr error
	)
create:
	for i := range channels {
		ch := &channels[i]
		for _, vt := range domain.VideoTypes {
			stored, created, err := d.jobs.CreateIfAbsent(ctx, newDailyJob(ch, vt, runDate, result.TriggerID))
			if err != nil {
				createErr = err
				break create
			}
			jobIDs = append(jobIDs, stored.ID)
			switch {
			case created:
				result.Created = append(result.Created, stored.ID)
				toStart = append(toStart, stored)
			case stored.Stage == domain.StagePending && !started[stored.ID]:
				result.Existing++
				result.Resumed = append(result.Resumed, stored.ID)
				toStart = append(toStart, stored)
			default:
				result.Existing++
			}
		}
	}

	run := &domain.TriggerRun{
		ID:          result.TriggerID,
		Kind:        domain.TriggerDaily,
		RunDate:     runDate,
		Status:      domain.TriggerAccepted,
		JobIDs:      domain.StringList(jobIDs),
		Created:     len(result.Created),
		TriggeredAt: now,
	}
	if createErr != nil {
		run.Message = fmt.Sprintf("stopped after %d jobs: %v", len(jobIDs), createErr)
	}
	if err := d.triggers.Create(ctx, run); err != nil {
		d.log(ctx).WithError(err).WithField(logger.FieldCount, len(toStart)).
			Error("Daily run not recorded, leaving its jobs pending for the next trigger")
		return nil, err
	}

	for _, job := range toStart {
		jobCtx := logger.SetJobID(ctx, job.ID)
		if job.ChannelID != nil {
			jobCtx = logger.SetChannelID(jobCtx, *job.ChannelID)
		}
		if err := d.queue.Enqueue(jobCtx, job); err != nil {
			d.log(jobCtx).WithError(err).Error("Failed to kick off job")
			if _, ferr := d.progress.FailJob(jobCtx, job.ID, "kickoff failed: "+err.Error()); ferr != nil {
				d.log(jobCtx).WithError(ferr).Error("Failed to mark job failed")
			}
			result.Failed = append(result.Failed, job.ID)
		}
	}
	if len(result.Failed) > 0 {
		msg := fmt.Sprintf("%d jobs failed to start", len(result.Failed))
		if run.Message != "" {
			msg = run.Message + "; " + msg
		}
		if err := d.triggers.SetOutcome(ctx, run.ID, len(result.Failed), msg); err != nil {
			d.log(ctx).WithError(err).Warn("Failed to record daily run outcome")
		}
	}

	if createErr != nil {
		return nil, fmt.Errorf("daily run %s stopped after %d jobs: %w", runDate, len(jobIDs), createErr)
	}

	logger.With(logger.Fields{
		logger.FieldCount: len(result.Created),
		"existing":        result.Existing,
		"resumed":         len(result.Resumed),
		"failed":          len(result.Failed),
		"channels":        len(channels),
	}).WithDuration(time.Since(start).Milliseconds()).Info(ctx, "Daily trigger accepted for %s", runDate)

	return result, nil
}

// CheckScheduledUploads publishes every scheduled job that is due and ready.
// Due jobs in ready_for_upload move to uploading, then to completed or failed
// depending on the publisher. Jobs an earlier check left in uploading are settled
// first. Anything else scheduled is reported as still pending.
func (d *Dispatcher) CheckScheduledUploads(ctx context.Context) (*UploadCheckResult, error) {
	ctx = logger.SetTrigger(ctx, string(domain.TriggerUploadCheck))
	start := time.Now()

	release, err := d.locker.TryLock(ctx, uploadCheckLockKey, d.cfg.LockTTL)
	if err != nil {
		if errors.Is(err, lock.ErrLocked) {
			return nil, fmt.Errorf("%w: upload check in progress", domain.ErrAlreadyRunning)
		}
		return nil, err
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			d.log(ctx).WithError(err).Warn("Failed to release upload check lock")
		}
	}()

	jobs, err := d.jobs.ListSnapshotCandidates(ctx)
	if err != nil {
		return nil, err
	}
	now := d.now()
	snap := BuildSnapshot(jobs, now)
	checkID := uuid.New().String()

	result := &UploadCheckResult{
		Published:    []string{},
		StillPending: []string{},
		Failed:       []string{},
	}
	for _, view := range snap.Scheduled {
		job := view.ContentJob
		if job.IsTerminal() {
			continue
		}
		jobCtx := logger.SetJobID(ctx, job.ID)

		var outcome publishOutcome
		switch {
		case job.Stage == domain.StageUploading && job.Metadata[metaUploadCheck] != nil:
			outcome = d.settleInterrupted(jobCtx, &job)
		case job.ScheduledTime.After(now) || job.Stage != domain.StageReadyForUpload:
			outcome = publishSkipped
		default:
			outcome = d.publish(jobCtx, job.ID, checkID)
		}
		switch outcome {
		case publishDone:
			result.Published = append(result.Published, job.ID)
		case publishFailed:
			result.Failed = append(result.Failed, job.ID)
		default:
			result.StillPending = append(result.StillPending, job.ID)
		}
	}

	run := &domain.TriggerRun{
		ID:          checkID,
		Kind:        domain.TriggerUploadCheck,
		RunDate:     now.In(d.cfg.Location).Format(runDateLayout),
		Status:      domain.TriggerCompleted,
		JobIDs:      domain.StringList(result.Published),
		Published:   len(result.Published),
		Failed:      len(result.Failed),
		TriggeredAt: now,
	}
	if err := d.triggers.Create(ctx, run); err != nil {
		d.log(ctx).WithError(err).Warn("Failed to record upload check")
	}

	logger.With(logger.Fields{
		"published":     len(result.Published),
		"still_pending": len(result.StillPending),
		"failed":        len(result.Failed),
	}).WithDuration(time.Since(start).Milliseconds()).Info(ctx, "Scheduled upload check finished")

	return result, nil
}

type publishOutcome int

const (
	publishSkipped publishOutcome = iota
	publishDone
	publishFailed
)

// Metadata keys written by the upload check.
const (
	metaUploadCheck = "uploadCheckId"
	metaVideoID     = "videoId"
	metaVideoURL    = "videoUrl"
)

func (d *Dispatcher) publish(ctx context.Context, id, checkID string) publishOutcome {
	uploading := string(domain.StageUploading)
	job, err := d.progress.UpdateJob(ctx, id, domain.JobUpdate{
		Stage:    &uploading,
		Metadata: domain.JobMetadata{metaUploadCheck: checkID},
	})
	if err != nil {
		// another writer moved the job first
		d.log(ctx).WithError(err).Warn("Skipping upload, job could not enter uploading")
		return publishSkipped
	}

	receipt, err := d.publisher.Publish(ctx, job)
	if err != nil {
		if _, ferr := d.progress.FailJob(ctx, id, "publish failed: "+err.Error()); ferr != nil {
			d.log(ctx).WithError(ferr).Error("Failed to mark job failed")
		}
		return publishFailed
	}

	var receiptMeta domain.JobMetadata
	if receipt != nil {
		receiptMeta = domain.JobMetadata{metaVideoID: receipt.VideoID, metaVideoURL: receipt.URL}
	}
	if err := d.complete(ctx, id, receiptMeta); err != nil {
		// keep the receipt on the uploading job so the next check can finish it
		if len(receiptMeta) > 0 {
			if _, merr := d.progress.UpdateJob(ctx, id, domain.JobUpdate{Metadata: receiptMeta}); merr != nil {
				d.log(ctx).WithError(merr).Error("Failed to store publish receipt")
			}
		}
		d.log(ctx).WithError(err).Error("Published job could not be marked completed")
		return publishSkipped
	}
	d.log(ctx).Info("Job published")
	return publishDone
}

// settleInterrupted finishes a job an earlier check moved to uploading but never completed.
// A stored receipt means the publish went through; without one the outcome is unknown
// and the job is failed so it does not sit in uploading forever.
func (d *Dispatcher) settleInterrupted(ctx context.Context, job *domain.ContentJob) publishOutcome {
	if videoID, ok := job.Metadata[metaVideoID].(string); ok && videoID != "" {
		if err := d.complete(ctx, job.ID, nil); err != nil {
			d.log(ctx).WithError(err).Error("Published job still could not be marked completed")
			return publishSkipped
		}
		d.log(ctx).WithField("video_id", videoID).Info("Interrupted upload completed from stored receipt")
		return publishDone
	}
	if _, err := d.progress.FailJob(ctx, job.ID, "upload interrupted: publish outcome unknown"); err != nil {
		d.log(ctx).WithError(err).Error("Failed to mark interrupted upload failed")
		return publishSkipped
	}
	return publishFailed
}

func (d *Dispatcher) complete(ctx context.Context, id string, meta domain.JobMetadata) error {
	completed := string(domain.StageCompleted)
	_, err := d.progress.UpdateJob(ctx, id, domain.JobUpdate{Stage: &completed, Metadata: meta})
	return err
}

// Status reports the last trigger runs and whether any job is in flight.
func (d *Dispatcher) Status(ctx context.Context) (*AutomationStatus, error) {
	jobs, err := d.jobs.ListSnapshotCandidates(ctx)
	if err != nil {
		return nil, err
	}
	now := d.now()
	status := &AutomationStatus{IsRunning: BuildSnapshot(jobs, now).IsRunning}

	if status.LastDaily, err = d.triggers.Latest(ctx, domain.TriggerDaily, ""); err != nil {
		return nil, err
	}
	if status.LastUploadCheck, err = d.triggers.Latest(ctx, domain.TriggerUploadCheck, ""); err != nil {
		return nil, err
	}
	if d.cfg.DailyTime != "" {
		if next, err := NextOccurrence(d.cfg.DailyTime, d.cfg.Location, now); err == nil {
			status.NextDailyRun = &next
		}
	}
	return status, nil
}

// inFlight returns the non-terminal jobs of run.
func (d *Dispatcher) inFlight(ctx context.Context, run *domain.TriggerRun) ([]string, error) {
	if run == nil || len(run.JobIDs) == 0 {
		return nil, nil
	}
	jobs, err := d.jobs.ListByIDs(ctx, run.JobIDs)
	if err != nil {
		return nil, err
	}
	var ids []string
	for i := range jobs {
		if !jobs[i].IsTerminal() {
			ids = append(ids, jobs[i].ID)
		}
	}
	return ids, nil
}

func (d *Dispatcher) recordRejected(ctx context.Context, runDate string, now time.Time, reason string) {
	d.log(ctx).WithField("reason", reason).Warn("Daily trigger rejected")
	run := &domain.TriggerRun{
		ID:          uuid.New().String(),
		Kind:        domain.TriggerDaily,
		RunDate:     runDate,
		Status:      domain.TriggerRejected,
		Message:     reason,
		TriggeredAt: now,
	}
	if err := d.triggers.Create(ctx, run); err != nil {
		d.log(ctx).WithError(err).Warn("Failed to record rejected trigger")
	}
}

func newDailyJob(ch *domain.Channel, vt domain.VideoType, runDate, triggerID string) *domain.ContentJob {
	channelID := ch.ID
	label := "Long-form"
	if vt == domain.VideoTypeShort {
		label = "Short"
	}
	return &domain.ContentJob{
		ID:        uuid.New().String(),
		ChannelID: &channelID,
		VideoType: vt,
		RunDate:   runDate,
		Title:     fmt.Sprintf("%s %s %s", ch.Name, label, runDate),
		Stage:     domain.StagePending,
		Metadata:  domain.JobMetadata{"triggerId": triggerID},
	}
}
