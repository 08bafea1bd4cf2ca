package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// VideoType is the content format a job produces.
// Values include VideoTypeLongForm and VideoTypeShort.
type VideoType string

const (
	VideoTypeLongForm VideoType = "long_form"
	VideoTypeShort    VideoType = "short"
)

// VideoTypes lists every video type a daily run produces per channel.
var VideoTypes = []VideoType{VideoTypeLongForm, VideoTypeShort}

// ParseVideoType validates a raw video type value.
func ParseVideoType(raw string) (VideoType, error) {
	switch v := VideoType(strings.TrimSpace(raw)); v {
	case VideoTypeLongForm, VideoTypeShort:
		return v, nil
	default:
		return "", fmt.Errorf("unknown video type %q", raw)
	}
}

// JobMetadata is opaque worker payload stored as JSON in the database.
type JobMetadata map[string]interface{}

// Value implements the driver.Valuer interface for database serialization.
func (m JobMetadata) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
func (m *JobMetadata) Scan(value interface{}) error {
	if value == nil {
		*m = JobMetadata{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan JobMetadata")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, m)
}

// ContentJob is one piece of content moving through the production pipeline.
type ContentJob struct {
	ID            string      `gorm:"type:text;primaryKey" json:"id"`
	TopicID       *string     `gorm:"type:text" json:"topicId"`
	ChannelID     *string     `gorm:"type:text;index:idx_content_jobs_daily,unique" json:"channelId"`
	VideoType     VideoType   `gorm:"type:text;not null;index:idx_content_jobs_daily,unique" json:"videoType"`
	RunDate       string      `gorm:"type:text;index:idx_content_jobs_daily,unique" json:"runDate,omitempty"`
	Title         string      `gorm:"type:text;not null" json:"title"`
	Stage         Stage       `gorm:"type:text;not null;index:idx_content_jobs_stage;default:pending" json:"stage"`
	Progress      int         `gorm:"not null;default:0" json:"progress"`
	ScheduledTime *time.Time  `gorm:"index:idx_content_jobs_scheduled" json:"scheduledTime"`
	PublishedAt   *time.Time  `json:"publishedAt"`
	ErrorMessage  *string     `gorm:"type:text" json:"errorMessage"`
	Metadata      JobMetadata `gorm:"type:text" json:"metadata"`
	Version       int         `gorm:"not null;default:0" json:"-"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

// TableName returns the database table name for ContentJob.
func (ContentJob) TableName() string {
	return "content_jobs"
}

// IsTerminal reports whether the job has finished, successfully or not.
func (j *ContentJob) IsTerminal() bool {
	return j.Stage.IsTerminal()
}

// Display classifies the job for every view.
func (j *ContentJob) Display() StatusView {
	return Describe(j.Stage, j.Progress)
}

// CheckInvariants verifies the persisted-field invariants of a job.
func (j *ContentJob) CheckInvariants() error {
	if !j.Stage.IsKnown() {
		return fmt.Errorf("%w: %q", ErrInvalidStage, string(j.Stage))
	}
	if j.Progress < 0 || j.Progress > 100 {
		return ErrInvalidProgress
	}
	if (j.ErrorMessage != nil) != (j.Stage == StageFailed) {
		if j.ErrorMessage == nil {
			return ErrMissingError
		}
		return ErrUnexpectedError
	}
	if j.PublishedAt != nil && j.Stage != StageCompleted {
		return fmt.Errorf("%w: publishedAt set on %s job", ErrInvalidTransition, j.Stage)
	}
	if j.Stage == StageCompleted && j.Progress != 100 {
		return fmt.Errorf("%w: completed job must be at 100", ErrInvalidProgress)
	}
	return nil
}

// JobUpdate is a worker-submitted mutation. Nil fields are left unchanged.
type JobUpdate struct {
	Stage        *string
	Progress     *int
	ErrorMessage *string
	Metadata     JobMetadata
}

// ApplyUpdate validates u against the current state of job and applies it in place.
// Only a same-stage progress update, an advance to the next stage, or a move to
// failed are accepted. It returns true when the stage changed.
func ApplyUpdate(job *ContentJob, u JobUpdate, now time.Time) (bool, error) {
	if job.IsTerminal() {
		return false, fmt.Errorf("%w: %s is %s", ErrTerminalStage, job.ID, job.Stage)
	}

	target := job.Stage
	if u.Stage != nil {
		parsed, err := ParseStage(*u.Stage)
		if err != nil {
			return false, err
		}
		target = parsed
	}

	if u.Progress != nil && (*u.Progress < 0 || *u.Progress > 100) {
		return false, fmt.Errorf("%w: got %d", ErrInvalidProgress, *u.Progress)
	}

	if target == StageFailed {
		if u.ErrorMessage == nil || strings.TrimSpace(*u.ErrorMessage) == "" {
			return false, ErrMissingError
		}
		msg := strings.TrimSpace(*u.ErrorMessage)
		job.Stage = StageFailed
		job.ErrorMessage = &msg
		mergeMetadata(job, u.Metadata)
		job.UpdatedAt = now
		return true, nil
	}
	if u.ErrorMessage != nil {
		return false, ErrUnexpectedError
	}

	changed := false
	switch target {
	case job.Stage:
		if u.Progress != nil {
			if *u.Progress < job.Progress {
				return false, fmt.Errorf("%w: %d < %d", ErrProgressRegression, *u.Progress, job.Progress)
			}
			job.Progress = *u.Progress
		}
	default:
		next, err := Next(job.Stage)
		if err != nil {
			return false, err
		}
		if target != next {
			return false, fmt.Errorf("%w: %s -> %s (expected %s)", ErrInvalidTransition, job.Stage, target, next)
		}
		job.Stage = target
		job.Progress = 0
		if u.Progress != nil {
			job.Progress = *u.Progress
		}
		changed = true
	}

	if job.Stage == StageCompleted {
		job.Progress = 100
		if job.PublishedAt == nil {
			t := now
			job.PublishedAt = &t
		}
	}
	mergeMetadata(job, u.Metadata)
	job.UpdatedAt = now
	return changed, nil
}

// Fail moves a non-terminal job to failed with the given reason.
func Fail(job *ContentJob, reason string, now time.Time) error {
	failed := string(StageFailed)
	_, err := ApplyUpdate(job, JobUpdate{Stage: &failed, ErrorMessage: &reason}, now)
	return err
}

func mergeMetadata(job *ContentJob, extra JobMetadata) {
	if len(extra) == 0 {
		return
	}
	if job.Metadata == nil {
		job.Metadata = JobMetadata{}
	}
	for k, v := range extra {
		job.Metadata[k] = v
	}
}
