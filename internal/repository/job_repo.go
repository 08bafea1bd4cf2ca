package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/timmy/reelforge/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var terminalStages = []domain.Stage{domain.StageCompleted, domain.StageFailed}

// JobFilter narrows a job listing.
type JobFilter struct {
	Stage     domain.Stage
	ChannelID string
	Limit     int
	Offset    int
}

// JobRepository handles content job persistence.
type JobRepository struct {
	db *gorm.DB
}

// NewJobRepository creates a new JobRepository.
// Parameters:
//   - db: GORM database handle used for queries.
//
// Returns:
//   - *JobRepository: repository instance bound to db.
func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

// CreateIfAbsent inserts job unless another job holds the same daily natural key.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - job: job to insert.
//
// Returns:
//   - *domain.ContentJob: the inserted job, or the row already holding the key.
//   - bool: true if the row was inserted.
//   - error: non-nil if the insert or the lookup fails.
func (r *JobRepository) CreateIfAbsent(ctx context.Context, job *domain.ContentJob) (*domain.ContentJob, bool, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "channel_id"}, {Name: "video_type"}, {Name: "run_date"}},
		DoNothing: true,
	}).Create(job)
	if res.Error != nil {
		return nil, false, fmt.Errorf("failed to create job: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		return job, true, nil
	}

	query := r.db.WithContext(ctx).Where("video_type = ? AND run_date = ?", job.VideoType, job.RunDate)
	if job.ChannelID != nil {
		query = query.Where("channel_id = ?", *job.ChannelID)
	} else {
		query = query.Where("channel_id IS NULL")
	}
	var existing domain.ContentJob
	if err := query.First(&existing).Error; err != nil {
		return nil, false, fmt.Errorf("failed to load existing job for %s/%s: %w", job.VideoType, job.RunDate, err)
	}
	return &existing, false, nil
}

// GetByID retrieves a job by its ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: job ID.
//
// Returns:
//   - *domain.ContentJob: job record if found.
//   - error: domain.ErrJobNotFound when no row matches.
func (r *JobRepository) GetByID(ctx context.Context, id string) (*domain.ContentJob, error) {
	var job domain.ContentJob
	if err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrJobNotFound, id)
		}
		return nil, err
	}
	return &job, nil
}

// ListByIDs retrieves jobs by a list of IDs.
func (r *JobRepository) ListByIDs(ctx context.Context, ids []string) ([]domain.ContentJob, error) {
	if len(ids) == 0 {
		return []domain.ContentJob{}, nil
	}
	var jobs []domain.ContentJob
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("failed to get jobs by IDs: %w", err)
	}
	return jobs, nil
}

// ListSnapshotCandidates returns every job that can appear in a pipeline snapshot:
// non-terminal jobs, and jobs with a scheduled time that have not been published.
func (r *JobRepository) ListSnapshotCandidates(ctx context.Context) ([]domain.ContentJob, error) {
	var jobs []domain.ContentJob
	if err := r.db.WithContext(ctx).
		Where("stage NOT IN ?", terminalStages).
		Or("scheduled_time IS NOT NULL AND published_at IS NULL").
		Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("failed to list snapshot jobs: %w", err)
	}
	return jobs, nil
}

// List retrieves jobs newest first with optional filters.
// Returns the page and the total number of matching jobs.
func (r *JobRepository) List(ctx context.Context, f JobFilter) ([]domain.ContentJob, int64, error) {
	query := r.db.WithContext(ctx).Model(&domain.ContentJob{})
	if f.Stage != "" {
		query = query.Where("stage = ?", f.Stage)
	}
	if f.ChannelID != "" {
		query = query.Where("channel_id = ?", f.ChannelID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count jobs: %w", err)
	}

	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var jobs []domain.ContentJob
	if err := query.
		Order("created_at DESC").
		Limit(limit).
		Offset(f.Offset).
		Find(&jobs).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list jobs: %w", err)
	}
	return jobs, total, nil
}

// SaveVersioned writes the mutable fields of job if its stored version still equals
// expectedVersion, then bumps the version. A false result means another writer won.
func (r *JobRepository) SaveVersioned(ctx context.Context, job *domain.ContentJob, expectedVersion int) (bool, error) {
	if job.UpdatedAt.IsZero() {
		job.UpdatedAt = time.Now()
	}
	res := r.db.WithContext(ctx).
		Model(&domain.ContentJob{}).
		Where("id = ? AND version = ?", job.ID, expectedVersion).
		Updates(map[string]interface{}{
			"stage":          job.Stage,
			"progress":       job.Progress,
			"scheduled_time": job.ScheduledTime,
			"published_at":   job.PublishedAt,
			"error_message":  job.ErrorMessage,
			"metadata":       job.Metadata,
			"version":        expectedVersion + 1,
			"updated_at":     job.UpdatedAt,
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to update job %s: %w", job.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	job.Version = expectedVersion + 1
	return true, nil
}
