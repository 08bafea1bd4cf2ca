package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/timmy/reelforge/internal/domain"
	"gorm.io/gorm"
)

// TriggerRepository records automation trigger invocations.
type TriggerRepository struct {
	db *gorm.DB
}

// NewTriggerRepository creates a new TriggerRepository.
func NewTriggerRepository(db *gorm.DB) *TriggerRepository {
	return &TriggerRepository{db: db}
}

// Create inserts a trigger run.
func (r *TriggerRepository) Create(ctx context.Context, run *domain.TriggerRun) error {
	if err := r.db.WithContext(ctx).Create(run).Error; err != nil {
		return fmt.Errorf("failed to record trigger run: %w", err)
	}
	return nil
}

// SetOutcome records the failure count and message of a run after its jobs were handed off.
func (r *TriggerRepository) SetOutcome(ctx context.Context, id string, failed int, message string) error {
	res := r.db.WithContext(ctx).
		Model(&domain.TriggerRun{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"failed":  failed,
			"message": message,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update trigger run %s: %w", id, res.Error)
	}
	return nil
}

// Latest returns the most recent run of kind with the given status, or nil if there is none.
// An empty status matches any outcome.
func (r *TriggerRepository) Latest(ctx context.Context, kind domain.TriggerKind, status domain.TriggerStatus) (*domain.TriggerRun, error) {
	query := r.db.WithContext(ctx).Where("kind = ?", kind)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var run domain.TriggerRun
	if err := query.Order("triggered_at DESC").First(&run).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load latest %s trigger: %w", kind, err)
	}
	return &run, nil
}
