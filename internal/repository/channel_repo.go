package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/timmy/reelforge/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ChannelRepository handles channel persistence.
type ChannelRepository struct {
	db *gorm.DB
}

// NewChannelRepository creates a new ChannelRepository.
func NewChannelRepository(db *gorm.DB) *ChannelRepository {
	return &ChannelRepository{db: db}
}

// ListActive returns active channels ordered by ID.
func (r *ChannelRepository) ListActive(ctx context.Context) ([]domain.Channel, error) {
	var channels []domain.Channel
	if err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("id ASC").
		Find(&channels).Error; err != nil {
		return nil, fmt.Errorf("failed to list active channels: %w", err)
	}
	return channels, nil
}

// List returns every channel ordered by ID.
func (r *ChannelRepository) List(ctx context.Context) ([]domain.Channel, error) {
	var channels []domain.Channel
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&channels).Error; err != nil {
		return nil, fmt.Errorf("failed to list channels: %w", err)
	}
	return channels, nil
}

// GetByID retrieves a channel by its ID.
// Returns domain.ErrChannelNotFound when no row matches.
func (r *ChannelRepository) GetByID(ctx context.Context, id string) (*domain.Channel, error) {
	var ch domain.Channel
	if err := r.db.WithContext(ctx).First(&ch, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrChannelNotFound, id)
		}
		return nil, err
	}
	return &ch, nil
}

// Upsert inserts channels or refreshes their schedule fields by ID.
func (r *ChannelRepository) Upsert(ctx context.Context, channels []domain.Channel) error {
	if len(channels) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "long_form_upload_time", "short_upload_time", "timezone", "is_active", "updated_at",
		}),
	}).Create(&channels).Error; err != nil {
		return fmt.Errorf("failed to upsert channels: %w", err)
	}
	return nil
}
