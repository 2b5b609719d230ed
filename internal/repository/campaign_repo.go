package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"flashsale/internal/model"
)

// CampaignRepository is the campaign store. It owns sold_quantity: the only
// writers are AtomicIncrementSold and DecrementSold, both single conditional
// statements. No caller may read-then-write the counter.
type CampaignRepository interface {
	// Create campaign
	Create(ctx context.Context, campaign *model.Campaign) error

	// Get campaign by ID
	GetByID(ctx context.Context, id uint64) (*model.Campaign, error)

	// Update mutable campaign fields
	Update(ctx context.Context, campaign *model.Campaign) error

	// Delete campaign
	Delete(ctx context.Context, id uint64) error

	// SetEnabled flips the operator kill-switch
	SetEnabled(ctx context.Context, id uint64, enabled bool) error

	// List campaigns whose window contains now
	ListActive(ctx context.Context, now time.Time, page, pageSize int) ([]*model.Campaign, int64, error)

	// List campaigns starting after now
	ListUpcoming(ctx context.Context, now time.Time, limit int) ([]*model.Campaign, error)

	// List campaigns ending within the given window
	ListEndingSoon(ctx context.Context, now time.Time, window time.Duration) ([]*model.Campaign, error)

	// List campaigns the lifecycle sweep should examine
	ListUnfinished(ctx context.Context, cutoff time.Time) ([]*model.Campaign, error)

	// AtomicIncrementSold increments sold_quantity by delta only if the
	// result stays within max_quantity, in one atomic statement
	AtomicIncrementSold(ctx context.Context, id uint64, delta int) error

	// DecrementSold decrements sold_quantity by delta, never below zero
	DecrementSold(ctx context.Context, id uint64, delta int) error
}

// campaignRepository campaign repository implementation
type campaignRepository struct {
	db *gorm.DB
}

// NewCampaignRepository creates a campaign repository
func NewCampaignRepository(db *gorm.DB) CampaignRepository {
	return &campaignRepository{db: db}
}

// Create creates a campaign
func (r *campaignRepository) Create(ctx context.Context, campaign *model.Campaign) error {
	return r.db.WithContext(ctx).Create(campaign).Error
}

// GetByID gets a campaign by ID
func (r *campaignRepository) GetByID(ctx context.Context, id uint64) (*model.Campaign, error) {
	var campaign model.Campaign
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&campaign).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &campaign, nil
}

// Update updates a campaign
func (r *campaignRepository) Update(ctx context.Context, campaign *model.Campaign) error {
	return r.db.WithContext(ctx).Save(campaign).Error
}

// Delete deletes a campaign
func (r *campaignRepository) Delete(ctx context.Context, id uint64) error {
	result := r.db.WithContext(ctx).Delete(&model.Campaign{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetEnabled flips the kill-switch
func (r *campaignRepository) SetEnabled(ctx context.Context, id uint64, enabled bool) error {
	result := r.db.WithContext(ctx).
		Model(&model.Campaign{}).
		Where("id = ?", id).
		Update("enabled", enabled)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListActive lists campaigns whose window contains now
func (r *campaignRepository) ListActive(ctx context.Context, now time.Time, page, pageSize int) ([]*model.Campaign, int64, error) {
	var campaigns []*model.Campaign
	var total int64

	offset := (page - 1) * pageSize

	db := r.db.WithContext(ctx).
		Model(&model.Campaign{}).
		Where("enabled = ?", true).
		Where("start_time <= ?", now).
		Where("end_time >= ?", now)

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := db.Offset(offset).
		Limit(pageSize).
		Order("end_time ASC").
		Find(&campaigns).Error

	return campaigns, total, err
}

// ListUpcoming lists campaigns starting after now
func (r *campaignRepository) ListUpcoming(ctx context.Context, now time.Time, limit int) ([]*model.Campaign, error) {
	var campaigns []*model.Campaign

	err := r.db.WithContext(ctx).
		Where("enabled = ?", true).
		Where("start_time > ?", now).
		Order("start_time ASC").
		Limit(limit).
		Find(&campaigns).Error

	return campaigns, err
}

// ListEndingSoon lists campaigns ending within the given window
func (r *campaignRepository) ListEndingSoon(ctx context.Context, now time.Time, window time.Duration) ([]*model.Campaign, error) {
	var campaigns []*model.Campaign

	err := r.db.WithContext(ctx).
		Where("enabled = ?", true).
		Where("start_time <= ?", now).
		Where("end_time > ?", now).
		Where("end_time <= ?", now.Add(window)).
		Order("end_time ASC").
		Find(&campaigns).Error

	return campaigns, err
}

// ListUnfinished lists campaigns the sweep should examine. The cutoff keeps
// one extra interval of already-ended campaigns in view so the final ended
// transition is observed and emitted.
func (r *campaignRepository) ListUnfinished(ctx context.Context, cutoff time.Time) ([]*model.Campaign, error) {
	var campaigns []*model.Campaign

	err := r.db.WithContext(ctx).
		Where("end_time > ?", cutoff).
		Order("start_time ASC").
		Find(&campaigns).Error

	return campaigns, err
}

// AtomicIncrementSold performs the conditional stock increment. The guard is
// part of the UPDATE itself: sold_quantity + delta <= max_quantity is
// evaluated by the database under row lock, so concurrent callers serialize
// on the row and the aggregate can never overshoot.
func (r *campaignRepository) AtomicIncrementSold(ctx context.Context, id uint64, delta int) error {
	result := r.db.WithContext(ctx).
		Model(&model.Campaign{}).
		Where("id = ? AND sold_quantity + ? <= max_quantity", id, delta).
		Update("sold_quantity", gorm.Expr("sold_quantity + ?", delta))

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		// Distinguish an unknown campaign from an exhausted one.
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrStockExceeded
	}

	return nil
}

// DecrementSold returns stock on release, never dropping below zero
func (r *campaignRepository) DecrementSold(ctx context.Context, id uint64, delta int) error {
	result := r.db.WithContext(ctx).
		Model(&model.Campaign{}).
		Where("id = ? AND sold_quantity >= ?", id, delta).
		Update("sold_quantity", gorm.Expr("sold_quantity - ?", delta))

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		// Counter already below delta; clamping would hide an accounting
		// bug elsewhere, so leave it untouched.
		return nil
	}

	return nil
}
