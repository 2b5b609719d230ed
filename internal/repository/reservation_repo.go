package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"flashsale/internal/model"
)

// ReservationRepository reservation repository interface
type ReservationRepository interface {
	// Create reservation; ErrDuplicate when the idempotency key already exists
	Create(ctx context.Context, reservation *model.Reservation) error

	// Get reservation by ID
	GetByID(ctx context.Context, id uint64) (*model.Reservation, error)

	// Get reservation by idempotency key
	GetByIdempotencyKey(ctx context.Context, campaignID, userID uint64, key string) (*model.Reservation, error)

	// Delete reservation; returns affected rows so concurrent releases
	// can tell who actually removed the row
	Delete(ctx context.Context, id uint64) (int64, error)

	// Sum of a user's reserved quantity against one campaign
	SumUserQuantity(ctx context.Context, campaignID, userID uint64) (int, error)

	// Count reservations for a campaign
	CountByCampaign(ctx context.Context, campaignID uint64) (int64, error)

	// Count distinct users holding reservations for a campaign
	CountDistinctUsers(ctx context.Context, campaignID uint64) (int64, error)
}

// reservationRepository reservation repository implementation
type reservationRepository struct {
	db *gorm.DB
}

// NewReservationRepository creates a reservation repository
func NewReservationRepository(db *gorm.DB) ReservationRepository {
	return &reservationRepository{db: db}
}

// Create creates a reservation
func (r *reservationRepository) Create(ctx context.Context, reservation *model.Reservation) error {
	err := r.db.WithContext(ctx).Create(reservation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// GetByID gets a reservation by ID
func (r *reservationRepository) GetByID(ctx context.Context, id uint64) (*model.Reservation, error) {
	var reservation model.Reservation
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&reservation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &reservation, nil
}

// GetByIdempotencyKey gets a reservation by its idempotency key
func (r *reservationRepository) GetByIdempotencyKey(ctx context.Context, campaignID, userID uint64, key string) (*model.Reservation, error) {
	var reservation model.Reservation
	err := r.db.WithContext(ctx).
		Where("campaign_id = ? AND user_id = ? AND idempotency_key = ?", campaignID, userID, key).
		First(&reservation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &reservation, nil
}

// Delete deletes a reservation and reports how many rows went away
func (r *reservationRepository) Delete(ctx context.Context, id uint64) (int64, error) {
	result := r.db.WithContext(ctx).Delete(&model.Reservation{}, id)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// SumUserQuantity sums a user's reserved quantity against one campaign
func (r *reservationRepository) SumUserQuantity(ctx context.Context, campaignID, userID uint64) (int, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&model.Reservation{}).
		Where("campaign_id = ? AND user_id = ?", campaignID, userID).
		Select("COALESCE(SUM(quantity), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return int(total), nil
}

// CountByCampaign counts reservations for a campaign
func (r *reservationRepository) CountByCampaign(ctx context.Context, campaignID uint64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Reservation{}).
		Where("campaign_id = ?", campaignID).
		Count(&count).Error
	return count, err
}

// CountDistinctUsers counts distinct users holding reservations for a campaign
func (r *reservationRepository) CountDistinctUsers(ctx context.Context, campaignID uint64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Reservation{}).
		Where("campaign_id = ?", campaignID).
		Distinct("user_id").
		Count(&count).Error
	return count, err
}
