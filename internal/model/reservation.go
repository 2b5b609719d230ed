package model

import (
	"time"
)

// Reservation committed claim on campaign stock by one user
type Reservation struct {
	ID             uint64    `gorm:"primaryKey" json:"id"`
	CampaignID     uint64    `gorm:"type:bigint unsigned;not null;index;uniqueIndex:uk_campaign_user_key" json:"campaign_id"`
	UserID         uint64    `gorm:"type:bigint unsigned;not null;index:idx_campaign_user;uniqueIndex:uk_campaign_user_key" json:"user_id"`
	Quantity       int       `gorm:"type:int;not null" json:"quantity"`
	IdempotencyKey string    `gorm:"type:varchar(64);not null;uniqueIndex:uk_campaign_user_key" json:"idempotency_key"`
	CreatedAt      time.Time `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP;index" json:"created_at"`
}

// TableName set name
func (Reservation) TableName() string {
	return "reservations"
}
