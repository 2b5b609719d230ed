package model

import (
	"time"
)

// Campaign flash-sale campaign model
type Campaign struct {
	ID                   uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Name                 string    `gorm:"type:varchar(200);not null" json:"name"`
	StartTime            time.Time `gorm:"type:timestamp;not null;index" json:"start_time"`
	EndTime              time.Time `gorm:"type:timestamp;not null;index" json:"end_time"`
	MaxQuantity          int       `gorm:"type:int;not null" json:"max_quantity"`
	SoldQuantity         int       `gorm:"type:int;not null;default:0" json:"sold_quantity"`
	LimitPerUser         int       `gorm:"type:int;not null;default:1" json:"limit_per_user"`
	OriginalPrice        int64     `gorm:"type:bigint;not null" json:"original_price"`
	FlashSalePrice       int64     `gorm:"type:bigint;not null" json:"flash_sale_price"`
	Enabled              bool      `gorm:"type:tinyint(1);not null;default:1" json:"enabled"`
	LowStockThresholdPct int       `gorm:"type:int;not null;default:80" json:"low_stock_threshold_pct"`
	CreatedAt            time.Time `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt            time.Time `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName set name
func (Campaign) TableName() string {
	return "campaigns"
}

// Remaining returns the quantity still available for sale.
func (c *Campaign) Remaining() int {
	remaining := c.MaxQuantity - c.SoldQuantity
	if remaining < 0 {
		return 0
	}
	return remaining
}

// IsExhausted reports whether all stock has been sold.
func (c *Campaign) IsExhausted() bool {
	return c.SoldQuantity >= c.MaxQuantity
}

// SoldPct returns the sold fraction as a percentage.
func (c *Campaign) SoldPct() float64 {
	if c.MaxQuantity == 0 {
		return 0
	}
	return float64(c.SoldQuantity) / float64(c.MaxQuantity) * 100
}

// RemainingPct returns the remaining fraction as a percentage.
func (c *Campaign) RemainingPct() float64 {
	if c.MaxQuantity == 0 {
		return 0
	}
	return float64(c.Remaining()) / float64(c.MaxQuantity) * 100
}

// WindowOpen reports whether now falls inside the sale window.
func (c *Campaign) WindowOpen(now time.Time) bool {
	return !now.Before(c.StartTime) && !now.After(c.EndTime)
}

// RemainingSeconds returns seconds until the window closes, floored at zero.
func (c *Campaign) RemainingSeconds(now time.Time) int64 {
	secs := int64(c.EndTime.Sub(now).Seconds())
	if secs < 0 {
		return 0
	}
	return secs
}

// GetOriginalPriceYuan get original price in yuan
func (c *Campaign) GetOriginalPriceYuan() float64 {
	return float64(c.OriginalPrice) / 100
}

// GetFlashSalePriceYuan get flash sale price in yuan
func (c *Campaign) GetFlashSalePriceYuan() float64 {
	return float64(c.FlashSalePrice) / 100
}

// DiscountPct returns the discount relative to the original price.
func (c *Campaign) DiscountPct() float64 {
	if c.OriginalPrice == 0 {
		return 0
	}
	return float64(c.OriginalPrice-c.FlashSalePrice) / float64(c.OriginalPrice) * 100
}
