package model

import (
	"time"
)

// Event topics published on the campaign event bus.
const (
	TopicBecameActive = "campaign.became_active"
	TopicEndingSoon   = "campaign.ending_soon"
	TopicSoldOut      = "campaign.sold_out"
	TopicEnded        = "campaign.ended"
	TopicLowStock     = "campaign.low_stock"
	TopicStockChanged = "campaign.stock_changed"
)

// CampaignEvent payload delivered to event bus subscribers.
// Fields not meaningful for a topic are zero.
type CampaignEvent struct {
	Topic            string    `json:"topic"`
	CampaignID       uint64    `json:"campaign_id"`
	SoldQuantity     int       `json:"sold_quantity,omitempty"`
	RemainingSeconds int64     `json:"remaining_seconds,omitempty"`
	RemainingPct     float64   `json:"remaining_pct,omitempty"`
	OccurredAt       time.Time `json:"occurred_at"`
}
