package lifecycle

import (
	"time"

	"flashsale/internal/model"
)

// Status campaign display status, always derived, never persisted.
type Status string

// Campaign status const
const (
	StatusScheduled  Status = "scheduled"
	StatusActive     Status = "active"
	StatusEndingSoon Status = "ending_soon"
	StatusSoldOut    Status = "sold_out"
	StatusEnded      Status = "ended"
)

// Purchasable reports whether reservations may be honored in this status.
func (s Status) Purchasable() bool {
	return s == StatusActive || s == StatusEndingSoon
}

// Terminal reports whether the status can never change again. sold_out is
// not terminal: a release can return stock while the window is still open.
func (s Status) Terminal() bool {
	return s == StatusEnded
}

// Classify derives the campaign status from its window, stock and the given
// reference time. Pure function; the kill-switch does not influence the
// status, it is a separate purchasability gate.
//
// Stock is checked before the window close so a campaign that sells out
// mid-window reports sold_out, not active.
func Classify(c *model.Campaign, now time.Time, endingSoonWindow time.Duration) Status {
	if now.Before(c.StartTime) {
		return StatusScheduled
	}
	if c.SoldQuantity >= c.MaxQuantity {
		return StatusSoldOut
	}
	if now.After(c.EndTime) {
		return StatusEnded
	}
	if c.EndTime.Sub(now) <= endingSoonWindow {
		return StatusEndingSoon
	}
	return StatusActive
}
