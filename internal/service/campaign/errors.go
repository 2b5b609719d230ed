package campaign

import "errors"

// Validation and lifecycle errors for campaign administration
var (
	ErrNotFound         = errors.New("campaign not found")
	ErrInvalidWindow    = errors.New("end time must be after start time")
	ErrInvalidQuantity  = errors.New("max quantity must be positive")
	ErrInvalidUserLimit = errors.New("per-user limit must be positive and not exceed max quantity")
	ErrInvalidPrice     = errors.New("flash sale price must be positive and not exceed the original price")
	ErrQuantityBelow    = errors.New("max quantity cannot drop below the sold quantity")
	ErrQuantityLocked   = errors.New("max quantity is immutable once the campaign has started")
	ErrNotEnded         = errors.New("campaign can only be deleted after it ended")
)
