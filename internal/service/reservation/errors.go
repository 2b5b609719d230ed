package reservation

import "errors"

// Typed rejections returned by the engine. All are terminal business
// outcomes except ErrStorageUnavailable, which the engine has already
// retried with bounded backoff before surfacing.
var (
	// ErrCampaignNotFound the campaign id is unknown
	ErrCampaignNotFound = errors.New("campaign not found")

	// ErrCampaignNotPurchasable the campaign is scheduled or ended
	ErrCampaignNotPurchasable = errors.New("campaign is not purchasable")

	// ErrDisabled the operator kill-switch is off
	ErrDisabled = errors.New("campaign is disabled")

	// ErrPerPurchaseLimitExceeded a single purchase above the per-user cap
	ErrPerPurchaseLimitExceeded = errors.New("quantity exceeds per-purchase limit")

	// ErrPerUserLimitExceeded accumulated reservations would exceed the cap
	ErrPerUserLimitExceeded = errors.New("per-user purchase limit exceeded")

	// ErrSoldOut no stock remains
	ErrSoldOut = errors.New("campaign sold out")

	// ErrStorageUnavailable the store kept failing after bounded retries.
	// Never conflated with ErrSoldOut: a storage hiccup must not read as
	// an exhausted campaign.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrReservationNotFound the reservation id is unknown
	ErrReservationNotFound = errors.New("reservation not found")

	// ErrAlreadyReleased the reservation was released before; a no-op
	ErrAlreadyReleased = errors.New("reservation already released")

	// ErrInvalidQuantity quantity must be positive
	ErrInvalidQuantity = errors.New("quantity must be positive")
)
