package repository

import "errors"

// Sentinel errors returned by repositories. Callers match with errors.Is;
// anything else coming out of a repository is a storage failure.
var (
	// ErrNotFound the requested row does not exist
	ErrNotFound = errors.New("record not found")

	// ErrStockExceeded the conditional stock increment would overshoot max_quantity
	ErrStockExceeded = errors.New("stock exceeded")

	// ErrDuplicate a unique constraint was violated
	ErrDuplicate = errors.New("duplicate record")
)
