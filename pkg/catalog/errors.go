package catalog

import "errors"

var (
	ErrTierNotFound    = errors.New("tier not found")
	ErrProductNotFound = errors.New("product not found")

	// ErrTierHasSubscribers guards price mutation: a tier's price may not
	// change while active ledger entries reference it.
	ErrTierHasSubscribers = errors.New("cannot change price while the tier has active subscribers")

	// ErrTierHasHistory guards deletion: a tier that ever had subscribers
	// must be deactivated instead, preserving history and in-flight billing.
	ErrTierHasHistory = errors.New("cannot delete a tier with subscription history; deactivate it instead")

	ErrInsufficientStock = errors.New("insufficient stock")
	ErrMissingVendorID   = errors.New("vendor ID is required")
	ErrMissingTierName   = errors.New("tier name is required")
)
