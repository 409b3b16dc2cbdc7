package ledger

import "errors"

var (
	ErrEntryNotFound = errors.New("ledger entry not found")

	ErrMissingAccountID = errors.New("account ID is required")
	ErrMissingTierID    = errors.New("tier ID is required")
	ErrMissingPeriodEnd = errors.New("billing period end is required")
)
