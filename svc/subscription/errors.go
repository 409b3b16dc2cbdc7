package subscription

import "errors"

var (
	// ErrAlreadySubscribed rejects a checkout for a tier the account already
	// holds unexpired access to.
	ErrAlreadySubscribed = errors.New("account already has access to this tier")

	// ErrTierInactive rejects actions against a deactivated tier.
	ErrTierInactive = errors.New("tier is not active")

	// ErrTierNotSellable rejects a tier change when the target tier has no
	// provider price reference.
	ErrTierNotSellable = errors.New("tier has no provider price")

	// ErrCrossVendorChange rejects tier changes across vendors; each vendor's
	// subscription is independent.
	ErrCrossVendorChange = errors.New("target tier belongs to a different vendor")

	// ErrSameTier rejects a change to the tier the account is already on.
	ErrSameTier = errors.New("target tier is the current tier")

	// ErrNoProviderSubscription rejects changes and cancellations when the
	// ledger entry carries no provider subscription reference.
	ErrNoProviderSubscription = errors.New("no provider subscription on current entry")
)
