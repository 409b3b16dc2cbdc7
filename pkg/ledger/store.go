package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// CheckoutCompleted carries the fields of a completed subscription checkout
// the ledger records.
type CheckoutCompleted struct {
	AccountID     uuid.UUID
	TierID        uuid.UUID
	VendorID      uuid.UUID
	ProviderSubID string
	PeriodStart   time.Time
	PeriodEnd     time.Time
}

func (p CheckoutCompleted) Validate() error {
	if p.AccountID == uuid.Nil {
		return ErrMissingAccountID
	}
	if p.TierID == uuid.Nil {
		return ErrMissingTierID
	}
	if p.PeriodEnd.IsZero() {
		return ErrMissingPeriodEnd
	}
	return nil
}

// SubscriptionUpdate carries a provider subscription-updated notification,
// already mapped to the local status vocabulary.
type SubscriptionUpdate struct {
	AccountID     uuid.UUID
	TierID        uuid.UUID
	VendorID      uuid.UUID
	ProviderSubID string
	Status        Status
	PeriodStart   time.Time
	PeriodEnd     time.Time
	// CancelRequestedAt confirms a pending cancellation scheduled at the
	// provider (cancel_at_period_end); nil leaves any existing stamp alone.
	CancelRequestedAt *time.Time
}

// Store is the persistence interface for ledger entries. Every Apply/Mark
// operation is an idempotent upsert or update keyed by natural identifiers:
// replaying the same call yields the same end state.
type Store interface {
	// Get returns the entry for (account, tier), or ErrEntryNotFound.
	Get(ctx context.Context, accountID, tierID uuid.UUID) (*Entry, error)

	// CurrentAccess returns the entry with the greatest AccessExpiresAt
	// among all of the vendor's tiers for this account, regardless of
	// status, or ErrEntryNotFound when the account never subscribed.
	// Callers decide access with Entry.HasAccess.
	CurrentAccess(ctx context.Context, accountID, vendorID uuid.UUID) (*Entry, error)

	// FindByProviderSubID locates an entry by the provider's subscription
	// reference, or ErrEntryNotFound.
	FindByProviderSubID(ctx context.Context, providerSubID string) (*Entry, error)

	// CountActiveByTier counts entries in active status for a tier; guards
	// tier price mutation.
	CountActiveByTier(ctx context.Context, tierID uuid.UUID) (int64, error)

	// CountByTier counts all entries ever created for a tier; guards tier
	// deletion.
	CountByTier(ctx context.Context, tierID uuid.UUID) (int64, error)

	// ApplyCheckoutCompleted upserts on (account, tier): a new entry is
	// created active, an existing one is refreshed to active with both
	// cancellation stamps cleared, and AccessExpiresAt becomes PeriodEnd.
	ApplyCheckoutCompleted(ctx context.Context, p CheckoutCompleted) (*Entry, error)

	// ApplySubscriptionUpdated upserts on (account, tier) and always resets
	// AccessExpiresAt to the new PeriodEnd, even when the mapped status is
	// cancelled: cancellation at period end means access legitimately runs
	// to that instant.
	ApplySubscriptionUpdated(ctx context.Context, p SubscriptionUpdate) (*Entry, error)

	// ApplySubscriptionDeleted marks (account, tier) cancelled and stamps
	// CancelledAt. AccessExpiresAt keeps its last recorded value: deletion
	// is the provider's terminal confirmation of a cancellation that was
	// already scheduled for period end.
	ApplySubscriptionDeleted(ctx context.Context, accountID, tierID uuid.UUID, cancelledAt time.Time) (*Entry, error)

	// MarkPastDue flags the entry holding this provider subscription
	// reference. Access expiry is untouched; the grace period is whatever
	// remains on the paid window.
	MarkPastDue(ctx context.Context, providerSubID string) (*Entry, error)

	// MarkCancelRequested stamps the optimistic cancellation request; the
	// reconciler later confirms or corrects it. Stamping twice keeps the
	// first instant.
	MarkCancelRequested(ctx context.Context, accountID, tierID uuid.UUID, at time.Time) (*Entry, error)

	// SetTier moves an entry to a cheaper tier of the same vendor in place
	// (the downgrade path). AccessExpiresAt and period bounds are untouched.
	SetTier(ctx context.Context, accountID, currentTierID, newTierID uuid.UUID) (*Entry, error)
}
