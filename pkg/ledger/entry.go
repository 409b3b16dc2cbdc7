package ledger

import (
	"time"

	"github.com/google/uuid"
)

// Status is the local subscription lifecycle vocabulary.
type Status string

const (
	StatusActive    Status = "active"
	StatusPastDue   Status = "past_due"
	StatusCancelled Status = "cancelled"
	StatusPaused    Status = "paused"
)

// StatusFromProvider maps the billing provider's status vocabulary onto the
// local lifecycle. Statuses with no local meaning map to past_due so they
// surface for attention without touching access, which is expiry-driven.
func StatusFromProvider(providerStatus string) Status {
	switch providerStatus {
	case "active", "trialing":
		return StatusActive
	case "past_due", "unpaid", "incomplete":
		return StatusPastDue
	case "canceled", "cancelled", "incomplete_expired":
		return StatusCancelled
	case "paused":
		return StatusPaused
	default:
		return StatusPastDue
	}
}

// Entry links one subscriber account to one vendor tier. Uniqueness key:
// (AccountID, TierID).
type Entry struct {
	AccountID     uuid.UUID
	TierID        uuid.UUID
	VendorID      uuid.UUID
	Status        Status
	ProviderSubID string // billing provider's subscription reference

	PeriodStart     time.Time
	PeriodEnd       time.Time
	AccessExpiresAt time.Time // authoritative access bound; == last paid period end

	// Two-phase cancellation: CancelRequestedAt is the optimistic local
	// stamp written when the subscriber asks to cancel; CancelledAt is
	// written only when the provider confirms via its deleted event.
	CancelRequestedAt *time.Time
	CancelledAt       *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasAccess reports whether the paid window is still open at now. Lifecycle
// status deliberately plays no part in this.
func (e *Entry) HasAccess(now time.Time) bool {
	return now.Before(e.AccessExpiresAt)
}

func (e *Entry) IsActive() bool {
	return e.Status == StatusActive
}

func (e *Entry) IsCancelled() bool {
	return e.Status == StatusCancelled
}

// CancelPending reports a cancellation that was requested locally but not
// yet confirmed by the provider.
func (e *Entry) CancelPending() bool {
	return e.CancelRequestedAt != nil && e.CancelledAt == nil
}
