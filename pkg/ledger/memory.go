package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memKey struct {
	account uuid.UUID
	tier    uuid.UUID
}

type memStore struct {
	mu      sync.RWMutex
	entries map[memKey]*Entry
	now     func() time.Time
}

// NewMemoryStore returns an in-memory Store. Used in tests and local
// development; the production store is NewPgStore.
func NewMemoryStore() Store {
	return &memStore{
		entries: make(map[memKey]*Entry),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *memStore) Get(ctx context.Context, accountID, tierID uuid.UUID) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[memKey{accountID, tierID}]
	if !ok {
		return nil, ErrEntryNotFound
	}
	return copyEntry(e), nil
}

func (s *memStore) CurrentAccess(ctx context.Context, accountID, vendorID uuid.UUID) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *Entry
	for _, e := range s.entries {
		if e.AccountID != accountID || e.VendorID != vendorID {
			continue
		}
		if best == nil || accessPreferred(e, best) {
			best = e
		}
	}
	if best == nil {
		return nil, ErrEntryNotFound
	}
	return copyEntry(best), nil
}

// accessPreferred orders CurrentAccess candidates: latest expiry first, then
// live over cancelled, then most recently updated. The status tiebreaker
// matters after a downgrade swap leaves a retired twin with the same expiry.
func accessPreferred(e, best *Entry) bool {
	if !e.AccessExpiresAt.Equal(best.AccessExpiresAt) {
		return e.AccessExpiresAt.After(best.AccessExpiresAt)
	}
	if (e.Status == StatusCancelled) != (best.Status == StatusCancelled) {
		return best.Status == StatusCancelled
	}
	return e.UpdatedAt.After(best.UpdatedAt)
}

func (s *memStore) FindByProviderSubID(ctx context.Context, providerSubID string) (*Entry, error) {
	if providerSubID == "" {
		return nil, ErrEntryNotFound
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.entries {
		if e.ProviderSubID == providerSubID {
			return copyEntry(e), nil
		}
	}
	return nil, ErrEntryNotFound
}

func (s *memStore) CountActiveByTier(ctx context.Context, tierID uuid.UUID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, e := range s.entries {
		if e.TierID == tierID && e.Status == StatusActive {
			n++
		}
	}
	return n, nil
}

func (s *memStore) CountByTier(ctx context.Context, tierID uuid.UUID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, e := range s.entries {
		if e.TierID == tierID {
			n++
		}
	}
	return n, nil
}

func (s *memStore) ApplyCheckoutCompleted(ctx context.Context, p CheckoutCompleted) (*Entry, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	key := memKey{p.AccountID, p.TierID}

	e, ok := s.entries[key]
	if !ok {
		e = &Entry{
			AccountID: p.AccountID,
			TierID:    p.TierID,
			VendorID:  p.VendorID,
			CreatedAt: now,
		}
		s.entries[key] = e
	}

	e.Status = StatusActive
	e.ProviderSubID = p.ProviderSubID
	e.PeriodStart = p.PeriodStart
	e.PeriodEnd = p.PeriodEnd
	e.AccessExpiresAt = p.PeriodEnd
	e.CancelRequestedAt = nil
	e.CancelledAt = nil
	e.UpdatedAt = now

	return copyEntry(e), nil
}

func (s *memStore) ApplySubscriptionUpdated(ctx context.Context, p SubscriptionUpdate) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	key := memKey{p.AccountID, p.TierID}

	e, ok := s.entries[key]
	if !ok {
		// Out-of-order arrival: updated may beat the checkout-completed
		// event. Create the entry so no provider state is dropped.
		e = &Entry{
			AccountID: p.AccountID,
			TierID:    p.TierID,
			VendorID:  p.VendorID,
			CreatedAt: now,
		}
		s.entries[key] = e
	}

	e.Status = p.Status
	if p.ProviderSubID != "" {
		e.ProviderSubID = p.ProviderSubID
	}
	if !p.PeriodStart.IsZero() {
		e.PeriodStart = p.PeriodStart
	}
	if !p.PeriodEnd.IsZero() {
		e.PeriodEnd = p.PeriodEnd
		e.AccessExpiresAt = p.PeriodEnd
	}
	if p.CancelRequestedAt != nil && e.CancelRequestedAt == nil {
		e.CancelRequestedAt = p.CancelRequestedAt
	}
	e.UpdatedAt = now

	return copyEntry(e), nil
}

func (s *memStore) ApplySubscriptionDeleted(ctx context.Context, accountID, tierID uuid.UUID, cancelledAt time.Time) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[memKey{accountID, tierID}]
	if !ok {
		return nil, ErrEntryNotFound
	}

	e.Status = StatusCancelled
	if e.CancelledAt == nil {
		t := cancelledAt
		e.CancelledAt = &t
	}
	// AccessExpiresAt deliberately untouched.
	e.UpdatedAt = s.now()

	return copyEntry(e), nil
}

func (s *memStore) MarkPastDue(ctx context.Context, providerSubID string) (*Entry, error) {
	if providerSubID == "" {
		return nil, ErrEntryNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entries {
		if e.ProviderSubID == providerSubID {
			e.Status = StatusPastDue
			e.UpdatedAt = s.now()
			return copyEntry(e), nil
		}
	}
	return nil, ErrEntryNotFound
}

func (s *memStore) MarkCancelRequested(ctx context.Context, accountID, tierID uuid.UUID, at time.Time) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[memKey{accountID, tierID}]
	if !ok {
		return nil, ErrEntryNotFound
	}

	if e.CancelRequestedAt == nil {
		t := at
		e.CancelRequestedAt = &t
	}
	e.UpdatedAt = s.now()

	return copyEntry(e), nil
}

func (s *memStore) SetTier(ctx context.Context, accountID, currentTierID, newTierID uuid.UUID) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	src, ok := s.entries[memKey{accountID, currentTierID}]
	if !ok {
		return nil, ErrEntryNotFound
	}

	// A historical entry for the target tier may survive from an earlier
	// subscription. The live billing state moves onto it; the source entry
	// is retired in place, never deleted.
	if target, exists := s.entries[memKey{accountID, newTierID}]; exists {
		target.Status = src.Status
		target.ProviderSubID = src.ProviderSubID
		target.PeriodStart = src.PeriodStart
		target.PeriodEnd = src.PeriodEnd
		target.AccessExpiresAt = src.AccessExpiresAt
		target.CancelRequestedAt = src.CancelRequestedAt
		target.CancelledAt = nil
		target.UpdatedAt = now

		src.Status = StatusCancelled
		src.ProviderSubID = ""
		src.UpdatedAt = now

		return copyEntry(target), nil
	}

	delete(s.entries, memKey{accountID, currentTierID})
	src.TierID = newTierID
	src.UpdatedAt = now
	s.entries[memKey{accountID, newTierID}] = src

	return copyEntry(src), nil
}

func copyEntry(e *Entry) *Entry {
	out := *e
	if e.CancelRequestedAt != nil {
		t := *e.CancelRequestedAt
		out.CancelRequestedAt = &t
	}
	if e.CancelledAt != nil {
		t := *e.CancelledAt
		out.CancelledAt = &t
	}
	return &out
}
