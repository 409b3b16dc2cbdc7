package subscription

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/fanward/fanward/pkg/billing"
	"github.com/fanward/fanward/pkg/catalog"
	"github.com/fanward/fanward/pkg/ledger"
	"github.com/fanward/fanward/pkg/logger"
)

// TierCatalog is the slice of the catalog the orchestrator needs.
type TierCatalog interface {
	GetTier(ctx context.Context, tierID uuid.UUID) (*catalog.Tier, error)
	// SellablePrice returns a provider price ID that is usable for a new
	// checkout, replacing an archived price transparently.
	SellablePrice(ctx context.Context, tier *catalog.Tier) (string, error)
}

// ChangeKind reports which path a tier change took.
type ChangeKind string

const (
	ChangeUpgrade   ChangeKind = "upgrade"
	ChangeDowngrade ChangeKind = "downgrade"
)

// ChangeResult is the outcome of ChangeTier.
//
// An upgrade returns a checkout URL and no entry: the ledger is written only
// when the reconciler sees the new checkout complete. AccessExpiresAt carries
// the previous tier's expiry so the UI can tell the subscriber which legacy
// benefits persist until then. A downgrade returns the synchronously updated
// entry and no checkout URL.
type ChangeResult struct {
	Kind            ChangeKind
	CheckoutURL     string
	AccessExpiresAt time.Time
	Entry           *ledger.Entry
}

// Service orchestrates subscribe, tier change and cancel flows.
type Service struct {
	tiers    TierCatalog
	store    ledger.Store
	provider billing.Provider
	log      *slog.Logger

	successURL string
	cancelURL  string
	now        func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithReturnURLs sets the redirect targets for hosted checkout sessions.
func WithReturnURLs(successURL, cancelURL string) Option {
	return func(s *Service) {
		s.successURL = successURL
		s.cancelURL = cancelURL
	}
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithClock overrides the time source. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates the orchestrator. Panics on nil dependencies to fail
// fast during initialization.
func NewService(tiers TierCatalog, store ledger.Store, provider billing.Provider, opts ...Option) *Service {
	if tiers == nil {
		panic("subscription: TierCatalog is required")
	}
	if store == nil {
		panic("subscription: ledger.Store is required")
	}
	if provider == nil {
		panic("subscription: billing.Provider is required")
	}

	s := &Service{
		tiers:    tiers,
		store:    store,
		provider: provider,
		log:      slog.Default(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe starts a hosted checkout for a tier. No local state is written;
// the ledger entry appears when the reconciler observes the completed
// checkout.
func (s *Service) Subscribe(ctx context.Context, accountID uuid.UUID, tierID uuid.UUID) (*billing.CheckoutSession, error) {
	tier, err := s.tiers.GetTier(ctx, tierID)
	if err != nil {
		return nil, err
	}
	if !tier.Active {
		return nil, ErrTierInactive
	}

	entry, err := s.store.Get(ctx, accountID, tierID)
	switch {
	case err == nil && entry.HasAccess(s.now()):
		return nil, ErrAlreadySubscribed
	case err != nil && !errors.Is(err, ledger.ErrEntryNotFound):
		return nil, err
	}

	priceID, err := s.tiers.SellablePrice(ctx, tier)
	if err != nil {
		return nil, err
	}

	session, err := s.provider.CreateCheckoutSession(ctx, billing.CheckoutRequest{
		Mode:       billing.ModeSubscription,
		PriceID:    priceID,
		SuccessURL: s.successURL,
		CancelURL:  s.cancelURL,
		Metadata: map[string]string{
			billing.MetaAccountID: accountID.String(),
			billing.MetaVendorID:  tier.VendorID.String(),
			billing.MetaTierID:    tier.ID.String(),
		},
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "checkout session created",
		logger.AccountID(accountID.String()),
		logger.TierID(tierID.String()),
		slog.String("session_id", session.ID))
	return session, nil
}

// ChangeTier moves an account from its current tier to a target tier of the
// same vendor.
//
// Upgrades cancel the provider subscription immediately with proration away
// and return a fresh checkout URL; the ledger is not touched here. Downgrades
// swap the provider price in place with no proration and update the ledger
// entry's tier synchronously; access expiry is unchanged.
func (s *Service) ChangeTier(ctx context.Context, accountID, currentTierID, targetTierID uuid.UUID) (*ChangeResult, error) {
	if currentTierID == targetTierID {
		return nil, ErrSameTier
	}

	target, err := s.tiers.GetTier(ctx, targetTierID)
	if err != nil {
		return nil, err
	}
	if !target.Active {
		return nil, ErrTierInactive
	}
	if target.ProviderPriceID == "" {
		return nil, ErrTierNotSellable
	}

	current, err := s.tiers.GetTier(ctx, currentTierID)
	if err != nil {
		return nil, err
	}
	if current.VendorID != target.VendorID {
		return nil, ErrCrossVendorChange
	}

	entry, err := s.store.Get(ctx, accountID, currentTierID)
	if err != nil {
		return nil, err
	}
	if entry.ProviderSubID == "" {
		return nil, ErrNoProviderSubscription
	}

	if target.PriceCents > current.PriceCents {
		return s.upgrade(ctx, accountID, target, entry)
	}
	return s.downgrade(ctx, accountID, target, entry)
}

func (s *Service) upgrade(ctx context.Context, accountID uuid.UUID, target *catalog.Tier, entry *ledger.Entry) (*ChangeResult, error) {
	// Immediate cancel, prorating unused time away: the subscriber must not
	// keep the old lower rate beyond what they already paid for.
	if err := s.provider.CancelSubscription(ctx, entry.ProviderSubID, false); err != nil {
		return nil, err
	}

	session, err := s.provider.CreateCheckoutSession(ctx, billing.CheckoutRequest{
		Mode:       billing.ModeSubscription,
		PriceID:    target.ProviderPriceID,
		SuccessURL: s.successURL,
		CancelURL:  s.cancelURL,
		Metadata: map[string]string{
			billing.MetaAccountID: accountID.String(),
			billing.MetaVendorID:  target.VendorID.String(),
			billing.MetaTierID:    target.ID.String(),
		},
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "upgrade checkout created",
		logger.AccountID(accountID.String()),
		slog.String("from_tier_id", entry.TierID.String()),
		slog.String("to_tier_id", target.ID.String()))

	return &ChangeResult{
		Kind:            ChangeUpgrade,
		CheckoutURL:     session.URL,
		AccessExpiresAt: entry.AccessExpiresAt,
	}, nil
}

func (s *Service) downgrade(ctx context.Context, accountID uuid.UUID, target *catalog.Tier, entry *ledger.Entry) (*ChangeResult, error) {
	if _, err := s.provider.UpdateSubscriptionPrice(ctx, entry.ProviderSubID, target.ProviderPriceID); err != nil {
		return nil, err
	}

	updated, err := s.store.SetTier(ctx, accountID, entry.TierID, target.ID)
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "downgraded in place",
		logger.AccountID(accountID.String()),
		slog.String("from_tier_id", entry.TierID.String()),
		slog.String("to_tier_id", target.ID.String()))

	return &ChangeResult{
		Kind:            ChangeDowngrade,
		AccessExpiresAt: updated.AccessExpiresAt,
		Entry:           updated,
	}, nil
}

// Cancel schedules a cancellation at period end with the provider and stamps
// the optimistic cancellation-requested mark locally. The reconciler confirms
// it when the provider's subscription.updated/.deleted events arrive; access
// runs until the already-paid period elapses.
func (s *Service) Cancel(ctx context.Context, accountID, tierID uuid.UUID) (*ledger.Entry, error) {
	entry, err := s.store.Get(ctx, accountID, tierID)
	if err != nil {
		return nil, err
	}
	if entry.ProviderSubID == "" {
		return nil, ErrNoProviderSubscription
	}

	if err := s.provider.CancelSubscription(ctx, entry.ProviderSubID, true); err != nil {
		return nil, err
	}

	entry, err = s.store.MarkCancelRequested(ctx, accountID, tierID, s.now())
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "cancellation requested",
		logger.AccountID(accountID.String()),
		logger.TierID(tierID.String()))
	return entry, nil
}

// CurrentAccess reports the account's standing with a vendor: the entry with
// the latest access expiry across the vendor's tiers, and whether it is still
// unexpired.
func (s *Service) CurrentAccess(ctx context.Context, accountID, vendorID uuid.UUID) (*ledger.Entry, bool, error) {
	entry, err := s.store.CurrentAccess(ctx, accountID, vendorID)
	if err != nil {
		return nil, false, err
	}
	return entry, entry.HasAccess(s.now()), nil
}
