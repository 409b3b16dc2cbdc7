package catalog

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/fanward/fanward/pkg/billing"
	"github.com/fanward/fanward/pkg/logger"
)

// SubscriberCounts is the slice of the ledger the catalog needs for its
// mutation guards.
type SubscriberCounts interface {
	CountActiveByTier(ctx context.Context, tierID uuid.UUID) (int64, error)
	CountByTier(ctx context.Context, tierID uuid.UUID) (int64, error)
}

// Service wraps the Store with the tier-mutation guards and provider price
// provisioning.
type Service struct {
	store    Store
	counts   SubscriberCounts
	provider billing.Provider
	log      *slog.Logger
}

func NewService(store Store, counts SubscriberCounts, provider billing.Provider, log *slog.Logger) *Service {
	if store == nil {
		panic("catalog: Store is required")
	}
	if counts == nil {
		panic("catalog: SubscriberCounts is required")
	}
	if provider == nil {
		panic("catalog: billing.Provider is required")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, counts: counts, provider: provider, log: log}
}

func (s *Service) GetTier(ctx context.Context, tierID uuid.UUID) (*Tier, error) {
	return s.store.GetTier(ctx, tierID)
}

func (s *Service) GetProduct(ctx context.Context, productID uuid.UUID) (*Product, error) {
	return s.store.GetProduct(ctx, productID)
}

// CreateTier provisions the provider price and persists the tier.
func (s *Service) CreateTier(ctx context.Context, tier *Tier) (*Tier, error) {
	if tier.VendorID == uuid.Nil {
		return nil, ErrMissingVendorID
	}
	if tier.Name == "" {
		return nil, ErrMissingTierName
	}
	if tier.ID == uuid.Nil {
		tier.ID = uuid.New()
	}
	tier.Active = true

	if err := s.ensureProviderPrice(ctx, tier); err != nil {
		return nil, err
	}
	if err := s.store.SaveTier(ctx, tier); err != nil {
		return nil, err
	}
	return tier, nil
}

// UpdateTierPrice changes a tier's price. Rejected while the tier has active
// subscribers; otherwise a fresh provider price is provisioned since
// provider prices are immutable once created.
func (s *Service) UpdateTierPrice(ctx context.Context, tierID uuid.UUID, priceCents int64) (*Tier, error) {
	tier, err := s.store.GetTier(ctx, tierID)
	if err != nil {
		return nil, err
	}

	active, err := s.counts.CountActiveByTier(ctx, tierID)
	if err != nil {
		return nil, err
	}
	if active > 0 {
		return nil, ErrTierHasSubscribers
	}

	tier.PriceCents = priceCents
	tier.ProviderPriceID = ""
	if err := s.ensureProviderPrice(ctx, tier); err != nil {
		return nil, err
	}
	if err := s.store.SaveTier(ctx, tier); err != nil {
		return nil, err
	}
	return tier, nil
}

// DeactivateTier soft-disables a tier: no new checkouts, existing
// subscriptions and history untouched.
func (s *Service) DeactivateTier(ctx context.Context, tierID uuid.UUID) (*Tier, error) {
	tier, err := s.store.GetTier(ctx, tierID)
	if err != nil {
		return nil, err
	}
	tier.Active = false
	if err := s.store.SaveTier(ctx, tier); err != nil {
		return nil, err
	}
	return tier, nil
}

// DeleteTier removes a tier that never had subscribers. Any ledger history
// at all blocks deletion.
func (s *Service) DeleteTier(ctx context.Context, tierID uuid.UUID) error {
	total, err := s.counts.CountByTier(ctx, tierID)
	if err != nil {
		return err
	}
	if total > 0 {
		return ErrTierHasHistory
	}
	return s.store.DeleteTier(ctx, tierID)
}

// SellablePrice returns a provider price ID that is guaranteed usable for a
// new checkout, replacing an archived price transparently.
func (s *Service) SellablePrice(ctx context.Context, tier *Tier) (string, error) {
	if tier.ProviderPriceID != "" {
		price, err := s.provider.GetPrice(ctx, tier.ProviderPriceID)
		switch {
		case err == nil && price.Active:
			return tier.ProviderPriceID, nil
		case err != nil && !errors.Is(err, billing.ErrPriceNotFound) && !errors.Is(err, billing.ErrPriceArchived):
			return "", err
		}
		s.log.InfoContext(ctx, "replacing archived provider price",
			logger.TierID(tier.ID.String()),
			slog.String("price_id", tier.ProviderPriceID))
	}

	tier.ProviderPriceID = ""
	if err := s.ensureProviderPrice(ctx, tier); err != nil {
		return "", err
	}
	if err := s.store.SaveTier(ctx, tier); err != nil {
		return "", err
	}
	return tier.ProviderPriceID, nil
}

func (s *Service) ensureProviderPrice(ctx context.Context, tier *Tier) error {
	if tier.ProviderPriceID != "" {
		return nil
	}

	currency := tier.Currency
	if currency == "" {
		currency = "usd"
	}
	interval := tier.Interval
	if interval == "" {
		interval = "month"
	}

	price, err := s.provider.CreatePrice(ctx, billing.CreatePriceRequest{
		ProductName: tier.Name,
		UnitAmount:  tier.PriceCents,
		Currency:    currency,
		Interval:    interval,
	})
	if err != nil {
		return err
	}

	tier.Currency = currency
	tier.Interval = interval
	tier.ProviderPriceID = price.ID
	tier.UpdatedAt = time.Now().UTC()
	return nil
}
