package catalog

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memStore struct {
	mu       sync.RWMutex
	tiers    map[uuid.UUID]*Tier
	products map[uuid.UUID]*Product
}

// NewMemoryStore returns an in-memory Store for tests and local development.
func NewMemoryStore() Store {
	return &memStore{
		tiers:    make(map[uuid.UUID]*Tier),
		products: make(map[uuid.UUID]*Product),
	}
}

func (s *memStore) GetTier(ctx context.Context, tierID uuid.UUID) (*Tier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tiers[tierID]
	if !ok {
		return nil, ErrTierNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *memStore) SaveTier(ctx context.Context, tier *Tier) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *tier
	cp.UpdatedAt = time.Now().UTC()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = cp.UpdatedAt
	}
	s.tiers[cp.ID] = &cp
	return nil
}

func (s *memStore) DeleteTier(ctx context.Context, tierID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tiers[tierID]; !ok {
		return ErrTierNotFound
	}
	delete(s.tiers, tierID)
	return nil
}

func (s *memStore) GetProduct(ctx context.Context, productID uuid.UUID) (*Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[productID]
	if !ok {
		return nil, ErrProductNotFound
	}
	cp := *p
	cp.RestrictedTierIDs = slices.Clone(p.RestrictedTierIDs)
	return &cp, nil
}

func (s *memStore) SaveProduct(ctx context.Context, product *Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *product
	cp.RestrictedTierIDs = slices.Clone(product.RestrictedTierIDs)
	cp.UpdatedAt = time.Now().UTC()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = cp.UpdatedAt
	}
	s.products[cp.ID] = &cp
	return nil
}

func (s *memStore) DecrementStock(ctx context.Context, productID uuid.UUID, qty int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[productID]
	if !ok {
		return ErrProductNotFound
	}
	if !p.StockLimited {
		return nil
	}
	if p.Stock < qty {
		return ErrInsufficientStock
	}
	p.Stock -= qty
	p.UpdatedAt = time.Now().UTC()
	return nil
}
