package orders

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memStore is an in-memory Store for tests and local development.
type memStore struct {
	mu       sync.RWMutex
	byID     map[uuid.UUID]*Order
	byIntent map[string]uuid.UUID

	now func() time.Time
}

// NewMemoryStore returns an empty in-memory Store.
func NewMemoryStore() Store {
	return &memStore{
		byID:     make(map[uuid.UUID]*Order),
		byIntent: make(map[string]uuid.UUID),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *memStore) Get(_ context.Context, orderID uuid.UUID) (*Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.byID[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return copyOrder(order), nil
}

func (s *memStore) FindByPaymentIntent(_ context.Context, paymentIntentID string) (*Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byIntent[paymentIntentID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return copyOrder(s.byID[id]), nil
}

func (s *memStore) Create(_ context.Context, order *Order) (*Order, bool, error) {
	if order.PaymentIntentID == "" {
		return nil, false, ErrMissingPaymentRef
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.byIntent[order.PaymentIntentID]; ok {
		return copyOrder(s.byID[id]), false, nil
	}

	stored := copyOrder(order)
	if stored.ID == uuid.Nil {
		stored.ID = uuid.New()
	}
	now := s.now()
	stored.CreatedAt = now
	stored.UpdatedAt = now

	s.byID[stored.ID] = stored
	s.byIntent[stored.PaymentIntentID] = stored.ID
	return copyOrder(stored), true, nil
}

func (s *memStore) MarkStockApplied(_ context.Context, orderID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.byID[orderID]
	if !ok {
		return ErrOrderNotFound
	}
	order.StockApplied = true
	order.UpdatedAt = s.now()
	return nil
}

func (s *memStore) AppendAuditNote(_ context.Context, orderID uuid.UUID, note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.byID[orderID]
	if !ok {
		return ErrOrderNotFound
	}
	if order.AuditNote == "" {
		order.AuditNote = note
	} else {
		order.AuditNote += "\n" + note
	}
	order.UpdatedAt = s.now()
	return nil
}

func (s *memStore) UpdateStatus(_ context.Context, orderID uuid.UUID, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.byID[orderID]
	if !ok {
		return ErrOrderNotFound
	}
	order.Status = status
	order.UpdatedAt = s.now()
	return nil
}

func copyOrder(order *Order) *Order {
	cp := *order
	if order.ShippingAddressID != nil {
		id := *order.ShippingAddressID
		cp.ShippingAddressID = &id
	}
	return &cp
}
