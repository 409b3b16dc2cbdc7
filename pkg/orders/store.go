package orders

import (
	"context"

	"github.com/google/uuid"
)

// Store is the persistence interface for orders.
type Store interface {
	// Get returns an order by ID, or ErrOrderNotFound.
	Get(ctx context.Context, orderID uuid.UUID) (*Order, error)

	// FindByPaymentIntent returns the order recorded for a payment-intent
	// reference, or ErrOrderNotFound.
	FindByPaymentIntent(ctx context.Context, paymentIntentID string) (*Order, error)

	// Create inserts the order if no order exists for its payment-intent
	// reference. Returns (existing, false, nil) when one already does, so
	// concurrent duplicate deliveries collapse onto a single row.
	Create(ctx context.Context, order *Order) (*Order, bool, error)

	// MarkStockApplied sets the StockApplied flag.
	MarkStockApplied(ctx context.Context, orderID uuid.UUID) error

	// AppendAuditNote adds a line to the order's audit note.
	AppendAuditNote(ctx context.Context, orderID uuid.UUID, note string) error

	// UpdateStatus moves the order through its fulfillment lifecycle.
	UpdateStatus(ctx context.Context, orderID uuid.UUID, status Status) error
}
