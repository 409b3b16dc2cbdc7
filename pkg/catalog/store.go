package catalog

import (
	"context"

	"github.com/google/uuid"
)

// Store is the persistence interface for tiers and products.
type Store interface {
	GetTier(ctx context.Context, tierID uuid.UUID) (*Tier, error)
	SaveTier(ctx context.Context, tier *Tier) error
	DeleteTier(ctx context.Context, tierID uuid.UUID) error

	GetProduct(ctx context.Context, productID uuid.UUID) (*Product, error)
	SaveProduct(ctx context.Context, product *Product) error

	// DecrementStock atomically reduces a stock-limited product's counter
	// by qty, failing with ErrInsufficientStock rather than going negative.
	// For products that are not stock-limited it is a no-op.
	DecrementStock(ctx context.Context, productID uuid.UUID, qty int64) error
}
