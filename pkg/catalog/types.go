package catalog

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Tier is a priced, named recurring-access level owned by one vendor.
type Tier struct {
	ID              uuid.UUID
	VendorID        uuid.UUID
	Name            string
	PriceCents      int64  // smallest currency unit
	Currency        string // ISO 4217, lowercase
	Interval        string // "month" or "year"
	ProviderPriceID string // billing provider price reference
	Active          bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Sellable reports whether new checkouts may reference this tier.
func (t *Tier) Sellable() bool {
	return t.Active && t.ProviderPriceID != ""
}

// Product is a one-time-purchase catalog item, gated by vendor access.
type Product struct {
	ID         uuid.UUID
	VendorID   uuid.UUID
	Name       string
	PriceCents int64
	Currency   string

	// StockLimited products track remaining Stock; unlimited products
	// ignore the counter entirely.
	StockLimited bool
	Stock        int64

	// RestrictedTierIDs, when non-empty, limits purchase to subscribers of
	// the listed tiers. Empty means any subscriber of the vendor qualifies.
	RestrictedTierIDs []uuid.UUID

	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TierAllowed reports whether a subscriber on tierID may purchase this
// product.
func (p *Product) TierAllowed(tierID uuid.UUID) bool {
	if len(p.RestrictedTierIDs) == 0 {
		return true
	}
	return slices.Contains(p.RestrictedTierIDs, tierID)
}
