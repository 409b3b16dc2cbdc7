package catalog

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fanward/fanward/pkg/pg"
)

type pgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore returns the PostgreSQL-backed Store.
func NewPgStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

func (s *pgStore) GetTier(ctx context.Context, tierID uuid.UUID) (*Tier, error) {
	var t Tier
	err := s.pool.QueryRow(ctx, `
		SELECT id, vendor_id, name, price_cents, currency, billing_interval,
		       provider_price_id, active, created_at, updated_at
		FROM tiers WHERE id = $1`,
		tierID).Scan(
		&t.ID, &t.VendorID, &t.Name, &t.PriceCents, &t.Currency, &t.Interval,
		&t.ProviderPriceID, &t.Active, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrTierNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (s *pgStore) SaveTier(ctx context.Context, tier *Tier) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO tiers (
			id, vendor_id, name, price_cents, currency, billing_interval,
			provider_price_id, active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			price_cents = EXCLUDED.price_cents,
			currency = EXCLUDED.currency,
			billing_interval = EXCLUDED.billing_interval,
			provider_price_id = EXCLUDED.provider_price_id,
			active = EXCLUDED.active,
			updated_at = now()`,
		tier.ID, tier.VendorID, tier.Name, tier.PriceCents, tier.Currency,
		tier.Interval, tier.ProviderPriceID, tier.Active)
	return err
}

func (s *pgStore) DeleteTier(ctx context.Context, tierID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM tiers WHERE id = $1`, tierID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTierNotFound
	}
	return nil
}

func (s *pgStore) GetProduct(ctx context.Context, productID uuid.UUID) (*Product, error) {
	var p Product
	err := s.pool.QueryRow(ctx, `
		SELECT id, vendor_id, name, price_cents, currency,
		       stock_limited, stock, restricted_tier_ids, active,
		       created_at, updated_at
		FROM products WHERE id = $1`,
		productID).Scan(
		&p.ID, &p.VendorID, &p.Name, &p.PriceCents, &p.Currency,
		&p.StockLimited, &p.Stock, &p.RestrictedTierIDs, &p.Active,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *pgStore) SaveProduct(ctx context.Context, product *Product) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO products (
			id, vendor_id, name, price_cents, currency,
			stock_limited, stock, restricted_tier_ids, active,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			price_cents = EXCLUDED.price_cents,
			currency = EXCLUDED.currency,
			stock_limited = EXCLUDED.stock_limited,
			stock = EXCLUDED.stock,
			restricted_tier_ids = EXCLUDED.restricted_tier_ids,
			active = EXCLUDED.active,
			updated_at = now()`,
		product.ID, product.VendorID, product.Name, product.PriceCents,
		product.Currency, product.StockLimited, product.Stock,
		product.RestrictedTierIDs, product.Active)
	return err
}

func (s *pgStore) DecrementStock(ctx context.Context, productID uuid.UUID, qty int64) error {
	// Single conditional UPDATE keeps the decrement atomic under concurrent
	// duplicate webhook deliveries.
	tag, err := s.pool.Exec(ctx, `
		UPDATE products SET
			stock = stock - $2,
			updated_at = now()
		WHERE id = $1 AND stock_limited AND stock >= $2`,
		productID, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	// Distinguish "not stock-limited" (no-op) from "not enough stock".
	var limited bool
	err = s.pool.QueryRow(ctx, `
		SELECT stock_limited FROM products WHERE id = $1`,
		productID).Scan(&limited)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return ErrProductNotFound
		}
		return err
	}
	if !limited {
		return nil
	}
	return ErrInsufficientStock
}
