package orders

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fanward/fanward/pkg/pg"
)

type pgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore returns the PostgreSQL-backed Store. The unique index on
// payment_intent_id makes Create race-safe: concurrent duplicate deliveries
// insert at most one row and the losers read the winner back.
func NewPgStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

const orderColumns = `id, account_id, vendor_id, product_id, quantity,
	total_cents, currency, status, payment_intent_id, stock_applied,
	shipping_address_id, audit_note, created_at, updated_at`

func (s *pgStore) Get(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE id = $1`,
		orderID)
	return scanOrder(row)
}

func (s *pgStore) FindByPaymentIntent(ctx context.Context, paymentIntentID string) (*Order, error) {
	if paymentIntentID == "" {
		return nil, ErrOrderNotFound
	}
	row := s.pool.QueryRow(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE payment_intent_id = $1`,
		paymentIntentID)
	return scanOrder(row)
}

func (s *pgStore) Create(ctx context.Context, order *Order) (*Order, bool, error) {
	if order.PaymentIntentID == "" {
		return nil, false, ErrMissingPaymentRef
	}

	id := order.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	// A duplicate delivery races the unique index on payment_intent_id; the
	// loser reads the winner's row back.
	row := s.pool.QueryRow(ctx, `
		INSERT INTO orders (
			id, account_id, vendor_id, product_id, quantity,
			total_cents, currency, status, payment_intent_id, stock_applied,
			shipping_address_id, audit_note, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now(), now())
		RETURNING `+orderColumns,
		id, order.AccountID, order.VendorID, order.ProductID, order.Quantity,
		order.TotalCents, order.Currency, order.Status, order.PaymentIntentID,
		order.StockApplied, order.ShippingAddressID, order.AuditNote)

	created, err := scanOrder(row)
	switch {
	case err == nil:
		return created, true, nil
	case pg.IsDuplicateKeyError(err):
		existing, err := s.FindByPaymentIntent(ctx, order.PaymentIntentID)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	default:
		return nil, false, err
	}
}

func (s *pgStore) MarkStockApplied(ctx context.Context, orderID uuid.UUID) error {
	return s.exec(ctx, `
		UPDATE orders SET
			stock_applied = TRUE,
			updated_at = now()
		WHERE id = $1`,
		orderID)
}

func (s *pgStore) AppendAuditNote(ctx context.Context, orderID uuid.UUID, note string) error {
	return s.exec(ctx, `
		UPDATE orders SET
			audit_note = CASE WHEN audit_note = '' THEN $2
				ELSE audit_note || E'\n' || $2 END,
			updated_at = now()
		WHERE id = $1`,
		orderID, note)
}

func (s *pgStore) UpdateStatus(ctx context.Context, orderID uuid.UUID, status Status) error {
	return s.exec(ctx, `
		UPDATE orders SET
			status = $2,
			updated_at = now()
		WHERE id = $1`,
		orderID, status)
}

func (s *pgStore) exec(ctx context.Context, sql string, args ...any) error {
	tag, err := s.pool.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*Order, error) {
	var o Order
	err := row.Scan(
		&o.ID, &o.AccountID, &o.VendorID, &o.ProductID, &o.Quantity,
		&o.TotalCents, &o.Currency, &o.Status, &o.PaymentIntentID,
		&o.StockApplied, &o.ShippingAddressID, &o.AuditNote,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &o, nil
}
