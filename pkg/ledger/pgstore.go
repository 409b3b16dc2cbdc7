package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fanward/fanward/pkg/pg"
)

type pgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore returns the PostgreSQL-backed Store. Idempotency relies on the
// (account_id, tier_id) primary key and ON CONFLICT upserts, so duplicate
// webhook deliveries racing each other collapse into one row.
func NewPgStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

const entryColumns = `account_id, tier_id, vendor_id, status, provider_sub_id,
	period_start, period_end, access_expires_at,
	cancel_requested_at, cancelled_at, created_at, updated_at`

func (s *pgStore) Get(ctx context.Context, accountID, tierID uuid.UUID) (*Entry, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+entryColumns+`
		FROM ledger_entries
		WHERE account_id = $1 AND tier_id = $2`,
		accountID, tierID)
	return scanEntry(row)
}

func (s *pgStore) CurrentAccess(ctx context.Context, accountID, vendorID uuid.UUID) (*Entry, error) {
	// A downgrade swap leaves a retired twin with the same expiry; on ties
	// the live entry must win, so cancelled sorts last and recency decides.
	row := s.pool.QueryRow(ctx, `
		SELECT `+entryColumns+`
		FROM ledger_entries
		WHERE account_id = $1 AND vendor_id = $2
		ORDER BY access_expires_at DESC, (status = $3), updated_at DESC
		LIMIT 1`,
		accountID, vendorID, StatusCancelled)
	return scanEntry(row)
}

func (s *pgStore) FindByProviderSubID(ctx context.Context, providerSubID string) (*Entry, error) {
	if providerSubID == "" {
		return nil, ErrEntryNotFound
	}
	row := s.pool.QueryRow(ctx, `
		SELECT `+entryColumns+`
		FROM ledger_entries
		WHERE provider_sub_id = $1`,
		providerSubID)
	return scanEntry(row)
}

func (s *pgStore) CountActiveByTier(ctx context.Context, tierID uuid.UUID) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `
		SELECT count(*) FROM ledger_entries
		WHERE tier_id = $1 AND status = $2`,
		tierID, StatusActive).Scan(&n)
	return n, err
}

func (s *pgStore) CountByTier(ctx context.Context, tierID uuid.UUID) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `
		SELECT count(*) FROM ledger_entries
		WHERE tier_id = $1`,
		tierID).Scan(&n)
	return n, err
}

func (s *pgStore) ApplyCheckoutCompleted(ctx context.Context, p CheckoutCompleted) (*Entry, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO ledger_entries (
			account_id, tier_id, vendor_id, status, provider_sub_id,
			period_start, period_end, access_expires_at,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $7, now(), now())
		ON CONFLICT (account_id, tier_id) DO UPDATE SET
			status = EXCLUDED.status,
			provider_sub_id = EXCLUDED.provider_sub_id,
			period_start = EXCLUDED.period_start,
			period_end = EXCLUDED.period_end,
			access_expires_at = EXCLUDED.access_expires_at,
			cancel_requested_at = NULL,
			cancelled_at = NULL,
			updated_at = now()
		RETURNING `+entryColumns,
		p.AccountID, p.TierID, p.VendorID, StatusActive, p.ProviderSubID,
		p.PeriodStart, p.PeriodEnd)
	return scanEntry(row)
}

func (s *pgStore) ApplySubscriptionUpdated(ctx context.Context, p SubscriptionUpdate) (*Entry, error) {
	// COALESCE keeps previously recorded values when the event omits a
	// field; cancel_requested_at keeps its first stamp.
	row := s.pool.QueryRow(ctx, `
		INSERT INTO ledger_entries (
			account_id, tier_id, vendor_id, status, provider_sub_id,
			period_start, period_end, access_expires_at,
			cancel_requested_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($7, now()), $8, now(), now())
		ON CONFLICT (account_id, tier_id) DO UPDATE SET
			status = EXCLUDED.status,
			provider_sub_id = COALESCE(NULLIF(EXCLUDED.provider_sub_id, ''), ledger_entries.provider_sub_id),
			period_start = COALESCE(EXCLUDED.period_start, ledger_entries.period_start),
			period_end = COALESCE(EXCLUDED.period_end, ledger_entries.period_end),
			access_expires_at = COALESCE(EXCLUDED.period_end, ledger_entries.access_expires_at),
			cancel_requested_at = COALESCE(ledger_entries.cancel_requested_at, EXCLUDED.cancel_requested_at),
			updated_at = now()
		RETURNING `+entryColumns,
		p.AccountID, p.TierID, p.VendorID, p.Status, p.ProviderSubID,
		nullTime(p.PeriodStart), nullTime(p.PeriodEnd), p.CancelRequestedAt)
	return scanEntry(row)
}

func (s *pgStore) ApplySubscriptionDeleted(ctx context.Context, accountID, tierID uuid.UUID, cancelledAt time.Time) (*Entry, error) {
	// access_expires_at is deliberately not in the SET list.
	row := s.pool.QueryRow(ctx, `
		UPDATE ledger_entries SET
			status = $3,
			cancelled_at = COALESCE(cancelled_at, $4),
			updated_at = now()
		WHERE account_id = $1 AND tier_id = $2
		RETURNING `+entryColumns,
		accountID, tierID, StatusCancelled, cancelledAt)
	return scanEntry(row)
}

func (s *pgStore) MarkPastDue(ctx context.Context, providerSubID string) (*Entry, error) {
	if providerSubID == "" {
		return nil, ErrEntryNotFound
	}
	row := s.pool.QueryRow(ctx, `
		UPDATE ledger_entries SET
			status = $2,
			updated_at = now()
		WHERE provider_sub_id = $1
		RETURNING `+entryColumns,
		providerSubID, StatusPastDue)
	return scanEntry(row)
}

func (s *pgStore) MarkCancelRequested(ctx context.Context, accountID, tierID uuid.UUID, at time.Time) (*Entry, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE ledger_entries SET
			cancel_requested_at = COALESCE(cancel_requested_at, $3),
			updated_at = now()
		WHERE account_id = $1 AND tier_id = $2
		RETURNING `+entryColumns,
		accountID, tierID, at)
	return scanEntry(row)
}

func (s *pgStore) SetTier(ctx context.Context, accountID, currentTierID, newTierID uuid.UUID) (*Entry, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	src := tx.QueryRow(ctx, `
		SELECT `+entryColumns+`
		FROM ledger_entries
		WHERE account_id = $1 AND tier_id = $2
		FOR UPDATE`,
		accountID, currentTierID)
	entry, err := scanEntry(src)
	if err != nil {
		return nil, err
	}

	// A retired entry for the target tier may already occupy the key from
	// an earlier subscription; the live billing state moves onto it and the
	// source entry is retired in place. Entries are never deleted.
	var exists bool
	if err := tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM ledger_entries
			WHERE account_id = $1 AND tier_id = $2
		)`, accountID, newTierID).Scan(&exists); err != nil {
		return nil, err
	}

	var out *Entry
	if exists {
		row := tx.QueryRow(ctx, `
			UPDATE ledger_entries SET
				status = $3,
				provider_sub_id = $4,
				period_start = $5,
				period_end = $6,
				access_expires_at = $7,
				cancel_requested_at = $8,
				cancelled_at = NULL,
				updated_at = now()
			WHERE account_id = $1 AND tier_id = $2
			RETURNING `+entryColumns,
			accountID, newTierID, entry.Status, entry.ProviderSubID,
			entry.PeriodStart, entry.PeriodEnd, entry.AccessExpiresAt,
			entry.CancelRequestedAt)
		out, err = scanEntry(row)
		if err != nil {
			return nil, err
		}

		if _, err := tx.Exec(ctx, `
			UPDATE ledger_entries SET
				status = $3,
				provider_sub_id = '',
				updated_at = now()
			WHERE account_id = $1 AND tier_id = $2`,
			accountID, currentTierID, StatusCancelled); err != nil {
			return nil, err
		}
	} else {
		row := tx.QueryRow(ctx, `
			UPDATE ledger_entries SET
				tier_id = $3,
				updated_at = now()
			WHERE account_id = $1 AND tier_id = $2
			RETURNING `+entryColumns,
			accountID, currentTierID, newTierID)
		out, err = scanEntry(row)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var e Entry
	// Period bounds are nullable: an out-of-order subscription.updated can
	// create the row before any period is known.
	var periodStart, periodEnd *time.Time
	err := row.Scan(
		&e.AccountID, &e.TierID, &e.VendorID, &e.Status, &e.ProviderSubID,
		&periodStart, &periodEnd, &e.AccessExpiresAt,
		&e.CancelRequestedAt, &e.CancelledAt, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}
	if periodStart != nil {
		e.PeriodStart = *periodStart
	}
	if periodEnd != nil {
		e.PeriodEnd = *periodEnd
	}
	return &e, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
