package reconciler

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fanward/fanward/pkg/logger"
)

const dedupeKeyPrefix = "billing:webhook:event:"

// DefaultDedupeTTL covers the provider's redelivery window with margin.
const DefaultDedupeTTL = 24 * time.Hour

// claimTTL bounds the in-flight claim: a handler that crashes between Claim
// and Settle blocks redelivery only this long, not the full dedupe window.
const claimTTL = 5 * time.Minute

// Deduper skips webhook events that were already processed, keyed by the
// provider's event ID. A claim is held briefly while the event is in flight
// and upgraded to a durable mark only once the handler succeeds. It is
// advisory: a Redis failure means the event is processed again, which the
// ledger's idempotent mutations absorb.
type Deduper struct {
	client redis.UniversalClient
	ttl    time.Duration
	log    *slog.Logger
}

// NewDeduper creates a Deduper. A zero ttl uses DefaultDedupeTTL.
func NewDeduper(client redis.UniversalClient, ttl time.Duration, log *slog.Logger) *Deduper {
	if client == nil {
		panic("reconciler: redis client is required")
	}
	if ttl <= 0 {
		ttl = DefaultDedupeTTL
	}
	if log == nil {
		log = slog.Default()
	}
	return &Deduper{client: client, ttl: ttl, log: log}
}

// Claim atomically marks an event ID as in flight. It returns false when
// another delivery already claimed or settled it. Errors degrade to true so
// the event is processed rather than dropped.
func (d *Deduper) Claim(ctx context.Context, eventID string) bool {
	ok, err := d.client.SetNX(ctx, dedupeKeyPrefix+eventID, 1, claimTTL).Result()
	if err != nil {
		d.log.WarnContext(ctx, "event dedupe unavailable, processing anyway",
			logger.Error(err),
			logger.EventID(eventID))
		return true
	}
	return ok
}

// Settle upgrades the in-flight claim to a durable mark spanning the
// provider's redelivery window. Called only after the handler succeeded.
func (d *Deduper) Settle(ctx context.Context, eventID string) {
	if err := d.client.Set(ctx, dedupeKeyPrefix+eventID, 1, d.ttl).Err(); err != nil {
		d.log.WarnContext(ctx, "failed to settle event claim",
			logger.Error(err),
			logger.EventID(eventID))
	}
}

// Release removes the claim after a failed handler so the provider's retry
// is processed instead of skipped.
func (d *Deduper) Release(ctx context.Context, eventID string) {
	if err := d.client.Del(ctx, dedupeKeyPrefix+eventID).Err(); err != nil {
		d.log.WarnContext(ctx, "failed to release event claim",
			logger.Error(err),
			logger.EventID(eventID))
	}
}
