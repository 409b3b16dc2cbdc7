// Package reconciler applies billing-provider webhook events to local state.
//
// The reconciler is the asynchronous half of the billing flow and the source
// of truth for the access ledger: the provider retries delivery on any
// non-2xx response, so every handler must tolerate at-least-once delivery
// and out-of-order arrival. Safety comes from two layers. Each mutation is
// an idempotent upsert keyed by natural identifiers, so replaying an event
// reproduces the same end state. On top of that, a Redis SETNX deduper skips
// events already processed by ID: a short-lived claim is taken before the
// handler runs and made durable only once it succeeds, so a crash mid-event
// delays redelivery instead of swallowing it. When Redis is unavailable the
// deduper degrades to processing, which the idempotent mutations absorb.
//
// Signature verification happens before anything else; an invalid signature
// is a hard rejection with no state mutation. Event types the reconciler
// does not act on are accepted and ignored so the provider stops
// redelivering them.
package reconciler
