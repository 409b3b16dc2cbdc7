// Package ledger is the persisted record of a subscriber's paid relationship
// to a vendor tier.
//
// The single most important invariant: an entry's AccessExpiresAt always
// equals the end of the last billing period the provider reported as paid,
// regardless of lifecycle status. A subscriber who cancels keeps access
// until the period they already paid for elapses, so no operation in this
// package ever shrinks AccessExpiresAt.
//
// Entries are unique per (account, tier) and never physically deleted;
// cancellation is a status and timestamp change. Because upgrades create a
// fresh entry for the new tier while the old tier's entry runs out its paid
// window, one account can hold several live entries for one vendor.
// "Current access to a vendor" is therefore defined here as the entry with
// the greatest AccessExpiresAt across all of the vendor's tiers: the paid
// window decides, not entry recency.
//
// All writes are idempotent upserts keyed by natural identifiers. That, not
// locking, is what makes the ledger safe under webhook retries, duplicate
// delivery and out-of-order arrival.
package ledger
