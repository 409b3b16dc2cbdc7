// Package subscription orchestrates subscriber-initiated lifecycle actions:
// subscribe, change tier, cancel.
//
// The orchestrator is the synchronous half of the billing flow. It drives the
// billing provider and performs only the local writes that are safe to apply
// optimistically; everything else lands in the access ledger asynchronously
// when the reconciler observes the provider's events.
//
// Tier changes are asymmetric on purpose. An upgrade tears the current
// provider subscription down immediately, prorating unused time away, and
// sends the subscriber through a fresh checkout: they must not keep paying
// the old lower rate beyond the period they already bought. A downgrade
// mutates the existing provider subscription in place with no proration, so
// it takes effect at the next cycle boundary, and swaps the tier on the
// ledger entry synchronously: a subscriber who already paid for the current
// period keeps it untouched.
package subscription
