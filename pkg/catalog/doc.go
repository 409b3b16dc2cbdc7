// Package catalog holds vendor tiers and products, and enforces the
// mutation guards that protect in-flight billing: a tier's price cannot
// change while it has active subscribers, and a tier with any ledger history
// cannot be deleted, only deactivated. It also provisions the provider-side
// price for each tier, replacing archived prices instead of failing the
// calling operation.
package catalog
