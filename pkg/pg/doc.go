// Package pg provides PostgreSQL connectivity helpers: a retrying pool
// constructor, goose migration runner, health probe, and error classifiers
// used by the ledger, catalog and order stores.
package pg
