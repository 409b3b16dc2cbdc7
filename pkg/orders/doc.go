// Package orders records one-time purchases from completed checkout events.
//
// An order is created exactly once per completed checkout, keyed by the
// provider's payment-intent reference; duplicate webhook deliveries return
// the existing order. Access is re-verified at fulfillment time, not trusted
// from checkout time, because the subscription can lapse between the two.
// When re-verification fails the order is still created (the payment was
// already captured) and tagged with an audit note for manual review instead
// of being silently fulfilled or dropped.
//
// Stock moves only here, on the terminal event, never at checkout
// initiation. The decrement is recorded on the order (StockApplied) so
// provider retries after a partial failure finish the remaining steps
// without double-decrementing.
package orders
