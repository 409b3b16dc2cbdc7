package billing

import "context"

// Provider is the minimal billing-provider surface the subscription core
// depends on. The Stripe implementation lives in this package; tests use
// mocks. All methods are pure request/response against the provider API and
// keep no local state.
type Provider interface {
	// CreateCheckoutSession creates a hosted checkout session and returns
	// its redirect URL. Returns ErrPriceArchived when the referenced price
	// is no longer active so callers can provision a replacement and retry.
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)

	// GetSubscription retrieves a subscription with its current billing
	// period bounds.
	GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error)

	// UpdateSubscriptionPrice swaps the subscription onto a new price in
	// place, with no proration; the provider applies the change at the next
	// billing-cycle boundary. Used for downgrades.
	UpdateSubscriptionPrice(ctx context.Context, subscriptionID, priceID string) (*Subscription, error)

	// CancelSubscription cancels a subscription. With atPeriodEnd the
	// subscription keeps running until the paid period lapses; without it
	// the cancellation is immediate and unused time is prorated away.
	// Cancelling an already-cancelled subscription is not an error.
	CancelSubscription(ctx context.Context, subscriptionID string, atPeriodEnd bool) error

	// CreatePrice provisions a recurring price (and product, when needed).
	CreatePrice(ctx context.Context, req CreatePriceRequest) (*Price, error)

	// GetPrice retrieves a price; the Active flag reports archival state.
	GetPrice(ctx context.Context, priceID string) (*Price, error)

	// VerifyWebhook authenticates a raw webhook delivery and returns the
	// normalized event. Returns ErrInvalidSignature without parsing the
	// payload when authentication fails.
	VerifyWebhook(payload []byte, signature string) (*Event, error)
}
