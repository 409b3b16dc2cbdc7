package billing

import "time"

// CheckoutMode selects between recurring and one-time checkout sessions.
type CheckoutMode string

const (
	ModeSubscription CheckoutMode = "subscription"
	ModePayment      CheckoutMode = "payment"
)

// Metadata keys attached to every checkout session so asynchronous webhook
// events can be correlated back to local records.
const (
	MetaAccountID = "account_id"
	MetaVendorID  = "vendor_id"
	MetaTierID    = "tier_id"
	MetaProductID = "product_id"
	MetaQuantity  = "quantity"
)

// CheckoutRequest describes a hosted checkout session to create.
type CheckoutRequest struct {
	Mode       CheckoutMode
	PriceID    string // provider price reference
	Quantity   int64  // defaults to 1 when zero
	Email      string // pre-fill billing email if known
	SuccessURL string
	CancelURL  string
	// Metadata must carry the correlation keys above; it is copied onto the
	// resulting subscription or payment intent by the provider.
	Metadata map[string]string
}

// CheckoutSession is a normalized hosted checkout session.
type CheckoutSession struct {
	ID              string
	URL             string
	Mode            CheckoutMode
	PaymentIntentID string // set for payment mode
	SubscriptionID  string // set for subscription mode (after completion)
	AmountTotal     int64  // smallest currency unit
	Currency        string
	Metadata        map[string]string
}

// Subscription is the provider's recurring subscription, normalized. Status
// keeps the provider vocabulary (active, past_due, canceled, paused, ...);
// mapping to the local lifecycle status happens in the ledger.
type Subscription struct {
	ID                 string
	Status             string
	PriceID            string
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	CancelAtPeriodEnd  bool
	CancelledAt        *time.Time
	Metadata           map[string]string
}

// CreatePriceRequest describes a recurring price to provision.
type CreatePriceRequest struct {
	ProductName string // used when the provider product does not exist yet
	ProductID   string // reuse an existing provider product when set
	UnitAmount  int64  // smallest currency unit
	Currency    string // ISO 4217, lowercase
	Interval    string // "month" or "year"
}

// Price is a normalized provider price.
type Price struct {
	ID         string
	ProductID  string
	UnitAmount int64
	Currency   string
	Interval   string
	Active     bool
}

// Invoice carries the fields of a provider invoice the reconciler needs.
type Invoice struct {
	ID             string
	SubscriptionID string
	AmountDue      int64
	Currency       string
}

// EventType is the normalized billing event vocabulary. Everything the
// reconciler does not act on maps to EventIgnored, which must be accepted
// with a 2xx so the provider stops redelivering.
type EventType string

const (
	EventCheckoutCompleted   EventType = "checkout_completed"
	EventSubscriptionUpdated EventType = "subscription_updated"
	EventSubscriptionDeleted EventType = "subscription_deleted"
	EventPaymentFailed       EventType = "payment_failed"
	EventIgnored             EventType = "ignored"
)

// Event is a verified, normalized webhook event. Exactly one of Checkout,
// Subscription, Invoice is non-nil depending on Type.
type Event struct {
	ID            string
	Type          EventType
	ProviderEvent string // original provider event name, for logging

	Checkout     *CheckoutSession
	Subscription *Subscription
	Invoice      *Invoice
}
