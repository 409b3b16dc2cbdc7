package reconciler

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/fanward/fanward/pkg/billing"
	"github.com/fanward/fanward/pkg/ledger"
	"github.com/fanward/fanward/pkg/logger"
	"github.com/fanward/fanward/pkg/orders"
)

// BillingSource is the slice of the billing provider the reconciler needs:
// webhook authentication and subscription lookups for period bounds that the
// checkout event itself does not carry.
type BillingSource interface {
	VerifyWebhook(payload []byte, signature string) (*billing.Event, error)
	GetSubscription(ctx context.Context, subscriptionID string) (*billing.Subscription, error)
}

// OrderRecorder records payment-mode checkouts.
type OrderRecorder interface {
	RecordCheckout(ctx context.Context, checkout orders.CompletedCheckout) (*orders.Order, error)
}

// EventClaimer skips already-processed events. Claim returns false for a
// duplicate; Settle makes the claim durable after the handler succeeded;
// Release undoes it after a failed handler so the retry is processed. The
// Redis-backed Deduper implements it.
type EventClaimer interface {
	Claim(ctx context.Context, eventID string) bool
	Settle(ctx context.Context, eventID string)
	Release(ctx context.Context, eventID string)
}

// Service reconciles webhook events into the ledger and order records.
type Service struct {
	provider BillingSource
	store    ledger.Store
	orders   OrderRecorder
	deduper  EventClaimer
	log      *slog.Logger

	now func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithDeduper enables event de-duplication.
func WithDeduper(d EventClaimer) Option {
	return func(s *Service) { s.deduper = d }
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithClock overrides the time source. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates the reconciler. Panics on nil dependencies to fail fast
// during initialization.
func NewService(provider BillingSource, store ledger.Store, recorder OrderRecorder, opts ...Option) *Service {
	if provider == nil {
		panic("reconciler: BillingSource is required")
	}
	if store == nil {
		panic("reconciler: ledger.Store is required")
	}
	if recorder == nil {
		panic("reconciler: OrderRecorder is required")
	}

	s := &Service{
		provider: provider,
		store:    store,
		orders:   recorder,
		log:      slog.Default(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handle authenticates and applies one webhook delivery. A nil return means
// the delivery is settled and the provider must not retry; any error means
// nothing irreversible happened and a retry is wanted.
func (s *Service) Handle(ctx context.Context, payload []byte, signature string) error {
	event, err := s.provider.VerifyWebhook(payload, signature)
	if err != nil {
		return err
	}

	log := s.log.With(
		logger.EventID(event.ID),
		slog.String("event_type", event.ProviderEvent))

	if event.Type == billing.EventIgnored {
		log.DebugContext(ctx, "ignoring event type")
		return nil
	}

	if s.deduper != nil && !s.deduper.Claim(ctx, event.ID) {
		log.InfoContext(ctx, "skipping duplicate event")
		return nil
	}

	if err := s.dispatch(ctx, log, event); err != nil {
		if s.deduper != nil {
			s.deduper.Release(ctx, event.ID)
		}
		log.ErrorContext(ctx, "event processing failed", logger.Error(err))
		return err
	}
	if s.deduper != nil {
		s.deduper.Settle(ctx, event.ID)
	}
	return nil
}

func (s *Service) dispatch(ctx context.Context, log *slog.Logger, event *billing.Event) error {
	switch event.Type {
	case billing.EventCheckoutCompleted:
		return s.checkoutCompleted(ctx, log, event.Checkout)
	case billing.EventSubscriptionUpdated:
		return s.subscriptionUpdated(ctx, log, event.Subscription)
	case billing.EventSubscriptionDeleted:
		return s.subscriptionDeleted(ctx, log, event.Subscription)
	case billing.EventPaymentFailed:
		return s.paymentFailed(ctx, log, event.Invoice)
	default:
		log.DebugContext(ctx, "ignoring event type")
		return nil
	}
}

func (s *Service) checkoutCompleted(ctx context.Context, log *slog.Logger, checkout *billing.CheckoutSession) error {
	if checkout == nil {
		log.WarnContext(ctx, "checkout event without session payload")
		return nil
	}
	switch checkout.Mode {
	case billing.ModePayment:
		return s.paymentCheckout(ctx, log, checkout)
	default:
		return s.subscriptionCheckout(ctx, log, checkout)
	}
}

func (s *Service) subscriptionCheckout(ctx context.Context, log *slog.Logger, checkout *billing.CheckoutSession) error {
	ref, ok := parseCorrelation(checkout.Metadata)
	if !ok {
		// Not initiated through this system; nothing to correlate to.
		log.WarnContext(ctx, "checkout without correlation metadata",
			slog.String("session_id", checkout.ID))
		return nil
	}
	if checkout.SubscriptionID == "" {
		log.WarnContext(ctx, "subscription checkout without subscription reference",
			slog.String("session_id", checkout.ID))
		return nil
	}

	// The completed-checkout event does not carry period bounds; the
	// subscription object does.
	sub, err := s.provider.GetSubscription(ctx, checkout.SubscriptionID)
	if err != nil {
		return err
	}

	_, err = s.store.ApplyCheckoutCompleted(ctx, ledger.CheckoutCompleted{
		AccountID:     ref.accountID,
		TierID:        ref.tierID,
		VendorID:      ref.vendorID,
		ProviderSubID: sub.ID,
		PeriodStart:   sub.CurrentPeriodStart,
		PeriodEnd:     sub.CurrentPeriodEnd,
	})
	if err != nil {
		return err
	}

	log.InfoContext(ctx, "subscription checkout recorded",
		logger.AccountID(ref.accountID.String()),
		logger.TierID(ref.tierID.String()))
	return nil
}

func (s *Service) paymentCheckout(ctx context.Context, log *slog.Logger, checkout *billing.CheckoutSession) error {
	// Payment checkouts carry no tier; the buyer and product identify the
	// purchase.
	accountID, err := uuid.Parse(checkout.Metadata[billing.MetaAccountID])
	if err != nil {
		log.WarnContext(ctx, "checkout without correlation metadata",
			slog.String("session_id", checkout.ID))
		return nil
	}
	productID, err := uuid.Parse(checkout.Metadata[billing.MetaProductID])
	if err != nil {
		log.WarnContext(ctx, "payment checkout without product metadata",
			slog.String("session_id", checkout.ID))
		return nil
	}
	vendorID, _ := uuid.Parse(checkout.Metadata[billing.MetaVendorID])
	quantity, _ := strconv.ParseInt(checkout.Metadata[billing.MetaQuantity], 10, 64)

	order, err := s.orders.RecordCheckout(ctx, orders.CompletedCheckout{
		AccountID:       accountID,
		VendorID:        vendorID,
		ProductID:       productID,
		Quantity:        quantity,
		PaymentIntentID: checkout.PaymentIntentID,
		AmountTotal:     checkout.AmountTotal,
		Currency:        checkout.Currency,
	})
	if err != nil {
		return err
	}

	log.InfoContext(ctx, "order recorded",
		slog.String("order_id", order.ID.String()),
		logger.PaymentIntentID(checkout.PaymentIntentID))
	return nil
}

func (s *Service) subscriptionUpdated(ctx context.Context, log *slog.Logger, sub *billing.Subscription) error {
	if sub == nil {
		log.WarnContext(ctx, "subscription event without payload")
		return nil
	}
	ref, ok := parseCorrelation(sub.Metadata)
	if !ok {
		log.WarnContext(ctx, "subscription without correlation metadata",
			slog.String("subscription_id", sub.ID))
		return nil
	}

	var cancelRequestedAt *time.Time
	if sub.CancelAtPeriodEnd {
		at := s.now()
		if sub.CancelledAt != nil {
			at = *sub.CancelledAt
		}
		cancelRequestedAt = &at
	}

	_, err := s.store.ApplySubscriptionUpdated(ctx, ledger.SubscriptionUpdate{
		AccountID:         ref.accountID,
		TierID:            ref.tierID,
		VendorID:          ref.vendorID,
		ProviderSubID:     sub.ID,
		Status:            ledger.StatusFromProvider(sub.Status),
		PeriodStart:       sub.CurrentPeriodStart,
		PeriodEnd:         sub.CurrentPeriodEnd,
		CancelRequestedAt: cancelRequestedAt,
	})
	return err
}

func (s *Service) subscriptionDeleted(ctx context.Context, log *slog.Logger, sub *billing.Subscription) error {
	if sub == nil {
		log.WarnContext(ctx, "subscription event without payload")
		return nil
	}
	ref, ok := parseCorrelation(sub.Metadata)
	if !ok {
		log.WarnContext(ctx, "subscription without correlation metadata",
			slog.String("subscription_id", sub.ID))
		return nil
	}

	cancelledAt := s.now()
	if sub.CancelledAt != nil {
		cancelledAt = *sub.CancelledAt
	}

	_, err := s.store.ApplySubscriptionDeleted(ctx, ref.accountID, ref.tierID, cancelledAt)
	if errors.Is(err, ledger.ErrEntryNotFound) {
		// Deletion of a subscription this system never recorded; retrying
		// will not conjure the entry.
		log.WarnContext(ctx, "deleted subscription has no ledger entry",
			slog.String("subscription_id", sub.ID))
		return nil
	}
	return err
}

func (s *Service) paymentFailed(ctx context.Context, log *slog.Logger, invoice *billing.Invoice) error {
	if invoice == nil || invoice.SubscriptionID == "" {
		// One-off invoice, not tied to a subscription.
		return nil
	}

	_, err := s.store.MarkPastDue(ctx, invoice.SubscriptionID)
	if errors.Is(err, ledger.ErrEntryNotFound) {
		log.WarnContext(ctx, "failed payment for unknown subscription",
			slog.String("subscription_id", invoice.SubscriptionID))
		return nil
	}
	if err != nil {
		return err
	}

	log.InfoContext(ctx, "entry marked past due",
		slog.String("subscription_id", invoice.SubscriptionID))
	return nil
}

// correlation is the identity triple every checkout carries in its metadata.
type correlation struct {
	accountID uuid.UUID
	tierID    uuid.UUID
	vendorID  uuid.UUID
}

func parseCorrelation(metadata map[string]string) (correlation, bool) {
	accountID, err := uuid.Parse(metadata[billing.MetaAccountID])
	if err != nil {
		return correlation{}, false
	}
	tierID, err := uuid.Parse(metadata[billing.MetaTierID])
	if err != nil {
		return correlation{}, false
	}
	// VendorID is optional for subscription events; the ledger keys on
	// (account, tier).
	vendorID, _ := uuid.Parse(metadata[billing.MetaVendorID])
	return correlation{accountID: accountID, tierID: tierID, vendorID: vendorID}, true
}
