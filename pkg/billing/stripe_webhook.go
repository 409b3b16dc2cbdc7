package billing

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// Provider event names the reconciler acts on. Everything else is accepted
// and ignored so the provider does not retry indefinitely.
const (
	eventCheckoutCompleted   = "checkout.session.completed"
	eventSubscriptionUpdated = "customer.subscription.updated"
	eventSubscriptionDeleted = "customer.subscription.deleted"
	eventInvoiceFailed       = "invoice.payment_failed"
)

// VerifyWebhook authenticates and normalizes a raw webhook delivery.
// Signature verification happens before any payload field is trusted; an
// invalid signature returns ErrInvalidSignature and nothing else.
func (p *StripeProvider) VerifyWebhook(payload []byte, signature string) (*Event, error) {
	if len(payload) == 0 || signature == "" {
		return nil, ErrInvalidSignature
	}

	// IgnoreAPIVersionMismatch: the signing scheme is version-independent
	// and deliveries may be pinned to an older API version than the SDK.
	event, err := webhook.ConstructEventWithOptions(payload, signature, p.config.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, errors.Join(ErrInvalidSignature, err)
	}

	return normalizeEvent(&event)
}

func normalizeEvent(event *stripe.Event) (*Event, error) {
	out := &Event{
		ID:            event.ID,
		ProviderEvent: string(event.Type),
	}

	switch string(event.Type) {
	case eventCheckoutCompleted:
		var sess wireCheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return nil, fmt.Errorf("decode checkout.session: %w", err)
		}
		out.Type = EventCheckoutCompleted
		out.Checkout = sess.normalize()

	case eventSubscriptionUpdated, eventSubscriptionDeleted:
		var sub wireSubscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("decode subscription: %w", err)
		}
		out.Type = EventSubscriptionUpdated
		if string(event.Type) == eventSubscriptionDeleted {
			out.Type = EventSubscriptionDeleted
		}
		out.Subscription = sub.normalize()

	case eventInvoiceFailed:
		var inv wireInvoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return nil, fmt.Errorf("decode invoice: %w", err)
		}
		out.Type = EventPaymentFailed
		out.Invoice = inv.normalize()

	default:
		out.Type = EventIgnored
	}

	return out, nil
}

// Wire structs decode only the fields this core consumes. Webhook payloads
// are decoded locally instead of through SDK structs so deliveries pinned to
// older provider API versions keep parsing.

type wireCheckoutSession struct {
	ID            string            `json:"id"`
	Mode          string            `json:"mode"`
	PaymentIntent string            `json:"payment_intent"`
	Subscription  string            `json:"subscription"`
	AmountTotal   int64             `json:"amount_total"`
	Currency      string            `json:"currency"`
	Metadata      map[string]string `json:"metadata"`
}

func (w wireCheckoutSession) normalize() *CheckoutSession {
	return &CheckoutSession{
		ID:              w.ID,
		Mode:            CheckoutMode(w.Mode),
		PaymentIntentID: w.PaymentIntent,
		SubscriptionID:  w.Subscription,
		AmountTotal:     w.AmountTotal,
		Currency:        w.Currency,
		Metadata:        w.Metadata,
	}
}

type wireSubscription struct {
	ID                 string `json:"id"`
	Status             string `json:"status"`
	CancelAtPeriodEnd  bool   `json:"cancel_at_period_end"`
	CanceledAt         int64  `json:"canceled_at"`
	CurrentPeriodStart int64  `json:"current_period_start"`
	CurrentPeriodEnd   int64  `json:"current_period_end"`
	Items              struct {
		Data []struct {
			ID                 string `json:"id"`
			CurrentPeriodStart int64  `json:"current_period_start"`
			CurrentPeriodEnd   int64  `json:"current_period_end"`
			Price              struct {
				ID string `json:"id"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
	Metadata map[string]string `json:"metadata"`
}

func (w wireSubscription) normalize() *Subscription {
	sub := &Subscription{
		ID:                w.ID,
		Status:            w.Status,
		CancelAtPeriodEnd: w.CancelAtPeriodEnd,
		Metadata:          w.Metadata,
	}

	// Recent provider API versions report period bounds per item; older ones
	// on the subscription itself. Take whichever is present.
	start, end := w.CurrentPeriodStart, w.CurrentPeriodEnd
	if len(w.Items.Data) > 0 {
		item := w.Items.Data[0]
		if item.CurrentPeriodEnd > 0 {
			start, end = item.CurrentPeriodStart, item.CurrentPeriodEnd
		}
		sub.PriceID = item.Price.ID
	}
	if start > 0 {
		sub.CurrentPeriodStart = time.Unix(start, 0).UTC()
	}
	if end > 0 {
		sub.CurrentPeriodEnd = time.Unix(end, 0).UTC()
	}

	if w.CanceledAt > 0 {
		t := time.Unix(w.CanceledAt, 0).UTC()
		sub.CancelledAt = &t
	}
	return sub
}

type wireInvoice struct {
	ID           string `json:"id"`
	Subscription string `json:"subscription"`
	AmountDue    int64  `json:"amount_due"`
	Currency     string `json:"currency"`
	Parent       struct {
		SubscriptionDetails struct {
			Subscription string `json:"subscription"`
		} `json:"subscription_details"`
	} `json:"parent"`
}

func (w wireInvoice) normalize() *Invoice {
	subID := w.Subscription
	if subID == "" {
		// Newer API versions nest the subscription reference under parent.
		subID = w.Parent.SubscriptionDetails.Subscription
	}
	return &Invoice{
		ID:             w.ID,
		SubscriptionID: subID,
		AmountDue:      w.AmountDue,
		Currency:       w.Currency,
	}
}
