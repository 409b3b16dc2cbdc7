package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

// StripeProvider implements Provider on the official Stripe SDK.
type StripeProvider struct {
	api    *client.API
	config StripeConfig
}

// NewStripeProvider creates a Stripe-backed billing provider. The client is
// instance-scoped; the global stripe.Key is deliberately left untouched.
func NewStripeProvider(cfg StripeConfig) (*StripeProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &StripeProvider{
		api:    client.New(cfg.APIKey, nil),
		config: cfg,
	}, nil
}

func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	if req.PriceID == "" {
		return nil, ErrMissingPriceID
	}

	qty := req.Quantity
	if qty <= 0 {
		qty = 1
	}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(req.Mode)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Price:    stripe.String(req.PriceID),
			Quantity: stripe.Int64(qty),
		}},
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
	}
	params.Context = ctx

	if req.Email != "" {
		params.CustomerEmail = stripe.String(req.Email)
	}

	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	// Copy correlation metadata onto the object the webhook events will
	// reference: the subscription for recurring checkouts, the payment
	// intent for one-time purchases.
	switch req.Mode {
	case ModeSubscription:
		params.SubscriptionData = &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: req.Metadata,
		}
	case ModePayment:
		params.PaymentIntentData = &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: req.Metadata,
		}
	}

	sess, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, p.wrapError(err)
	}
	if sess.URL == "" {
		return nil, ErrNoCheckoutURL
	}

	return mapCheckoutSession(sess), nil
}

func (p *StripeProvider) GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error) {
	if subscriptionID == "" {
		return nil, ErrMissingSubID
	}

	params := &stripe.SubscriptionParams{}
	params.Context = ctx

	sub, err := p.api.Subscriptions.Get(subscriptionID, params)
	if err != nil {
		return nil, p.wrapError(err)
	}

	return mapSubscription(sub)
}

func (p *StripeProvider) UpdateSubscriptionPrice(ctx context.Context, subscriptionID, priceID string) (*Subscription, error) {
	if subscriptionID == "" {
		return nil, ErrMissingSubID
	}
	if priceID == "" {
		return nil, ErrMissingPriceID
	}

	current, err := p.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	itemID, err := p.subscriptionItemID(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	// No proration: the subscriber already paid for the current period, so
	// the new price takes effect at the next cycle boundary.
	params := &stripe.SubscriptionParams{
		Items: []*stripe.SubscriptionItemsParams{{
			ID:    stripe.String(itemID),
			Price: stripe.String(priceID),
		}},
		ProrationBehavior: stripe.String("none"),
	}
	params.Context = ctx

	updated, err := p.api.Subscriptions.Update(subscriptionID, params)
	if err != nil {
		return nil, p.wrapError(err)
	}

	mapped, err := mapSubscription(updated)
	if err != nil {
		return nil, err
	}
	// The provider reports the current period unchanged after a no-proration
	// price swap; keep the previous bounds when it omits them.
	if mapped.CurrentPeriodEnd.IsZero() {
		mapped.CurrentPeriodStart = current.CurrentPeriodStart
		mapped.CurrentPeriodEnd = current.CurrentPeriodEnd
	}
	return mapped, nil
}

func (p *StripeProvider) CancelSubscription(ctx context.Context, subscriptionID string, atPeriodEnd bool) error {
	if subscriptionID == "" {
		return ErrMissingSubID
	}

	if atPeriodEnd {
		params := &stripe.SubscriptionParams{
			CancelAtPeriodEnd: stripe.Bool(true),
		}
		params.Context = ctx
		if _, err := p.api.Subscriptions.Update(subscriptionID, params); err != nil {
			return p.wrapCancelError(err)
		}
		return nil
	}

	// Immediate teardown for upgrades: the remainder of the period is
	// prorated away so the subscriber cannot ride the old price.
	params := &stripe.SubscriptionCancelParams{
		Prorate: stripe.Bool(true),
	}
	params.Context = ctx
	if _, err := p.api.Subscriptions.Cancel(subscriptionID, params); err != nil {
		return p.wrapCancelError(err)
	}
	return nil
}

func (p *StripeProvider) CreatePrice(ctx context.Context, req CreatePriceRequest) (*Price, error) {
	params := &stripe.PriceParams{
		Currency:   stripe.String(strings.ToLower(req.Currency)),
		UnitAmount: stripe.Int64(req.UnitAmount),
		Recurring: &stripe.PriceRecurringParams{
			Interval: stripe.String(req.Interval),
		},
	}
	params.Context = ctx

	if req.ProductID != "" {
		params.Product = stripe.String(req.ProductID)
	} else {
		params.ProductData = &stripe.PriceProductDataParams{
			Name: stripe.String(req.ProductName),
		}
	}

	price, err := p.api.Prices.New(params)
	if err != nil {
		return nil, p.wrapError(err)
	}

	return mapPrice(price), nil
}

func (p *StripeProvider) GetPrice(ctx context.Context, priceID string) (*Price, error) {
	if priceID == "" {
		return nil, ErrMissingPriceID
	}

	params := &stripe.PriceParams{}
	params.Context = ctx

	price, err := p.api.Prices.Get(priceID, params)
	if err != nil {
		return nil, p.wrapError(err)
	}

	return mapPrice(price), nil
}

// subscriptionItemID returns the single item ID of a subscription. Tiers map
// to exactly one recurring item.
func (p *StripeProvider) subscriptionItemID(ctx context.Context, subscriptionID string) (string, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx

	sub, err := p.api.Subscriptions.Get(subscriptionID, params)
	if err != nil {
		return "", p.wrapError(err)
	}
	if sub.Items == nil || len(sub.Items.Data) == 0 {
		return "", ErrSubscriptionBare
	}
	return sub.Items.Data[0].ID, nil
}

// wrapError classifies SDK errors into the package taxonomy.
func (p *StripeProvider) wrapError(err error) error {
	if err == nil {
		return nil
	}

	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		// Transport-level failure before a provider response existed.
		return errors.Join(ErrProviderUnavailable, err)
	}

	if stripeErr.HTTPStatusCode >= 500 {
		return errors.Join(ErrProviderUnavailable, err)
	}

	msg := strings.ToLower(stripeErr.Msg)
	switch {
	case stripeErr.Code == stripe.ErrorCodeResourceMissing &&
		strings.Contains(strings.ToLower(stripeErr.Param), "price"):
		return errors.Join(ErrPriceNotFound, err)
	case stripeErr.Code == stripe.ErrorCodeResourceMissing &&
		strings.Contains(msg, "subscription"):
		return errors.Join(ErrSubscriptionNotFound, err)
	case stripeErr.Code == stripe.ErrorCodeResourceMissing:
		return errors.Join(ErrPriceNotFound, err)
	case strings.Contains(msg, "inactive") || strings.Contains(msg, "archived"):
		return errors.Join(ErrPriceArchived, err)
	default:
		return fmt.Errorf("stripe: %w", err)
	}
}

// wrapCancelError treats "already cancelled" as success so retried cancel
// requests stay idempotent.
func (p *StripeProvider) wrapCancelError(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && strings.Contains(strings.ToLower(stripeErr.Msg), "canceled subscription") {
		return nil
	}
	return p.wrapError(err)
}

// Mapping from SDK objects to local types.

func mapCheckoutSession(s *stripe.CheckoutSession) *CheckoutSession {
	if s == nil {
		return nil
	}

	cs := &CheckoutSession{
		ID:          s.ID,
		URL:         s.URL,
		Mode:        CheckoutMode(s.Mode),
		AmountTotal: s.AmountTotal,
		Currency:    string(s.Currency),
		Metadata:    s.Metadata,
	}
	if s.PaymentIntent != nil {
		cs.PaymentIntentID = s.PaymentIntent.ID
	}
	if s.Subscription != nil {
		cs.SubscriptionID = s.Subscription.ID
	}
	return cs
}

func mapSubscription(s *stripe.Subscription) (*Subscription, error) {
	if s == nil {
		return nil, ErrSubscriptionNotFound
	}
	if s.Items == nil || len(s.Items.Data) == 0 {
		return nil, ErrSubscriptionBare
	}

	item := s.Items.Data[0]
	sub := &Subscription{
		ID:                 s.ID,
		Status:             string(s.Status),
		CancelAtPeriodEnd:  s.CancelAtPeriodEnd,
		CurrentPeriodStart: time.Unix(item.CurrentPeriodStart, 0).UTC(),
		CurrentPeriodEnd:   time.Unix(item.CurrentPeriodEnd, 0).UTC(),
		Metadata:           s.Metadata,
	}
	if item.Price != nil {
		sub.PriceID = item.Price.ID
	}
	if s.CanceledAt > 0 {
		t := time.Unix(s.CanceledAt, 0).UTC()
		sub.CancelledAt = &t
	}
	return sub, nil
}

func mapPrice(p *stripe.Price) *Price {
	if p == nil {
		return nil
	}

	price := &Price{
		ID:         p.ID,
		UnitAmount: p.UnitAmount,
		Currency:   string(p.Currency),
		Active:     p.Active,
	}
	if p.Recurring != nil {
		price.Interval = string(p.Recurring.Interval)
	}
	if p.Product != nil {
		price.ProductID = p.Product.ID
	}
	return price
}
