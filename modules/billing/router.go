// Package billing exposes the billing HTTP surface: the provider webhook
// endpoint and the subscriber-facing subscription actions.
package billing

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type Mountable interface {
	Handle() http.Handler
}

// RouterOptions configures which services to mount in the billing module.
// Each service is optional and will only be mounted if provided.
type RouterOptions struct {
	// Webhook receives provider event deliveries.
	Webhook Mountable
	// Subscription handles subscriber-initiated actions.
	Subscription Mountable
}

// Router creates the billing module router.
//
// Example:
//
//	r := chi.NewRouter()
//	r.Mount("/billing", billing.Router(billing.RouterOptions{
//	    Webhook:      billing.NewWebhookService(rec, logger),
//	    Subscription: billing.NewSubscriptionService(svc, resolver, logger),
//	}))
func Router(opts RouterOptions) chi.Router {
	r := chi.NewRouter()

	if opts.Webhook != nil {
		r.Mount("/webhook", opts.Webhook.Handle())
	}
	if opts.Subscription != nil {
		r.Mount("/subscription", opts.Subscription.Handle())
	}

	return r
}
