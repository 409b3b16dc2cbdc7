package billing

import "errors"

var (
	// ErrProviderUnavailable marks transient failures (network errors,
	// provider 5xx). Synchronous callers surface these as retryable; the
	// webhook endpoint answers non-2xx so the provider redelivers.
	ErrProviderUnavailable = errors.New("billing provider temporarily unavailable")

	// ErrPriceArchived is returned when the provider rejects an operation
	// because the referenced price has been archived. Callers recover by
	// provisioning a replacement price, not by failing the user operation.
	ErrPriceArchived = errors.New("billing price is archived")

	ErrPriceNotFound        = errors.New("billing price not found")
	ErrSubscriptionNotFound = errors.New("billing subscription not found")

	// ErrInvalidSignature means the webhook payload could not be
	// authenticated. Hard reject: no state may be mutated.
	ErrInvalidSignature = errors.New("webhook signature verification failed")

	ErrNoCheckoutURL    = errors.New("no checkout URL returned by provider")
	ErrMissingAPIKey    = errors.New("billing provider API key is required")
	ErrMissingSecret    = errors.New("billing provider webhook secret is required")
	ErrMissingPriceID   = errors.New("price ID is required")
	ErrMissingSubID     = errors.New("subscription ID is required")
	ErrSubscriptionBare = errors.New("billing subscription has no items")
)
