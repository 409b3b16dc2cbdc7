package billing

type StripeConfig struct {
	APIKey        string `env:"STRIPE_SECRET_KEY,required"`     // APIKey is the Stripe secret key (sk_test_... / sk_live_...).
	WebhookSecret string `env:"STRIPE_WEBHOOK_SECRET,required"` // WebhookSecret is the endpoint signing secret (whsec_...).
}

func (c StripeConfig) Validate() error {
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	if c.WebhookSecret == "" {
		return ErrMissingSecret
	}
	return nil
}
