// Package config loads typed configuration structs from environment
// variables.
//
// Configuration is described by plain structs tagged with `env` field tags
// (github.com/caarlos0/env). A local .env file, if present, is loaded once
// before the first parse so development setups work without exporting
// variables manually.
//
//	type BillingConfig struct {
//		StripeKey     string `env:"STRIPE_SECRET_KEY,required"`
//		WebhookSecret string `env:"STRIPE_WEBHOOK_SECRET,required"`
//	}
//
//	var cfg BillingConfig
//	config.MustLoad(&cfg)
//
// Each distinct struct type is parsed at most once per process; repeated
// Load calls for the same type return the cached value.
package config
