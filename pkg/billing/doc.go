// Package billing wraps the external recurring-billing provider (Stripe)
// behind a local Provider interface.
//
// The package owns all SDK types: callers see only the normalized domain
// types defined here (CheckoutSession, Subscription, Price, Event), so
// provider API changes stay contained in the adapter. Webhook payloads are
// decoded into local wire structs rather than SDK structs for the same
// reason.
//
// Every call can fail transiently (network, provider 5xx) or terminally
// (bad request, missing resource, archived price). The error sentinels in
// errors.go distinguish the two so callers can decide between retry,
// recovery and rejection.
package billing
