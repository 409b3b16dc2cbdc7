package logger

import "log/slog"

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// AccountID records the subscriber account identifier under "account_id".
func AccountID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("account_id", id)
}

// VendorID records the vendor identifier under "vendor_id".
func VendorID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("vendor_id", id)
}

// TierID records the tier identifier under "tier_id".
func TierID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("tier_id", id)
}

// EventID records a billing provider event identifier under "event_id".
func EventID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("event_id", id)
}

// PaymentIntentID records a provider payment intent reference.
func PaymentIntentID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("payment_intent_id", id)
}
