// Package logger builds configured slog.Logger instances and provides
// attribute helpers for the identifiers this codebase logs most
// (accounts, vendors, tiers, provider events).
package logger
