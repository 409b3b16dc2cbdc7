package ledger_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fanward/fanward/pkg/ledger"
)

func TestStatusFromProvider(t *testing.T) {
	t.Parallel()

	tests := []struct {
		provider string
		want     ledger.Status
	}{
		{"active", ledger.StatusActive},
		{"trialing", ledger.StatusActive},
		{"past_due", ledger.StatusPastDue},
		{"unpaid", ledger.StatusPastDue},
		{"incomplete", ledger.StatusPastDue},
		{"canceled", ledger.StatusCancelled},
		{"cancelled", ledger.StatusCancelled},
		{"incomplete_expired", ledger.StatusCancelled},
		{"paused", ledger.StatusPaused},
		{"something_new", ledger.StatusPastDue},
		{"", ledger.StatusPastDue},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ledger.StatusFromProvider(tt.provider))
		})
	}
}

func TestEntry_HasAccess(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()

	t.Run("status does not gate access", func(t *testing.T) {
		t.Parallel()

		entry := &ledger.Entry{
			Status:          ledger.StatusCancelled,
			AccessExpiresAt: now.Add(time.Hour),
		}
		assert.True(t, entry.HasAccess(now))
	})

	t.Run("expired window denies access even when active", func(t *testing.T) {
		t.Parallel()

		entry := &ledger.Entry{
			Status:          ledger.StatusActive,
			AccessExpiresAt: now.Add(-time.Minute),
		}
		assert.False(t, entry.HasAccess(now))
	})

	t.Run("boundary instant is expired", func(t *testing.T) {
		t.Parallel()

		entry := &ledger.Entry{AccessExpiresAt: now}
		assert.False(t, entry.HasAccess(now))
	})
}

func TestEntry_CancelPending(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()

	assert.False(t, (&ledger.Entry{}).CancelPending())
	assert.True(t, (&ledger.Entry{CancelRequestedAt: &now}).CancelPending())
	assert.False(t, (&ledger.Entry{CancelRequestedAt: &now, CancelledAt: &now}).CancelPending())
}
