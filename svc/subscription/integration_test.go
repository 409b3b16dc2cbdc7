package subscription_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fanward/fanward/pkg/billing"
	"github.com/fanward/fanward/pkg/catalog"
	"github.com/fanward/fanward/pkg/ledger"
	"github.com/fanward/fanward/pkg/orders"
	"github.com/fanward/fanward/svc/reconciler"
	"github.com/fanward/fanward/svc/subscription"
)

// TestUpgradeFlow walks the full upgrade path: the orchestrator tears the
// old subscription down and opens a checkout, the reconciler later turns the
// completion event into the new ledger entry.
func TestUpgradeFlow(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	accountID := uuid.New()
	vendorID := uuid.New()
	basic := &catalog.Tier{
		ID: uuid.New(), VendorID: vendorID, Name: "Basic",
		PriceCents: 500, ProviderPriceID: "price_basic", Active: true,
	}
	pro := &catalog.Tier{
		ID: uuid.New(), VendorID: vendorID, Name: "Pro",
		PriceCents: 1500, ProviderPriceID: "price_pro", Active: true,
	}

	provider := new(mockProvider)
	store := ledger.NewMemoryStore()
	orchestrator := subscription.NewService(newFakeCatalog(basic, pro), store, provider,
		subscription.WithClock(func() time.Time { return now }))

	recorder := orders.NewRecorder(orders.NewMemoryStore(), catalog.NewMemoryStore(), store, nil)
	rec := reconciler.NewService(provider, store, recorder,
		reconciler.WithClock(func() time.Time { return now }))

	// Live Basic subscription, paid through next month.
	basicEnd := now.AddDate(0, 1, 0)
	_, err := store.ApplyCheckoutCompleted(ctx, ledger.CheckoutCompleted{
		AccountID:     accountID,
		TierID:        basic.ID,
		VendorID:      vendorID,
		ProviderSubID: "sub_basic",
		PeriodStart:   now.AddDate(0, -1, 0),
		PeriodEnd:     basicEnd,
	})
	require.NoError(t, err)

	provider.On("CancelSubscription", mock.Anything, "sub_basic", false).Return(nil).Once()
	provider.On("CreateCheckoutSession", mock.Anything, mock.Anything).
		Return(&billing.CheckoutSession{ID: "cs_pro", URL: "https://checkout.test/cs_pro"}, nil).Once()

	result, err := orchestrator.ChangeTier(ctx, accountID, basic.ID, pro.ID)
	require.NoError(t, err)
	require.Equal(t, subscription.ChangeUpgrade, result.Kind)
	assert.NotEmpty(t, result.CheckoutURL)
	assert.True(t, result.AccessExpiresAt.Equal(basicEnd))

	// No Pro entry until the completion event arrives.
	_, err = store.Get(ctx, accountID, pro.ID)
	require.ErrorIs(t, err, ledger.ErrEntryNotFound)

	// Provider confirms the new checkout asynchronously.
	proEnd := now.AddDate(0, 2, 0)
	provider.On("VerifyWebhook", mock.Anything, "sig").Return(&billing.Event{
		ID:   "evt_pro",
		Type: billing.EventCheckoutCompleted,
		Checkout: &billing.CheckoutSession{
			ID:             "cs_pro",
			Mode:           billing.ModeSubscription,
			SubscriptionID: "sub_pro",
			Metadata: map[string]string{
				billing.MetaAccountID: accountID.String(),
				billing.MetaTierID:    pro.ID.String(),
				billing.MetaVendorID:  vendorID.String(),
			},
		},
	}, nil).Once()
	provider.On("GetSubscription", mock.Anything, "sub_pro").Return(&billing.Subscription{
		ID:                 "sub_pro",
		Status:             "active",
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   proEnd,
	}, nil).Once()

	require.NoError(t, rec.Handle(ctx, []byte("{}"), "sig"))

	entry, err := store.Get(ctx, accountID, pro.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusActive, entry.Status)
	assert.True(t, entry.AccessExpiresAt.Equal(proEnd))

	// The vendor relationship now resolves to Pro.
	current, err := store.CurrentAccess(ctx, accountID, vendorID)
	require.NoError(t, err)
	assert.Equal(t, pro.ID, current.TierID)
	provider.AssertExpectations(t)
}

// TestCancelFlow walks the two-phase cancellation: optimistic local stamp,
// provider confirmation via the deleted event, access intact throughout.
func TestCancelFlow(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	accountID := uuid.New()
	vendorID := uuid.New()
	tier := &catalog.Tier{
		ID: uuid.New(), VendorID: vendorID, Name: "Basic",
		PriceCents: 500, ProviderPriceID: "price_basic", Active: true,
	}

	provider := new(mockProvider)
	store := ledger.NewMemoryStore()
	orchestrator := subscription.NewService(newFakeCatalog(tier), store, provider,
		subscription.WithClock(func() time.Time { return now }))
	recorder := orders.NewRecorder(orders.NewMemoryStore(), catalog.NewMemoryStore(), store, nil)
	rec := reconciler.NewService(provider, store, recorder,
		reconciler.WithClock(func() time.Time { return now }))

	periodEnd := now.AddDate(0, 0, 20)
	_, err := store.ApplyCheckoutCompleted(ctx, ledger.CheckoutCompleted{
		AccountID:     accountID,
		TierID:        tier.ID,
		VendorID:      vendorID,
		ProviderSubID: "sub_basic",
		PeriodStart:   now.AddDate(0, -1, 0),
		PeriodEnd:     periodEnd,
	})
	require.NoError(t, err)

	// Phase 1: optimistic request.
	provider.On("CancelSubscription", mock.Anything, "sub_basic", true).Return(nil).Once()
	entry, err := orchestrator.Cancel(ctx, accountID, tier.ID)
	require.NoError(t, err)
	assert.True(t, entry.CancelPending())
	assert.Equal(t, ledger.StatusActive, entry.Status)

	// Phase 2: the provider's terminal confirmation.
	provider.On("VerifyWebhook", mock.Anything, "sig").Return(&billing.Event{
		ID:   "evt_del",
		Type: billing.EventSubscriptionDeleted,
		Subscription: &billing.Subscription{
			ID:          "sub_basic",
			Status:      "canceled",
			CancelledAt: &now,
			Metadata: map[string]string{
				billing.MetaAccountID: accountID.String(),
				billing.MetaTierID:    tier.ID.String(),
				billing.MetaVendorID:  vendorID.String(),
			},
		},
	}, nil).Once()

	require.NoError(t, rec.Handle(ctx, []byte("{}"), "sig"))

	entry, err = store.Get(ctx, accountID, tier.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusCancelled, entry.Status)
	assert.False(t, entry.CancelPending())
	assert.True(t, entry.AccessExpiresAt.Equal(periodEnd), "paid window survives cancellation")
	assert.True(t, entry.HasAccess(now))
	provider.AssertExpectations(t)
}
