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
	"github.com/fanward/fanward/svc/subscription"
)

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) CreateCheckoutSession(ctx context.Context, req billing.CheckoutRequest) (*billing.CheckoutSession, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.CheckoutSession), args.Error(1)
}

func (m *mockProvider) GetSubscription(ctx context.Context, subscriptionID string) (*billing.Subscription, error) {
	args := m.Called(ctx, subscriptionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Subscription), args.Error(1)
}

func (m *mockProvider) UpdateSubscriptionPrice(ctx context.Context, subscriptionID, priceID string) (*billing.Subscription, error) {
	args := m.Called(ctx, subscriptionID, priceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Subscription), args.Error(1)
}

func (m *mockProvider) CancelSubscription(ctx context.Context, subscriptionID string, atPeriodEnd bool) error {
	args := m.Called(ctx, subscriptionID, atPeriodEnd)
	return args.Error(0)
}

func (m *mockProvider) CreatePrice(ctx context.Context, req billing.CreatePriceRequest) (*billing.Price, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Price), args.Error(1)
}

func (m *mockProvider) GetPrice(ctx context.Context, priceID string) (*billing.Price, error) {
	args := m.Called(ctx, priceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Price), args.Error(1)
}

func (m *mockProvider) VerifyWebhook(payload []byte, signature string) (*billing.Event, error) {
	args := m.Called(payload, signature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Event), args.Error(1)
}

// fakeCatalog serves tiers from a map and sells whatever price the tier
// already carries.
type fakeCatalog struct {
	tiers map[uuid.UUID]*catalog.Tier
}

func newFakeCatalog(tiers ...*catalog.Tier) *fakeCatalog {
	f := &fakeCatalog{tiers: make(map[uuid.UUID]*catalog.Tier)}
	for _, tier := range tiers {
		f.tiers[tier.ID] = tier
	}
	return f
}

func (f *fakeCatalog) GetTier(_ context.Context, tierID uuid.UUID) (*catalog.Tier, error) {
	tier, ok := f.tiers[tierID]
	if !ok {
		return nil, catalog.ErrTierNotFound
	}
	cp := *tier
	return &cp, nil
}

func (f *fakeCatalog) SellablePrice(_ context.Context, tier *catalog.Tier) (string, error) {
	return tier.ProviderPriceID, nil
}

type env struct {
	svc      *subscription.Service
	provider *mockProvider
	store    ledger.Store

	accountID uuid.UUID
	vendorID  uuid.UUID
	basic     *catalog.Tier
	premium   *catalog.Tier
	now       time.Time
}

func newEnv(t *testing.T) *env {
	t.Helper()

	e := &env{
		provider:  new(mockProvider),
		store:     ledger.NewMemoryStore(),
		accountID: uuid.New(),
		vendorID:  uuid.New(),
		now:       time.Now().UTC(),
	}
	e.basic = &catalog.Tier{
		ID:              uuid.New(),
		VendorID:        e.vendorID,
		Name:            "Basic",
		PriceCents:      500,
		ProviderPriceID: "price_basic",
		Active:          true,
	}
	e.premium = &catalog.Tier{
		ID:              uuid.New(),
		VendorID:        e.vendorID,
		Name:            "Premium",
		PriceCents:      2000,
		ProviderPriceID: "price_premium",
		Active:          true,
	}
	e.svc = subscription.NewService(
		newFakeCatalog(e.basic, e.premium),
		e.store,
		e.provider,
		subscription.WithReturnURLs("https://app.test/success", "https://app.test/cancel"),
		subscription.WithClock(func() time.Time { return e.now }),
	)
	return e
}

// subscribe seeds a live ledger entry as if the reconciler had processed the
// checkout.
func (e *env) seedEntry(t *testing.T, tier *catalog.Tier, periodEnd time.Time) *ledger.Entry {
	t.Helper()
	entry, err := e.store.ApplyCheckoutCompleted(context.Background(), ledger.CheckoutCompleted{
		AccountID:     e.accountID,
		TierID:        tier.ID,
		VendorID:      e.vendorID,
		ProviderSubID: "sub_live",
		PeriodStart:   periodEnd.AddDate(0, -1, 0),
		PeriodEnd:     periodEnd,
	})
	require.NoError(t, err)
	return entry
}

func TestService_Subscribe(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("returns checkout session with correlation metadata", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)
		e.provider.On("CreateCheckoutSession", mock.Anything, mock.MatchedBy(func(req billing.CheckoutRequest) bool {
			return req.Mode == billing.ModeSubscription &&
				req.PriceID == "price_basic" &&
				req.Metadata[billing.MetaAccountID] == e.accountID.String() &&
				req.Metadata[billing.MetaTierID] == e.basic.ID.String() &&
				req.Metadata[billing.MetaVendorID] == e.vendorID.String()
		})).Return(&billing.CheckoutSession{ID: "cs_1", URL: "https://checkout.test/cs_1"}, nil).Once()

		session, err := e.svc.Subscribe(ctx, e.accountID, e.basic.ID)
		require.NoError(t, err)
		assert.Equal(t, "https://checkout.test/cs_1", session.URL)

		// No ledger entry until the reconciler sees the completion event.
		_, err = e.store.Get(ctx, e.accountID, e.basic.ID)
		assert.ErrorIs(t, err, ledger.ErrEntryNotFound)
		e.provider.AssertExpectations(t)
	})

	t.Run("rejects while unexpired access exists", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)
		e.seedEntry(t, e.basic, e.now.AddDate(0, 1, 0))

		_, err := e.svc.Subscribe(ctx, e.accountID, e.basic.ID)
		assert.ErrorIs(t, err, subscription.ErrAlreadySubscribed)
		e.provider.AssertNotCalled(t, "CreateCheckoutSession", mock.Anything, mock.Anything)
	})

	t.Run("expired entry allows resubscribing", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)
		e.seedEntry(t, e.basic, e.now.AddDate(0, -1, 0))
		e.provider.On("CreateCheckoutSession", mock.Anything, mock.Anything).
			Return(&billing.CheckoutSession{ID: "cs_2", URL: "https://checkout.test/cs_2"}, nil).Once()

		_, err := e.svc.Subscribe(ctx, e.accountID, e.basic.ID)
		require.NoError(t, err)
	})

	t.Run("rejects inactive tier", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)
		e.basic.Active = false
		e.svc = subscription.NewService(newFakeCatalog(e.basic), e.store, e.provider)

		_, err := e.svc.Subscribe(ctx, e.accountID, e.basic.ID)
		assert.ErrorIs(t, err, subscription.ErrTierInactive)
	})

	t.Run("unknown tier", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)
		_, err := e.svc.Subscribe(ctx, e.accountID, uuid.New())
		assert.ErrorIs(t, err, catalog.ErrTierNotFound)
	})
}

func TestService_ChangeTier_Upgrade(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("cancels immediately with proration and opens fresh checkout", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)
		periodEnd := e.now.AddDate(0, 1, 0)
		e.seedEntry(t, e.basic, periodEnd)

		e.provider.On("CancelSubscription", mock.Anything, "sub_live", false).Return(nil).Once()
		e.provider.On("CreateCheckoutSession", mock.Anything, mock.MatchedBy(func(req billing.CheckoutRequest) bool {
			return req.PriceID == "price_premium"
		})).Return(&billing.CheckoutSession{ID: "cs_up", URL: "https://checkout.test/cs_up"}, nil).Once()

		result, err := e.svc.ChangeTier(ctx, e.accountID, e.basic.ID, e.premium.ID)
		require.NoError(t, err)

		assert.Equal(t, subscription.ChangeUpgrade, result.Kind)
		assert.Equal(t, "https://checkout.test/cs_up", result.CheckoutURL)
		assert.True(t, result.AccessExpiresAt.Equal(periodEnd),
			"response carries the previous tier's expiry for legacy benefits")

		// No synchronous ledger write on the upgrade path.
		entry, err := e.store.Get(ctx, e.accountID, e.basic.ID)
		require.NoError(t, err)
		assert.Equal(t, e.basic.ID, entry.TierID)
		assert.Equal(t, ledger.StatusActive, entry.Status)
		e.provider.AssertExpectations(t)
	})

	t.Run("provider cancel failure aborts before checkout", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)
		e.seedEntry(t, e.basic, e.now.AddDate(0, 1, 0))
		e.provider.On("CancelSubscription", mock.Anything, "sub_live", false).
			Return(billing.ErrProviderUnavailable).Once()

		_, err := e.svc.ChangeTier(ctx, e.accountID, e.basic.ID, e.premium.ID)
		assert.ErrorIs(t, err, billing.ErrProviderUnavailable)
		e.provider.AssertNotCalled(t, "CreateCheckoutSession", mock.Anything, mock.Anything)
	})
}

func TestService_ChangeTier_Downgrade(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("updates price in place and swaps tier synchronously", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)
		periodEnd := e.now.AddDate(0, 1, 0)
		e.seedEntry(t, e.premium, periodEnd)

		e.provider.On("UpdateSubscriptionPrice", mock.Anything, "sub_live", "price_basic").
			Return(&billing.Subscription{ID: "sub_live", Status: "active"}, nil).Once()

		result, err := e.svc.ChangeTier(ctx, e.accountID, e.premium.ID, e.basic.ID)
		require.NoError(t, err)

		assert.Equal(t, subscription.ChangeDowngrade, result.Kind)
		assert.Empty(t, result.CheckoutURL)
		require.NotNil(t, result.Entry)
		assert.Equal(t, e.basic.ID, result.Entry.TierID)
		assert.True(t, result.AccessExpiresAt.Equal(periodEnd), "expiry is untouched by a downgrade")

		e.provider.AssertNotCalled(t, "CancelSubscription", mock.Anything, mock.Anything, mock.Anything)
		e.provider.AssertExpectations(t)
	})
}

func TestService_ChangeTier_Rejections(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("same tier", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)
		_, err := e.svc.ChangeTier(ctx, e.accountID, e.basic.ID, e.basic.ID)
		assert.ErrorIs(t, err, subscription.ErrSameTier)
	})

	t.Run("inactive target", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)
		e.premium.Active = false
		e.svc = subscription.NewService(newFakeCatalog(e.basic, e.premium), e.store, e.provider)

		_, err := e.svc.ChangeTier(ctx, e.accountID, e.basic.ID, e.premium.ID)
		assert.ErrorIs(t, err, subscription.ErrTierInactive)
	})

	t.Run("target without provider price", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)
		e.premium.ProviderPriceID = ""
		e.svc = subscription.NewService(newFakeCatalog(e.basic, e.premium), e.store, e.provider)

		_, err := e.svc.ChangeTier(ctx, e.accountID, e.basic.ID, e.premium.ID)
		assert.ErrorIs(t, err, subscription.ErrTierNotSellable)
	})

	t.Run("cross vendor", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)
		other := &catalog.Tier{
			ID:              uuid.New(),
			VendorID:        uuid.New(),
			Name:            "Other",
			PriceCents:      900,
			ProviderPriceID: "price_other",
			Active:          true,
		}
		e.svc = subscription.NewService(newFakeCatalog(e.basic, e.premium, other), e.store, e.provider)
		e.seedEntry(t, e.basic, e.now.AddDate(0, 1, 0))

		_, err := e.svc.ChangeTier(ctx, e.accountID, e.basic.ID, other.ID)
		assert.ErrorIs(t, err, subscription.ErrCrossVendorChange)
	})

	t.Run("entry without provider subscription", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)
		_, err := e.store.ApplySubscriptionUpdated(ctx, ledger.SubscriptionUpdate{
			AccountID: e.accountID,
			TierID:    e.basic.ID,
			VendorID:  e.vendorID,
			Status:    ledger.StatusActive,
			PeriodEnd: e.now.AddDate(0, 1, 0),
		})
		require.NoError(t, err)

		_, err = e.svc.ChangeTier(ctx, e.accountID, e.basic.ID, e.premium.ID)
		assert.ErrorIs(t, err, subscription.ErrNoProviderSubscription)
	})

	t.Run("no current entry", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)
		_, err := e.svc.ChangeTier(ctx, e.accountID, e.basic.ID, e.premium.ID)
		assert.ErrorIs(t, err, ledger.ErrEntryNotFound)
	})
}

func TestService_Cancel(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("schedules provider cancel and stamps the request", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)
		periodEnd := e.now.AddDate(0, 1, 0)
		e.seedEntry(t, e.basic, periodEnd)

		e.provider.On("CancelSubscription", mock.Anything, "sub_live", true).Return(nil).Once()

		entry, err := e.svc.Cancel(ctx, e.accountID, e.basic.ID)
		require.NoError(t, err)

		require.NotNil(t, entry.CancelRequestedAt)
		assert.True(t, entry.CancelRequestedAt.Equal(e.now))
		assert.Nil(t, entry.CancelledAt, "confirmation belongs to the reconciler")
		assert.Equal(t, ledger.StatusActive, entry.Status)
		assert.True(t, entry.AccessExpiresAt.Equal(periodEnd), "access runs to the paid period end")
		e.provider.AssertExpectations(t)
	})

	t.Run("provider failure leaves no local stamp", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)
		e.seedEntry(t, e.basic, e.now.AddDate(0, 1, 0))
		e.provider.On("CancelSubscription", mock.Anything, "sub_live", true).
			Return(billing.ErrProviderUnavailable).Once()

		_, err := e.svc.Cancel(ctx, e.accountID, e.basic.ID)
		assert.ErrorIs(t, err, billing.ErrProviderUnavailable)

		entry, err := e.store.Get(ctx, e.accountID, e.basic.ID)
		require.NoError(t, err)
		assert.Nil(t, entry.CancelRequestedAt)
	})

	t.Run("no provider subscription", func(t *testing.T) {
		t.Parallel()

		e := newEnv(t)
		_, err := e.store.ApplySubscriptionUpdated(ctx, ledger.SubscriptionUpdate{
			AccountID: e.accountID,
			TierID:    e.basic.ID,
			VendorID:  e.vendorID,
			Status:    ledger.StatusActive,
			PeriodEnd: e.now.AddDate(0, 1, 0),
		})
		require.NoError(t, err)

		_, err = e.svc.Cancel(ctx, e.accountID, e.basic.ID)
		assert.ErrorIs(t, err, subscription.ErrNoProviderSubscription)
	})
}
