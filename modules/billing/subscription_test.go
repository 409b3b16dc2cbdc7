package billing_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	modbilling "github.com/fanward/fanward/modules/billing"
	"github.com/fanward/fanward/pkg/billing"
	"github.com/fanward/fanward/pkg/catalog"
	"github.com/fanward/fanward/pkg/ledger"
	"github.com/fanward/fanward/svc/subscription"
)

// stubProvider serves the single checkout call these handler tests need.
type stubProvider struct {
	session *billing.CheckoutSession
	err     error
}

func (s *stubProvider) CreateCheckoutSession(context.Context, billing.CheckoutRequest) (*billing.CheckoutSession, error) {
	return s.session, s.err
}

func (s *stubProvider) GetSubscription(context.Context, string) (*billing.Subscription, error) {
	return nil, billing.ErrSubscriptionNotFound
}

func (s *stubProvider) UpdateSubscriptionPrice(context.Context, string, string) (*billing.Subscription, error) {
	return nil, billing.ErrSubscriptionNotFound
}

func (s *stubProvider) CancelSubscription(context.Context, string, bool) error { return nil }

func (s *stubProvider) CreatePrice(context.Context, billing.CreatePriceRequest) (*billing.Price, error) {
	return nil, billing.ErrProviderUnavailable
}

func (s *stubProvider) GetPrice(context.Context, string) (*billing.Price, error) {
	return nil, billing.ErrPriceNotFound
}

func (s *stubProvider) VerifyWebhook([]byte, string) (*billing.Event, error) {
	return nil, billing.ErrInvalidSignature
}

type stubTiers struct {
	tiers map[uuid.UUID]*catalog.Tier
}

func (s *stubTiers) GetTier(_ context.Context, tierID uuid.UUID) (*catalog.Tier, error) {
	tier, ok := s.tiers[tierID]
	if !ok {
		return nil, catalog.ErrTierNotFound
	}
	return tier, nil
}

func (s *stubTiers) SellablePrice(_ context.Context, tier *catalog.Tier) (string, error) {
	return tier.ProviderPriceID, nil
}

func TestSubscriptionService(t *testing.T) {
	t.Parallel()

	accountID := uuid.New()
	tier := &catalog.Tier{
		ID:              uuid.New(),
		VendorID:        uuid.New(),
		Name:            "Gold",
		PriceCents:      1500,
		ProviderPriceID: "price_gold",
		Active:          true,
	}

	newHandler := func(provider billing.Provider, store ledger.Store) http.Handler {
		svc := subscription.NewService(
			&stubTiers{tiers: map[uuid.UUID]*catalog.Tier{tier.ID: tier}},
			store,
			provider,
		)
		resolver := func(r *http.Request) (uuid.UUID, error) {
			return uuid.Parse(r.Header.Get("X-Account-ID"))
		}
		return modbilling.Router(modbilling.RouterOptions{
			Subscription: modbilling.NewSubscriptionService(svc, resolver, nil),
		})
	}

	post := func(t *testing.T, handler http.Handler, path string, body any, account string) *httptest.ResponseRecorder {
		t.Helper()
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
		if account != "" {
			req.Header.Set("X-Account-ID", account)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	t.Run("subscribe returns checkout url", func(t *testing.T) {
		t.Parallel()

		provider := &stubProvider{session: &billing.CheckoutSession{ID: "cs_1", URL: "https://checkout.test/cs_1"}}
		handler := newHandler(provider, ledger.NewMemoryStore())

		rec := post(t, handler, "/subscription/subscribe", map[string]any{"tier_id": tier.ID}, accountID.String())
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			CheckoutURL string `json:"checkout_url"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "https://checkout.test/cs_1", resp.CheckoutURL)
	})

	t.Run("missing identity is unauthorized", func(t *testing.T) {
		t.Parallel()

		handler := newHandler(&stubProvider{}, ledger.NewMemoryStore())
		rec := post(t, handler, "/subscription/subscribe", map[string]any{"tier_id": tier.ID}, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("unknown tier is 404", func(t *testing.T) {
		t.Parallel()

		handler := newHandler(&stubProvider{}, ledger.NewMemoryStore())
		rec := post(t, handler, "/subscription/subscribe", map[string]any{"tier_id": uuid.New()}, accountID.String())
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("existing access is a conflict", func(t *testing.T) {
		t.Parallel()

		store := ledger.NewMemoryStore()
		_, err := store.ApplyCheckoutCompleted(context.Background(), ledger.CheckoutCompleted{
			AccountID:     accountID,
			TierID:        tier.ID,
			VendorID:      tier.VendorID,
			ProviderSubID: "sub_1",
			PeriodEnd:     time.Now().UTC().AddDate(0, 1, 0),
		})
		require.NoError(t, err)

		handler := newHandler(&stubProvider{}, store)
		rec := post(t, handler, "/subscription/subscribe", map[string]any{"tier_id": tier.ID}, accountID.String())
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("provider outage maps to bad gateway", func(t *testing.T) {
		t.Parallel()

		handler := newHandler(&stubProvider{err: errors.Join(billing.ErrProviderUnavailable, errors.New("503"))}, ledger.NewMemoryStore())
		rec := post(t, handler, "/subscription/subscribe", map[string]any{"tier_id": tier.ID}, accountID.String())
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})

	t.Run("cancel without entry is 404", func(t *testing.T) {
		t.Parallel()

		handler := newHandler(&stubProvider{}, ledger.NewMemoryStore())
		rec := post(t, handler, "/subscription/cancel", map[string]any{"tier_id": tier.ID}, accountID.String())
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("malformed body is 400", func(t *testing.T) {
		t.Parallel()

		handler := newHandler(&stubProvider{}, ledger.NewMemoryStore())
		req := httptest.NewRequest(http.MethodPost, "/subscription/subscribe", bytes.NewReader([]byte("{")))
		req.Header.Set("X-Account-ID", accountID.String())
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
