package billing

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	pkgbilling "github.com/fanward/fanward/pkg/billing"
	"github.com/fanward/fanward/pkg/catalog"
	"github.com/fanward/fanward/pkg/ledger"
	"github.com/fanward/fanward/pkg/logger"
	"github.com/fanward/fanward/svc/subscription"
)

// AccountResolver extracts the authenticated account from the request. The
// auth layer owns how identity travels; this module only consumes it.
type AccountResolver func(r *http.Request) (uuid.UUID, error)

// SubscriptionService exposes subscribe, change-tier and cancel endpoints.
type SubscriptionService struct {
	svc     *subscription.Service
	account AccountResolver
	log     *slog.Logger
}

func NewSubscriptionService(svc *subscription.Service, account AccountResolver, log *slog.Logger) *SubscriptionService {
	if svc == nil {
		panic("billing: subscription.Service is required")
	}
	if account == nil {
		panic("billing: AccountResolver is required")
	}
	if log == nil {
		log = slog.Default()
	}
	return &SubscriptionService{svc: svc, account: account, log: log}
}

func (s *SubscriptionService) Handle() http.Handler {
	r := chi.NewRouter()
	r.Post("/subscribe", s.subscribe)
	r.Post("/change-tier", s.changeTier)
	r.Post("/cancel", s.cancel)
	return r
}

type subscribeRequest struct {
	TierID uuid.UUID `json:"tier_id"`
}

type checkoutResponse struct {
	CheckoutURL string `json:"checkout_url"`
}

func (s *SubscriptionService) subscribe(w http.ResponseWriter, r *http.Request) {
	accountID, err := s.account(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TierID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "tier_id is required")
		return
	}

	session, err := s.svc.Subscribe(r.Context(), accountID, req.TierID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, checkoutResponse{CheckoutURL: session.URL})
}

type changeTierRequest struct {
	CurrentTierID uuid.UUID `json:"current_tier_id"`
	TargetTierID  uuid.UUID `json:"target_tier_id"`
}

type changeTierResponse struct {
	Kind            string    `json:"kind"`
	CheckoutURL     string    `json:"checkout_url,omitempty"`
	AccessExpiresAt time.Time `json:"access_expires_at"`
}

func (s *SubscriptionService) changeTier(w http.ResponseWriter, r *http.Request) {
	accountID, err := s.account(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req changeTierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil ||
		req.CurrentTierID == uuid.Nil || req.TargetTierID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "current_tier_id and target_tier_id are required")
		return
	}

	result, err := s.svc.ChangeTier(r.Context(), accountID, req.CurrentTierID, req.TargetTierID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, changeTierResponse{
		Kind:            string(result.Kind),
		CheckoutURL:     result.CheckoutURL,
		AccessExpiresAt: result.AccessExpiresAt,
	})
}

type cancelRequest struct {
	TierID uuid.UUID `json:"tier_id"`
}

type cancelResponse struct {
	AccessExpiresAt   time.Time  `json:"access_expires_at"`
	CancelRequestedAt *time.Time `json:"cancel_requested_at"`
}

func (s *SubscriptionService) cancel(w http.ResponseWriter, r *http.Request) {
	accountID, err := s.account(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TierID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "tier_id is required")
		return
	}

	entry, err := s.svc.Cancel(r.Context(), accountID, req.TierID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cancelResponse{
		AccessExpiresAt:   entry.AccessExpiresAt,
		CancelRequestedAt: entry.CancelRequestedAt,
	})
}

func (s *SubscriptionService) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, catalog.ErrTierNotFound), errors.Is(err, ledger.ErrEntryNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, subscription.ErrAlreadySubscribed), errors.Is(err, subscription.ErrSameTier):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, subscription.ErrTierInactive),
		errors.Is(err, subscription.ErrTierNotSellable),
		errors.Is(err, subscription.ErrCrossVendorChange),
		errors.Is(err, subscription.ErrNoProviderSubscription):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, pkgbilling.ErrProviderUnavailable):
		writeError(w, http.StatusBadGateway, "billing provider unavailable")
	default:
		s.log.ErrorContext(r.Context(), "subscription action failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
