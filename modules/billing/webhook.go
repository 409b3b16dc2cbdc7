package billing

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fanward/fanward/pkg/billing"
	"github.com/fanward/fanward/pkg/logger"
)

// maxWebhookBody caps webhook payload reads. Provider events are a few KB;
// anything near the cap is not a legitimate delivery.
const maxWebhookBody = 1 << 20

// EventHandler applies one verified webhook delivery.
type EventHandler interface {
	Handle(ctx context.Context, payload []byte, signature string) error
}

// WebhookService receives provider event deliveries.
type WebhookService struct {
	events EventHandler
	log    *slog.Logger
}

func NewWebhookService(events EventHandler, log *slog.Logger) *WebhookService {
	if events == nil {
		panic("billing: EventHandler is required")
	}
	if log == nil {
		log = slog.Default()
	}
	return &WebhookService{events: events, log: log}
}

func (s *WebhookService) Handle() http.Handler {
	r := chi.NewRouter()
	r.Post("/", s.receive)
	return r
}

// receive maps the reconciler's outcome onto the provider's retry protocol:
// 2xx settles the delivery, 400 rejects a bad signature without retry, 500
// asks for redelivery.
func (s *WebhookService) receive(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		s.log.ErrorContext(r.Context(), "failed to read webhook body", logger.Error(err))
		http.Error(w, "failed to read body", http.StatusInternalServerError)
		return
	}

	err = s.events.Handle(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	switch {
	case errors.Is(err, billing.ErrInvalidSignature):
		http.Error(w, "invalid signature", http.StatusBadRequest)
	case err != nil:
		http.Error(w, "event processing failed", http.StatusInternalServerError)
	default:
		w.WriteHeader(http.StatusOK)
	}
}
