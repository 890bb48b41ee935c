package controller

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	appErrors "github.com/unclebandit/wa-dispatch/internal/errors"
	"github.com/unclebandit/wa-dispatch/internal/observability"
	"github.com/unclebandit/wa-dispatch/internal/webhook"
)

const maxWebhookBody = 1 << 20

type WebhookController struct {
	Ingestor    *webhook.Ingestor
	VerifyToken string
}

// Verify answers the subscription handshake by echoing hub.challenge.
func (c *WebhookController) Verify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("hub.mode") != "subscribe" || c.VerifyToken == "" || q.Get("hub.verify_token") != c.VerifyToken {
		http.Error(w, "verification failed", http.StatusForbidden)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, q.Get("hub.challenge"))
}

// Receive only checks the body is JSON; interpretation happens in the
// dispatch worker.
func (c *WebhookController) Receive(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "webhook body too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "could not read body", http.StatusBadRequest)
		return
	}

	err = c.Ingestor.Ingest(r.Context(), provider, body)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusOK)
	case errors.Is(err, appErrors.ErrInvalidPayload):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, appErrors.ErrQueueFull), errors.Is(err, appErrors.ErrQueueClosed):
		observability.GetLogger(r.Context()).Warn("webhook rejected, ingestion queue unavailable",
			zap.String("provider", provider), zap.Error(err))
		w.Header().Set("Retry-After", "5")
		http.Error(w, "webhook queue full", http.StatusServiceUnavailable)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
