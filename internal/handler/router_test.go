package handler_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/unclebandit/wa-dispatch/internal/controller"
	"github.com/unclebandit/wa-dispatch/internal/handler"
	"github.com/unclebandit/wa-dispatch/internal/model"
	"github.com/unclebandit/wa-dispatch/internal/queue"
	"github.com/unclebandit/wa-dispatch/internal/webhook"
)

func TestRouterServesHealthAndMetrics(t *testing.T) {
	r := handler.NewRouter(handler.Routes{ServiceName: "test"})

	for _, path := range []string{"/health/live", "/health/ready", "/metrics"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestRouterSkipsMissingControllers(t *testing.T) {
	r := handler.NewRouter(handler.Routes{ServiceName: "test"})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/webhooks/meta", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouterWebhookRoute(t *testing.T) {
	q := queue.NewBoundedQueue[model.WebhookPayload]("test_webhook", 4)
	r := handler.NewRouter(handler.Routes{
		ServiceName: "test",
		Webhooks:    &controller.WebhookController{Ingestor: webhook.NewIngestor(q, time.Millisecond)},
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/webhooks/pinnacle", strings.NewReader(`{"object":"x"}`)))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, q.Len())
}
