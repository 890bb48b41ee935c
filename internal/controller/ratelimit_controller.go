package controller

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/unclebandit/wa-dispatch/internal/observability"
	"github.com/unclebandit/wa-dispatch/internal/ratelimit"
)

type RateLimitController struct {
	Limiter *ratelimit.Limiter
}

// UpdateLimits replaces the bucket for a sender key such as
// "META_CLOUD|1000".
func (c *RateLimitController) UpdateLimits(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "senderKey")

	var body ratelimit.Limits
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if err := c.Limiter.UpdateLimits(key, body.PermitsPerSecond, body.Burst); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	observability.GetLogger(r.Context()).Info("sender limits updated",
		zap.String("sender_key", key),
		zap.Float64("permits_per_second", body.PermitsPerSecond),
		zap.Int("burst", body.Burst),
	)
	writeJSON(w, http.StatusOK, map[string]any{"sender_key": key, "limits": c.Limiter.LimitsFor(key)})
}

func (c *RateLimitController) GetLimits(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "senderKey")
	writeJSON(w, http.StatusOK, map[string]any{"sender_key": key, "limits": c.Limiter.LimitsFor(key)})
}
