// internal/controller/campaign_controller.go
package controller

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	appErrors "github.com/unclebandit/wa-dispatch/internal/errors"
	"github.com/unclebandit/wa-dispatch/internal/observability"
	"github.com/unclebandit/wa-dispatch/internal/service"
)

type CampaignController struct {
	DispatchService *service.DispatchService
	CampaignService *service.CampaignService
}

// Dispatch queues one template send per recipient. Validation and payload
// build errors come back as 400 with a per-recipient list and nothing is
// queued.
func (c *CampaignController) Dispatch(w http.ResponseWriter, r *http.Request) {
	id, err := campaignID(r)
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	var body service.DispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if len(body.Recipients) == 0 {
		http.Error(w, "recipients must not be empty", http.StatusBadRequest)
		return
	}

	result, err := c.DispatchService.Dispatch(r.Context(), id, body)
	if err != nil {
		var notSendable *appErrors.ErrCampaignNotSendable
		switch {
		case errors.Is(err, appErrors.ErrValidation):
			writeJSON(w, http.StatusBadRequest, result)
		case errors.Is(err, appErrors.ErrNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		case errors.As(err, &notSendable):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.Is(err, appErrors.ErrQueueClosed):
			http.Error(w, "service shutting down", http.StatusServiceUnavailable)
		default:
			observability.GetLogger(r.Context()).Error("dispatch failed", zap.Int64("campaign_id", id), zap.Error(err))
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusAccepted, result)
}

func (c *CampaignController) GetCampaignDetails(w http.ResponseWriter, r *http.Request) {
	id, err := campaignID(r)
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	details, err := c.CampaignService.GetCampaignDetailsWithStats(r.Context(), id)
	if err != nil {
		if errors.Is(err, appErrors.ErrNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, "failed to fetch campaign: "+err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, details)
}

func campaignID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
