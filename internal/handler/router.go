// internal/handler/router.go
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/unclebandit/wa-dispatch/internal/controller"
	"github.com/unclebandit/wa-dispatch/internal/observability"
)

type Routes struct {
	ServiceName string
	Campaigns   *controller.CampaignController
	Webhooks    *controller.WebhookController
	RateLimits  *controller.RateLimitController
	Templates   *controller.TemplateController
	DB          observability.Pinger
}

// NewRouter mounts every HTTP route. Controllers left nil are skipped so the
// worker process can serve only health and metrics.
func NewRouter(rt Routes) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(observability.MetricsMiddleware(rt.ServiceName))

	r.Get("/health/live", observability.HealthLiveHandler)
	r.Get("/health/ready", observability.HealthReadyHandler(rt.DB))
	r.Handle("/metrics", promhttp.Handler())

	if rt.Campaigns != nil {
		r.Get("/campaigns/{id}", rt.Campaigns.GetCampaignDetails)
		r.Post("/campaigns/{id}/dispatch", rt.Campaigns.Dispatch)
	}
	if rt.Webhooks != nil {
		r.Get("/webhooks/{provider}", rt.Webhooks.Verify)
		r.Post("/webhooks/{provider}", rt.Webhooks.Receive)
	}
	if rt.RateLimits != nil {
		r.Get("/rate-limits/{senderKey}", rt.RateLimits.GetLimits)
		r.Put("/rate-limits/{senderKey}", rt.RateLimits.UpdateLimits)
	}
	if rt.Templates != nil {
		r.Post("/templates/registration-header", rt.Templates.RegistrationHeader)
	}
	return r
}
