package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"service", "method", "path", "status"},
	)

	HttpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)

	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "wa_queue_depth",
			Help: "Items currently buffered per in-memory queue",
		},
		[]string{"queue"},
	)

	SendsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wa_sends_total",
			Help: "Outbound template sends by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	SendLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wa_send_latency_seconds",
			Help:    "Latency of upstream provider send calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	RateLimitWait = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wa_ratelimit_wait_seconds",
			Help:    "Time spent waiting for a sender permit",
			Buckets: []float64{.001, .01, .05, .1, .5, 1, 2, 5, 10},
		},
		[]string{"provider"},
	)

	LogRecordsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wa_log_records_dropped_total",
			Help: "Send log records evicted from the full log channel",
		},
	)

	LogWriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wa_log_write_failures_total",
			Help: "Send log records that failed to persist",
		},
	)

	WebhookIngestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wa_webhook_ingest_total",
			Help: "Webhook payloads seen at the HTTP boundary by result",
		},
		[]string{"provider", "result"},
	)

	WebhookDispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wa_webhook_dispatch_total",
			Help: "Webhook payloads dispatched by result",
		},
		[]string{"result"},
	)

	ResolverMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wa_resolver_misses_total",
			Help: "Provider message ids that matched no stored record",
		},
	)
)
