// Package webhook accepts provider webhooks and dispatches them off the
// request path.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	appErrors "github.com/unclebandit/wa-dispatch/internal/errors"
	"github.com/unclebandit/wa-dispatch/internal/model"
	"github.com/unclebandit/wa-dispatch/internal/observability"
)

type PayloadSink interface {
	EnqueueTimeout(ctx context.Context, item model.WebhookPayload, timeout time.Duration) error
}

// Ingestor is the HTTP-side half of the pipeline: it checks the body is JSON,
// copies it and hands it to the dispatch queue.
type Ingestor struct {
	Queue   PayloadSink
	Timeout time.Duration
}

func NewIngestor(q PayloadSink, timeout time.Duration) *Ingestor {
	return &Ingestor{Queue: q, Timeout: timeout}
}

// Ingest returns ErrInvalidPayload for a body that is not JSON and
// ErrQueueFull when no room frees up within the timeout.
func (i *Ingestor) Ingest(ctx context.Context, provider string, body []byte) error {
	if !json.Valid(body) {
		observability.WebhookIngestTotal.WithLabelValues(provider, "invalid").Inc()
		return appErrors.ErrInvalidPayload
	}

	p := model.WebhookPayload{
		Provider:   provider,
		Body:       bytes.Clone(body),
		ReceivedAt: time.Now().UTC(),
	}
	if err := i.Queue.EnqueueTimeout(ctx, p, i.Timeout); err != nil {
		observability.WebhookIngestTotal.WithLabelValues(provider, "rejected").Inc()
		return err
	}
	observability.WebhookIngestTotal.WithLabelValues(provider, "accepted").Inc()
	return nil
}
