package webhook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	appErrors "github.com/unclebandit/wa-dispatch/internal/errors"
	"github.com/unclebandit/wa-dispatch/internal/model"
	"github.com/unclebandit/wa-dispatch/internal/observability"
)

const (
	FailureDispatch    = "dispatch_error"
	FailurePanic       = "panic"
	FailureInterrupted = "interrupted"
)

type PayloadSource interface {
	Dequeue(ctx context.Context) (model.WebhookPayload, error)
}

// Dispatcher interprets one webhook payload.
type Dispatcher interface {
	Dispatch(ctx context.Context, p model.WebhookPayload) error
}

type FailureStore interface {
	Insert(ctx context.Context, f *model.FailureRecord) error
}

type DispatchWorker struct {
	Queue      PayloadSource
	Dispatcher Dispatcher
	Failures   FailureStore
}

func NewDispatchWorker(q PayloadSource, d Dispatcher, failures FailureStore) *DispatchWorker {
	return &DispatchWorker{Queue: q, Dispatcher: d, Failures: failures}
}

// Start runs until ctx is cancelled or the queue closes.
func (w *DispatchWorker) Start(ctx context.Context) {
	observability.Log.Info("webhook dispatch worker started")
	defer observability.Log.Info("webhook dispatch worker stopped")

	for {
		p, err := w.Queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, appErrors.ErrQueueClosed) || ctx.Err() != nil {
				return
			}
			observability.Log.Warn("webhook dequeue failed", zap.Error(err))
			continue
		}
		w.Handle(ctx, p)
	}
}

// Handle dispatches a private copy of p. Any error or panic ends up in the
// failure log together with the raw bytes.
func (w *DispatchWorker) Handle(ctx context.Context, p model.WebhookPayload) {
	p.Body = bytes.Clone(p.Body)

	ctx, span := otel.Tracer("wa-dispatch").Start(ctx, "DispatchWebhook")
	defer span.End()
	span.SetAttributes(attribute.String("provider", p.Provider))

	failureType, err := w.dispatch(ctx, p)
	if err == nil {
		observability.WebhookDispatchTotal.WithLabelValues("dispatched").Inc()
		return
	}

	span.RecordError(err)
	if ctx.Err() != nil {
		failureType = FailureInterrupted
	}
	observability.WebhookDispatchTotal.WithLabelValues("failed").Inc()
	w.recordFailure(ctx, p, failureType, err)
}

func (w *DispatchWorker) dispatch(ctx context.Context, p model.WebhookPayload) (failureType string, err error) {
	defer func() {
		if r := recover(); r != nil {
			observability.GetLogger(ctx).Error("webhook dispatcher panicked",
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
			failureType = FailurePanic
			err = fmt.Errorf("dispatcher panic: %v", r)
		}
	}()
	return FailureDispatch, w.Dispatcher.Dispatch(ctx, p)
}

func (w *DispatchWorker) recordFailure(ctx context.Context, p model.WebhookPayload, failureType string, cause error) {
	log := observability.GetLogger(ctx)
	rec := &model.FailureRecord{
		Source:       "webhook." + p.Provider,
		FailureType:  failureType,
		ErrorMessage: cause.Error(),
		RawJSON:      p.Body,
		CreatedAt:    time.Now().UTC(),
	}

	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			log.Error("failure log insert panicked", zap.Any("panic", r))
		}
	}()
	if err := w.Failures.Insert(fctx, rec); err != nil {
		log.Error("could not persist webhook failure",
			zap.String("failure_type", failureType),
			zap.NamedError("cause", cause),
			zap.Error(err),
		)
		return
	}
	log.Warn("webhook dispatch failed, payload kept for replay",
		zap.String("failure_id", rec.ID),
		zap.String("failure_type", failureType),
		zap.Error(cause),
	)
}
