package service

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	appErrors "github.com/unclebandit/wa-dispatch/internal/errors"
	"github.com/unclebandit/wa-dispatch/internal/idempotency"
	"github.com/unclebandit/wa-dispatch/internal/model"
	"github.com/unclebandit/wa-dispatch/internal/observability"
	"github.com/unclebandit/wa-dispatch/internal/payload"
	"github.com/unclebandit/wa-dispatch/internal/provider"
	"github.com/unclebandit/wa-dispatch/internal/ratelimit"
)

const errInterrupted = "interrupted before send"

// OutboundSource is the consumer side of the outbound queue.
type OutboundSource interface {
	Dequeue(ctx context.Context) (model.OutboundItem, error)
}

// LogSink accepts send results without blocking.
type LogSink interface {
	Push(rec model.SendLog) bool
}

type PermitSource interface {
	Acquire(ctx context.Context, senderKey string) (time.Duration, error)
	UpdateLimits(senderKey string, permitsPerSecond float64, burst int) error
	LimitsFor(senderKey string) ratelimit.Limits
}

type SenderRegistry interface {
	For(p model.Provider) (provider.Sender, error)
}

// SendWorker drains the outbound queue: permit, build, send, log.
type SendWorker struct {
	ID          string
	Queue       OutboundSource
	Limiter     PermitSource
	Senders     SenderRegistry
	Logs        LogSink
	Guard       idempotency.Guard
	SendTimeout time.Duration
}

func NewSendWorker(q OutboundSource, limiter PermitSource, senders SenderRegistry, logs LogSink, guard idempotency.Guard, sendTimeout time.Duration) *SendWorker {
	return &SendWorker{
		ID:          uuid.NewString(),
		Queue:       q,
		Limiter:     limiter,
		Senders:     senders,
		Logs:        logs,
		Guard:       guard,
		SendTimeout: sendTimeout,
	}
}

// Start processes items until ctx is cancelled or the queue is closed. A
// failing item never stops the loop.
func (w *SendWorker) Start(ctx context.Context) {
	log := observability.Log.With(zap.String("worker_id", w.ID))
	log.Info("send worker started")
	defer log.Info("send worker stopped")

	for {
		item, err := w.Queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, appErrors.ErrQueueClosed) || ctx.Err() != nil {
				return
			}
			log.Warn("dequeue failed", zap.Error(err))
			continue
		}
		w.Process(ctx, item)
	}
}

// Process handles exactly one item and pushes at most one log record.
func (w *SendWorker) Process(ctx context.Context, item model.OutboundItem) {
	ctx, span := otel.Tracer("wa-dispatch").Start(ctx, "SendTemplate")
	defer span.End()
	span.SetAttributes(
		attribute.String("provider", string(item.Provider)),
		attribute.String("sender_key", item.SenderKey()),
		attribute.Int64("campaign_id", item.CampaignID),
	)

	log := observability.GetLogger(ctx).With(
		zap.String("worker_id", w.ID),
		zap.String("idempotency_key", item.IdempotencyKey),
		zap.String("sender_key", item.SenderKey()),
	)
	providerLabel := string(item.Provider)

	rec := newSendLog(item)

	waited, err := w.Limiter.Acquire(ctx, item.SenderKey())
	observability.RateLimitWait.WithLabelValues(providerLabel).Observe(waited.Seconds())
	if err != nil {
		if ctx.Err() != nil {
			w.fail(log, span, &rec, errInterrupted)
		} else {
			w.fail(log, span, &rec, err.Error())
		}
		return
	}

	body, err := payload.BuildItem(item)
	if err != nil {
		span.RecordError(err)
		w.fail(log, span, &rec, err.Error())
		return
	}

	sender, err := w.Senders.For(item.Provider)
	if err != nil {
		w.fail(log, span, &rec, err.Error())
		return
	}

	// the HTTP call is never cut short by shutdown; only by its own timeout
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.sendTimeout())
	defer cancel()

	if w.Guard != nil {
		claimed, err := w.Guard.Claim(sendCtx, item.IdempotencyKey)
		if err != nil {
			log.Warn("idempotency guard unavailable, sending anyway", zap.Error(err))
		} else if !claimed {
			observability.SendsTotal.WithLabelValues(providerLabel, "duplicate").Inc()
			log.Info("skipping send, idempotency key already claimed")
			return
		}
	}

	start := time.Now()
	res, err := sender.Send(sendCtx, item.PhoneNumberID, body)
	rec.LatencyMillis = time.Since(start).Milliseconds()
	observability.SendLatency.WithLabelValues(providerLabel).Observe(time.Since(start).Seconds())

	if err != nil {
		span.RecordError(err)
		if appErrors.IsThrottled(err) {
			w.throttle(log, item.SenderKey())
		}
		// the provider may have accepted an ambiguous failure, so only a
		// definite rejection frees the key
		if w.Guard != nil && appErrors.IsRejected(err) {
			if rerr := w.Guard.Release(sendCtx, item.IdempotencyKey); rerr != nil {
				log.Warn("release idempotency key failed", zap.Error(rerr))
			}
		}
		w.fail(log, span, &rec, err.Error())
		return
	}

	rec.Status = model.OutcomeSent
	rec.MessageID = res.MessageID
	span.SetAttributes(attribute.String("message_id", res.MessageID))
	observability.SendsTotal.WithLabelValues(providerLabel, string(model.OutcomeSent)).Inc()
	w.Logs.Push(rec)
}

func newSendLog(item model.OutboundItem) model.SendLog {
	return model.SendLog{
		CampaignID:     item.CampaignID,
		BusinessID:     item.BusinessID,
		RecipientID:    item.RecipientID,
		IdempotencyKey: item.IdempotencyKey,
		Provider:       item.Provider,
		PhoneNumberID:  item.PhoneNumberID,
		To:             item.To,
		AttemptedAt:    time.Now().UTC(),
	}
}

// InterruptedLog is the failed record for an item that never left the queue
// before shutdown. It keeps the item visible in the send log for a retry.
func InterruptedLog(item model.OutboundItem) model.SendLog {
	rec := newSendLog(item)
	rec.Status = model.OutcomeFailed
	rec.Error = errInterrupted
	observability.SendsTotal.WithLabelValues(string(item.Provider), "interrupted").Inc()
	return rec
}

func (w *SendWorker) fail(log *zap.Logger, span trace.Span, rec *model.SendLog, reason string) {
	rec.Status = model.OutcomeFailed
	rec.Error = reason
	span.SetAttributes(attribute.String("error", reason))
	observability.SendsTotal.WithLabelValues(string(rec.Provider), string(model.OutcomeFailed)).Inc()
	log.Warn("send failed", zap.String("reason", reason))
	w.Logs.Push(*rec)
}

// throttle halves the sender's refill rate after a 429, never going below
// one permit per second.
func (w *SendWorker) throttle(log *zap.Logger, senderKey string) {
	cur := w.Limiter.LimitsFor(senderKey)
	pps := math.Max(1, cur.PermitsPerSecond/2)
	if pps == cur.PermitsPerSecond {
		return
	}
	if err := w.Limiter.UpdateLimits(senderKey, pps, cur.Burst); err != nil {
		log.Error("update limits failed", zap.Error(err))
		return
	}
	log.Warn("provider throttled sender, lowering rate",
		zap.Float64("permits_per_second", pps),
		zap.Int("burst", cur.Burst),
	)
}

func (w *SendWorker) sendTimeout() time.Duration {
	if w.SendTimeout <= 0 {
		return 15 * time.Second
	}
	return w.SendTimeout
}
