package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/unclebandit/wa-dispatch/internal/model"
	"github.com/unclebandit/wa-dispatch/internal/observability"
	"github.com/unclebandit/wa-dispatch/internal/queue"
)

// LogSource is the consumer side of the log channel.
type LogSource interface {
	Pop(ctx context.Context) (model.SendLog, error)
	TryPop() (model.SendLog, bool)
}

type SendLogStore interface {
	Record(ctx context.Context, l *model.SendLog) error
}

// NewLogQueue builds the drop-oldest log channel. Every eviction is counted
// and logged with its idempotency key so the gap can be reconciled later.
func NewLogQueue(capacity int) *queue.DropOldestQueue[model.SendLog] {
	return queue.NewDropOldestQueue(queue.NameLog, capacity, func(dropped model.SendLog) {
		observability.LogRecordsDropped.Inc()
		observability.Log.Warn("log channel full, dropped oldest send record",
			zap.String("idempotency_key", dropped.IdempotencyKey),
			zap.Int64("campaign_id", dropped.CampaignID),
			zap.String("status", string(dropped.Status)),
		)
	})
}

// LogWriter persists send results. Store errors are reported and the loop
// moves on.
type LogWriter struct {
	Logs         LogSource
	Store        SendLogStore
	WriteTimeout time.Duration
}

func NewLogWriter(logs LogSource, store SendLogStore) *LogWriter {
	return &LogWriter{Logs: logs, Store: store, WriteTimeout: 5 * time.Second}
}

// Start runs until ctx is cancelled, then writes whatever is still buffered.
func (w *LogWriter) Start(ctx context.Context) {
	observability.Log.Info("log writer started")
	defer observability.Log.Info("log writer stopped")

	for {
		rec, err := w.Logs.Pop(ctx)
		if err != nil {
			w.drain(context.WithoutCancel(ctx))
			return
		}
		w.write(ctx, rec)
	}
}

func (w *LogWriter) drain(ctx context.Context) {
	for {
		rec, ok := w.Logs.TryPop()
		if !ok {
			return
		}
		w.write(ctx, rec)
	}
}

func (w *LogWriter) write(ctx context.Context, rec model.SendLog) {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.WriteTimeout)
	defer cancel()

	if err := w.Store.Record(wctx, &rec); err != nil {
		observability.LogWriteFailures.Inc()
		observability.Log.Error("persist send log failed",
			zap.String("idempotency_key", rec.IdempotencyKey),
			zap.Error(err),
		)
	}
}
