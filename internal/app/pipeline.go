// Package app assembles the queues and background workers shared by the
// server and worker processes.
package app

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/unclebandit/wa-dispatch/internal/config"
	"github.com/unclebandit/wa-dispatch/internal/idempotency"
	"github.com/unclebandit/wa-dispatch/internal/model"
	"github.com/unclebandit/wa-dispatch/internal/observability"
	"github.com/unclebandit/wa-dispatch/internal/provider"
	"github.com/unclebandit/wa-dispatch/internal/queue"
	"github.com/unclebandit/wa-dispatch/internal/ratelimit"
	"github.com/unclebandit/wa-dispatch/internal/service"
	"github.com/unclebandit/wa-dispatch/internal/webhook"
)

// NewSenders builds one HTTP client per provider.
func NewSenders(cfg *config.Config) provider.Registry {
	return provider.Registry{
		model.ProviderMetaCloud: provider.NewMetaCloudClient(cfg.Meta.BaseURL, cfg.Meta.APIVersion, cfg.Meta.AccessToken, cfg.ProviderTimeout),
		model.ProviderPinnacle:  provider.NewPinnacleClient(cfg.Pinnacle.BaseURL, cfg.Pinnacle.APIKey, cfg.ProviderTimeout),
	}
}

// SendPipeline is the outbound queue, its send workers and the log writer.
type SendPipeline struct {
	Outbound *queue.BoundedQueue[model.OutboundItem]
	Logs     *queue.DropOldestQueue[model.SendLog]
	Limiter  *ratelimit.Limiter

	workers []*service.SendWorker
	writer  *service.LogWriter

	sendWG, logWG         sync.WaitGroup
	sendCancel, logCancel context.CancelFunc
}

func NewSendPipeline(cfg *config.Config, senders service.SenderRegistry, store service.SendLogStore, guard idempotency.Guard) (*SendPipeline, error) {
	limiter, err := ratelimit.NewLimiter(ratelimit.Limits{
		PermitsPerSecond: cfg.RateLimitPerSecond,
		Burst:            cfg.RateLimitBurst,
	})
	if err != nil {
		return nil, err
	}

	p := &SendPipeline{
		Outbound: queue.NewBoundedQueue[model.OutboundItem](queue.NameOutbound, cfg.OutboundQueueSize),
		Logs:     service.NewLogQueue(cfg.LogQueueSize),
		Limiter:  limiter,
	}
	n := cfg.SendWorkers
	if n < 1 {
		n = 1
	}
	for i := 0; i < n; i++ {
		p.workers = append(p.workers, service.NewSendWorker(p.Outbound, limiter, senders, p.Logs, guard, cfg.ProviderTimeout))
	}
	p.writer = service.NewLogWriter(p.Logs, store)
	return p, nil
}

func (p *SendPipeline) Start(ctx context.Context) {
	logCtx, logCancel := context.WithCancel(context.WithoutCancel(ctx))
	sendCtx, sendCancel := context.WithCancel(ctx)
	p.logCancel, p.sendCancel = logCancel, sendCancel

	p.logWG.Add(1)
	go func() {
		defer p.logWG.Done()
		p.writer.Start(logCtx)
	}()

	for _, w := range p.workers {
		p.sendWG.Add(1)
		go func(w *service.SendWorker) {
			defer p.sendWG.Done()
			w.Start(sendCtx)
		}(w)
	}
	observability.Log.Info("send pipeline started", zap.Int("workers", len(p.workers)))
}

// Stop lets in-flight sends finish, records everything still queued as
// interrupted and then flushes the log channel.
func (p *SendPipeline) Stop() {
	if p.sendCancel == nil {
		return
	}
	p.sendCancel()
	p.sendWG.Wait()

	p.Outbound.Close()
	if left := p.Outbound.Drain(); len(left) > 0 {
		for _, item := range left {
			p.Logs.Push(service.InterruptedLog(item))
		}
		observability.Log.Warn("outbound items interrupted at shutdown", zap.Int("count", len(left)))
	}

	p.logCancel()
	p.logWG.Wait()
	observability.Log.Info("send pipeline stopped")
}

// WebhookPipeline is the ingestion queue and its dispatch workers.
type WebhookPipeline struct {
	Queue    *queue.BoundedQueue[model.WebhookPayload]
	Ingestor *webhook.Ingestor

	workers []*webhook.DispatchWorker
	wg      sync.WaitGroup
	cancel  context.CancelFunc
}

func NewWebhookPipeline(cfg *config.Config, d webhook.Dispatcher, failures webhook.FailureStore) *WebhookPipeline {
	q := queue.NewBoundedQueue[model.WebhookPayload](queue.NameWebhook, cfg.WebhookQueueSize)
	p := &WebhookPipeline{
		Queue:    q,
		Ingestor: webhook.NewIngestor(q, cfg.WebhookEnqueueTimeout),
	}
	n := cfg.WebhookWorkers
	if n < 1 {
		n = 1
	}
	for i := 0; i < n; i++ {
		p.workers = append(p.workers, webhook.NewDispatchWorker(q, d, failures))
	}
	return p
}

func (p *WebhookPipeline) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *webhook.DispatchWorker) {
			defer p.wg.Done()
			w.Start(ctx)
		}(w)
	}
	observability.Log.Info("webhook pipeline started", zap.Int("workers", len(p.workers)))
}

func (p *WebhookPipeline) Stop() {
	if p.cancel == nil {
		return
	}
	p.Queue.Close()
	p.cancel()
	p.wg.Wait()
	observability.Log.Info("webhook pipeline stopped")
}
