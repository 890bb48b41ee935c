// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/unclebandit/wa-dispatch/internal/app"
	"github.com/unclebandit/wa-dispatch/internal/broker"
	"github.com/unclebandit/wa-dispatch/internal/config"
	"github.com/unclebandit/wa-dispatch/internal/controller"
	"github.com/unclebandit/wa-dispatch/internal/db"
	"github.com/unclebandit/wa-dispatch/internal/handler"
	"github.com/unclebandit/wa-dispatch/internal/idempotency"
	"github.com/unclebandit/wa-dispatch/internal/observability"
	"github.com/unclebandit/wa-dispatch/internal/repository"
	"github.com/unclebandit/wa-dispatch/internal/resolver"
	"github.com/unclebandit/wa-dispatch/internal/service"
	"github.com/unclebandit/wa-dispatch/internal/webhook"
)

func main() {
	envErr := godotenv.Load()
	cfg := config.Load()

	observability.InitLogger(cfg.ServiceName, cfg.LogLevel)
	log := observability.Log
	defer log.Sync()
	if envErr != nil {
		log.Info("no .env file found, relying on OS environment variables")
	}

	ctx, cancel := setupSignalHandler(log)
	defer cancel()

	if cfg.OTelEndpoint != "" {
		shutdown, err := observability.InitTracer(ctx, cfg.ServiceName, cfg.OTelEndpoint)
		if err != nil {
			log.Fatal("failed to initialize tracer", zap.Error(err))
		}
		defer shutdown()
	}

	conn, err := db.Open(ctx, cfg.DB, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer conn.Close()

	guard := initGuard(ctx, cfg, log)

	campaignRepo := &repository.CampaignRepository{DB: conn}
	sendLogRepo := &repository.SendLogRepository{DB: conn}
	messageLogRepo := &repository.MessageLogRepository{DB: conn}
	failureRepo := &repository.FailureRepository{DB: conn}

	sends, err := app.NewSendPipeline(cfg, app.NewSenders(cfg), sendLogRepo, guard)
	if err != nil {
		log.Fatal("invalid send pipeline configuration", zap.Error(err))
	}
	res := resolver.New(messageLogRepo, sendLogRepo)
	hooks := app.NewWebhookPipeline(cfg, webhook.NewStatusDispatcher(res, messageLogRepo, sendLogRepo), failureRepo)

	sends.Start(ctx)
	hooks.Start(ctx)

	var consumer *broker.Consumer
	if cfg.AMQPURL != "" {
		consumer = broker.NewConsumer(cfg.AMQPQueue, sends.Outbound)
		if err := consumer.Dial(cfg.AMQPURL, cfg.SendWorkers*2); err != nil {
			log.Fatal("failed to start amqp intake", zap.Error(err))
		}
		go func() {
			if err := consumer.Run(ctx); err != nil {
				log.Error("amqp intake stopped", zap.Error(err))
			}
		}()
	}

	router := handler.NewRouter(handler.Routes{
		ServiceName: cfg.ServiceName,
		DB:          conn,
		Campaigns: &controller.CampaignController{
			DispatchService: service.NewDispatchService(campaignRepo, sends.Outbound),
			CampaignService: &service.CampaignService{CampaignRepo: campaignRepo, SendLogs: sendLogRepo},
		},
		Webhooks: &controller.WebhookController{
			Ingestor:    hooks.Ingestor,
			VerifyToken: cfg.Meta.VerifyToken,
		},
		RateLimits: &controller.RateLimitController{Limiter: sends.Limiter},
		Templates:  &controller.TemplateController{},
	})
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		log.Info("server running", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	performGracefulShutdown(srv, consumer, sends, hooks, log)
}

func initGuard(ctx context.Context, cfg *config.Config, log *zap.Logger) idempotency.Guard {
	if cfg.RedisAddr == "" {
		log.Info("REDIS_ADDR not set, using in-process idempotency guard")
		return idempotency.NewMemoryGuard(cfg.IdempotencyTTL)
	}
	g := idempotency.NewRedisGuard(cfg.RedisAddr, cfg.IdempotencyTTL)
	if err := g.Ping(ctx); err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	return g
}

func setupSignalHandler(log *zap.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info("received signal, initiating shutdown", zap.String("signal", sig.String()))
		cancel()
	}()
	return ctx, cancel
}

func performGracefulShutdown(srv *http.Server, consumer *broker.Consumer, sends *app.SendPipeline, hooks *app.WebhookPipeline, log *zap.Logger) {
	log.Info("shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("error during http server shutdown", zap.Error(err))
	}
	if consumer != nil {
		consumer.Close()
	}
	hooks.Stop()
	sends.Stop()
	log.Info("shutdown complete, exiting")
}
