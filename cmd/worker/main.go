// cmd/worker/main.go
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
	"github.com/unclebandit/wa-dispatch/internal/db"
	"github.com/unclebandit/wa-dispatch/internal/handler"
	"github.com/unclebandit/wa-dispatch/internal/idempotency"
	"github.com/unclebandit/wa-dispatch/internal/observability"
	"github.com/unclebandit/wa-dispatch/internal/repository"
)

// The worker process drains RabbitMQ into the send pipeline. It serves only
// health and metrics over HTTP.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	observability.InitLogger(cfg.ServiceName+"-worker", cfg.LogLevel)
	log := observability.Log
	defer log.Sync()

	if cfg.AMQPURL == "" {
		log.Fatal("AMQP_URL is required for the worker")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info("received signal, initiating shutdown", zap.String("signal", sig.String()))
		cancel()
	}()

	if cfg.OTelEndpoint != "" {
		shutdown, err := observability.InitTracer(ctx, cfg.ServiceName+"-worker", cfg.OTelEndpoint)
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

	var guard idempotency.Guard = idempotency.NewMemoryGuard(cfg.IdempotencyTTL)
	if cfg.RedisAddr != "" {
		rg := idempotency.NewRedisGuard(cfg.RedisAddr, cfg.IdempotencyTTL)
		if err := rg.Ping(ctx); err != nil {
			log.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer rg.Close()
		guard = rg
	}

	sends, err := app.NewSendPipeline(cfg, app.NewSenders(cfg), &repository.SendLogRepository{DB: conn}, guard)
	if err != nil {
		log.Fatal("invalid send pipeline configuration", zap.Error(err))
	}
	sends.Start(ctx)

	consumer := broker.NewConsumer(cfg.AMQPQueue, sends.Outbound)
	if err := consumer.Dial(cfg.AMQPURL, cfg.SendWorkers*2); err != nil {
		log.Fatal("failed to connect to rabbitmq", zap.Error(err))
	}
	go func() {
		if err := consumer.Run(ctx); err != nil {
			log.Error("amqp intake stopped", zap.Error(err))
			cancel()
		}
	}()

	var srv *http.Server
	if cfg.MetricsEnabled {
		srv = &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           handler.NewRouter(handler.Routes{ServiceName: cfg.ServiceName + "-worker", DB: conn}),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			log.Info("starting observability server", zap.String("addr", cfg.HTTPAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("observability server error", zap.Error(err))
			}
		}()
	}

	log.Info("worker running, waiting for messages...")
	<-ctx.Done()

	log.Info("shutting down...")
	consumer.Close()
	sends.Stop()
	if srv != nil {
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		srv.Shutdown(sctx)
	}
	log.Info("shutdown complete, exiting")
}
