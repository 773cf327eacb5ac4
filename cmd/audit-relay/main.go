// Package main provides the audit relay entry point. It drains the audit
// outbox onto the event bus so enrollments and bookings publish reliably
// even across bus outages.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/gridpulse/go-dre/internal/config"
	"github.com/gridpulse/go-dre/internal/infrastructure/postgres"
	"github.com/gridpulse/go-dre/internal/infrastructure/redpanda"
	"github.com/gridpulse/go-dre/internal/observability/metrics"
	"github.com/gridpulse/go-dre/internal/observability/tracing"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load configuration", zap.Error(err))
	}
	if cfg.DatabaseURL == "" {
		logger.Fatal("DATABASE_URL is required")
	}

	ctx := context.Background()

	traceCfg := tracing.DefaultConfig("audit-relay", cfg.Env)
	if cfg.OTLPEndpoint != "" {
		traceCfg.OTLPEndpoint = cfg.OTLPEndpoint
	}
	traceProvider, err := tracing.Init(ctx, traceCfg)
	if err != nil {
		logger.Warn("tracing disabled", zap.Error(err))
	} else {
		defer traceProvider.Shutdown(context.Background())
	}

	m := metrics.New()

	store, err := postgres.NewStore(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		logger.Fatal("connect audit store", zap.Error(err))
	}
	defer store.Close()
	logger.Info("connected to audit store")

	// Make sure the gateway topics exist before publishing.
	admin, err := redpanda.NewAdmin(cfg.KafkaBrokers, logger)
	if err != nil {
		logger.Fatal("create bus admin client", zap.Error(err))
	}
	if err := admin.EnsureTopics(ctx); err != nil {
		logger.Warn("ensure topics failed, continuing", zap.Error(err))
	}
	admin.Close()

	producer, err := redpanda.NewProducer(redpanda.DefaultProducerConfig(cfg.KafkaBrokers), logger)
	if err != nil {
		logger.Fatal("create producer", zap.Error(err))
	}
	defer producer.Close()
	logger.Info("connected to event bus", zap.Strings("brokers", cfg.KafkaBrokers))

	relayCfg := postgres.DefaultRelayConfig()
	relayCfg.BatchSize = cfg.RelayBatchSize
	relayCfg.PollInterval = cfg.RelayInterval()
	relayCfg.Workers = cfg.RelayWorkers

	relay, err := postgres.NewRelay(store, producer, relayCfg, logger)
	if err != nil {
		logger.Fatal("create relay", zap.Error(err))
	}
	relay.WithMetrics(m)
	relay.Start()

	// Metrics surface.
	metricsServer := &http.Server{Addr: ":9091", Handler: m.Handler()}
	go func() {
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("metrics server error", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")
	relay.Stop()
	if err := producer.Flush(context.Background()); err != nil {
		logger.Warn("final flush failed", zap.Error(err))
	}
	metricsServer.Shutdown(context.Background())
	logger.Info("audit relay stopped")
}
