// Package main provides the enrollment gateway API entry point.
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/gridpulse/go-dre/internal/api/handlers"
	"github.com/gridpulse/go-dre/internal/api/middleware"
	"github.com/gridpulse/go-dre/internal/config"
	"github.com/gridpulse/go-dre/internal/connector"
	"github.com/gridpulse/go-dre/internal/infrastructure/postgres"
	"github.com/gridpulse/go-dre/internal/observability/metrics"
	"github.com/gridpulse/go-dre/internal/observability/tracing"
	"github.com/gridpulse/go-dre/internal/utility/client"
	"github.com/gridpulse/go-dre/pkg/circuitbreaker"
	"github.com/gridpulse/go-dre/pkg/idempotency"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load configuration", zap.Error(err))
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	ctx := context.Background()

	// Tracing
	traceCfg := tracing.DefaultConfig("enrollment-api", cfg.Env)
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

	// Audit store: platform call log plus the event outbox.
	store, err := postgres.NewStore(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		logger.Fatal("connect audit store", zap.Error(err))
	}
	defer store.Close()
	logger.Info("connected to audit store")

	// Submission dedup inbox shares the audit pool.
	inbox := idempotency.NewInbox(store.Pool(), idempotency.DefaultInboxConfig(), logger)
	inbox.StartCleanup()
	defer inbox.Stop()

	// Platform client behind per-endpoint-group circuit breakers.
	breakers := circuitbreaker.NewManager(logger).WithStateGauge(m.CircuitBreakerState)

	clientCfg := client.Config{
		BaseURL:     cfg.PlatformBaseURL,
		Password:    cfg.PlatformPassword,
		Timeout:     cfg.PlatformTimeout(),
		MaxAttempts: cfg.PlatformMaxAttempts,
	}
	platform := client.New(clientCfg, &http.Client{Timeout: cfg.PlatformTimeout() + 5*time.Second}, store, logger).
		WithBreakers(breakers, circuitbreaker.DefaultConfig("platform")).
		WithMetrics(m)

	conn := connector.NewAdapter(platform, cfg.ProgramCode, logger).
		WithMetrics(m).
		WithEvents(store).
		WithInbox(inbox)

	enrollmentHandler := handlers.NewEnrollmentHandler(conn, store, cfg.MinSlotCapacity, logger)

	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Tracing("enrollment-api"))

	r.Get("/health", healthHandler)
	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := store.Pool().Ping(r.Context()); err != nil {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ready"))
	})
	r.Get("/health/platform", func(w http.ResponseWriter, r *http.Request) {
		h := platform.HealthCheck(r.Context())
		status := http.StatusOK
		if h.State == client.HealthError {
			status = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"state":      h.State,
			"latency_ms": h.Latency.Milliseconds(),
			"error":      h.Error,
		})
	})
	r.Get("/health/breakers", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(breakers.GetHealthStatus())
	})
	r.Handle("/metrics", m.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(apiKeys(cfg)))
		r.Mount("/", enrollmentHandler.Routes())
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // platform calls retry for up to three attempts
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", zap.Error(err))
		}
	}()

	logger.Info("starting enrollment API",
		zap.String("port", cfg.Port),
		zap.String("program_code", cfg.ProgramCode))
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}

	logger.Info("server stopped")
}

func apiKeys(cfg *config.Config) map[string]string {
	if cfg.APIKey == "" {
		return nil
	}
	return map[string]string{cfg.APIKey: "enrollment-form"}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy","service":"enrollment-api","version":"1.0.0"}`))
}
