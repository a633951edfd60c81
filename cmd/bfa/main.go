package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/boddenberg/pj-ledger-bfa-go/internal/config"
	"github.com/boddenberg/pj-ledger-bfa-go/internal/domain"
	"github.com/boddenberg/pj-ledger-bfa-go/internal/handler"
	"github.com/boddenberg/pj-ledger-bfa-go/internal/infra/clock"
	"github.com/boddenberg/pj-ledger-bfa-go/internal/infra/jsonserver"
	"github.com/boddenberg/pj-ledger-bfa-go/internal/infra/notify"
	"github.com/boddenberg/pj-ledger-bfa-go/internal/infra/observability"
	"github.com/boddenberg/pj-ledger-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/pj-ledger-bfa-go/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel, "pj-ledger-bfa")
	defer logger.Sync()

	loc, err := cfg.Location()
	if err != nil {
		logger.Warn("unknown timezone, using UTC", zap.String("timezone", cfg.Timezone), zap.Error(err))
	}

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("ledger_api_url", cfg.LedgerAPIURL),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Duration("processing_window", cfg.ProcessingWindow),
		zap.String("timezone", loc.String()),
		zap.Bool("rollback_on_confirm_failure", cfg.RollbackOnConfirmFailure),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "pj-ledger-bfa")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Notifications ---
	feed := notify.New(cfg.NotificationTTL, cfg.NotificationCapacity, metrics, logger)
	defer feed.Close()

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	cb := resilience.NewCircuitBreaker("jsonserver")

	// --- Clients ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	store := jsonserver.NewClient(httpClient, cfg.LedgerAPIURL, cb, resilienceCfg, logger)

	// --- Services ---
	ledgerSvc := service.NewLedgerService(store, feed, clock.Real{}, metrics, logger, service.Options{
		ProcessingWindow:         cfg.ProcessingWindow,
		Location:                 loc,
		RollbackOnConfirmFailure: cfg.RollbackOnConfirmFailure,
		MaxConcurrency:           cfg.MaxConcurrency,
	})

	if cfg.FetchOnStart {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTPTimeout)
		if err := ledgerSvc.FetchAll(ctx, domain.ListFilter{}); err != nil {
			logger.Warn("initial fetch failed, starting with an empty ledger", zap.Error(err))
		}
		cancel()
	}

	// --- Router ---
	router := handler.NewRouter(ledgerSvc, feed, metrics, logger, cfg.AllowedOrigins...)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	// stop the sweep and let in-flight confirmations land
	ledgerSvc.Close()

	logger.Info("server stopped")
}
