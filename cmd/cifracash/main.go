package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/peandrade/cifracash/internal/config"
	"github.com/peandrade/cifracash/internal/domain"
	"github.com/peandrade/cifracash/internal/handler"
	"github.com/peandrade/cifracash/internal/infra/cache"
	"github.com/peandrade/cifracash/internal/infra/client"
	"github.com/peandrade/cifracash/internal/infra/observability"
	"github.com/peandrade/cifracash/internal/infra/resilience"
	"github.com/peandrade/cifracash/internal/infra/store"
	"github.com/peandrade/cifracash/internal/rates"
	"github.com/peandrade/cifracash/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("db_path", cfg.DBPath),
		zap.String("rate_api_url", cfg.RateAPIURL),
		zap.Int("rate_series_code", cfg.RateSeriesCode),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("rate_cache_ttl", cfg.RateCacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "cifracash")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Storage ---
	db, err := store.Open(cfg.DBPath, logger)
	if err != nil {
		logger.Fatal("failed to open store", zap.Error(err))
	}
	defer db.Close()

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	cb := resilience.NewCircuitBreaker("bcb-sgs")

	// --- Rate source ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	bcbClient := client.NewBCBClient(httpClient, cfg.RateAPIURL, cfg.RateSeriesCode, cb, resilienceCfg)
	rateHistory := rates.NewHistory(bcbClient, cfg.RateCacheTTL, cfg.FallbackDailyRate, logger)

	// --- Cache ---
	cardCache := cache.New[[]domain.Card](cfg.CacheTTL)

	// --- Services ---
	billingSvc := service.NewBillingService(db, cardCache, metrics, logger)
	investSvc := service.NewInvestmentService(db, rateHistory, metrics, logger)

	// --- Router ---
	router := handler.NewRouter(billingSvc, investSvc, rateHistory, metrics, logger)

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

	logger.Info("server stopped")
}
