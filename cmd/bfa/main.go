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

	"github.com/boddenberg/wallet-activity-bfa/internal/config"
	"github.com/boddenberg/wallet-activity-bfa/internal/handler"
	"github.com/boddenberg/wallet-activity-bfa/internal/infra/cache"
	"github.com/boddenberg/wallet-activity-bfa/internal/infra/client"
	"github.com/boddenberg/wallet-activity-bfa/internal/infra/observability"
	"github.com/boddenberg/wallet-activity-bfa/internal/infra/resilience"
	"github.com/boddenberg/wallet-activity-bfa/internal/infra/supabase"
	"github.com/boddenberg/wallet-activity-bfa/internal/port"
	"github.com/boddenberg/wallet-activity-bfa/internal/query"
	"github.com/boddenberg/wallet-activity-bfa/internal/service"

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
		zap.String("wallet_api_url", cfg.WalletAPIURL),
		zap.Bool("use_supabase", cfg.UseSupabase),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("fetch_timeout", cfg.FetchTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Int("max_concurrency", cfg.MaxConcurrency),
		zap.String("timezone", cfg.Location().String()),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.TraceEndpoint(), "wallet-activity-bfa")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Cache ---
	resultCache := cache.New[*query.Result](cfg.CacheTTL)
	defer resultCache.Stop()
	metrics.TrackGauge("bfa_cache_entries", "Live entries in the query result cache.", func() float64 {
		return float64(resultCache.Len())
	})

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	cb := resilience.NewCircuitBreaker("wallet-source")

	// --- Clients ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	var source port.DataSource
	if cfg.UseSupabase && cfg.SupabaseURL != "" {
		logger.Info("using Supabase as data backend",
			zap.String("supabase_url", cfg.SupabaseURL),
		)
		source = supabase.NewClient(
			httpClient,
			cfg.SupabaseURL,
			cfg.SupabaseAnonKey,
			cfg.SupabaseServiceKey,
			cb,
			resilienceCfg,
			cfg.SupabaseRowLimit,
			logger,
		)
	} else {
		logger.Info("using wallet API as data backend")
		if cfg.WalletAPIToken == "" {
			logger.Warn("WALLET_API_TOKEN not set, wallet API calls are unauthenticated")
		}
		wallet := client.NewWalletClient(httpClient, cfg.WalletAPIURL, cfg.WalletAPIToken, cb, resilienceCfg)
		metrics.TrackGauge("bfa_wallet_requests_in_flight", "Wallet API calls holding a bulkhead slot.", func() float64 {
			return float64(wallet.InFlight())
		})
		source = wallet
	}

	// --- Query orchestration ---
	orch := query.New(source, resultCache, cfg.FetchTimeout, metrics, logger)

	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()
	go orch.PruneLoop(bgCtx, cfg.PruneInterval, cfg.SlotMaxAge)

	// --- Services ---
	activitySvc := service.NewActivityService(orch, logger, service.Options{
		Location: cfg.Location(),
		PageSize: cfg.PageSize,
		PageStep: cfg.PageStep,
	})

	// --- Router ---
	router := handler.NewRouter(activitySvc, cb, metrics, logger)

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
	stopBackground()
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
