// File: cmd/app/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"cv-builder-payments/internal/catalog"
	"cv-builder-payments/internal/config"
	"cv-builder-payments/internal/infra/analytics"
	"cv-builder-payments/internal/infra/api"
	pg "cv-builder-payments/internal/infra/db/postgres"
	"cv-builder-payments/internal/infra/logging"
	"cv-builder-payments/internal/infra/metrics"
	"cv-builder-payments/internal/infra/payment"
	red "cv-builder-payments/internal/infra/redis"
	"cv-builder-payments/internal/infra/sched"
	"cv-builder-payments/internal/infra/security"
	"cv-builder-payments/internal/infra/web"
	"cv-builder-payments/internal/infra/worker"
	"cv-builder-payments/internal/usecase"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("developer mode enabled")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connect failed")
	}
	defer pool.Close()
	go func() {
		t := time.NewTicker(15 * time.Second)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				st := pool.Stat()
				metrics.SetDBPoolStats(st.TotalConns(), st.IdleConns(), st.AcquiredConns())
			}
		}
	}()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, cfg.Redis.URL, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connect failed")
	}
	defer redisClient.Close()
	rateLimiter := red.NewRateLimiter(redisClient)
	statusCache := red.NewStatusCache(redisClient, cfg.Redis.StatusTTL)

	// ---- Encryption ----
	var encSvc *security.EncryptionService
	if key := cfg.Security.EncryptionKey; key != "" {
		encSvc, err = security.NewEncryptionService(key)
		if err != nil {
			logger.Fatal().Err(err).Msg("encryption service init failed")
		}
	} else {
		logger.Warn().Msg("security.encryption_key not set; card data tokens stored unencrypted")
	}

	// ---- Repositories ----
	txnRepo := pg.NewTransactionRepo(pool, encSvc)
	accountRepo := pg.NewAccountRepo(pool)
	txManager := pg.NewTxManager(pool)

	// ---- Plan catalog ----
	plans, err := catalog.New()
	if err != nil {
		logger.Fatal().Err(err).Msg("catalog init failed")
	}

	// ---- Payment gateway ----
	gateway, err := payment.NewKashierGateway(payment.Config{
		MerchantID:        cfg.Gateway.MerchantID,
		APIKeyLive:        cfg.Gateway.APIKeyLive,
		APIKeyTest:        cfg.Gateway.APIKeyTest,
		BaseURL:           cfg.Gateway.BaseURL,
		RedirectURL:       cfg.Gateway.RedirectURL,
		WebhookURL:        cfg.Gateway.WebhookURL,
		AllowUnsignedTest: cfg.Gateway.AllowUnsignedTest,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("gateway init failed")
	}

	// ---- Analytics ----
	workPool := worker.NewPool(cfg.Analytics.Workers)
	workPool.Start(ctx)
	defer workPool.Stop()
	tracker := analytics.NewHTTPTracker(cfg.Analytics.Endpoints, workPool, logger)

	// ---- Use cases ----
	paymentUC := usecase.NewPaymentUseCase(txnRepo, accountRepo, plans, gateway, logger)
	activationUC := usecase.NewActivationUseCase(txnRepo, accountRepo, txManager, logger)
	reconcileUC := usecase.NewReconcileUseCase(txnRepo, gateway, activationUC, tracker, cfg.Gateway.SuccessTokens, logger)
	statusUC := usecase.NewStatusUseCase(txnRepo)

	// ---- Public API ----
	apiServer, err := api.NewServer(
		paymentUC, reconcileUC, statusUC, activationUC,
		statusCache, rateLimiter,
		cfg.Server.FrontendURL, cfg.Server.JWTSecret, cfg.Server.RateLimit,
		logger,
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("api server init failed")
	}
	public := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:     apiServer.Router(),
		ReadTimeout: cfg.Server.ReadTimeout,
	}
	go func() {
		logger.Info().Str("addr", public.Addr).Msg("public API listening")
		if err := public.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("public server stopped")
		}
	}()

	// ---- Admin API + metrics ----
	if cfg.Admin.Port > 0 {
		adminServer := web.NewServer(paymentUC, accountRepo, cfg.Admin.APIKey, logger)
		adminMux := http.NewServeMux()
		adminMux.Handle("/metrics", promhttp.Handler())
		adminMux.Handle("/", adminServer.Router())
		admin := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Admin.Port), Handler: adminMux}
		go func() {
			logger.Info().Str("addr", admin.Addr).Msg("admin API listening")
			if err := admin.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error().Err(err).Msg("admin server stopped")
			}
		}()
		defer shutdownHTTP(admin, logger)
	}

	// ---- Background workers ----
	sweeper := sched.NewActivationSweeper(txnRepo, activationUC, cfg.Scheduler.SweepInterval, cfg.Scheduler.SweepOlderThan, logger)
	go func() { _ = sweeper.Run(ctx) }()
	expiry := sched.NewExpiryWorker(cfg.Scheduler.ExpiryInterval, accountRepo, logger)
	go func() { _ = expiry.Run(ctx) }()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()
	shutdownHTTP(public, logger)
}

func shutdownHTTP(s *http.Server, logger *zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Str("addr", s.Addr).Msg("http shutdown")
	}
}
