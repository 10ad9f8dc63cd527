package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"storehub/internal/api"
	"storehub/internal/api/handlers"
	"storehub/internal/api/middleware"
	"storehub/internal/engine/webhooks"
	"storehub/internal/engine/woocommerce"
	"storehub/internal/metrics"
	"storehub/internal/pkg/logger"
	"storehub/internal/platform/audit"
	"storehub/internal/platform/auth"
	"storehub/internal/platform/config"
	"storehub/internal/platform/database"
	"storehub/internal/platform/repositories"
	"storehub/internal/workers"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	logger.Init(cfg.Logging)
	metrics.RegisterDefault()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database Connections
	globalDB, err := database.NewGlobalDB(cfg.Database.Global)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to global DB")
	}
	defer globalDB.Close()

	if err := database.MigrateGlobal(globalDB, database.Up); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate global DB")
	}

	tenantDBPool := database.NewTenantDBPool(cfg.Database.Tenant)
	defer tenantDBPool.CloseAll()

	// Repositories
	storeRepo := repositories.NewStoreRepository(globalDB)
	webhookRepo := repositories.NewWebhookRepository(globalDB)
	deliveryRepo := repositories.NewDeliveryRepository(globalDB)

	// Services
	tokenSvc := auth.NewTokenService(cfg.JWT)
	auditLogger := audit.NewLogger(globalDB)
	defer auditLogger.Wait()

	var guard webhooks.DeliveryGuard
	var cache handlers.Pinger
	var jobs []workers.Job
	if cfg.Redis.URL != "" {
		redisGuard, err := webhooks.NewRedisGuardFromURL(ctx, cfg.Redis.URL, cfg.Webhooks.DedupTTL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisGuard.Close()
		guard, cache = redisGuard, redisGuard
	} else {
		memGuard := webhooks.NewMemoryGuard(cfg.Webhooks.DedupTTL)
		guard = memGuard
		jobs = append(jobs, workers.Job{Name: "dedup_sweep", Run: workers.Every("dedup_sweep", 10*time.Minute, func(context.Context) error {
			memGuard.Sweep()
			return nil
		})})
	}

	resolver := webhooks.NewResolver(webhookRepo, storeRepo)
	processor := webhooks.NewProcessor(resolver, webhookRepo, deliveryRepo, webhooks.TenantResources(tenantDBPool), guard, auditLogger,
		webhooks.ProcessorConfig{
			AllowUnsigned:    cfg.Webhooks.AllowUnsigned,
			MaxRetries:       cfg.Webhooks.MaxRetries,
			FailureThreshold: cfg.Webhooks.FailureThreshold,
		})
	manager := webhooks.NewManager(webhookRepo, deliveryRepo, storeRepo, webhooks.WooCommerceRemotes(woocommerce.NewFactory(cfg.WooCommerce)), auditLogger,
		webhooks.ManagerConfig{
			PublicBaseURL: cfg.WooCommerce.PublicBaseURL,
			BulkBatchSize: cfg.Webhooks.BulkBatchSize,
			BulkPause:     cfg.Webhooks.BulkPause,
		})

	// Middleware
	authMiddleware := middleware.NewAuthMiddleware(tokenSvc)
	rateLimiter := middleware.NewRateLimiter(cfg.Server.IngestPerMinute, cfg.Server.IngestBurst)
	jobs = append(jobs, workers.Job{Name: "ratelimit_sweep", Run: workers.Every("ratelimit_sweep", 10*time.Minute, func(context.Context) error {
		rateLimiter.Sweep()
		return nil
	})})

	// Router
	router := api.NewRouter(&api.Dependencies{
		IngestHandler:  handlers.NewIngestHandler(processor),
		WebhookHandler: handlers.NewWebhookHandler(manager),
		AuditHandler:   handlers.NewAuditHandler(auditLogger),
		HealthHandler:  handlers.NewHealthHandler(database.NewGlobalDBWrapper(globalDB), cache),
		MetricsHandler: handlers.NewMetricsHandler(),
		AuthMiddleware: authMiddleware,
		RateLimiter:    rateLimiter,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	jobsDone := make(chan struct{})
	go func() {
		workers.Run(ctx, jobs...)
		close(jobsDone)
	}()

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	<-jobsDone
}
