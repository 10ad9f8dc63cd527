package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"storehub/internal/engine/webhooks"
	"storehub/internal/engine/woocommerce"
	"storehub/internal/metrics"
	"storehub/internal/pkg/logger"
	"storehub/internal/platform/audit"
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
	log.Info().Msg("starting background workers")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	globalDB, err := database.NewGlobalDB(cfg.Database.Global)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to global DB")
	}
	defer globalDB.Close()

	tenantDBPool := database.NewTenantDBPool(cfg.Database.Tenant)
	defer tenantDBPool.CloseAll()

	storeRepo := repositories.NewStoreRepository(globalDB)
	webhookRepo := repositories.NewWebhookRepository(globalDB)
	deliveryRepo := repositories.NewDeliveryRepository(globalDB)
	auditLogger := audit.NewLogger(globalDB)
	defer auditLogger.Wait()

	var guard webhooks.DeliveryGuard
	if cfg.Redis.URL != "" {
		redisGuard, err := webhooks.NewRedisGuardFromURL(ctx, cfg.Redis.URL, cfg.Webhooks.DedupTTL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisGuard.Close()
		guard = redisGuard
	}

	processor := webhooks.NewProcessor(webhooks.NewResolver(webhookRepo, storeRepo), webhookRepo, deliveryRepo,
		webhooks.TenantResources(tenantDBPool), guard, auditLogger,
		webhooks.ProcessorConfig{
			AllowUnsigned:    cfg.Webhooks.AllowUnsigned,
			MaxRetries:       cfg.Webhooks.MaxRetries,
			FailureThreshold: cfg.Webhooks.FailureThreshold,
		})

	retryWorker := webhooks.NewRetryWorker(deliveryRepo, processor, webhooks.RetryConfig{
		Interval:  cfg.Webhooks.RetryInterval,
		BatchSize: cfg.Webhooks.RetryBatchSize,
	})
	reconciler := webhooks.NewReconciler(webhookRepo, storeRepo,
		webhooks.WooCommerceRemotes(woocommerce.NewFactory(cfg.WooCommerce)), cfg.Webhooks.ReconcileInterval)

	workers.Run(ctx,
		workers.Job{Name: "webhook_retry", Run: retryWorker.Run},
		workers.Job{Name: "webhook_reconcile", Run: reconciler.Run},
	)
	log.Info().Msg("workers stopped")
}
