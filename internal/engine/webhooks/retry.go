package webhooks

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"storehub/internal/platform/repositories"
)

type RetryConfig struct {
	Interval  time.Duration
	BatchSize int
	// Lease is how far a claimed delivery's next_retry_at is pushed while a
	// worker handles it.
	Lease time.Duration
}

// RetryWorker re-applies pending deliveries whose backoff has elapsed.
type RetryWorker struct {
	deliveries *repositories.DeliveryRepository
	processor  *Processor
	cfg        RetryConfig
	now        func() time.Time
}

func NewRetryWorker(deliveries *repositories.DeliveryRepository, processor *Processor, cfg RetryConfig) *RetryWorker {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.Lease <= 0 {
		cfg.Lease = time.Minute
	}
	return &RetryWorker{deliveries: deliveries, processor: processor, cfg: cfg, now: time.Now}
}

// Run polls until ctx is cancelled.
func (w *RetryWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	log.Info().Dur("interval", w.cfg.Interval).Msg("webhook retry worker started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("webhook retry worker stopped")
			return
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil {
				log.Error().Err(err).Msg("webhook retry pass failed")
			}
		}
	}
}

// RunOnce processes one batch of due deliveries and returns how many it
// claimed.
func (w *RetryWorker) RunOnce(ctx context.Context) (int, error) {
	now := w.now()
	due, err := w.deliveries.FetchDue(ctx, now.Unix(), w.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	claimed := 0
	for _, d := range due {
		if ctx.Err() != nil {
			return claimed, ctx.Err()
		}
		if d.NextRetryAt == nil {
			continue
		}

		ok, err := w.deliveries.Claim(ctx, d.ID, *d.NextRetryAt, now.Add(w.cfg.Lease).Unix())
		if err != nil {
			log.Error().Err(err).Str("delivery", d.ID).Msg("failed to claim delivery")
			continue
		}
		if !ok {
			continue
		}
		claimed++

		if err := w.processor.Retry(ctx, d); err != nil {
			log.Error().Err(err).Str("webhook_id", d.WebhookID).Str("delivery", d.ID).Msg("failed to record retry")
		}
	}
	return claimed, nil
}
