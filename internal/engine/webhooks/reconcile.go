package webhooks

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"storehub/internal/engine/woocommerce"
	"storehub/internal/platform/models"
	"storehub/internal/platform/repositories"
)

type ReconcileReport struct {
	Checked  int
	Disabled int
	Mirrored int
	Pushed   int
	Errors   int
}

// Reconciler copies the state of each webhook on its store back onto the
// local registration. It repairs drift left when a store call succeeded but
// the local write did not, and webhooks removed from the store directly.
// A locally disabled registration is never re-enabled from the store; its
// disabled status is pushed to the store instead.
type Reconciler struct {
	webhooks *repositories.WebhookRepository
	stores   *repositories.StoreRepository
	remotes  RemoteProvider
	interval time.Duration
}

func NewReconciler(webhooks *repositories.WebhookRepository, stores *repositories.StoreRepository, remotes RemoteProvider, interval time.Duration) *Reconciler {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Reconciler{webhooks: webhooks, stores: stores, remotes: remotes, interval: interval}
}

func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", r.interval).Msg("webhook reconciler started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("webhook reconciler stopped")
			return
		case <-ticker.C:
			report, err := r.RunOnce(ctx)
			if err != nil {
				log.Error().Err(err).Msg("webhook reconcile pass failed")
				continue
			}
			log.Info().Int("checked", report.Checked).Int("disabled", report.Disabled).Int("mirrored", report.Mirrored).Int("pushed", report.Pushed).Int("errors", report.Errors).Msg("webhook reconcile pass finished")
		}
	}
}

func (r *Reconciler) RunOnce(ctx context.Context) (*ReconcileReport, error) {
	webhooks, err := r.webhooks.List(ctx, repositories.WebhookFilter{})
	if err != nil {
		return nil, err
	}

	report := &ReconcileReport{}
	stores := make(map[string]*models.Store)

	for _, w := range webhooks {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		if w.RemoteID == 0 {
			continue
		}

		store, ok := stores[w.StoreID]
		if !ok {
			store, err = r.stores.GetByID(ctx, w.StoreID)
			if err != nil {
				report.Errors++
				continue
			}
			stores[w.StoreID] = store
		}
		if store == nil || !store.HasCredentials() {
			continue
		}

		remote, err := r.remotes(store)
		if err != nil {
			report.Errors++
			continue
		}

		report.Checked++
		hook, err := remote.GetWebhook(ctx, w.RemoteID)
		if woocommerce.IsNotFound(err) {
			if w.Status != models.WebhookStatusDisabled {
				if err := r.webhooks.UpdateStatus(ctx, w.ID, models.WebhookStatusDisabled); err != nil {
					report.Errors++
					continue
				}
				report.Disabled++
				log.Warn().Str("webhook_id", w.ID).Str("store_id", w.StoreID).Msg("webhook missing on store, disabled locally")
			}
			continue
		}
		if err != nil {
			report.Errors++
			log.Warn().Err(err).Str("webhook_id", w.ID).Msg("failed to fetch webhook from store")
			continue
		}

		if hook.Status == w.Status {
			continue
		}

		if w.Status == models.WebhookStatusDisabled {
			if _, err := remote.UpdateWebhook(ctx, w.RemoteID, woocommerce.Webhook{Status: models.WebhookStatusDisabled}); err != nil {
				report.Errors++
				log.Warn().Err(err).Str("webhook_id", w.ID).Msg("failed to disable webhook on store")
				continue
			}
			report.Pushed++
			log.Info().Str("webhook_id", w.ID).Str("remote_status", hook.Status).Msg("disabled status pushed to store")
			continue
		}

		if models.IsValidWebhookStatus(hook.Status) {
			if err := r.webhooks.UpdateStatus(ctx, w.ID, hook.Status); err != nil {
				report.Errors++
				continue
			}
			report.Mirrored++
			log.Info().Str("webhook_id", w.ID).Str("from", w.Status).Str("to", hook.Status).Msg("webhook status mirrored from store")
		}
	}
	return report, nil
}
