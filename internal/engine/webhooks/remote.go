package webhooks

import (
	"context"

	"storehub/internal/engine/woocommerce"
	"storehub/internal/platform/models"
)

// RemoteWebhooks is the part of the store REST API the manager needs.
type RemoteWebhooks interface {
	CreateWebhook(ctx context.Context, hook woocommerce.Webhook) (*woocommerce.Webhook, error)
	UpdateWebhook(ctx context.Context, id int64, hook woocommerce.Webhook) (*woocommerce.Webhook, error)
	GetWebhook(ctx context.Context, id int64) (*woocommerce.Webhook, error)
	DeleteWebhook(ctx context.Context, id int64) error
}

// RemoteProvider returns the REST client of a store.
type RemoteProvider func(store *models.Store) (RemoteWebhooks, error)

func WooCommerceRemotes(f *woocommerce.Factory) RemoteProvider {
	return func(store *models.Store) (RemoteWebhooks, error) {
		client, err := f.Client(store)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}
