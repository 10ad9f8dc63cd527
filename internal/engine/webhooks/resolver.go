package webhooks

import (
	"context"
	"strings"

	"storehub/internal/pkg/errors"
	"storehub/internal/platform/models"
	"storehub/internal/platform/repositories"
)

// routeMarker is the path segment that precedes the routing id in every
// delivery URL we hand to WooCommerce.
const routeMarker = "woocommerce"

// Resolver maps inbound deliveries to the store they belong to.
type Resolver struct {
	webhooks *repositories.WebhookRepository
	stores   *repositories.StoreRepository
}

func NewResolver(webhooks *repositories.WebhookRepository, stores *repositories.StoreRepository) *Resolver {
	return &Resolver{webhooks: webhooks, stores: stores}
}

func (r *Resolver) ResolveByRoutingID(ctx context.Context, routingID string) (*models.StoreContext, error) {
	if routingID == "" {
		return nil, errors.NotFound("Webhook not found")
	}
	webhook, err := r.webhooks.GetByRoutingID(ctx, routingID)
	if err != nil {
		return nil, errors.Internal("Failed to look up webhook", err)
	}
	return r.storeContext(ctx, webhook)
}

func (r *Resolver) ResolveByWebhookID(ctx context.Context, webhookID string) (*models.StoreContext, error) {
	webhook, err := r.webhooks.GetByID(ctx, webhookID)
	if err != nil {
		return nil, errors.Internal("Failed to look up webhook", err)
	}
	return r.storeContext(ctx, webhook)
}

func (r *Resolver) storeContext(ctx context.Context, webhook *models.WebhookRegistration) (*models.StoreContext, error) {
	if webhook == nil {
		return nil, errors.NotFound("Webhook not found")
	}
	store, err := r.stores.GetByID(ctx, webhook.StoreID)
	if err != nil {
		return nil, errors.Internal("Failed to look up store", err)
	}
	if store == nil {
		return nil, errors.NotFound("Store not found for webhook")
	}

	return &models.StoreContext{
		WebhookID:      webhook.ID,
		StoreID:        store.ID,
		OrganizationID: store.OrganizationID,
		OwnerUserID:    store.OwnerID,
		SharedSecret:   webhook.Secret,
		StoreName:      store.Name,
		StoreBaseURL:   store.BaseURL,
		Webhook:        webhook,
	}, nil
}

// RoutingIDFromPath returns the segment following "/woocommerce/" in an
// inbound path or delivery URL.
func RoutingIDFromPath(path string) (string, bool) {
	if i := strings.Index(path, "://"); i >= 0 {
		path = path[i+3:]
	}
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}

	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if seg == routeMarker && i+1 < len(segments) && segments[i+1] != "" {
			return segments[i+1], true
		}
	}
	return "", false
}

// DeliveryURL builds the URL WooCommerce posts a topic's deliveries to.
func DeliveryURL(publicBaseURL, routingID, topic string) string {
	return strings.TrimRight(publicBaseURL, "/") + "/webhooks/" + routeMarker + "/" + routingID + "/" + topic
}
