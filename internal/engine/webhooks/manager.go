package webhooks

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"storehub/internal/engine/woocommerce"
	"storehub/internal/pkg/errors"
	"storehub/internal/platform/audit"
	"storehub/internal/platform/models"
	"storehub/internal/platform/repositories"
)

type ManagerConfig struct {
	PublicBaseURL string
	BulkBatchSize int
	BulkPause     time.Duration
}

// Actor is the operator calling the management API. A non-empty
// OrganizationID limits every operation to that organization's webhooks.
type Actor struct {
	UserID         string
	OrganizationID string
	IPAddress      string
	UserAgent      string
}

type RegisterRequest struct {
	StoreID string `json:"storeId"`
	Topic   string `json:"topic"`
	Name    string `json:"name,omitempty"`
}

type RegisterResult struct {
	Webhook      *models.WebhookRegistration `json:"webhook"`
	DeliveryURL  string                      `json:"deliveryUrl"`
	Instructions string                      `json:"instructions"`
}

type UpdateRequest struct {
	Name   *string `json:"name,omitempty"`
	Status *string `json:"status,omitempty"`
	Topic  *string `json:"topic,omitempty"`
}

type Summary struct {
	Total    int `json:"total"`
	Active   int `json:"active"`
	Paused   int `json:"paused"`
	Disabled int `json:"disabled"`
}

type ListResult struct {
	Webhooks []*models.WebhookRegistration `json:"webhooks"`
	Summary  Summary                       `json:"summary"`
}

type BulkItemResult struct {
	WebhookID string `json:"webhookId"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
}

type BulkResult struct {
	Successful int              `json:"successful"`
	Failed     int              `json:"failed"`
	Results    []BulkItemResult `json:"results"`
}

type Stats struct {
	Days     int `json:"days"`
	Webhooks struct {
		Total    int            `json:"total"`
		ByStatus map[string]int `json:"byStatus"`
		ByTopic  map[string]int `json:"byTopic"`
	} `json:"webhooks"`
	Deliveries struct {
		Total    int            `json:"total"`
		ByStatus map[string]int `json:"byStatus"`
	} `json:"deliveries"`
}

// Manager owns webhook registrations. Mutations go to the store first and
// are mirrored locally only when the store accepted them.
type Manager struct {
	webhooks   *repositories.WebhookRepository
	deliveries *repositories.DeliveryRepository
	stores     *repositories.StoreRepository
	remotes    RemoteProvider
	audit      audit.Recorder
	cfg        ManagerConfig
	now        func() time.Time
}

func NewManager(
	webhooks *repositories.WebhookRepository,
	deliveries *repositories.DeliveryRepository,
	stores *repositories.StoreRepository,
	remotes RemoteProvider,
	recorder audit.Recorder,
	cfg ManagerConfig,
) *Manager {
	if cfg.BulkBatchSize <= 0 {
		cfg.BulkBatchSize = 5
	}
	if cfg.BulkPause < 0 {
		cfg.BulkPause = 0
	}
	return &Manager{
		webhooks:   webhooks,
		deliveries: deliveries,
		stores:     stores,
		remotes:    remotes,
		audit:      recorder,
		cfg:        cfg,
		now:        time.Now,
	}
}

func (m *Manager) Register(ctx context.Context, actor Actor, req RegisterRequest) (*RegisterResult, error) {
	if req.StoreID == "" {
		return nil, errors.InvalidInput("storeId is required", nil)
	}
	if !models.IsValidTopic(req.Topic) {
		return nil, errors.InvalidInput("Invalid topic", map[string]interface{}{"validTopics": models.Topics})
	}

	store, err := m.stores.GetByID(ctx, req.StoreID)
	if err != nil {
		return nil, errors.Internal("Failed to look up store", err)
	}
	if store == nil || !actor.canAccess(store.OrganizationID) {
		return nil, errors.NotFound("Store not found")
	}
	if !store.HasCredentials() {
		return nil, errors.InvalidInput("Store API credentials are not configured", nil)
	}

	remote, err := m.remotes(store)
	if err != nil {
		return nil, errors.InvalidInput("Store API credentials are not configured", nil)
	}

	secret, err := generateSecret()
	if err != nil {
		return nil, errors.Internal("Failed to generate webhook secret", err)
	}
	routingID, err := m.newRoutingID(ctx, store.ID)
	if err != nil {
		return nil, errors.Internal("Failed to generate routing id", err)
	}
	deliveryURL := DeliveryURL(m.cfg.PublicBaseURL, routingID, req.Topic)

	name := req.Name
	if name == "" {
		name = fmt.Sprintf("%s - %s", store.Name, req.Topic)
	}

	created, err := remote.CreateWebhook(ctx, woocommerce.Webhook{
		Name:        name,
		Status:      models.WebhookStatusActive,
		Topic:       req.Topic,
		DeliveryURL: deliveryURL,
		Secret:      secret,
	})
	if err != nil {
		if woocommerce.IsRejection(err) {
			log.Warn().Err(err).Str("store_id", store.ID).Str("topic", req.Topic).Msg("store rejected webhook registration")
			return nil, &errors.AppError{Kind: errors.KindInvalidInput, Message: "Store rejected webhook registration: " + remoteMessage(err), Err: err}
		}
		log.Error().Err(err).Str("store_id", store.ID).Str("topic", req.Topic).Msg("failed to create webhook on store")
		return nil, errors.Remote("Failed to create webhook on store: "+remoteMessage(err), err)
	}

	webhook := &models.WebhookRegistration{
		RemoteID:       created.ID,
		RoutingID:      routingID,
		StoreID:        store.ID,
		OrganizationID: store.OrganizationID,
		Name:           name,
		Topic:          req.Topic,
		DeliveryURL:    deliveryURL,
		Secret:         secret,
		Status:         models.WebhookStatusActive,
	}
	if err := m.webhooks.Create(ctx, webhook); err != nil {
		return nil, errors.Internal("Failed to save webhook", err)
	}

	log.Info().Str("webhook_id", webhook.ID).Str("store_id", store.ID).Str("topic", webhook.Topic).Int64("remote_id", webhook.RemoteID).Msg("webhook registered")
	m.record(ctx, actor, "webhook_registered", webhook, map[string]interface{}{"topic": webhook.Topic, "remote_id": webhook.RemoteID})

	return &RegisterResult{
		Webhook:     webhook,
		DeliveryURL: deliveryURL,
		Instructions: fmt.Sprintf("The webhook was created on %s and will deliver %s events to %s. "+
			"To configure it manually, go to WooCommerce > Settings > Advanced > Webhooks and paste this URL.", store.Name, req.Topic, deliveryURL),
	}, nil
}

func (m *Manager) List(ctx context.Context, actor Actor, filter repositories.WebhookFilter) (*ListResult, error) {
	filter = actor.scope(filter)
	webhooks, err := m.webhooks.List(ctx, filter)
	if err != nil {
		return nil, errors.Internal("Failed to list webhooks", err)
	}

	result := &ListResult{Webhooks: webhooks}
	for _, w := range webhooks {
		result.Summary.Total++
		switch w.Status {
		case models.WebhookStatusActive:
			result.Summary.Active++
		case models.WebhookStatusPaused:
			result.Summary.Paused++
		case models.WebhookStatusDisabled:
			result.Summary.Disabled++
		}
	}
	return result, nil
}

func (m *Manager) Get(ctx context.Context, actor Actor, id string) (*models.WebhookRegistration, error) {
	webhook, err := m.webhooks.GetByID(ctx, id)
	if err != nil {
		return nil, errors.Internal("Failed to look up webhook", err)
	}
	if webhook == nil || !actor.canAccess(webhook.OrganizationID) {
		return nil, errors.NotFound("Webhook not found")
	}
	return webhook, nil
}

func (m *Manager) Update(ctx context.Context, actor Actor, id string, req UpdateRequest) (*models.WebhookRegistration, error) {
	if req.Status != nil && !models.IsValidWebhookStatus(*req.Status) {
		return nil, errors.InvalidInput("Invalid status", nil)
	}
	if req.Topic != nil && !models.IsValidTopic(*req.Topic) {
		return nil, errors.InvalidInput("Invalid topic", map[string]interface{}{"validTopics": models.Topics})
	}

	webhook, err := m.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	updated := *webhook
	var change woocommerce.Webhook
	if req.Name != nil && *req.Name != "" {
		updated.Name = *req.Name
		change.Name = *req.Name
	}
	if req.Status != nil {
		updated.Status = *req.Status
		change.Status = *req.Status
	}
	if req.Topic != nil && *req.Topic != webhook.Topic {
		updated.Topic = *req.Topic
		updated.DeliveryURL = DeliveryURL(m.cfg.PublicBaseURL, webhook.RoutingID, *req.Topic)
		change.Topic = updated.Topic
		change.DeliveryURL = updated.DeliveryURL
	}

	if err := m.pushRemote(ctx, webhook, change); err != nil {
		return nil, err
	}

	if updated.Status == models.WebhookStatusActive && webhook.Status != models.WebhookStatusActive {
		updated.FailureCount = 0
	}
	if err := m.webhooks.Update(ctx, &updated); err != nil {
		log.Error().Err(err).Str("webhook_id", webhook.ID).Msg("store updated but local mirror failed")
		return nil, errors.Internal("Failed to save webhook", err)
	}

	m.record(ctx, actor, "webhook_updated", &updated, map[string]interface{}{"status": updated.Status, "topic": updated.Topic})
	return &updated, nil
}

func (m *Manager) Delete(ctx context.Context, actor Actor, id string) error {
	webhook, err := m.Get(ctx, actor, id)
	if err != nil {
		return err
	}

	if webhook.RemoteID != 0 {
		remote, err := m.remoteFor(ctx, webhook)
		if err != nil {
			return err
		}
		if err := remote.DeleteWebhook(ctx, webhook.RemoteID); err != nil && !woocommerce.IsNotFound(err) {
			return errors.Remote("Failed to delete webhook on store: "+remoteMessage(err), err)
		}
	}

	if err := m.webhooks.Delete(ctx, webhook.ID); err != nil {
		log.Error().Err(err).Str("webhook_id", webhook.ID).Msg("store deleted but local delete failed")
		return errors.Internal("Failed to delete webhook", err)
	}

	log.Info().Str("webhook_id", webhook.ID).Str("store_id", webhook.StoreID).Msg("webhook deleted")
	m.record(ctx, actor, "webhook_deleted", webhook, nil)
	return nil
}

// BulkUpdateStatus changes the status of many webhooks. Items in a batch run
// concurrently; batches run one after another with a pause in between to
// stay under store rate limits.
func (m *Manager) BulkUpdateStatus(ctx context.Context, actor Actor, ids []string, status string) (*BulkResult, error) {
	if len(ids) == 0 {
		return nil, errors.InvalidInput("webhookIds must not be empty", nil)
	}
	if !models.IsValidWebhookStatus(status) {
		return nil, errors.InvalidInput("Invalid status", nil)
	}

	result := &BulkResult{Results: make([]BulkItemResult, len(ids))}
	for start := 0; start < len(ids); start += m.cfg.BulkBatchSize {
		if start > 0 && m.cfg.BulkPause > 0 {
			select {
			case <-ctx.Done():
				return nil, errors.Internal("Bulk update cancelled", ctx.Err())
			case <-time.After(m.cfg.BulkPause):
			}
		}

		end := start + m.cfg.BulkBatchSize
		if end > len(ids) {
			end = len(ids)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				item := BulkItemResult{WebhookID: ids[i], Success: true}
				if _, err := m.Update(ctx, actor, ids[i], UpdateRequest{Status: &status}); err != nil {
					item.Success = false
					item.Error = errorMessage(err)
				}
				result.Results[i] = item
			}(i)
		}
		wg.Wait()
	}

	for _, r := range result.Results {
		if r.Success {
			result.Successful++
		} else {
			result.Failed++
		}
	}
	log.Info().Int("successful", result.Successful).Int("failed", result.Failed).Str("status", status).Msg("bulk webhook status update")
	return result, nil
}

func (m *Manager) Deliveries(ctx context.Context, actor Actor, webhookID string) ([]*models.WebhookDelivery, error) {
	if _, err := m.Get(ctx, actor, webhookID); err != nil {
		return nil, err
	}
	deliveries, err := m.deliveries.ListByWebhook(ctx, webhookID, 50)
	if err != nil {
		return nil, errors.Internal("Failed to list deliveries", err)
	}
	return deliveries, nil
}

func (m *Manager) Delivery(ctx context.Context, actor Actor, webhookID, deliveryID string) (*models.WebhookDelivery, error) {
	if _, err := m.Get(ctx, actor, webhookID); err != nil {
		return nil, err
	}
	delivery, err := m.deliveries.GetByID(ctx, webhookID, deliveryID)
	if err != nil {
		return nil, errors.Internal("Failed to look up delivery", err)
	}
	if delivery == nil {
		return nil, errors.NotFound("Delivery not found")
	}
	return delivery, nil
}

// Test asks the store to ping the delivery URL by saving the webhook again.
// The resulting delivery is handled like any other inbound request.
func (m *Manager) Test(ctx context.Context, actor Actor, id string) error {
	webhook, err := m.Get(ctx, actor, id)
	if err != nil {
		return err
	}
	if webhook.RemoteID == 0 {
		return errors.InvalidInput("Webhook is not registered on the store", nil)
	}
	if err := m.pushRemote(ctx, webhook, woocommerce.Webhook{DeliveryURL: webhook.DeliveryURL}); err != nil {
		return err
	}
	m.record(ctx, actor, "webhook_tested", webhook, nil)
	return nil
}

func (m *Manager) Stats(ctx context.Context, actor Actor, filter repositories.WebhookFilter, days int) (*Stats, error) {
	if days <= 0 {
		days = 30
	}
	filter = actor.scope(filter)

	byStatus, err := m.webhooks.CountByStatus(ctx, filter)
	if err != nil {
		return nil, errors.Internal("Failed to count webhooks", err)
	}
	byTopic, err := m.webhooks.CountByTopic(ctx, filter)
	if err != nil {
		return nil, errors.Internal("Failed to count webhooks", err)
	}
	since := m.now().AddDate(0, 0, -days).Unix()
	deliveries, err := m.deliveries.CountByStatusSince(ctx, filter, since)
	if err != nil {
		return nil, errors.Internal("Failed to count deliveries", err)
	}

	stats := &Stats{Days: days}
	stats.Webhooks.ByStatus = byStatus
	stats.Webhooks.ByTopic = byTopic
	for _, n := range byStatus {
		stats.Webhooks.Total += n
	}
	stats.Deliveries.ByStatus = deliveries
	for _, n := range deliveries {
		stats.Deliveries.Total += n
	}
	return stats, nil
}

func (m *Manager) pushRemote(ctx context.Context, webhook *models.WebhookRegistration, change woocommerce.Webhook) error {
	if webhook.RemoteID == 0 || change == (woocommerce.Webhook{}) {
		return nil
	}
	remote, err := m.remoteFor(ctx, webhook)
	if err != nil {
		return err
	}
	if _, err := remote.UpdateWebhook(ctx, webhook.RemoteID, change); err != nil {
		log.Warn().Err(err).Str("webhook_id", webhook.ID).Int64("remote_id", webhook.RemoteID).Msg("store rejected webhook update")
		return errors.Remote("Failed to update webhook on store: "+remoteMessage(err), err)
	}
	return nil
}

func (m *Manager) remoteFor(ctx context.Context, webhook *models.WebhookRegistration) (RemoteWebhooks, error) {
	store, err := m.stores.GetByID(ctx, webhook.StoreID)
	if err != nil {
		return nil, errors.Internal("Failed to look up store", err)
	}
	if store == nil {
		return nil, errors.NotFound("Store not found for webhook")
	}
	remote, err := m.remotes(store)
	if err != nil {
		return nil, errors.InvalidInput("Store API credentials are not configured", nil)
	}
	return remote, nil
}

func (m *Manager) record(ctx context.Context, actor Actor, action string, webhook *models.WebhookRegistration, meta map[string]interface{}) {
	if m.audit == nil {
		return
	}
	if meta == nil {
		meta = map[string]interface{}{}
	}
	meta["store_id"] = webhook.StoreID
	m.audit.Record(ctx, audit.Entry{
		OrganizationID: webhook.OrganizationID,
		ActorID:        actor.UserID,
		Action:         action,
		ResourceType:   "webhook",
		ResourceID:     webhook.ID,
		Metadata:       meta,
		IPAddress:      actor.IPAddress,
		UserAgent:      actor.UserAgent,
	})
}

func (a Actor) canAccess(orgID string) bool {
	return a.OrganizationID == "" || a.OrganizationID == orgID
}

func (a Actor) scope(filter repositories.WebhookFilter) repositories.WebhookFilter {
	if a.OrganizationID != "" {
		filter.OrganizationID = a.OrganizationID
	}
	return filter
}

// newRoutingID returns "{storeId}-{unixMillis}", stepping the timestamp
// forward if a registration of the same store already took it.
func (m *Manager) newRoutingID(ctx context.Context, storeID string) (string, error) {
	ts := m.now().UnixMilli()
	for i := 0; i < 10; i++ {
		id := storeID + "-" + strconv.FormatInt(ts+int64(i), 10)
		existing, err := m.webhooks.GetByRoutingID(ctx, id)
		if err != nil {
			return "", err
		}
		if existing == nil {
			return id, nil
		}
	}
	return "", fmt.Errorf("no free routing id for store %s", storeID)
}

func generateSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func remoteMessage(err error) string {
	if apiErr, ok := err.(*woocommerce.APIError); ok {
		return apiErr.Message
	}
	return err.Error()
}

func errorMessage(err error) string {
	if appErr, ok := err.(*errors.AppError); ok {
		return appErr.Message
	}
	return err.Error()
}
