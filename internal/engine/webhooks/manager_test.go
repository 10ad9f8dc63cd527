package webhooks

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"testing"
	"time"

	"storehub/internal/engine/woocommerce"
	"storehub/internal/pkg/errors"
	"storehub/internal/platform/models"
	"storehub/internal/platform/repositories"
)

var admin = Actor{UserID: "user_1", OrganizationID: "org_1"}

func TestManager_Register(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.manager.Register(ctx, admin, RegisterRequest{StoreID: "store_1", Topic: "product.updated", Name: "Inventory"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	w := res.Webhook
	if !strings.HasPrefix(w.RoutingID, "store_1-") {
		t.Errorf("routing id %q should start with the store id", w.RoutingID)
	}
	if !regexp.MustCompile(`^[0-9a-f]{64}$`).MatchString(w.Secret) {
		t.Errorf("secret should be 32 random bytes hex encoded, got %q", w.Secret)
	}
	wantURL := "https://hooks.example.com/webhooks/woocommerce/" + w.RoutingID + "/product.updated"
	if res.DeliveryURL != wantURL || w.DeliveryURL != wantURL {
		t.Errorf("delivery url = %q, want %q", res.DeliveryURL, wantURL)
	}
	if res.Instructions == "" {
		t.Error("expected operator instructions")
	}

	remote := env.remote.hooks[w.RemoteID]
	if remote.Secret != w.Secret || remote.DeliveryURL != wantURL || remote.Topic != "product.updated" {
		t.Errorf("remote webhook not created with local secret and url: %+v", remote)
	}

	stored, _ := env.webhooks.GetByID(ctx, w.ID)
	if stored == nil || stored.Secret != w.Secret || stored.Status != models.WebhookStatusActive {
		t.Errorf("registration not persisted: %+v", stored)
	}
}

func TestManager_RegisterValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	noKeys := &models.Store{ID: "store_2", OrganizationID: "org_1", Name: "No keys", BaseURL: "https://nokeys.example.com"}
	env.stores.Create(ctx, noKeys)

	tests := []struct {
		name string
		req  RegisterRequest
		kind errors.Kind
	}{
		{"invalid topic", RegisterRequest{StoreID: "store_1", Topic: "order.refunded"}, errors.KindInvalidInput},
		{"missing store", RegisterRequest{StoreID: "nope", Topic: "order.created"}, errors.KindNotFound},
		{"no credentials", RegisterRequest{StoreID: "store_2", Topic: "order.created"}, errors.KindInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.manager.Register(ctx, admin, tt.req)
			if !errors.Is(err, tt.kind) {
				t.Errorf("got %v, want kind %v", err, tt.kind)
			}
		})
	}

	if _, err := env.manager.Register(ctx, Actor{OrganizationID: "org_2"}, RegisterRequest{StoreID: "store_1", Topic: "order.created"}); !errors.Is(err, errors.KindNotFound) {
		t.Errorf("other organizations must not see the store, got %v", err)
	}

	remoteFailures := []struct {
		name      string
		createErr error
		kind      errors.Kind
		message   string
	}{
		{"store rejects", &woocommerce.APIError{StatusCode: 400, Code: "rest_invalid_param", Message: "Invalid parameter(s): topic"}, errors.KindInvalidInput, "Invalid parameter(s): topic"},
		{"store errors", &woocommerce.APIError{StatusCode: 503, Message: "Service Unavailable"}, errors.KindRemote, "Service Unavailable"},
		{"store unreachable", fmt.Errorf("dial tcp: connection refused"), errors.KindRemote, "connection refused"},
	}
	for _, tt := range remoteFailures {
		t.Run(tt.name, func(t *testing.T) {
			env.remote.createErr = tt.createErr
			_, err := env.manager.Register(ctx, admin, RegisterRequest{StoreID: "store_1", Topic: "order.created"})
			if !errors.Is(err, tt.kind) || !strings.Contains(err.Error(), tt.message) {
				t.Errorf("got %v, want kind %v carrying %q", err, tt.kind, tt.message)
			}
		})
	}
	env.remote.createErr = nil

	list, _ := env.webhooks.List(ctx, repositories.WebhookFilter{})
	if len(list) != 0 {
		t.Errorf("nothing should be stored after failed registrations, got %d", len(list))
	}
}

func TestManager_Update(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	w := env.seedWebhook(t, 1, models.WebhookStatusActive)

	topic := "order.deleted"
	name := "Deletes"
	updated, err := env.manager.Update(ctx, admin, w.ID, UpdateRequest{Topic: &topic, Name: &name})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.RoutingID != w.RoutingID {
		t.Error("routing id must never change")
	}
	wantURL := DeliveryURL("https://hooks.example.com", w.RoutingID, topic)
	if updated.DeliveryURL != wantURL {
		t.Errorf("delivery url = %q, want %q", updated.DeliveryURL, wantURL)
	}
	if env.remote.hooks[w.RemoteID].DeliveryURL != wantURL {
		t.Error("remote delivery url not updated")
	}

	// remote failure leaves the local record untouched
	env.remote.updateErr[w.RemoteID] = fmt.Errorf("connection reset")
	paused := models.WebhookStatusPaused
	if _, err := env.manager.Update(ctx, admin, w.ID, UpdateRequest{Status: &paused}); !errors.Is(err, errors.KindRemote) {
		t.Fatalf("expected remote error, got %v", err)
	}
	stored, _ := env.webhooks.GetByID(ctx, w.ID)
	if stored.Status != models.WebhookStatusActive || stored.Topic != topic {
		t.Errorf("local record changed after remote failure: %+v", stored)
	}

	bogus := "sleeping"
	if _, err := env.manager.Update(ctx, admin, w.ID, UpdateRequest{Status: &bogus}); !errors.Is(err, errors.KindInvalidInput) {
		t.Errorf("invalid status should be rejected, got %v", err)
	}
}

func TestManager_ReactivateResetsCounter(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	w := env.seedWebhook(t, 1, models.WebhookStatusActive)

	for i := 0; i < 5; i++ {
		env.webhooks.RecordFailure(ctx, w.ID, time.Now().Unix(), "boom", 5)
	}
	active := models.WebhookStatusActive
	updated, err := env.manager.Update(ctx, admin, w.ID, UpdateRequest{Status: &active})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.FailureCount != 0 || updated.Status != active {
		t.Errorf("reactivation should reset the counter: %+v", updated)
	}
}

func TestManager_Delete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.seedWebhook(t, 1, models.WebhookStatusActive)
	b := env.seedWebhook(t, 2, models.WebhookStatusActive)

	env.remote.deleteErr = fmt.Errorf("timeout")
	if err := env.manager.Delete(ctx, admin, a.ID); err == nil {
		t.Fatal("expected remote failure")
	}
	if w, _ := env.webhooks.GetByID(ctx, a.ID); w == nil {
		t.Fatal("local record must survive a failed remote delete")
	}
	env.remote.deleteErr = nil

	if err := env.manager.Delete(ctx, admin, a.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := env.remote.hooks[a.RemoteID]; ok {
		t.Error("remote webhook not deleted")
	}

	// already gone on the store
	delete(env.remote.hooks, b.RemoteID)
	if err := env.manager.Delete(ctx, admin, b.ID); err != nil {
		t.Fatalf("Delete with remote 404: %v", err)
	}
	if w, _ := env.webhooks.GetByID(ctx, b.ID); w != nil {
		t.Error("local record should be deleted")
	}

	if err := env.manager.Delete(ctx, admin, "wh_missing"); !errors.Is(err, errors.KindNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestManager_BulkDisable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 5; i++ {
		ids = append(ids, env.seedWebhook(t, i, models.WebhookStatusActive).ID)
	}
	ids = append(ids[:2], append([]string{"wh_bogus_1"}, ids[2:]...)...)
	ids = append(ids, "wh_bogus_2")

	res, err := env.manager.BulkUpdateStatus(ctx, admin, ids, models.WebhookStatusDisabled)
	if err != nil {
		t.Fatalf("BulkUpdateStatus: %v", err)
	}
	if res.Successful != 5 || res.Failed != 2 {
		t.Fatalf("successful=%d failed=%d, want 5/2", res.Successful, res.Failed)
	}
	if len(res.Results) != 7 {
		t.Fatalf("expected a result per id, got %d", len(res.Results))
	}
	for _, r := range res.Results {
		if strings.HasPrefix(r.WebhookID, "wh_bogus") {
			if r.Success || r.Error != "Webhook not found" {
				t.Errorf("%s: expected not found reason, got %+v", r.WebhookID, r)
			}
			continue
		}
		w, _ := env.webhooks.GetByID(ctx, r.WebhookID)
		if w.Status != models.WebhookStatusDisabled {
			t.Errorf("%s not disabled", r.WebhookID)
		}
	}

	if _, err := env.manager.BulkUpdateStatus(ctx, admin, nil, models.WebhookStatusDisabled); !errors.Is(err, errors.KindInvalidInput) {
		t.Errorf("empty id list should be rejected, got %v", err)
	}
}

func TestManager_BulkPausesBetweenBatches(t *testing.T) {
	env := newTestEnv(t)
	env.manager.cfg.BulkBatchSize = 2
	env.manager.cfg.BulkPause = 20 * time.Millisecond

	var ids []string
	for i := 0; i < 5; i++ {
		ids = append(ids, env.seedWebhook(t, i, models.WebhookStatusActive).ID)
	}

	start := time.Now()
	res, err := env.manager.BulkUpdateStatus(context.Background(), admin, ids, models.WebhookStatusPaused)
	if err != nil {
		t.Fatalf("BulkUpdateStatus: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("three batches should pause twice, took %v", elapsed)
	}
	if res.Successful != 5 {
		t.Errorf("successful = %d, want 5", res.Successful)
	}
}

func TestManager_ListAndStats(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := env.seedWebhook(t, 1, models.WebhookStatusActive)
	env.seedWebhook(t, 2, models.WebhookStatusPaused)
	env.seedWebhook(t, 3, models.WebhookStatusDisabled)

	env.deliveries.Save(ctx, &models.WebhookDelivery{WebhookID: a.ID, Status: models.DeliveryStatusSuccess})
	env.deliveries.Save(ctx, &models.WebhookDelivery{WebhookID: a.ID, Status: models.DeliveryStatusFailed})

	list, err := env.manager.List(ctx, admin, repositories.WebhookFilter{StoreID: "store_1"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if list.Summary != (Summary{Total: 3, Active: 1, Paused: 1, Disabled: 1}) {
		t.Errorf("unexpected summary %+v", list.Summary)
	}

	other, _ := env.manager.List(ctx, Actor{OrganizationID: "org_2"}, repositories.WebhookFilter{})
	if other.Summary.Total != 0 {
		t.Errorf("other organization sees %d webhooks", other.Summary.Total)
	}

	stats, err := env.manager.Stats(ctx, admin, repositories.WebhookFilter{}, 0)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Days != 30 || stats.Webhooks.Total != 3 || stats.Webhooks.ByTopic["order.created"] != 3 {
		t.Errorf("unexpected webhook stats %+v", stats.Webhooks)
	}
	if stats.Deliveries.Total != 2 || stats.Deliveries.ByStatus["failed"] != 1 {
		t.Errorf("unexpected delivery stats %+v", stats.Deliveries)
	}
}

func TestManager_DeliveriesAndTest(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	w := env.seedWebhook(t, 1, models.WebhookStatusActive)

	d := &models.WebhookDelivery{WebhookID: w.ID, DeliveryID: "42", Status: models.DeliveryStatusSuccess}
	env.deliveries.Save(ctx, d)

	list, err := env.manager.Deliveries(ctx, admin, w.ID)
	if err != nil || len(list) != 1 {
		t.Fatalf("Deliveries: %v %v", list, err)
	}
	for _, id := range []string{d.ID, "42"} {
		got, err := env.manager.Delivery(ctx, admin, w.ID, id)
		if err != nil || got.ID != d.ID {
			t.Errorf("Delivery(%s): %v %v", id, got, err)
		}
	}
	if _, err := env.manager.Delivery(ctx, admin, w.ID, "43"); !errors.Is(err, errors.KindNotFound) {
		t.Errorf("expected not found, got %v", err)
	}

	if err := env.manager.Test(ctx, admin, w.ID); err != nil {
		t.Fatalf("Test: %v", err)
	}
	last := env.remote.updates[len(env.remote.updates)-1]
	if last.DeliveryURL != w.DeliveryURL {
		t.Errorf("test should re-save the delivery url, got %+v", last)
	}
	after, _ := env.deliveries.ListByWebhook(ctx, w.ID, 0)
	if len(after) != 1 {
		t.Error("test must not record anything locally")
	}
}
