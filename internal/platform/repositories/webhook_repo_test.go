package repositories

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"storehub/internal/platform/models"
)

func newRegistration(storeID, routingID, topic string) *models.WebhookRegistration {
	return &models.WebhookRegistration{
		RemoteID:       42,
		RoutingID:      routingID,
		StoreID:        storeID,
		OrganizationID: "org_1",
		Name:           "Orders",
		Topic:          topic,
		DeliveryURL:    "https://hooks.example.com/webhooks/woocommerce/" + routingID + "/" + topic,
		Secret:         "secret",
	}
}

func TestWebhookRepository_CreateAndLookup(t *testing.T) {
	db := setupTestDB(t)
	repo := NewWebhookRepository(db)
	ctx := context.Background()

	wh := newRegistration("store_1", "store_1-1700000000000", "order.created")
	if err := repo.Create(ctx, wh); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if wh.ID == "" || wh.Status != models.WebhookStatusActive {
		t.Fatalf("expected generated id and active status, got %+v", wh)
	}

	byRouting, err := repo.GetByRoutingID(ctx, "store_1-1700000000000")
	if err != nil || byRouting == nil {
		t.Fatalf("GetByRoutingID: %v %v", byRouting, err)
	}
	if byRouting.ID != wh.ID || byRouting.Secret != "secret" || byRouting.RemoteID != 42 {
		t.Errorf("unexpected registration %+v", byRouting)
	}

	missing, err := repo.GetByID(ctx, "wh_missing")
	if err != nil || missing != nil {
		t.Errorf("expected nil, nil for missing webhook, got %v, %v", missing, err)
	}

	dup := newRegistration("store_1", "store_1-1700000000000", "order.updated")
	if err := repo.Create(ctx, dup); err == nil {
		t.Error("expected unique violation for duplicate routing id")
	}
}

func TestWebhookRepository_RecordFailureDisablesAtThreshold(t *testing.T) {
	db := setupTestDB(t)
	repo := NewWebhookRepository(db)
	ctx := context.Background()

	wh := newRegistration("store_1", "store_1-1", "order.created")
	if err := repo.Create(ctx, wh); err != nil {
		t.Fatalf("Create: %v", err)
	}

	now := time.Now().Unix()
	for i := 1; i <= 4; i++ {
		count, status, err := repo.RecordFailure(ctx, wh.ID, now, "boom", 5)
		if err != nil {
			t.Fatalf("RecordFailure: %v", err)
		}
		if count != i || status != models.WebhookStatusActive {
			t.Fatalf("failure %d: count=%d status=%s", i, count, status)
		}
	}

	if err := repo.RecordSuccess(ctx, wh.ID, now); err != nil {
		t.Fatalf("RecordSuccess: %v", err)
	}
	got, _ := repo.GetByID(ctx, wh.ID)
	if got.FailureCount != 0 || got.LastDeliveryAt == nil {
		t.Fatalf("expected counter reset after success, got %+v", got)
	}

	var status string
	for i := 0; i < 5; i++ {
		_, status, _ = repo.RecordFailure(ctx, wh.ID, now, "boom", 5)
	}
	if status != models.WebhookStatusDisabled {
		t.Errorf("expected disabled after 5 consecutive failures, got %s", status)
	}
	got, _ = repo.GetByID(ctx, wh.ID)
	if got.LastFailureReason == nil || *got.LastFailureReason != "boom" {
		t.Errorf("failure reason not stored: %+v", got)
	}
}

func TestWebhookRepository_ListAndCounts(t *testing.T) {
	db := setupTestDB(t)
	repo := NewWebhookRepository(db)
	ctx := context.Background()

	repo.Create(ctx, newRegistration("store_1", "r1", "order.created"))
	repo.Create(ctx, newRegistration("store_1", "r2", "order.updated"))
	paused := newRegistration("store_2", "r3", "order.created")
	paused.Status = models.WebhookStatusPaused
	repo.Create(ctx, paused)

	list, err := repo.List(ctx, WebhookFilter{StoreID: "store_1"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 {
		t.Errorf("expected 2 webhooks for store_1, got %d", len(list))
	}

	byStatus, _ := repo.CountByStatus(ctx, WebhookFilter{OrganizationID: "org_1"})
	if byStatus["active"] != 2 || byStatus["paused"] != 1 {
		t.Errorf("unexpected status counts %v", byStatus)
	}

	byTopic, _ := repo.CountByTopic(ctx, WebhookFilter{})
	if byTopic["order.created"] != 2 || byTopic["order.updated"] != 1 {
		t.Errorf("unexpected topic counts %v", byTopic)
	}

	if err := repo.UpdateStatus(ctx, paused.ID, models.WebhookStatusActive); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	got, _ := repo.GetByID(ctx, paused.ID)
	if got.Status != models.WebhookStatusActive {
		t.Errorf("expected active, got %s", got.Status)
	}
}

func TestWebhookRepository_RecordFailureSQL(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewWebhookRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE webhooks")).
		WithArgs(int64(100), "timeout", 5, int64(100), "wh_1").
		WillReturnRows(sqlmock.NewRows([]string{"failure_count", "status"}).AddRow(5, "disabled"))

	count, status, err := repo.RecordFailure(context.Background(), "wh_1", 100, "timeout", 5)
	if err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}
	if count != 5 || status != "disabled" {
		t.Errorf("got count=%d status=%s", count, status)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}
