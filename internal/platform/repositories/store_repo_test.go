package repositories

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"storehub/internal/platform/models"
)

func TestStoreRepository_GetByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	repo := NewStoreRepository(db)

	rows := sqlmock.NewRows([]string{"id", "organization_id", "owner_id", "name", "base_url", "consumer_key", "consumer_secret", "created_at", "updated_at"}).
		AddRow("store_1", "org_1", "user_1", "Shop", "https://shop.example.com", "ck", "cs", 1, 1)
	mock.ExpectQuery(regexp.QuoteMeta("FROM stores WHERE id = ?")).
		WithArgs("store_1").
		WillReturnRows(rows)

	store, err := repo.GetByID(context.Background(), "store_1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if store == nil || !store.HasCredentials() {
		t.Fatalf("expected store with credentials, got %+v", store)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestStoreRepository_CreateAndMissing(t *testing.T) {
	db := setupTestDB(t)
	repo := NewStoreRepository(db)
	ctx := context.Background()

	store := &models.Store{OrganizationID: "org_1", OwnerID: "user_1", Name: "Shop", BaseURL: "https://shop.example.com"}
	if err := repo.Create(ctx, store); err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, _ := repo.GetByID(ctx, store.ID)
	if got == nil || got.HasCredentials() {
		t.Errorf("store without keys should report no credentials: %+v", got)
	}

	missing, err := repo.GetByID(ctx, "nope")
	if err != nil || missing != nil {
		t.Errorf("expected nil, nil for missing store, got %v %v", missing, err)
	}
}
