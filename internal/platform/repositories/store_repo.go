package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"storehub/internal/platform/models"
)

type StoreRepository struct {
	db *sql.DB
}

func NewStoreRepository(db *sql.DB) *StoreRepository {
	return &StoreRepository{db: db}
}

func (r *StoreRepository) Create(ctx context.Context, store *models.Store) error {
	if store.ID == "" {
		store.ID = uuid.NewString()
	}
	now := time.Now().Unix()
	store.CreatedAt = now
	store.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO stores (id, organization_id, owner_id, name, base_url, consumer_key, consumer_secret, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, store.ID, store.OrganizationID, store.OwnerID, store.Name, store.BaseURL, store.ConsumerKey, store.ConsumerSecret, store.CreatedAt, store.UpdatedAt)
	return err
}

func (r *StoreRepository) GetByID(ctx context.Context, id string) (*models.Store, error) {
	store := &models.Store{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, organization_id, owner_id, name, base_url, consumer_key, consumer_secret, created_at, updated_at
		FROM stores WHERE id = ?
	`, id).Scan(&store.ID, &store.OrganizationID, &store.OwnerID, &store.Name, &store.BaseURL, &store.ConsumerKey, &store.ConsumerSecret, &store.CreatedAt, &store.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return store, nil
}
