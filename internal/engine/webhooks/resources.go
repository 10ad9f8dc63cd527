package webhooks

import (
	"context"

	"storehub/internal/platform/database"
	"storehub/internal/platform/models"
	"storehub/internal/platform/repositories"
)

// ResourceStore is where normalized records are written. Upserts must be
// atomic on (external id, store id).
type ResourceStore interface {
	UpsertOrder(ctx context.Context, o *models.Order) error
	DeleteOrder(ctx context.Context, storeID, orderID string) error
	UpsertCustomer(ctx context.Context, c *models.Customer) error
	DeleteCustomer(ctx context.Context, storeID, customerID string) error
	UpsertProduct(ctx context.Context, p *models.Product) error
	DeleteProduct(ctx context.Context, storeID, productID string) error

	ProductIDs(ctx context.Context, storeID string, externalIDs []string) (map[string]string, error)
	CustomerIDByExternal(ctx context.Context, storeID, externalID string) (*string, error)
}

// ResourceProvider returns the resource store of an organization.
type ResourceProvider func(orgID string) (ResourceStore, error)

// TenantResources serves each organization from its own tenant database.
func TenantResources(pool *database.TenantDBPool) ResourceProvider {
	return func(orgID string) (ResourceStore, error) {
		db, err := pool.Get(orgID)
		if err != nil {
			return nil, err
		}
		return repositories.NewResourceRepository(db), nil
	}
}
