package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"storehub/internal/platform/models"
)

// ResourceRepository stores synced orders, customers and products in an
// organization's tenant database. Writes are single upsert statements keyed
// by (external id, store id), so concurrent deliveries for the same record
// cannot lose updates.
type ResourceRepository struct {
	db *sql.DB
}

func NewResourceRepository(db *sql.DB) *ResourceRepository {
	return &ResourceRepository{db: db}
}

func (r *ResourceRepository) UpsertOrder(ctx context.Context, o *models.Order) error {
	now := time.Now().Unix()
	billing, _ := json.Marshal(o.Billing)
	shipping, _ := json.Marshal(o.Shipping)
	lineItems, _ := json.Marshal(o.LineItems)

	query := `
		INSERT INTO orders (
			id, order_id, store_id, organization_id, number, status, currency,
			total, subtotal, total_tax, shipping_total, discount_total,
			payment_method, payment_method_title, customer_external_id, customer_id,
			customer_email, customer_name, customer_note, billing, shipping, line_items,
			date_created, date_modified, date_paid, date_completed, raw, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(order_id, store_id) DO UPDATE SET
			organization_id = excluded.organization_id,
			number = excluded.number,
			status = excluded.status,
			currency = excluded.currency,
			total = excluded.total,
			subtotal = excluded.subtotal,
			total_tax = excluded.total_tax,
			shipping_total = excluded.shipping_total,
			discount_total = excluded.discount_total,
			payment_method = excluded.payment_method,
			payment_method_title = excluded.payment_method_title,
			customer_external_id = excluded.customer_external_id,
			customer_id = excluded.customer_id,
			customer_email = excluded.customer_email,
			customer_name = excluded.customer_name,
			customer_note = excluded.customer_note,
			billing = excluded.billing,
			shipping = excluded.shipping,
			line_items = excluded.line_items,
			date_created = excluded.date_created,
			date_modified = excluded.date_modified,
			date_paid = excluded.date_paid,
			date_completed = excluded.date_completed,
			raw = excluded.raw,
			updated_at = excluded.updated_at
		RETURNING id, created_at, updated_at
	`
	return r.db.QueryRowContext(ctx, query,
		uuid.New().String(), o.OrderID, o.StoreID, o.OrganizationID, o.Number, o.Status, o.Currency,
		o.Total, o.Subtotal, o.TotalTax, o.ShippingTotal, o.DiscountTotal,
		o.PaymentMethod, o.PaymentMethodTitle, o.CustomerExternalID, o.CustomerID,
		o.CustomerEmail, o.CustomerName, o.CustomerNote, string(billing), string(shipping), string(lineItems),
		o.DateCreated, o.DateModified, o.DatePaid, o.DateCompleted, string(o.Raw), now, now,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
}

func (r *ResourceRepository) DeleteOrder(ctx context.Context, storeID, orderID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM orders WHERE order_id = ? AND store_id = ?`, orderID, storeID)
	return err
}

func (r *ResourceRepository) GetOrder(ctx context.Context, storeID, orderID string) (*models.Order, error) {
	var o models.Order
	var billing, shipping, lineItems, raw sql.NullString
	var customerID sql.NullString
	var dateCreated, dateModified, datePaid, dateCompleted sql.NullInt64

	err := r.db.QueryRowContext(ctx, `
		SELECT id, order_id, store_id, organization_id, number, status, currency,
			total, subtotal, total_tax, shipping_total, discount_total,
			payment_method, payment_method_title, customer_external_id, customer_id,
			customer_email, customer_name, customer_note, billing, shipping, line_items,
			date_created, date_modified, date_paid, date_completed, raw, created_at, updated_at
		FROM orders WHERE order_id = ? AND store_id = ?
	`, orderID, storeID).Scan(&o.ID, &o.OrderID, &o.StoreID, &o.OrganizationID, &o.Number, &o.Status, &o.Currency,
		&o.Total, &o.Subtotal, &o.TotalTax, &o.ShippingTotal, &o.DiscountTotal,
		&o.PaymentMethod, &o.PaymentMethodTitle, &o.CustomerExternalID, &customerID,
		&o.CustomerEmail, &o.CustomerName, &o.CustomerNote, &billing, &shipping, &lineItems,
		&dateCreated, &dateModified, &datePaid, &dateCompleted, &raw, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	if customerID.Valid {
		o.CustomerID = &customerID.String
	}
	json.Unmarshal([]byte(billing.String), &o.Billing)
	json.Unmarshal([]byte(shipping.String), &o.Shipping)
	json.Unmarshal([]byte(lineItems.String), &o.LineItems)
	o.DateCreated = nullInt(dateCreated)
	o.DateModified = nullInt(dateModified)
	o.DatePaid = nullInt(datePaid)
	o.DateCompleted = nullInt(dateCompleted)
	o.Raw = []byte(raw.String)
	return &o, nil
}

func (r *ResourceRepository) UpsertCustomer(ctx context.Context, c *models.Customer) error {
	now := time.Now().Unix()
	billing, _ := json.Marshal(c.Billing)
	shipping, _ := json.Marshal(c.Shipping)

	query := `
		INSERT INTO customers (
			id, customer_id, store_id, organization_id, email, first_name, last_name, username, role,
			billing, shipping, is_paying_customer, avatar_url, orders_count, total_spent,
			date_created, date_modified, raw, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(customer_id, store_id) DO UPDATE SET
			organization_id = excluded.organization_id,
			email = excluded.email,
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			username = excluded.username,
			role = excluded.role,
			billing = excluded.billing,
			shipping = excluded.shipping,
			is_paying_customer = excluded.is_paying_customer,
			avatar_url = excluded.avatar_url,
			orders_count = excluded.orders_count,
			total_spent = excluded.total_spent,
			date_created = excluded.date_created,
			date_modified = excluded.date_modified,
			raw = excluded.raw,
			updated_at = excluded.updated_at
		RETURNING id, created_at, updated_at
	`
	return r.db.QueryRowContext(ctx, query,
		uuid.New().String(), c.CustomerID, c.StoreID, c.OrganizationID, c.Email, c.FirstName, c.LastName, c.Username, c.Role,
		string(billing), string(shipping), c.IsPayingCustomer, c.AvatarURL, c.OrdersCount, c.TotalSpent,
		c.DateCreated, c.DateModified, string(c.Raw), now, now,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
}

func (r *ResourceRepository) DeleteCustomer(ctx context.Context, storeID, customerID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM customers WHERE customer_id = ? AND store_id = ?`, customerID, storeID)
	return err
}

func (r *ResourceRepository) GetCustomer(ctx context.Context, storeID, customerID string) (*models.Customer, error) {
	var c models.Customer
	var billing, shipping, raw sql.NullString
	var dateCreated, dateModified sql.NullInt64

	err := r.db.QueryRowContext(ctx, `
		SELECT id, customer_id, store_id, organization_id, email, first_name, last_name, username, role,
			billing, shipping, is_paying_customer, avatar_url, orders_count, total_spent,
			date_created, date_modified, raw, created_at, updated_at
		FROM customers WHERE customer_id = ? AND store_id = ?
	`, customerID, storeID).Scan(&c.ID, &c.CustomerID, &c.StoreID, &c.OrganizationID, &c.Email, &c.FirstName, &c.LastName, &c.Username, &c.Role,
		&billing, &shipping, &c.IsPayingCustomer, &c.AvatarURL, &c.OrdersCount, &c.TotalSpent,
		&dateCreated, &dateModified, &raw, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	json.Unmarshal([]byte(billing.String), &c.Billing)
	json.Unmarshal([]byte(shipping.String), &c.Shipping)
	c.DateCreated = nullInt(dateCreated)
	c.DateModified = nullInt(dateModified)
	c.Raw = []byte(raw.String)
	return &c, nil
}

func (r *ResourceRepository) UpsertProduct(ctx context.Context, p *models.Product) error {
	now := time.Now().Unix()
	categories, _ := json.Marshal(p.Categories)
	images, _ := json.Marshal(p.Images)

	query := `
		INSERT INTO products (
			id, product_id, store_id, organization_id, name, slug, sku, type, status,
			price, regular_price, sale_price, stock_quantity, stock_status, manage_stock,
			categories, images, weight, description, date_created, date_modified, raw, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(product_id, store_id) DO UPDATE SET
			organization_id = excluded.organization_id,
			name = excluded.name,
			slug = excluded.slug,
			sku = excluded.sku,
			type = excluded.type,
			status = excluded.status,
			price = excluded.price,
			regular_price = excluded.regular_price,
			sale_price = excluded.sale_price,
			stock_quantity = excluded.stock_quantity,
			stock_status = excluded.stock_status,
			manage_stock = excluded.manage_stock,
			categories = excluded.categories,
			images = excluded.images,
			weight = excluded.weight,
			description = excluded.description,
			date_created = excluded.date_created,
			date_modified = excluded.date_modified,
			raw = excluded.raw,
			updated_at = excluded.updated_at
		RETURNING id, created_at, updated_at
	`
	return r.db.QueryRowContext(ctx, query,
		uuid.New().String(), p.ProductID, p.StoreID, p.OrganizationID, p.Name, p.Slug, p.SKU, p.Type, p.Status,
		p.Price, p.RegularPrice, p.SalePrice, p.StockQuantity, p.StockStatus, p.ManageStock,
		string(categories), string(images), p.Weight, p.Description, p.DateCreated, p.DateModified, string(p.Raw), now, now,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

func (r *ResourceRepository) DeleteProduct(ctx context.Context, storeID, productID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE product_id = ? AND store_id = ?`, productID, storeID)
	return err
}

func (r *ResourceRepository) GetProduct(ctx context.Context, storeID, productID string) (*models.Product, error) {
	var p models.Product
	var categories, images, raw sql.NullString
	var dateCreated, dateModified sql.NullInt64

	err := r.db.QueryRowContext(ctx, `
		SELECT id, product_id, store_id, organization_id, name, slug, sku, type, status,
			price, regular_price, sale_price, stock_quantity, stock_status, manage_stock,
			categories, images, weight, description, date_created, date_modified, raw, created_at, updated_at
		FROM products WHERE product_id = ? AND store_id = ?
	`, productID, storeID).Scan(&p.ID, &p.ProductID, &p.StoreID, &p.OrganizationID, &p.Name, &p.Slug, &p.SKU, &p.Type, &p.Status,
		&p.Price, &p.RegularPrice, &p.SalePrice, &p.StockQuantity, &p.StockStatus, &p.ManageStock,
		&categories, &images, &p.Weight, &p.Description, &dateCreated, &dateModified, &raw, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	json.Unmarshal([]byte(categories.String), &p.Categories)
	json.Unmarshal([]byte(images.String), &p.Images)
	p.DateCreated = nullInt(dateCreated)
	p.DateModified = nullInt(dateModified)
	p.Raw = []byte(raw.String)
	return &p, nil
}

// ProductIDs maps external product ids to local inventory ids in one query.
// Unknown ids are absent from the result.
func (r *ResourceRepository) ProductIDs(ctx context.Context, storeID string, externalIDs []string) (map[string]string, error) {
	found := make(map[string]string)
	if len(externalIDs) == 0 {
		return found, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(externalIDs)), ",")
	args := make([]interface{}, 0, len(externalIDs)+1)
	args = append(args, storeID)
	for _, id := range externalIDs {
		args = append(args, id)
	}

	rows, err := r.db.QueryContext(ctx, `SELECT product_id, id FROM products WHERE store_id = ? AND product_id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var externalID, id string
		if err := rows.Scan(&externalID, &id); err != nil {
			return nil, err
		}
		found[externalID] = id
	}
	return found, rows.Err()
}

// CustomerIDByExternal returns the local id of a synced customer, or nil.
func (r *ResourceRepository) CustomerIDByExternal(ctx context.Context, storeID, externalID string) (*string, error) {
	var id string
	err := r.db.QueryRowContext(ctx, `SELECT id FROM customers WHERE customer_id = ? AND store_id = ?`, externalID, storeID).Scan(&id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &id, nil
}

func nullInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}
