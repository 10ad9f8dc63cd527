package repositories

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"storehub/internal/platform/models"
)

// WebhookFilter narrows registration queries. Empty fields are ignored.
type WebhookFilter struct {
	StoreID        string
	OrganizationID string
	Status         string
}

func (f WebhookFilter) where(prefix string) (string, []interface{}) {
	var conds []string
	var args []interface{}

	if f.StoreID != "" {
		conds = append(conds, prefix+"store_id = ?")
		args = append(args, f.StoreID)
	}
	if f.OrganizationID != "" {
		conds = append(conds, prefix+"organization_id = ?")
		args = append(args, f.OrganizationID)
	}
	if f.Status != "" {
		conds = append(conds, prefix+"status = ?")
		args = append(args, f.Status)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

const webhookColumns = `id, remote_id, routing_id, store_id, organization_id, name, topic, delivery_url, secret, status,
	failure_count, last_delivery_at, last_failure_at, last_failure_reason, created_at, updated_at`

type WebhookRepository struct {
	db *sql.DB
}

func NewWebhookRepository(db *sql.DB) *WebhookRepository {
	return &WebhookRepository{db: db}
}

func (r *WebhookRepository) Create(ctx context.Context, webhook *models.WebhookRegistration) error {
	if webhook.ID == "" {
		webhook.ID = "wh_" + uuid.New().String()
	}
	now := time.Now().Unix()
	webhook.CreatedAt = now
	webhook.UpdatedAt = now
	if webhook.Status == "" {
		webhook.Status = models.WebhookStatusActive
	}

	query := `
		INSERT INTO webhooks (id, remote_id, routing_id, store_id, organization_id, name, topic, delivery_url, secret, status, failure_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query, webhook.ID, webhook.RemoteID, webhook.RoutingID, webhook.StoreID, webhook.OrganizationID,
		webhook.Name, webhook.Topic, webhook.DeliveryURL, webhook.Secret, webhook.Status, webhook.FailureCount, webhook.CreatedAt, webhook.UpdatedAt)
	return err
}

func (r *WebhookRepository) GetByID(ctx context.Context, id string) (*models.WebhookRegistration, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+webhookColumns+` FROM webhooks WHERE id = ?`, id)
	return scanWebhookOrNil(row)
}

func (r *WebhookRepository) GetByRoutingID(ctx context.Context, routingID string) (*models.WebhookRegistration, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+webhookColumns+` FROM webhooks WHERE routing_id = ?`, routingID)
	return scanWebhookOrNil(row)
}

func (r *WebhookRepository) List(ctx context.Context, filter WebhookFilter) ([]*models.WebhookRegistration, error) {
	where, args := filter.where("")
	rows, err := r.db.QueryContext(ctx, `SELECT `+webhookColumns+` FROM webhooks`+where+` ORDER BY created_at DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	webhooks := []*models.WebhookRegistration{}
	for rows.Next() {
		w, err := scanWebhook(rows)
		if err != nil {
			return nil, err
		}
		webhooks = append(webhooks, w)
	}
	return webhooks, rows.Err()
}

// Update persists the mutable fields. The routing identifier is part of the
// URL configured on the remote store and is never rewritten.
func (r *WebhookRepository) Update(ctx context.Context, webhook *models.WebhookRegistration) error {
	webhook.UpdatedAt = time.Now().Unix()

	query := `
		UPDATE webhooks
		SET name = ?, topic = ?, delivery_url = ?, status = ?, failure_count = ?, updated_at = ?
		WHERE id = ?
	`
	_, err := r.db.ExecContext(ctx, query, webhook.Name, webhook.Topic, webhook.DeliveryURL, webhook.Status, webhook.FailureCount, webhook.UpdatedAt, webhook.ID)
	return err
}

// UpdateStatus changes the lifecycle status. Re-activating clears the
// consecutive failure counter.
func (r *WebhookRepository) UpdateStatus(ctx context.Context, id, status string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE webhooks
		SET status = ?, failure_count = CASE WHEN ? = 'active' THEN 0 ELSE failure_count END, updated_at = ?
		WHERE id = ?
	`, status, status, time.Now().Unix(), id)
	return err
}

func (r *WebhookRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM webhooks WHERE id = ?`, id)
	return err
}

func (r *WebhookRepository) RecordSuccess(ctx context.Context, id string, at int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE webhooks SET failure_count = 0, last_delivery_at = ?, updated_at = ? WHERE id = ?`, at, at, id)
	return err
}

// RecordFailure bumps the consecutive failure counter and disables the
// webhook once it reaches threshold, in one statement. It returns the new
// counter and status.
func (r *WebhookRepository) RecordFailure(ctx context.Context, id string, at int64, reason string, threshold int) (int, string, error) {
	if threshold <= 0 {
		threshold = models.DefaultFailureThreshold
	}

	var count int
	var status string
	err := r.db.QueryRowContext(ctx, `
		UPDATE webhooks
		SET failure_count = failure_count + 1,
			last_failure_at = ?,
			last_failure_reason = ?,
			status = CASE WHEN failure_count + 1 >= ? THEN 'disabled' ELSE status END,
			updated_at = ?
		WHERE id = ?
		RETURNING failure_count, status
	`, at, reason, threshold, at, id).Scan(&count, &status)
	if err == sql.ErrNoRows {
		return 0, "", nil
	}
	return count, status, err
}

func (r *WebhookRepository) CountByStatus(ctx context.Context, filter WebhookFilter) (map[string]int, error) {
	return r.countBy(ctx, "status", filter)
}

func (r *WebhookRepository) CountByTopic(ctx context.Context, filter WebhookFilter) (map[string]int, error) {
	return r.countBy(ctx, "topic", filter)
}

func (r *WebhookRepository) countBy(ctx context.Context, column string, filter WebhookFilter) (map[string]int, error) {
	where, args := filter.where("")
	rows, err := r.db.QueryContext(ctx, `SELECT `+column+`, COUNT(*) FROM webhooks`+where+` GROUP BY `+column, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return nil, err
		}
		counts[key] = n
	}
	return counts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanWebhookOrNil(row *sql.Row) (*models.WebhookRegistration, error) {
	w, err := scanWebhook(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return w, nil
}

func scanWebhook(row rowScanner) (*models.WebhookRegistration, error) {
	var w models.WebhookRegistration
	var lastDeliveryAt, lastFailureAt sql.NullInt64
	var lastFailureReason sql.NullString

	err := row.Scan(&w.ID, &w.RemoteID, &w.RoutingID, &w.StoreID, &w.OrganizationID, &w.Name, &w.Topic, &w.DeliveryURL, &w.Secret, &w.Status,
		&w.FailureCount, &lastDeliveryAt, &lastFailureAt, &lastFailureReason, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if lastDeliveryAt.Valid {
		w.LastDeliveryAt = &lastDeliveryAt.Int64
	}
	if lastFailureAt.Valid {
		w.LastFailureAt = &lastFailureAt.Int64
	}
	if lastFailureReason.Valid {
		w.LastFailureReason = &lastFailureReason.String
	}
	return &w, nil
}
