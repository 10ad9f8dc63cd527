package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"storehub/internal/platform/models"
)

const deliveryColumns = `id, webhook_id, delivery_id, topic, resource, event, status, response_code, response_message,
	request_headers, request_body, response_headers, response_body, duration_ms, retry_count, max_retries,
	next_retry_at, error_message, processed_at, created_at, updated_at`

type DeliveryRepository struct {
	db *sql.DB
}

func NewDeliveryRepository(db *sql.DB) *DeliveryRepository {
	return &DeliveryRepository{db: db}
}

// Save inserts a delivery record. A record with the same remote delivery id
// for the same webhook is updated in place, so platform redeliveries share
// one row. The retry count never goes down and a pending retry is
// rescheduled from the merged count.
func (r *DeliveryRepository) Save(ctx context.Context, d *models.WebhookDelivery) error {
	if d.ID == "" {
		d.ID = "whd_" + uuid.New().String()
	}
	now := time.Now().Unix()
	if d.CreatedAt == 0 {
		d.CreatedAt = now
	}
	d.UpdatedAt = now
	if d.MaxRetries <= 0 {
		d.MaxRetries = models.DefaultMaxRetries
	}

	reqHeaders, _ := json.Marshal(d.RequestHeaders)
	respHeaders, _ := json.Marshal(d.ResponseHeaders)

	query := `
		INSERT INTO webhook_deliveries (` + deliveryColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(webhook_id, delivery_id) WHERE delivery_id <> '' DO UPDATE SET
			status = excluded.status,
			response_code = excluded.response_code,
			response_message = excluded.response_message,
			request_headers = excluded.request_headers,
			request_body = excluded.request_body,
			response_headers = excluded.response_headers,
			response_body = excluded.response_body,
			duration_ms = excluded.duration_ms,
			retry_count = MAX(webhook_deliveries.retry_count, excluded.retry_count),
			next_retry_at = CASE WHEN excluded.next_retry_at IS NULL THEN NULL
				ELSE excluded.processed_at + (1 << MIN(MAX(webhook_deliveries.retry_count, excluded.retry_count), 30)) END,
			error_message = excluded.error_message,
			processed_at = excluded.processed_at,
			updated_at = excluded.updated_at
		RETURNING id, retry_count, next_retry_at, created_at
	`
	return r.db.QueryRowContext(ctx, query,
		d.ID, d.WebhookID, d.DeliveryID, d.Topic, d.Resource, d.Event, d.Status, d.ResponseCode, d.ResponseMessage,
		string(reqHeaders), d.RequestBody, string(respHeaders), d.ResponseBody, d.DurationMs, d.RetryCount, d.MaxRetries,
		d.NextRetryAt, d.ErrorMessage, d.ProcessedAt, d.CreatedAt, d.UpdatedAt,
	).Scan(&d.ID, &d.RetryCount, &d.NextRetryAt, &d.CreatedAt)
}

// Update writes the outcome of a retried attempt.
func (r *DeliveryRepository) Update(ctx context.Context, d *models.WebhookDelivery) error {
	d.UpdatedAt = time.Now().Unix()
	respHeaders, _ := json.Marshal(d.ResponseHeaders)

	_, err := r.db.ExecContext(ctx, `
		UPDATE webhook_deliveries
		SET status = ?, response_code = ?, response_message = ?, response_headers = ?, response_body = ?, duration_ms = ?,
			retry_count = ?, next_retry_at = ?, error_message = ?, processed_at = ?, updated_at = ?
		WHERE id = ?
	`, d.Status, d.ResponseCode, d.ResponseMessage, string(respHeaders), d.ResponseBody, d.DurationMs,
		d.RetryCount, d.NextRetryAt, d.ErrorMessage, d.ProcessedAt, d.UpdatedAt, d.ID)
	return err
}

// GetByID finds a delivery of a webhook by internal id or remote delivery id.
func (r *DeliveryRepository) GetByID(ctx context.Context, webhookID, id string) (*models.WebhookDelivery, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+deliveryColumns+` FROM webhook_deliveries
		WHERE webhook_id = ? AND (id = ? OR (delivery_id <> '' AND delivery_id = ?))
		ORDER BY created_at DESC LIMIT 1`, webhookID, id, id)

	d, err := scanDelivery(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return d, nil
}

// ListByWebhook returns the most recent deliveries first.
func (r *DeliveryRepository) ListByWebhook(ctx context.Context, webhookID string, limit int) ([]*models.WebhookDelivery, error) {
	if limit <= 0 || limit > 50 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+deliveryColumns+` FROM webhook_deliveries
		WHERE webhook_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`, webhookID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDeliveries(rows)
}

// FetchDue returns pending deliveries whose retry time has passed.
func (r *DeliveryRepository) FetchDue(ctx context.Context, now int64, limit int) ([]*models.WebhookDelivery, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+deliveryColumns+` FROM webhook_deliveries
		WHERE status = 'pending' AND next_retry_at IS NOT NULL AND next_retry_at <= ?
		ORDER BY next_retry_at ASC LIMIT ?`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDeliveries(rows)
}

// Claim pushes a due delivery's retry time forward to leaseUntil. Only the
// caller that observed expectedNext wins, so concurrent workers don't run
// the same retry twice.
func (r *DeliveryRepository) Claim(ctx context.Context, id string, expectedNext, leaseUntil int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE webhook_deliveries SET next_retry_at = ?, updated_at = ?
		WHERE id = ? AND status = 'pending' AND next_retry_at = ?
	`, leaseUntil, time.Now().Unix(), id, expectedNext)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// CountByStatusSince aggregates deliveries created at or after since,
// restricted to webhooks matching filter.
func (r *DeliveryRepository) CountByStatusSince(ctx context.Context, filter WebhookFilter, since int64) (map[string]int, error) {
	where, args := filter.where("w.")
	if where == "" {
		where = " WHERE d.created_at >= ?"
	} else {
		where += " AND d.created_at >= ?"
	}
	args = append(args, since)

	rows, err := r.db.QueryContext(ctx, `SELECT d.status, COUNT(*) FROM webhook_deliveries d
		LEFT JOIN webhooks w ON w.id = d.webhook_id`+where+` GROUP BY d.status`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func scanDeliveries(rows *sql.Rows) ([]*models.WebhookDelivery, error) {
	deliveries := []*models.WebhookDelivery{}
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		deliveries = append(deliveries, d)
	}
	return deliveries, rows.Err()
}

func scanDelivery(row rowScanner) (*models.WebhookDelivery, error) {
	var d models.WebhookDelivery
	var reqHeaders, reqBody, respHeaders, respBody, errMsg sql.NullString
	var nextRetryAt, processedAt sql.NullInt64

	err := row.Scan(&d.ID, &d.WebhookID, &d.DeliveryID, &d.Topic, &d.Resource, &d.Event, &d.Status, &d.ResponseCode, &d.ResponseMessage,
		&reqHeaders, &reqBody, &respHeaders, &respBody, &d.DurationMs, &d.RetryCount, &d.MaxRetries,
		&nextRetryAt, &errMsg, &processedAt, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if reqHeaders.Valid {
		json.Unmarshal([]byte(reqHeaders.String), &d.RequestHeaders)
	}
	if respHeaders.Valid {
		json.Unmarshal([]byte(respHeaders.String), &d.ResponseHeaders)
	}
	d.RequestBody = reqBody.String
	d.ResponseBody = respBody.String
	if nextRetryAt.Valid {
		d.NextRetryAt = &nextRetryAt.Int64
	}
	if errMsg.Valid {
		d.ErrorMessage = &errMsg.String
	}
	if processedAt.Valid {
		d.ProcessedAt = &processedAt.Int64
	}
	return &d, nil
}
