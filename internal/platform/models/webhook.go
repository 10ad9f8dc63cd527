package models

import (
	"math"
	"strings"
	"time"
)

const (
	WebhookStatusActive   = "active"
	WebhookStatusPaused   = "paused"
	WebhookStatusDisabled = "disabled"
)

const (
	DeliveryStatusSuccess = "success"
	DeliveryStatusFailed  = "failed"
	DeliveryStatusPending = "pending"
)

const (
	DefaultMaxRetries       = 3
	DefaultFailureThreshold = 5
)

const (
	ResourceOrder    = "order"
	ResourceCustomer = "customer"
	ResourceProduct  = "product"

	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
)

// Topics lists every supported {resource}.{event} pair.
var Topics = []string{
	"order.created", "order.updated", "order.deleted",
	"customer.created", "customer.updated", "customer.deleted",
	"product.created", "product.updated", "product.deleted",
}

func IsValidTopic(topic string) bool {
	for _, t := range Topics {
		if t == topic {
			return true
		}
	}
	return false
}

func IsValidWebhookStatus(status string) bool {
	switch status {
	case WebhookStatusActive, WebhookStatusPaused, WebhookStatusDisabled:
		return true
	}
	return false
}

// SplitTopic splits "order.created" into ("order", "created").
func SplitTopic(topic string) (resource, event string) {
	resource, event, _ = strings.Cut(topic, ".")
	return resource, event
}

type WebhookRegistration struct {
	ID                string  `json:"id"`
	RemoteID          int64   `json:"remote_id"`
	RoutingID         string  `json:"routing_id"`
	StoreID           string  `json:"store_id"`
	OrganizationID    string  `json:"organization_id"`
	Name              string  `json:"name"`
	Topic             string  `json:"topic"`
	DeliveryURL       string  `json:"delivery_url"`
	Secret            string  `json:"-"`
	Status            string  `json:"status"`
	FailureCount      int     `json:"failure_count"`
	LastDeliveryAt    *int64  `json:"last_delivery_at,omitempty"`
	LastFailureAt     *int64  `json:"last_failure_at,omitempty"`
	LastFailureReason *string `json:"last_failure_reason,omitempty"`
	CreatedAt         int64   `json:"created_at"`
	UpdatedAt         int64   `json:"updated_at"`
}

type WebhookDelivery struct {
	ID              string            `json:"id"`
	WebhookID       string            `json:"webhook_id"`
	DeliveryID      string            `json:"delivery_id"`
	Topic           string            `json:"topic"`
	Resource        string            `json:"resource"`
	Event           string            `json:"event"`
	Status          string            `json:"status"`
	ResponseCode    int               `json:"response_code"`
	ResponseMessage string            `json:"response_message"`
	RequestHeaders  map[string]string `json:"request_headers,omitempty"`
	RequestBody     string            `json:"request_body,omitempty"`
	ResponseHeaders map[string]string `json:"response_headers,omitempty"`
	ResponseBody    string            `json:"response_body,omitempty"`
	DurationMs      int64             `json:"duration_ms"`
	RetryCount      int               `json:"retry_count"`
	MaxRetries      int               `json:"max_retries"`
	NextRetryAt     *int64            `json:"next_retry_at,omitempty"`
	ErrorMessage    *string           `json:"error_message,omitempty"`
	ProcessedAt     *int64            `json:"processed_at,omitempty"`
	CreatedAt       int64             `json:"created_at"`
	UpdatedAt       int64             `json:"updated_at"`
}

// BackoffDelay is the wait before retry number retryCount: 2^retryCount seconds.
func BackoffDelay(retryCount int) time.Duration {
	if retryCount < 0 {
		retryCount = 0
	}
	if retryCount > 30 {
		retryCount = 30
	}
	return time.Duration(math.Pow(2, float64(retryCount))) * time.Second
}

// MarkSucceeded records a successful attempt.
func (d *WebhookDelivery) MarkSucceeded(now time.Time, code int, message string) {
	ts := now.Unix()
	d.Status = DeliveryStatusSuccess
	d.ResponseCode = code
	d.ResponseMessage = message
	d.NextRetryAt = nil
	d.ErrorMessage = nil
	d.ProcessedAt = &ts
}

// MarkFailed records a failed attempt. A retryable failure stays pending
// with a backoff schedule until the retry budget is spent.
func (d *WebhookDelivery) MarkFailed(now time.Time, code int, errMsg string, retryable bool) {
	ts := now.Unix()
	if d.MaxRetries <= 0 {
		d.MaxRetries = DefaultMaxRetries
	}
	d.ResponseCode = code
	d.ResponseMessage = errMsg
	d.ErrorMessage = &errMsg
	d.ProcessedAt = &ts

	if retryable && d.RetryCount < d.MaxRetries {
		d.RetryCount++
	}
	if retryable && d.RetryCount < d.MaxRetries {
		next := now.Add(BackoffDelay(d.RetryCount)).Unix()
		d.Status = DeliveryStatusPending
		d.NextRetryAt = &next
		return
	}

	d.Status = DeliveryStatusFailed
	d.NextRetryAt = nil
}
