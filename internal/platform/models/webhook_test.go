package models

import (
	"testing"
	"time"
)

func TestBackoffDelay(t *testing.T) {
	tests := []struct {
		retryCount int
		expected   time.Duration
	}{
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
	}

	for _, tt := range tests {
		if got := BackoffDelay(tt.retryCount); got != tt.expected {
			t.Errorf("BackoffDelay(%d) = %v, want %v", tt.retryCount, got, tt.expected)
		}
	}
}

func TestWebhookDelivery_MarkFailedSchedulesRetries(t *testing.T) {
	now := time.Unix(1700000000, 0)
	d := &WebhookDelivery{MaxRetries: DefaultMaxRetries}

	d.MarkFailed(now, 500, "boom", true)
	if d.Status != DeliveryStatusPending || d.RetryCount != 1 {
		t.Fatalf("after 1st failure: status=%s retry=%d", d.Status, d.RetryCount)
	}
	if d.NextRetryAt == nil || *d.NextRetryAt != now.Add(2*time.Second).Unix() {
		t.Errorf("expected next retry in 2s, got %v", d.NextRetryAt)
	}

	d.MarkFailed(now, 500, "boom", true)
	if d.Status != DeliveryStatusPending || d.RetryCount != 2 {
		t.Fatalf("after 2nd failure: status=%s retry=%d", d.Status, d.RetryCount)
	}
	if *d.NextRetryAt != now.Add(4*time.Second).Unix() {
		t.Errorf("expected next retry in 4s, got %d", *d.NextRetryAt)
	}

	d.MarkFailed(now, 500, "boom", true)
	if d.Status != DeliveryStatusFailed {
		t.Errorf("expected failed once retries are spent, got %s", d.Status)
	}
	if d.RetryCount != d.MaxRetries {
		t.Errorf("retry count = %d, want %d", d.RetryCount, d.MaxRetries)
	}
	if d.NextRetryAt != nil {
		t.Error("next retry must be cleared when not pending")
	}

	d.MarkFailed(now, 500, "boom", true)
	if d.RetryCount > d.MaxRetries {
		t.Errorf("retry count exceeded max: %d", d.RetryCount)
	}
}

func TestWebhookDelivery_NonRetryableFailure(t *testing.T) {
	d := &WebhookDelivery{MaxRetries: 3}
	d.MarkFailed(time.Now(), 401, "invalid signature", false)

	if d.Status != DeliveryStatusFailed || d.RetryCount != 0 || d.NextRetryAt != nil {
		t.Errorf("unexpected state: %+v", d)
	}
	if d.ErrorMessage == nil || *d.ErrorMessage != "invalid signature" {
		t.Errorf("error message not captured")
	}
}

func TestWebhookDelivery_MarkSucceededClearsRetry(t *testing.T) {
	next := int64(10)
	d := &WebhookDelivery{Status: DeliveryStatusPending, NextRetryAt: &next, RetryCount: 1}
	d.MarkSucceeded(time.Now(), 200, "OK")

	if d.Status != DeliveryStatusSuccess || d.NextRetryAt != nil || d.ProcessedAt == nil {
		t.Errorf("unexpected state: %+v", d)
	}
}

func TestTopics(t *testing.T) {
	if len(Topics) != 9 {
		t.Fatalf("expected 9 topics, got %d", len(Topics))
	}
	if !IsValidTopic("product.deleted") || IsValidTopic("coupon.created") {
		t.Error("topic validation mismatch")
	}
	resource, event := SplitTopic("customer.updated")
	if resource != "customer" || event != "updated" {
		t.Errorf("SplitTopic = %s, %s", resource, event)
	}
}
