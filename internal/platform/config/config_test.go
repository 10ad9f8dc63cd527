package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 9090
woocommerce:
  public_base_url: "https://hooks.example.com"
webhooks:
  max_retries: 4
  bulk_pause: 250ms
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.WooCommerce.PublicBaseURL != "https://hooks.example.com" {
		t.Errorf("public_base_url = %q", cfg.WooCommerce.PublicBaseURL)
	}
	if cfg.Webhooks.MaxRetries != 4 {
		t.Errorf("max_retries = %d, want 4", cfg.Webhooks.MaxRetries)
	}
	if cfg.Webhooks.BulkPause != 250*time.Millisecond {
		t.Errorf("bulk_pause = %v", cfg.Webhooks.BulkPause)
	}

	// defaults
	if cfg.Webhooks.FailureThreshold != 5 || cfg.Webhooks.BulkBatchSize != 5 {
		t.Errorf("unexpected defaults: %+v", cfg.Webhooks)
	}
	if cfg.Webhooks.AllowUnsigned {
		t.Error("unsigned deliveries must be rejected by default")
	}
	if cfg.WooCommerce.Timeout != 15*time.Second {
		t.Errorf("timeout = %v", cfg.WooCommerce.Timeout)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}
