package qr

import (
	"bytes"
	"testing"
)

func TestPNG(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		wantErr bool
	}{
		{"default size", 0, false},
		{"valid size", 256, false},
		{"too small", 100, true},
		{"too large", 5000, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PNG("https://hooks.example.com/webhooks/woocommerce/store_1-1700000000000/order.created", tt.size)
			if (err != nil) != tt.wantErr {
				t.Fatalf("PNG() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !bytes.HasPrefix(got, []byte("\x89PNG")) {
				t.Errorf("PNG() did not return a png image")
			}
		})
	}
}
