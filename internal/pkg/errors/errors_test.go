package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWrite(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{"invalid input", InvalidInput("Invalid topic", nil), http.StatusBadRequest, ErrCodeInvalidInput, "Invalid topic"},
		{"not found", NotFound("Webhook not found"), http.StatusNotFound, ErrCodeNotFound, "Webhook not found"},
		{"wrapped", fmt.Errorf("resolve: %w", Unauthorized("Invalid signature")), http.StatusUnauthorized, ErrCodeUnauthorized, "Invalid signature"},
		{"remote", Remote("Store API call failed", stderrors.New("timeout")), http.StatusBadGateway, ErrCodeRemote, "Store API call failed"},
		{"plain error", stderrors.New("disk full"), http.StatusInternalServerError, ErrCodeInternal, "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			Write(rr, tt.err)

			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			var resp ErrorResponse
			if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Code != tt.wantCode || resp.Message != tt.wantMsg {
				t.Errorf("got %+v", resp)
			}
		})
	}
}

func TestKindOf(t *testing.T) {
	err := fmt.Errorf("outer: %w", Conflict("exists"))
	if !Is(err, KindConflict) {
		t.Error("expected conflict kind through wrapping")
	}
	if Is(nil, KindInternal) {
		t.Error("nil is not an error of any kind")
	}
	if KindOf(stderrors.New("x")) != KindInternal {
		t.Error("plain errors are internal")
	}
}
