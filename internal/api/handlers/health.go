package handlers

import (
	"context"
	"net/http"
	"time"

	"storehub/internal/pkg/errors"
	"storehub/internal/platform/database"
)

// Pinger is an optional dependency checked by the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	globalDB *database.GlobalDB
	cache    Pinger
}

// NewHealthHandler builds the handler. cache may be nil when deliveries are
// deduplicated in memory.
func NewHealthHandler(globalDB *database.GlobalDB, cache Pinger) *HealthHandler {
	return &HealthHandler{globalDB: globalDB, cache: cache}
}

func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := make(map[string]string)
	status := "healthy"

	if err := h.globalDB.DB.PingContext(ctx); err != nil {
		checks["global_db"] = "unhealthy: " + err.Error()
		status = "degraded"
	} else {
		checks["global_db"] = "healthy"
	}

	if h.cache == nil {
		checks["cache"] = "memory"
	} else if err := h.cache.Ping(ctx); err != nil {
		checks["cache"] = "unhealthy: " + err.Error()
		status = "degraded"
	} else {
		checks["cache"] = "healthy"
	}

	response := struct {
		Status    string            `json:"status"`
		Timestamp int64             `json:"timestamp"`
		Checks    map[string]string `json:"checks"`
	}{
		Status:    status,
		Timestamp: time.Now().Unix(),
		Checks:    checks,
	}

	statusCode := http.StatusOK
	if status == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}
	errors.WriteJSON(w, statusCode, response)
}
