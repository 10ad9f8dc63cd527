package handlers

import (
	"net/http"
	"strconv"

	"storehub/internal/api/middleware"
	"storehub/internal/pkg/errors"
	"storehub/internal/platform/audit"
)

type AuditHandler struct {
	audit *audit.Logger
}

func NewAuditHandler(logger *audit.Logger) *AuditHandler {
	return &AuditHandler{audit: logger}
}

// List returns the caller's organization audit trail, newest first.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFrom(r.Context())
	if claims == nil {
		errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Missing credentials", nil)
		return
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	logs, err := h.audit.List(r.Context(), claims.OrganizationID, limit)
	if err != nil {
		errors.Write(w, errors.Internal("Failed to list audit logs", err))
		return
	}

	errors.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"logs":    logs,
	})
}
