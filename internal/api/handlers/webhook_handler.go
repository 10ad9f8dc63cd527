package handlers

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"

	apiContext "storehub/internal/api/context"
	"storehub/internal/api/middleware"
	"storehub/internal/engine/webhooks"
	"storehub/internal/pkg/errors"
	"storehub/internal/pkg/qr"
	"storehub/internal/platform/repositories"
)

// WebhookHandler serves the management API for store webhook registrations.
type WebhookHandler struct {
	manager *webhooks.Manager
}

func NewWebhookHandler(manager *webhooks.Manager) *WebhookHandler {
	return &WebhookHandler{manager: manager}
}

func (h *WebhookHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req webhooks.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	result, err := h.manager.Register(r.Context(), actorFrom(r), req)
	if err != nil {
		errors.Write(w, err)
		return
	}

	errors.WriteJSON(w, http.StatusCreated, struct {
		Success bool `json:"success"`
		*webhooks.RegisterResult
	}{true, result})
}

func (h *WebhookHandler) List(w http.ResponseWriter, r *http.Request) {
	result, err := h.manager.List(r.Context(), actorFrom(r), filterFrom(r))
	if err != nil {
		errors.Write(w, err)
		return
	}

	errors.WriteJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
		*webhooks.ListResult
	}{true, result})
}

// Get also serves GET /api/v1/webhooks/stats, since the router can't hold a
// static segment beside :webhook_id.
func (h *WebhookHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := apiContext.Param(r.Context(), "webhook_id")
	if id == "stats" {
		h.Stats(w, r)
		return
	}

	webhook, err := h.manager.Get(r.Context(), actorFrom(r), id)
	if err != nil {
		errors.Write(w, err)
		return
	}

	errors.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"webhook": webhook,
	})
}

func (h *WebhookHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req webhooks.UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	webhook, err := h.manager.Update(r.Context(), actorFrom(r), apiContext.Param(r.Context(), "webhook_id"), req)
	if err != nil {
		errors.Write(w, err)
		return
	}

	errors.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"webhook": webhook,
	})
}

func (h *WebhookHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Delete(r.Context(), actorFrom(r), apiContext.Param(r.Context(), "webhook_id")); err != nil {
		errors.Write(w, err)
		return
	}

	errors.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Webhook deleted",
	})
}

type bulkUpdateRequest struct {
	WebhookIDs []string `json:"webhookIds"`
	Status     string   `json:"status"`
}

func (h *WebhookHandler) BulkUpdate(w http.ResponseWriter, r *http.Request) {
	var req bulkUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	result, err := h.manager.BulkUpdateStatus(r.Context(), actorFrom(r), req.WebhookIDs, req.Status)
	if err != nil {
		errors.Write(w, err)
		return
	}

	errors.WriteJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
		*webhooks.BulkResult
	}{true, result})
}

// Deliveries lists recent deliveries, or returns one when :delivery_id is set.
func (h *WebhookHandler) Deliveries(w http.ResponseWriter, r *http.Request) {
	webhookID := apiContext.Param(r.Context(), "webhook_id")

	if deliveryID := apiContext.Param(r.Context(), "delivery_id"); deliveryID != "" {
		delivery, err := h.manager.Delivery(r.Context(), actorFrom(r), webhookID, deliveryID)
		if err != nil {
			errors.Write(w, err)
			return
		}
		errors.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"success":  true,
			"delivery": delivery,
		})
		return
	}

	deliveries, err := h.manager.Deliveries(r.Context(), actorFrom(r), webhookID)
	if err != nil {
		errors.Write(w, err)
		return
	}
	errors.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"deliveries": deliveries,
		"count":      len(deliveries),
	})
}

func (h *WebhookHandler) Test(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Test(r.Context(), actorFrom(r), apiContext.Param(r.Context(), "webhook_id")); err != nil {
		errors.Write(w, err)
		return
	}

	errors.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Test ping requested. The store will deliver a ping to the webhook URL.",
	})
}

// QRCode renders the delivery URL as a PNG, for pasting into the store
// admin from a phone.
func (h *WebhookHandler) QRCode(w http.ResponseWriter, r *http.Request) {
	webhook, err := h.manager.Get(r.Context(), actorFrom(r), apiContext.Param(r.Context(), "webhook_id"))
	if err != nil {
		errors.Write(w, err)
		return
	}

	size, _ := strconv.Atoi(r.URL.Query().Get("size"))
	png, err := qr.PNG(webhook.DeliveryURL, size)
	if err != nil {
		if err == qr.ErrInvalidSize {
			errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, err.Error(), nil)
			return
		}
		errors.Write(w, errors.Internal("Failed to render QR code", err))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

func (h *WebhookHandler) Stats(w http.ResponseWriter, r *http.Request) {
	days := 0
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "days must be a positive integer", nil)
			return
		}
		days = n
	}

	stats, err := h.manager.Stats(r.Context(), actorFrom(r), filterFrom(r), days)
	if err != nil {
		errors.Write(w, err)
		return
	}

	errors.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"stats":   stats,
	})
}

func filterFrom(r *http.Request) repositories.WebhookFilter {
	q := r.URL.Query()
	return repositories.WebhookFilter{
		StoreID:        q.Get("storeId"),
		OrganizationID: q.Get("organizationId"),
		Status:         q.Get("status"),
	}
}

func actorFrom(r *http.Request) webhooks.Actor {
	actor := webhooks.Actor{
		IPAddress: clientIP(r),
		UserAgent: r.UserAgent(),
	}
	if claims := middleware.ClaimsFrom(r.Context()); claims != nil {
		actor.UserID = claims.UserID
		actor.OrganizationID = claims.OrganizationID
	}
	return actor
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		ip, _, _ := strings.Cut(fwd, ",")
		if ip = strings.TrimSpace(ip); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
