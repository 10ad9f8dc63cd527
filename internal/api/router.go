package api

import (
	"context"
	"net/http"

	"github.com/julienschmidt/httprouter"

	apiContext "storehub/internal/api/context"
	"storehub/internal/api/handlers"
	"storehub/internal/api/middleware"
	"storehub/internal/pkg/errors"
)

type Dependencies struct {
	IngestHandler  *handlers.IngestHandler
	WebhookHandler *handlers.WebhookHandler
	AuditHandler   *handlers.AuditHandler
	HealthHandler  *handlers.HealthHandler
	MetricsHandler *handlers.MetricsHandler
	AuthMiddleware *middleware.AuthMiddleware
	RateLimiter    *middleware.RateLimiter
}

func NewRouter(deps *Dependencies) *httprouter.Router {
	router := httprouter.New()

	// Operational
	router.GET("/healthz", wrap(deps.HealthHandler.Check))
	router.GET("/metrics", wrap(deps.MetricsHandler.Export))

	// Inbound deliveries from stores, authenticated by payload signature
	ingest := deps.IngestHandler.Receive
	if deps.RateLimiter != nil {
		ingest = deps.RateLimiter.Limit("routing_id")(ingest)
	}
	router.POST("/webhooks/woocommerce/:routing_id/:topic",
		chain(ingest, middleware.Instrument("/webhooks/woocommerce/:routing_id/:topic")))

	authMid := deps.AuthMiddleware
	wh := deps.WebhookHandler

	// Webhook management. "stats" and "bulk" share the :webhook_id segment;
	// the handlers dispatch them.
	router.POST("/api/v1/webhooks",
		chain(wh.Create, middleware.Instrument("/api/v1/webhooks"), authMid.Handle))
	router.GET("/api/v1/webhooks",
		chain(wh.List, middleware.Instrument("/api/v1/webhooks"), authMid.Handle))
	router.GET("/api/v1/webhooks/:webhook_id",
		chain(wh.Get, middleware.Instrument("/api/v1/webhooks/:webhook_id"), authMid.Handle))
	router.PUT("/api/v1/webhooks/:webhook_id",
		chain(wh.Update, middleware.Instrument("/api/v1/webhooks/:webhook_id"), authMid.Handle))
	router.PUT("/api/v1/webhooks/:webhook_id/update",
		chain(wh.BulkUpdate, middleware.Instrument("/api/v1/webhooks/bulk/update"), authMid.Handle, onlyBulk, requireRole("admin", "owner")))
	router.DELETE("/api/v1/webhooks/:webhook_id",
		chain(wh.Delete, middleware.Instrument("/api/v1/webhooks/:webhook_id"), authMid.Handle))
	router.GET("/api/v1/webhooks/:webhook_id/deliveries",
		chain(wh.Deliveries, middleware.Instrument("/api/v1/webhooks/:webhook_id/deliveries"), authMid.Handle))
	router.GET("/api/v1/webhooks/:webhook_id/deliveries/:delivery_id",
		chain(wh.Deliveries, middleware.Instrument("/api/v1/webhooks/:webhook_id/deliveries/:delivery_id"), authMid.Handle))
	router.GET("/api/v1/webhooks/:webhook_id/qr",
		chain(wh.QRCode, middleware.Instrument("/api/v1/webhooks/:webhook_id/qr"), authMid.Handle))
	router.POST("/api/v1/webhooks/:webhook_id/test",
		chain(wh.Test, middleware.Instrument("/api/v1/webhooks/:webhook_id/test"), authMid.Handle))

	// Audit
	router.GET("/api/v1/audit",
		chain(deps.AuditHandler.List, middleware.Instrument("/api/v1/audit"), authMid.Handle, requireRole("admin", "owner")))

	router.NotFound = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Route not found", nil)
	})

	return router
}

// Helper function to chain middlewares
func chain(handler http.HandlerFunc, middlewares ...func(http.HandlerFunc) http.HandlerFunc) httprouter.Handle {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return wrap(handler)
}

// Convert http.HandlerFunc to httprouter.Handle
func wrap(handler http.HandlerFunc) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		// Inject params into context
		ctx := context.WithValue(r.Context(), apiContext.Params, ps)
		handler(w, r.WithContext(ctx))
	}
}

// onlyBulk guards PUT /api/v1/webhooks/:webhook_id/update, which exists
// only for the bulk endpoint.
func onlyBulk(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if apiContext.Param(r.Context(), "webhook_id") != "bulk" {
			errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Route not found", nil)
			return
		}
		next(w, r)
	}
}

func requireRole(roles ...string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			claims := middleware.ClaimsFrom(r.Context())
			if claims == nil || !claims.HasRole(roles...) {
				errors.WriteError(w, http.StatusForbidden, errors.ErrCodeForbidden, "Insufficient permissions", nil)
				return
			}

			next(w, r)
		}
	}
}
