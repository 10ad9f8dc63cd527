package handlers

import (
	stderrors "errors"
	"io"
	"net/http"

	apiContext "storehub/internal/api/context"
	"storehub/internal/engine/webhooks"
	"storehub/internal/pkg/errors"
)

// MaxInboundBody caps the size of a delivery body read from a store.
const MaxInboundBody = 5 << 20

// IngestHandler receives deliveries posted by WooCommerce stores. It is not
// behind bearer auth: the payload signature authenticates the caller.
type IngestHandler struct {
	processor *webhooks.Processor
}

func NewIngestHandler(processor *webhooks.Processor) *IngestHandler {
	return &IngestHandler{processor: processor}
}

func (h *IngestHandler) Receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxInboundBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			errors.WriteError(w, http.StatusRequestEntityTooLarge, errors.ErrCodeInvalidInput, "Payload too large", nil)
			return
		}
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Failed to read request body", nil)
		return
	}

	result, err := h.processor.Process(r.Context(), &webhooks.Inbound{
		RoutingID:  apiContext.Param(r.Context(), "routing_id"),
		Topic:      apiContext.Param(r.Context(), "topic"),
		Header:     r.Header,
		Body:       body,
		RemoteAddr: r.RemoteAddr,
	})
	if err != nil {
		errors.Write(w, err)
		return
	}

	errors.WriteJSON(w, http.StatusOK, result)
}
