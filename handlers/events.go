// Package handlers exposes the gateway's HTTP surface: the internal publish
// endpoint the REST backend calls after committing rows, stats for
// operators, and the unread snapshot used for client reconciliation.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/xavlink/realtime/pkg"
	"github.com/xavlink/realtime/services"
)

// EventsHandler accepts committed events for fan-out.
type EventsHandler struct {
	publishService services.PublishService
}

// NewEventsHandler builds the handler.
func NewEventsHandler(publishService services.PublishService) *EventsHandler {
	return &EventsHandler{publishService: publishService}
}

// Publish handles POST /internal/events.
//
// Body: {"op": "...", "chatId"|"userId": "...", "d": {...}}
// The payload must already be committed on the REST side; the gateway only
// validates shape and delivers.
func (h *EventsHandler) Publish(w http.ResponseWriter, r *http.Request) {
	var req services.PublishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.Error(w, fmt.Errorf("%w: invalid body: %v", pkg.ErrBadRequest, err))
		return
	}

	result, err := h.publishService.Publish(r.Context(), req)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, result)
}
