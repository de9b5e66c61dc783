package handlers

import (
	"fmt"
	"net/http"

	"github.com/xavlink/realtime/middleware"
	"github.com/xavlink/realtime/pkg"
	"github.com/xavlink/realtime/repository"
	"github.com/xavlink/realtime/services"
)

// UnreadHandler serves the reconciliation snapshot clients fetch on load and
// after reconnect gaps.
type UnreadHandler struct {
	unreadService services.UnreadService
}

// NewUnreadHandler builds the handler.
func NewUnreadHandler(unreadService services.UnreadService) *UnreadHandler {
	return &UnreadHandler{unreadService: unreadService}
}

type unreadResponse struct {
	Chats []repository.UnreadInfo `json:"chats"`
	Total int                     `json:"total"`
}

// Snapshot handles GET /api/unreads for the authenticated user.
func (h *UnreadHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		pkg.Error(w, fmt.Errorf("%w: no authenticated user", pkg.ErrUnauthorized))
		return
	}

	chats, err := h.unreadService.Snapshot(r.Context(), claims.UserID)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	total := 0
	for _, c := range chats {
		total += c.UnreadCount
	}

	pkg.JSON(w, http.StatusOK, unreadResponse{Chats: chats, Total: total})
}
