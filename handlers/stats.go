package handlers

import (
	"net/http"

	"github.com/xavlink/realtime/pkg"
	"github.com/xavlink/realtime/repository"
	"github.com/xavlink/realtime/services"
	"github.com/xavlink/realtime/ws"
)

// StatsHandler reports delivery-path health for operators.
type StatsHandler struct {
	publisher   ws.Publisher
	presence    services.PresenceService
	deliveryLog repository.DeliveryLogRepository
}

// NewStatsHandler builds the handler.
func NewStatsHandler(
	publisher ws.Publisher,
	presence services.PresenceService,
	deliveryLog repository.DeliveryLogRepository,
) *StatsHandler {
	return &StatsHandler{
		publisher:   publisher,
		presence:    presence,
		deliveryLog: deliveryLog,
	}
}

type statsResponse struct {
	OnlineUsers     int            `json:"online_users"`
	OnlineUserIDs   []string       `json:"online_user_ids"`
	Rooms           map[string]int `json:"rooms"`
	DeliveredEvents int64          `json:"delivered_events"`
}

// Stats handles GET /internal/stats.
func (h *StatsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	delivered, err := h.deliveryLog.DeliveredCount(r.Context())
	if err != nil {
		pkg.Error(w, err)
		return
	}

	ids := h.presence.OnlineUserIDs()
	pkg.JSON(w, http.StatusOK, statsResponse{
		OnlineUsers:     len(ids),
		OnlineUserIDs:   ids,
		Rooms:           h.publisher.Rooms(),
		DeliveredEvents: delivered,
	})
}
