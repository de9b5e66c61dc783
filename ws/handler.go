package ws

import (
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/xavlink/realtime/models"
	"github.com/xavlink/realtime/pkg/ratelimit"
)

// TokenClaims is what the handler needs from a validated token.
type TokenClaims struct {
	UserID   string
	UserName string
}

// TokenValidator is the narrow auth interface the handler depends on,
// defined here rather than importing the middleware package to keep ws a
// leaf below the HTTP layer.
type TokenValidator interface {
	ValidateAccessToken(tokenString string) (*TokenClaims, error)
}

// Handler upgrades /ws requests and registers clients with the hub.
type Handler struct {
	hub            *Hub
	tokenValidator TokenValidator
	limiter        *ratelimit.EventRateLimiter
	upgrader       websocket.Upgrader

	heartbeatInterval time.Duration
	sendBufferSize    int
}

// NewHandler builds the WebSocket handler. allowedOrigins guards the
// upgrade handshake; an empty list allows everything (development).
func NewHandler(
	hub *Hub,
	tokenValidator TokenValidator,
	limiter *ratelimit.EventRateLimiter,
	heartbeatInterval time.Duration,
	sendBufferSize int,
	allowedOrigins []string,
) *Handler {
	origins := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = true
	}

	return &Handler{
		hub:            hub,
		tokenValidator: tokenValidator,
		limiter:        limiter,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(origins) == 0 {
					return true
				}
				return origins[r.Header.Get("Origin")]
			},
		},
		heartbeatInterval: heartbeatInterval,
		sendBufferSize:    sendBufferSize,
	}
}

// HandleConnection authenticates, upgrades, and pumps one connection.
//
// Browsers cannot set custom headers during the upgrade, so the JWT arrives
// as a query parameter: ws://gateway/ws?token=JWT.
//
// The personal room is joined immediately: room membership does not survive
// a reconnect, and notification delivery must not depend on the client
// remembering to re-join before the first event arrives.
func (h *Handler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	claims, err := h.tokenValidator.ValidateAccessToken(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade failed for user %s: %v", claims.UserID, err)
		return
	}

	client := &Client{
		hub:      h.hub,
		conn:     conn,
		connID:   uuid.NewString(),
		userID:   claims.UserID,
		userName: claims.UserName,
		send:     make(chan []byte, h.sendBufferSize),
		joined:   make(map[string]bool),
		limiter:  h.limiter,
		pongWait: h.heartbeatInterval * readGraceMultiplier,
	}

	h.hub.register <- client
	h.hub.joinRoom(client, models.UserRoom(claims.UserID))

	// WritePump runs in its own goroutine; ReadPump blocks this handler
	// until the connection closes.
	go client.WritePump()
	client.ReadPump()
}
