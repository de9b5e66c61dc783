package ws

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/xavlink/realtime/models"
	"github.com/xavlink/realtime/pkg/ratelimit"
)

const (
	// writeWait bounds a single write; past it the connection is broken.
	writeWait = 10 * time.Second

	// readGraceMultiplier scales the heartbeat interval into the read
	// deadline: three missed pings mean the connection is dead.
	readGraceMultiplier = 3

	// maxMessageSize caps inbound frames. Realtime ops are small; bulk data
	// goes over HTTP.
	maxMessageSize = 4096
)

// Client represents one WebSocket connection.
//
// Two goroutines per connection: ReadPump consumes inbound ops, WritePump
// drains the send channel. gorilla/websocket allows one concurrent reader
// and one concurrent writer, so the split keeps them from blocking each other.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	connID   string
	userID   string
	userName string

	// send buffers outbound frames. A full buffer marks the client slow and
	// the hub drops the connection.
	send chan []byte

	// joined tracks this connection's room memberships; guarded by hub.mu.
	joined map[string]bool

	// limiter throttles inbound ops per user.
	limiter *ratelimit.EventRateLimiter

	// pongWait is derived from the configured heartbeat interval.
	pongWait time.Duration

	mu sync.Mutex // guards conn writes
}

// ReadPump reads inbound ops until the connection dies, then unregisters.
// The rate bucket is shared across a user's tabs, so it is not reset here;
// the full-disconnect callback owns that.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(c.pongWait)); err != nil {
		log.Printf("[ws] failed to set read deadline for user %s: %v", c.userID, err)
		return
	}

	for {
		_, rawMessage, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[ws] unexpected close for user %s: %v", c.userID, err)
			}
			return
		}

		var event Event
		if err := json.Unmarshal(rawMessage, &event); err != nil {
			log.Printf("[ws] invalid frame from user %s: %v", c.userID, err)
			continue
		}

		c.handleEvent(event)
	}
}

// handleEvent dispatches one inbound op. Malformed payloads are logged and
// dropped here; nothing downstream sees them.
func (c *Client) handleEvent(event Event) {
	if event.Op != OpPing && !c.limiter.Allow(c.userID) {
		log.Printf("[ws] rate limited op %s from user %s", event.Op, c.userID)
		return
	}

	switch event.Op {
	case OpPing:
		c.handlePing(event)

	case OpJoinUserRoom:
		c.handleJoinUserRoom(event)

	case OpJoinRoom:
		c.handleJoinRoom(event)

	case OpUserOnline:
		c.handleUserOnline(event)

	case OpTyping:
		c.handleTyping(event)

	case OpStopTyping:
		c.handleStopTyping(event)

	default:
		log.Printf("[ws] unknown op from user %s: %s", c.userID, event.Op)
	}
}

// handlePing renews the read deadline and echoes the timestamp so the client
// can measure round-trip time.
func (c *Client) handlePing(event Event) {
	data, err := Decode[PingData](event.Data)
	if err != nil {
		log.Printf("[ws] dropping ping from user %s: %v", c.userID, err)
		return
	}

	if err := c.conn.SetReadDeadline(time.Now().Add(c.pongWait)); err != nil {
		log.Printf("[ws] failed to renew read deadline for user %s: %v", c.userID, err)
		return
	}

	c.sendEvent(mustEvent(OpPong, PongData{Timestamp: data.Timestamp}))
}

// handleJoinUserRoom attaches the connection to the caller's personal room.
// A connection may only join its own user room.
func (c *Client) handleJoinUserRoom(event Event) {
	data, err := Decode[JoinUserRoomData](event.Data)
	if err != nil {
		log.Printf("[ws] dropping join_user_room from user %s: %v", c.userID, err)
		return
	}
	if data.UserID != c.userID {
		log.Printf("[ws] user %s tried to join user room of %s", c.userID, data.UserID)
		return
	}
	c.hub.joinRoom(c, models.UserRoom(c.userID))
}

func (c *Client) handleJoinRoom(event Event) {
	data, err := Decode[JoinRoomData](event.Data)
	if err != nil {
		log.Printf("[ws] dropping join_room from user %s: %v", c.userID, err)
		return
	}
	c.hub.joinRoom(c, models.ChatRoom(data.ChatID))
}

func (c *Client) handleUserOnline(event Event) {
	data, err := Decode[UserOnlineData](event.Data)
	if err != nil {
		log.Printf("[ws] dropping user_online from user %s: %v", c.userID, err)
		return
	}
	if data.UserID != c.userID {
		return
	}
	if c.hub.onClientAnnouncedOnline != nil {
		go c.hub.onClientAnnouncedOnline(c.userID)
	}
}

// handleTyping validates and forwards the typing signal. The sender id is
// forced to the authenticated user; the display name falls back to the
// token's name when the payload omits it.
func (c *Client) handleTyping(event Event) {
	data, err := Decode[TypingData](event.Data)
	if err != nil {
		log.Printf("[ws] dropping typing from user %s: %v", c.userID, err)
		return
	}
	data.UserID = c.userID
	if data.UserName == "" {
		data.UserName = c.userName
	}

	if c.hub.onClientTyping != nil {
		go c.hub.onClientTyping(c, data)
	}
}

func (c *Client) handleStopTyping(event Event) {
	data, err := Decode[StopTypingData](event.Data)
	if err != nil {
		log.Printf("[ws] dropping stop_typing from user %s: %v", c.userID, err)
		return
	}
	data.UserID = c.userID

	if c.hub.onClientStoppedTyping != nil {
		go c.hub.onClientStoppedTyping(c, data)
	}
}

// sendEvent queues one event for this connection only.
func (c *Client) sendEvent(event Event) {
	event.Seq = c.hub.seq.Add(1)

	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("[ws] failed to marshal %s for user %s: %v", event.Op, c.userID, err)
		return
	}

	select {
	case c.send <- data:
	default:
		log.Printf("[ws] send buffer full for user %s, dropping connection", c.userID)
		c.hub.unregister <- c
	}
}

// WritePump drains the send channel into the connection.
func (c *Client) WritePump() {
	defer c.conn.Close()

	for {
		message, ok := <-c.send
		if !ok {
			// Hub removed this client.
			c.writeMessage(websocket.CloseMessage, nil)
			return
		}

		if err := c.writeMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
}

// writeMessage serializes writes; gorilla/websocket forbids concurrent writes.
func (c *Client) writeMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}

// mustEvent wraps NewEvent for payloads that cannot fail to marshal.
func mustEvent(op string, payload any) Event {
	event, err := NewEvent(op, payload)
	if err != nil {
		log.Printf("[ws] failed to build %s event: %v", op, err)
		return Event{Op: op}
	}
	return event
}
