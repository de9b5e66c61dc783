package ws

import (
	"encoding/json"
	"log"
	"sync"
	"sync/atomic"
)

// Publisher is the interface the service layer uses to fan events out.
// Services depend on this instead of the concrete Hub so tests can swap in
// a recording double.
type Publisher interface {
	BroadcastToAll(event Event) int
	BroadcastToRoom(room string, event Event) int
	BroadcastToRoomExcept(room, excludeUserID string, event Event) int
	BroadcastToUser(userID string, event Event) int
	OnlineUserIDs() []string
	RoomUserIDs(room string) []string
	RoomSize(room string) int
	Rooms() map[string]int
}

// Hub is the central connection registry. Connections are grouped two ways:
// by authenticated user id (a user may have several tabs) and by room.
// Room membership is rebuilt every session; nothing here is persisted.
type Hub struct {
	mu sync.RWMutex

	// clients: userID -> connection set.
	clients map[string]map[*Client]bool

	// rooms: room name -> connection set. A connection may sit in many
	// rooms; joins accumulate for the life of the connection (no leave op).
	rooms map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client

	// seq stamps every outbound event with an increasing number.
	seq atomic.Int64

	// Lifecycle callbacks, wired in main. They run in their own goroutine so
	// a callback that broadcasts cannot deadlock against the hub lock.
	onUserFirstConnect      func(userID string)
	onUserFullyDisconnect   func(userID string)
	onClientTyping          func(c *Client, data TypingData)
	onClientStoppedTyping   func(c *Client, data StopTypingData)
	onClientAnnouncedOnline func(userID string)
}

// NewHub creates a Hub. Call Run in its own goroutine before use.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// OnUserFirstConnect fires when a user's first connection registers.
func (h *Hub) OnUserFirstConnect(fn func(userID string)) { h.onUserFirstConnect = fn }

// OnUserFullyDisconnected fires when a user's last connection drops.
func (h *Hub) OnUserFullyDisconnected(fn func(userID string)) { h.onUserFullyDisconnect = fn }

// OnClientTyping fires for every accepted typing op.
func (h *Hub) OnClientTyping(fn func(c *Client, data TypingData)) { h.onClientTyping = fn }

// OnClientStoppedTyping fires for every accepted stop_typing op.
func (h *Hub) OnClientStoppedTyping(fn func(c *Client, data StopTypingData)) {
	h.onClientStoppedTyping = fn
}

// OnClientAnnouncedOnline fires for every user_online op.
func (h *Hub) OnClientAnnouncedOnline(fn func(userID string)) { h.onClientAnnouncedOnline = fn }

// Run is the hub's event loop. Start with `go hub.Run()`.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)

		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()

	first := len(h.clients[client.userID]) == 0
	if _, ok := h.clients[client.userID]; !ok {
		h.clients[client.userID] = make(map[*Client]bool)
	}
	h.clients[client.userID][client] = true
	total := len(h.clients[client.userID])

	h.mu.Unlock()

	log.Printf("[ws] client connected: user=%s conn=%s (connections: %d)",
		client.userID, client.connID, total)

	if first && h.onUserFirstConnect != nil {
		go h.onUserFirstConnect(client.userID)
	}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()

	removed := false
	last := false
	if clients, ok := h.clients[client.userID]; ok {
		if _, exists := clients[client]; exists {
			delete(clients, client)
			close(client.send)
			removed = true

			if len(clients) == 0 {
				delete(h.clients, client.userID)
				last = true
			}
		}
	}

	// Drop the connection from every room it joined this session.
	if removed {
		for room := range client.joined {
			if members, ok := h.rooms[room]; ok {
				delete(members, client)
				if len(members) == 0 {
					delete(h.rooms, room)
				}
			}
		}
	}

	h.mu.Unlock()

	if !removed {
		return
	}

	log.Printf("[ws] client disconnected: user=%s conn=%s", client.userID, client.connID)

	if last && h.onUserFullyDisconnect != nil {
		go h.onUserFullyDisconnect(client.userID)
	}
}

// joinRoom attaches a connection to a room. Idempotent: rejoining is a no-op,
// so a client that re-issues joins after reconnect never accumulates
// duplicate memberships.
func (h *Hub) joinRoom(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if client.joined[room] {
		return
	}
	if _, ok := h.rooms[room]; !ok {
		h.rooms[room] = make(map[*Client]bool)
	}
	h.rooms[room][client] = true
	client.joined[room] = true
}

// BroadcastToRoom sends the event to every member connection of the room.
// Returns the number of connections the event was queued for.
func (h *Hub) BroadcastToRoom(room string, event Event) int {
	return h.broadcastRoom(room, "", event)
}

// BroadcastToRoomExcept sends to the room, skipping connections of one user.
// Used for typing: the typist should not see their own indicator.
func (h *Hub) BroadcastToRoomExcept(room, excludeUserID string, event Event) int {
	return h.broadcastRoom(room, excludeUserID, event)
}

func (h *Hub) broadcastRoom(room, excludeUserID string, event Event) int {
	event.Seq = h.seq.Add(1)

	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("[ws] failed to marshal %s event: %v", event.Op, err)
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for client := range h.rooms[room] {
		if excludeUserID != "" && client.userID == excludeUserID {
			continue
		}
		select {
		case client.send <- data:
			delivered++
		default:
			// Buffer full: the client is too slow, drop the connection.
			go func(c *Client) { h.unregister <- c }(client)
		}
	}
	return delivered
}

// BroadcastToUser sends the event to all of a user's connections, whether or
// not they joined their personal room yet.
func (h *Hub) BroadcastToUser(userID string, event Event) int {
	event.Seq = h.seq.Add(1)

	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("[ws] failed to marshal %s event: %v", event.Op, err)
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for client := range h.clients[userID] {
		select {
		case client.send <- data:
			delivered++
		default:
			go func(c *Client) { h.unregister <- c }(client)
		}
	}
	return delivered
}

// BroadcastToAll sends the event to every connection. Used only for
// presence transitions, which every view may care about.
func (h *Hub) BroadcastToAll(event Event) int {
	event.Seq = h.seq.Add(1)

	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("[ws] failed to marshal %s event: %v", event.Op, err)
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for _, clients := range h.clients {
		for client := range clients {
			select {
			case client.send <- data:
				delivered++
			default:
				go func(c *Client) { h.unregister <- c }(client)
			}
		}
	}
	return delivered
}

// RoomUserIDs returns the distinct user ids currently in a room.
func (h *Hub) RoomUserIDs(room string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[string]bool)
	ids := make([]string, 0, len(h.rooms[room]))
	for client := range h.rooms[room] {
		if seen[client.userID] {
			continue
		}
		seen[client.userID] = true
		ids = append(ids, client.userID)
	}
	return ids
}

// OnlineUserIDs returns the ids of all connected users.
func (h *Hub) OnlineUserIDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]string, 0, len(h.clients))
	for userID := range h.clients {
		ids = append(ids, userID)
	}
	return ids
}

// Rooms returns a snapshot of every active room and its connection count.
func (h *Hub) Rooms() map[string]int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make(map[string]int, len(h.rooms))
	for room, members := range h.rooms {
		out[room] = len(members)
	}
	return out
}

// RoomSize returns the number of connections in a room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.rooms[room])
}

// Shutdown closes every connection's send channel (graceful shutdown).
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, clients := range h.clients {
		for client := range clients {
			close(client.send)
		}
	}
	h.clients = make(map[string]map[*Client]bool)
	h.rooms = make(map[string]map[*Client]bool)
	log.Println("[ws] hub shut down, all connections closed")
}
