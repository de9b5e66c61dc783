// Package client is the Go SDK for the XavLink realtime gateway. It owns the
// WebSocket connection, reconnects with bounded backoff, replays room
// subscriptions after every reconnect, and routes events to registered
// handlers.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/xavlink/realtime/ws"
)

// State is the connection lifecycle phase.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateClosed       State = "closed"
)

// ErrNotConnected is returned by Emit when no live connection exists. The
// caller decides whether to retry; the SDK never queues outbound events.
var ErrNotConnected = errors.New("client: not connected")

// Config carries everything the client needs. URL is the gateway base
// (ws://host:port); the /ws path and token query are appended by the client.
type Config struct {
	URL      string
	Token    string
	UserID   string
	UserName string

	Reconnect         ReconnectPolicy
	HeartbeatInterval time.Duration

	DialTimeout time.Duration
}

func (c *Config) defaults() {
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = 30 * time.Second
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 10 * time.Second
	}
}

// missedPongGrace is how many heartbeat intervals of pong silence are
// tolerated before the connection is torn down as half-open.
const missedPongGrace = 2

// Client is a single user's connection to the gateway. All methods are safe
// for concurrent use.
type Client struct {
	cfg        Config
	dispatcher *dispatcher
	recon      *reconnector

	mu      sync.Mutex
	conn    *websocket.Conn
	state   State
	subs    map[string]bool // chat IDs to re-join after reconnect
	stopped chan struct{}   // closed by Close, ends the reconnect loop

	writeMu sync.Mutex

	pongMu   sync.Mutex
	lastPong time.Time
	rtt      time.Duration
}

// New builds a client; Connect must be called to open the socket.
func New(cfg Config) *Client {
	cfg.defaults()
	c := &Client{
		cfg:        cfg,
		dispatcher: newDispatcher(),
		recon:      newReconnector(cfg.Reconnect),
		state:      StateDisconnected,
		subs:       make(map[string]bool),
		stopped:    make(chan struct{}),
	}
	c.dispatcher.on(ws.OpPong, c.handlePong)
	return c
}

// On registers a handler for an event op and returns an unsubscribe func.
func (c *Client) On(op string, h Handler) func() {
	return c.dispatcher.on(op, h)
}

// OnConnected fires after every successful connect; reconnected is false for
// the initial one.
func (c *Client) OnConnected(h func(reconnected bool)) func() {
	return c.dispatcher.connected(h)
}

// OnDisconnected fires when the connection drops, before any reconnect
// attempt.
func (c *Client) OnDisconnected(h func(err error)) func() {
	return c.dispatcher.disconnected(h)
}

// State returns the current lifecycle phase.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// RTT returns the latency measured by the last heartbeat round trip.
func (c *Client) RTT() time.Duration {
	c.pongMu.Lock()
	defer c.pongMu.Unlock()
	return c.rtt
}

// Connect dials the gateway. The initial attempt surfaces its error to the
// caller; after that, drops are handled by the internal reconnect loop.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return errors.New("client: closed")
	}
	if c.conn != nil {
		c.mu.Unlock()
		return errors.New("client: already connected")
	}
	c.state = StateConnecting
	c.mu.Unlock()

	conn, err := c.dial(ctx)
	if err != nil {
		c.setState(StateDisconnected)
		return err
	}

	c.startSession(conn, false)
	return nil
}

// Close stops the client for good. No reconnect follows.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return nil
	}
	c.state = StateClosed
	close(c.stopped)
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		return conn.Close()
	}
	return nil
}

// JoinChat subscribes to a chat room. The subscription survives reconnects:
// it is replayed once per successful connect.
func (c *Client) JoinChat(chatID string) error {
	c.mu.Lock()
	c.subs[chatID] = true
	connected := c.conn != nil && c.state == StateConnected
	c.mu.Unlock()

	if !connected {
		return nil
	}
	return c.Emit(ws.OpJoinRoom, ws.JoinRoomData{ChatID: chatID})
}

// LeaveChat forgets a subscription. There is no server-side leave; membership
// ends when the connection does, so this only stops future re-joins.
func (c *Client) LeaveChat(chatID string) {
	c.mu.Lock()
	delete(c.subs, chatID)
	c.mu.Unlock()
}

// Emit sends one event. Fails immediately when disconnected.
func (c *Client) Emit(op string, payload any) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("client: marshal %s payload: %w", op, err)
	}
	raw, err := json.Marshal(ws.Event{Op: op, Data: data})
	if err != nil {
		return fmt.Errorf("client: marshal %s event: %w", op, err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, raw)
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("client: parse gateway url: %w", err)
	}
	u.Path = "/ws"
	u.RawQuery = url.Values{"token": {c.cfg.Token}}.Encode()

	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.DialTimeout}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", u.Host, err)
	}
	return conn, nil
}

// startSession installs a fresh connection and spins up its read and
// heartbeat goroutines.
func (c *Client) startSession(conn *websocket.Conn, reconnected bool) {
	c.mu.Lock()
	c.conn = conn
	c.state = StateConnected
	c.mu.Unlock()

	c.recon.markConnected()
	c.pongMu.Lock()
	c.lastPong = time.Now()
	c.pongMu.Unlock()

	sessionDone := make(chan struct{})
	go c.readLoop(conn, sessionDone)
	go c.heartbeatLoop(conn, sessionDone)

	c.announce()
	c.dispatcher.emitConnected(reconnected)
}

// announce runs exactly once per successful connect: presence, the personal
// room, then every subscribed chat room.
func (c *Client) announce() {
	if err := c.Emit(ws.OpUserOnline, ws.UserOnlineData{UserID: c.cfg.UserID}); err != nil {
		log.Printf("[client] announce online: %v", err)
		return
	}
	if err := c.Emit(ws.OpJoinUserRoom, ws.JoinUserRoomData{UserID: c.cfg.UserID}); err != nil {
		log.Printf("[client] join user room: %v", err)
		return
	}

	c.mu.Lock()
	chats := make([]string, 0, len(c.subs))
	for chatID := range c.subs {
		chats = append(chats, chatID)
	}
	c.mu.Unlock()

	for _, chatID := range chats {
		if err := c.Emit(ws.OpJoinRoom, ws.JoinRoomData{ChatID: chatID}); err != nil {
			log.Printf("[client] rejoin chat %s: %v", chatID, err)
		}
	}
}

func (c *Client) readLoop(conn *websocket.Conn, sessionDone chan struct{}) {
	defer close(sessionDone)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			c.handleDrop(conn, err)
			return
		}

		var event ws.Event
		if err := json.Unmarshal(raw, &event); err != nil {
			log.Printf("[client] dropping malformed frame: %v", err)
			continue
		}
		c.dispatcher.dispatch(event)
	}
}

func (c *Client) heartbeatLoop(conn *websocket.Conn, sessionDone chan struct{}) {
	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-sessionDone:
			return
		case <-c.stopped:
			return
		case <-ticker.C:
			c.pongMu.Lock()
			silent := time.Since(c.lastPong)
			c.pongMu.Unlock()
			if silent > time.Duration(missedPongGrace+1)*c.cfg.HeartbeatInterval {
				// Half-open socket: force the read loop to fail.
				log.Printf("[client] no pong for %s, closing connection", silent.Round(time.Second))
				conn.Close()
				return
			}
			err := c.Emit(ws.OpPing, ws.PingData{Timestamp: time.Now().UnixMilli()})
			if err != nil {
				return
			}
		}
	}
}

func (c *Client) handlePong(data json.RawMessage) {
	pong, err := ws.Decode[ws.PongData](data)
	if err != nil {
		return
	}
	c.pongMu.Lock()
	c.lastPong = time.Now()
	if pong.Timestamp > 0 {
		c.rtt = time.Since(time.UnixMilli(pong.Timestamp))
	}
	c.pongMu.Unlock()
}

// handleDrop transitions out of a dead connection. At most one caller wins;
// later read errors from the same conn are ignored.
func (c *Client) handleDrop(conn *websocket.Conn, err error) {
	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	closed := c.state == StateClosed
	if !closed {
		c.state = StateReconnecting
	}
	c.mu.Unlock()

	conn.Close()
	if closed {
		return
	}

	c.dispatcher.emitDisconnected(err)
	go c.reconnectLoop()
}

// reconnectLoop retries per the configured policy. When attempts run out the
// client settles in StateDisconnected; callers may Connect again manually.
func (c *Client) reconnectLoop() {
	for c.recon.shouldReconnect() {
		delay := c.recon.nextDelay()
		log.Printf("[client] reconnecting in %s", delay.Round(time.Millisecond))

		select {
		case <-c.stopped:
			return
		case <-time.After(delay):
		}

		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.DialTimeout)
		conn, err := c.dial(ctx)
		cancel()
		if err != nil {
			log.Printf("[client] reconnect failed: %v", err)
			continue
		}

		c.startSession(conn, true)
		return
	}

	log.Printf("[client] reconnect attempts exhausted, giving up")
	c.setState(StateDisconnected)
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	if c.state != StateClosed {
		c.state = s
	}
	c.mu.Unlock()
}
