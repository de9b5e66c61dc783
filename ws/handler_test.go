package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xavlink/realtime/models"
	"github.com/xavlink/realtime/pkg/ratelimit"
)

// stubValidator accepts any non-empty token and uses it as the user id.
type stubValidator struct{}

func (stubValidator) ValidateAccessToken(token string) (*TokenClaims, error) {
	return &TokenClaims{UserID: token, UserName: "name-" + token}, nil
}

func startWSServer(t *testing.T) (*Hub, string) {
	t.Helper()

	hub := NewHub()
	go hub.Run()

	limiter := ratelimit.NewEventRateLimiter(100, time.Minute, time.Minute)
	t.Cleanup(limiter.Close)

	handler := NewHandler(hub, stubValidator{}, limiter, time.Minute, 32, nil)
	srv := httptest.NewServer(http.HandlerFunc(handler.HandleConnection))
	t.Cleanup(srv.Close)

	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dialWS(t *testing.T, url, userID string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url+"?token="+userID, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendWS(t *testing.T, conn *websocket.Conn, op string, payload any) {
	t.Helper()
	event, err := NewEvent(op, payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(event))
}

func readWS(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var event Event
	require.NoError(t, conn.ReadJSON(&event))
	return event
}

func TestUpgradeRequiresToken(t *testing.T) {
	_, url := startWSServer(t)

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestPingPong(t *testing.T) {
	_, url := startWSServer(t)
	conn := dialWS(t, url, "alice")

	sendWS(t, conn, OpPing, PingData{Timestamp: 1234})

	event := readWS(t, conn)
	assert.Equal(t, OpPong, event.Op)
	pong, err := Decode[PongData](event.Data)
	require.NoError(t, err)
	assert.Equal(t, int64(1234), pong.Timestamp)
}

func TestPersonalRoomIsJoinedOnConnect(t *testing.T) {
	hub, url := startWSServer(t)
	conn := dialWS(t, url, "alice")

	require.Eventually(t, func() bool {
		return hub.RoomSize(models.UserRoom("alice")) == 1
	}, 2*time.Second, 10*time.Millisecond,
		"notification delivery must not wait for an explicit join")

	event := mustEvent(OpNotificationUnreadCount, UnreadCountData{UnreadCount: 3})
	hub.BroadcastToRoom(models.UserRoom("alice"), event)

	got := readWS(t, conn)
	assert.Equal(t, OpNotificationUnreadCount, got.Op)
}

func TestJoinRoomAndReceiveBroadcast(t *testing.T) {
	hub, url := startWSServer(t)
	conn := dialWS(t, url, "alice")

	sendWS(t, conn, OpJoinRoom, JoinRoomData{ChatID: "chat-1"})

	require.Eventually(t, func() bool {
		return hub.RoomSize(models.ChatRoom("chat-1")) == 1
	}, 2*time.Second, 10*time.Millisecond)

	msg := models.Message{ID: "m1", ChatID: "chat-1", SenderID: "bob", Text: "hi", CreatedAt: time.Now()}
	hub.BroadcastToRoom(models.ChatRoom("chat-1"), mustEvent(OpReceiveMessage, ReceiveMessageData{Message: msg}))

	got := readWS(t, conn)
	require.Equal(t, OpReceiveMessage, got.Op)
	data, err := Decode[ReceiveMessageData](got.Data)
	require.NoError(t, err)
	assert.Equal(t, "m1", data.ID)
}

func TestJoinForeignUserRoomIsRejected(t *testing.T) {
	hub, url := startWSServer(t)
	conn := dialWS(t, url, "alice")

	sendWS(t, conn, OpJoinUserRoom, JoinUserRoomData{UserID: "bob"})

	// The op is silently dropped: bob's room never gains a member.
	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, hub.RoomSize(models.UserRoom("bob")))
}

func TestTypingIsStampedWithSenderIdentity(t *testing.T) {
	hub, url := startWSServer(t)

	received := make(chan TypingData, 1)
	hub.OnClientTyping(func(_ *Client, data TypingData) { received <- data })

	conn := dialWS(t, url, "alice")
	// A client lying about its identity gets overwritten with the token's.
	sendWS(t, conn, OpTyping, TypingData{ChatID: "chat-1", UserID: "mallory", UserName: "Mallory"})

	select {
	case data := <-received:
		assert.Equal(t, "alice", data.UserID)
	case <-time.After(2 * time.Second):
		t.Fatal("typing callback never fired")
	}
}

func TestRateLimitCooldownSurvivesSingleTabClose(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	// One op per window: the second typing op trips the cooldown.
	limiter := ratelimit.NewEventRateLimiter(1, time.Hour, time.Hour)
	t.Cleanup(limiter.Close)

	handler := NewHandler(hub, stubValidator{}, limiter, time.Minute, 32, nil)
	srv := httptest.NewServer(http.HandlerFunc(handler.HandleConnection))
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	typed := make(chan TypingData, 4)
	hub.OnClientTyping(func(_ *Client, data TypingData) { typed <- data })

	connCount := func() int {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		return len(hub.clients["alice"])
	}

	tab1 := dialWS(t, url, "alice")
	tab2 := dialWS(t, url, "alice")
	require.Eventually(t, func() bool { return connCount() == 2 }, 2*time.Second, 10*time.Millisecond)

	sendWS(t, tab1, OpTyping, TypingData{ChatID: "chat-1", UserID: "alice", UserName: "Ada"})
	select {
	case <-typed:
	case <-time.After(2 * time.Second):
		t.Fatal("first typing op must pass the limiter")
	}

	sendWS(t, tab2, OpTyping, TypingData{ChatID: "chat-1", UserID: "alice", UserName: "Ada"})
	select {
	case <-typed:
		t.Fatal("second typing op must be rate limited")
	case <-time.After(150 * time.Millisecond):
	}

	// Closing one tab must not clear the user's shared cooldown.
	tab1.Close()
	require.Eventually(t, func() bool { return connCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	sendWS(t, tab2, OpTyping, TypingData{ChatID: "chat-1", UserID: "alice", UserName: "Ada"})
	select {
	case <-typed:
		t.Fatal("cooldown erased by a single tab closing")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestMalformedFrameDoesNotKillConnection(t *testing.T) {
	_, url := startWSServer(t)
	conn := dialWS(t, url, "alice")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))

	// The connection survives and still answers pings.
	sendWS(t, conn, OpPing, PingData{Timestamp: 9})
	event := readWS(t, conn)
	assert.Equal(t, OpPong, event.Op)
}
