package ws

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xavlink/realtime/models"
)

// recordingPublisher captures broadcasts instead of delivering them.
type recordingPublisher struct {
	mu    sync.Mutex
	calls []broadcastCall
}

type broadcastCall struct {
	room    string
	exclude string
	event   Event
}

func (p *recordingPublisher) BroadcastToAll(event Event) int {
	p.record(broadcastCall{event: event})
	return 0
}

func (p *recordingPublisher) BroadcastToRoom(room string, event Event) int {
	p.record(broadcastCall{room: room, event: event})
	return 0
}

func (p *recordingPublisher) BroadcastToRoomExcept(room, excludeUserID string, event Event) int {
	p.record(broadcastCall{room: room, exclude: excludeUserID, event: event})
	return 0
}

func (p *recordingPublisher) BroadcastToUser(userID string, event Event) int {
	p.record(broadcastCall{room: models.UserRoom(userID), event: event})
	return 0
}

func (p *recordingPublisher) OnlineUserIDs() []string          { return nil }
func (p *recordingPublisher) RoomUserIDs(room string) []string { return nil }
func (p *recordingPublisher) RoomSize(room string) int         { return 0 }
func (p *recordingPublisher) Rooms() map[string]int            { return nil }

func (p *recordingPublisher) record(c broadcastCall) {
	p.mu.Lock()
	p.calls = append(p.calls, c)
	p.mu.Unlock()
}

func (p *recordingPublisher) snapshot() []broadcastCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]broadcastCall, len(p.calls))
	copy(out, p.calls)
	return out
}

func (p *recordingPublisher) countOp(op string) int {
	n := 0
	for _, c := range p.snapshot() {
		if c.event.Op == op {
			n++
		}
	}
	return n
}

func TestTypingStartedExcludesTypist(t *testing.T) {
	pub := &recordingPublisher{}
	reg := NewTypingRegistry(pub, time.Minute)
	defer reg.Close()

	reg.Started(TypingData{ChatID: "chat-1", UserID: "alice", UserName: "Ada"})

	calls := pub.snapshot()
	require.Len(t, calls, 1)
	assert.Equal(t, models.ChatRoom("chat-1"), calls[0].room)
	assert.Equal(t, "alice", calls[0].exclude)
	assert.Equal(t, OpUserTyping, calls[0].event.Op)
}

func TestTypingStoppedBroadcastsToWholeRoom(t *testing.T) {
	pub := &recordingPublisher{}
	reg := NewTypingRegistry(pub, time.Minute)
	defer reg.Close()

	reg.Started(TypingData{ChatID: "chat-1", UserID: "alice", UserName: "Ada"})
	reg.Stopped(StopTypingData{ChatID: "chat-1", UserID: "alice"})

	calls := pub.snapshot()
	require.Len(t, calls, 2)
	assert.Equal(t, OpUserStoppedTyping, calls[1].event.Op)
	assert.Empty(t, calls[1].exclude)
}

func TestTypingExpiresServerSide(t *testing.T) {
	pub := &recordingPublisher{}
	// Sweep interval floors at one second, so expiry shorter than that still
	// takes about a second to fire.
	reg := NewTypingRegistry(pub, 300*time.Millisecond)
	defer reg.Close()

	reg.Started(TypingData{ChatID: "chat-1", UserID: "alice", UserName: "Ada"})

	require.Eventually(t, func() bool {
		return pub.countOp(OpUserStoppedTyping) == 1
	}, 3*time.Second, 20*time.Millisecond,
		"a typist that never sends stop_typing must be expired by the registry")
}

func TestTypingUserDisconnectedClearsEveryChat(t *testing.T) {
	pub := &recordingPublisher{}
	reg := NewTypingRegistry(pub, time.Minute)
	defer reg.Close()

	reg.Started(TypingData{ChatID: "chat-1", UserID: "alice", UserName: "Ada"})
	reg.Started(TypingData{ChatID: "chat-2", UserID: "alice", UserName: "Ada"})
	reg.Started(TypingData{ChatID: "chat-1", UserID: "bob", UserName: "Bob"})

	reg.UserDisconnected("alice")

	stops := make(map[string]bool)
	for _, c := range pub.snapshot() {
		if c.event.Op == OpUserStoppedTyping {
			data, err := Decode[UserStoppedTypingData](c.event.Data)
			require.NoError(t, err)
			assert.Equal(t, "alice", data.UserID)
			stops[data.ChatID] = true
		}
	}
	assert.Len(t, stops, 2, "both of alice's chats get a stop, bob's entry survives")
}
