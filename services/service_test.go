package services

import (
	"sync"

	"github.com/xavlink/realtime/models"
	"github.com/xavlink/realtime/ws"
)

// fakePublisher records broadcasts and serves configured room membership.
type fakePublisher struct {
	mu        sync.Mutex
	calls     []publishedEvent
	roomUsers map[string][]string
}

type publishedEvent struct {
	target  string // room, "user:<id>", or "" for broadcast-to-all
	exclude string
	event   ws.Event
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{roomUsers: make(map[string][]string)}
}

func (p *fakePublisher) BroadcastToAll(event ws.Event) int {
	p.record(publishedEvent{event: event})
	return 0
}

func (p *fakePublisher) BroadcastToRoom(room string, event ws.Event) int {
	p.record(publishedEvent{target: room, event: event})
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.roomUsers[room])
}

func (p *fakePublisher) BroadcastToRoomExcept(room, excludeUserID string, event ws.Event) int {
	p.record(publishedEvent{target: room, exclude: excludeUserID, event: event})
	return 0
}

func (p *fakePublisher) BroadcastToUser(userID string, event ws.Event) int {
	p.record(publishedEvent{target: models.UserRoom(userID), event: event})
	return 1
}

func (p *fakePublisher) OnlineUserIDs() []string { return nil }

func (p *fakePublisher) RoomUserIDs(room string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.roomUsers[room]
}

func (p *fakePublisher) RoomSize(room string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.roomUsers[room])
}

func (p *fakePublisher) Rooms() map[string]int {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]int, len(p.roomUsers))
	for room, users := range p.roomUsers {
		out[room] = len(users)
	}
	return out
}

func (p *fakePublisher) record(e publishedEvent) {
	p.mu.Lock()
	p.calls = append(p.calls, e)
	p.mu.Unlock()
}

func (p *fakePublisher) snapshot() []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]publishedEvent, len(p.calls))
	copy(out, p.calls)
	return out
}

// eventsFor filters recorded events by target and op.
func (p *fakePublisher) eventsFor(target, op string) []ws.Event {
	var out []ws.Event
	for _, c := range p.snapshot() {
		if c.target == target && c.event.Op == op {
			out = append(out, c.event)
		}
	}
	return out
}
