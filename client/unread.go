package client

import (
	"encoding/json"
	"sync"

	"github.com/xavlink/realtime/ws"
)

// UnreadTracker maintains the badge counts a UI renders: per-chat unread
// message counts and the notification badge. It folds socket events over the
// last authoritative snapshot.
//
// Precedence is fixed: a server-pushed count always replaces whatever local
// folding produced, and local increments then build on that value. When the
// two disagree, the server wins.
type UnreadTracker struct {
	mu     sync.Mutex
	selfID string

	chats map[string]int
	total int
	// totalAuthoritative is true while total came straight from the server
	// with no local fold applied since.
	totalAuthoritative bool

	badge int
}

// NewUnreadTracker builds a tracker for the given user and wires it to the
// client's events. The returned func unsubscribes everything.
func NewUnreadTracker(c *Client, selfID string) (*UnreadTracker, func()) {
	t := &UnreadTracker{
		selfID: selfID,
		chats:  make(map[string]int),
	}

	subs := []func(){
		c.On(ws.OpReceiveMessage, t.onMessage),
		c.On(ws.OpMarkChatRead, t.onChatRead),
		c.On(ws.OpMessageRead, t.onMessageRead),
		c.On(ws.OpNotificationUnreadCount, t.onAuthoritativeCount),
		c.On(ws.OpNotificationNew, t.onNotification),
		c.On(ws.OpNotificationDeleted, t.onNotificationDeleted),
	}
	unsubscribe := func() {
		for _, u := range subs {
			u()
		}
	}
	return t, unsubscribe
}

// ApplySnapshot replaces all state with the authoritative REST snapshot.
func (t *UnreadTracker) ApplySnapshot(snapshot UnreadSnapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.chats = make(map[string]int, len(snapshot.Chats))
	for _, c := range snapshot.Chats {
		t.chats[c.ChatID] = c.UnreadCount
	}
	t.total = snapshot.Total
	t.totalAuthoritative = true
}

// ChatUnread returns one chat's current unread count.
func (t *UnreadTracker) ChatUnread(chatID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.chats[chatID]
}

// Total returns the unread message total across chats: the last server push
// when it is still current, otherwise the locally folded sum.
func (t *UnreadTracker) Total() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.totalAuthoritative {
		return t.total
	}
	sum := 0
	for _, n := range t.chats {
		sum += n
	}
	return sum
}

// NotificationBadge returns the notification counter.
func (t *UnreadTracker) NotificationBadge() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.badge
}

func (t *UnreadTracker) onMessage(data json.RawMessage) {
	msg, err := ws.Decode[ws.ReceiveMessageData](data)
	if err != nil {
		return
	}
	if msg.SenderID == t.selfID {
		return
	}

	t.mu.Lock()
	t.chats[msg.ChatID]++
	t.totalAuthoritative = false
	t.mu.Unlock()
}

func (t *UnreadTracker) onChatRead(data json.RawMessage) {
	read, err := ws.Decode[ws.MarkChatReadData](data)
	if err != nil {
		return
	}
	// Only our own read marker clears our counter; the peer's arrives in the
	// same room but describes their state.
	if read.UserID != t.selfID {
		return
	}

	t.mu.Lock()
	delete(t.chats, read.ChatID)
	t.totalAuthoritative = false
	t.mu.Unlock()
}

func (t *UnreadTracker) onMessageRead(data json.RawMessage) {
	read, err := ws.Decode[ws.MessageReadData](data)
	if err != nil {
		return
	}
	if read.UserID != t.selfID {
		return
	}

	t.mu.Lock()
	if t.chats[read.ChatID] > 0 {
		t.chats[read.ChatID]--
	}
	t.totalAuthoritative = false
	t.mu.Unlock()
}

func (t *UnreadTracker) onAuthoritativeCount(data json.RawMessage) {
	count, err := ws.Decode[ws.UnreadCountData](data)
	if err != nil {
		return
	}

	t.mu.Lock()
	t.total = count.UnreadCount
	t.totalAuthoritative = true
	t.mu.Unlock()
}

func (t *UnreadTracker) onNotification(data json.RawMessage) {
	if _, err := ws.Decode[ws.NotificationNewData](data); err != nil {
		return
	}

	t.mu.Lock()
	t.badge++
	t.mu.Unlock()
}

func (t *UnreadTracker) onNotificationDeleted(data json.RawMessage) {
	if _, err := ws.Decode[ws.NotificationDeletedData](data); err != nil {
		return
	}

	t.mu.Lock()
	if t.badge > 0 {
		t.badge--
	}
	t.mu.Unlock()
}

// SetNotificationBadge seeds the badge from a REST fetch.
func (t *UnreadTracker) SetNotificationBadge(n int) {
	t.mu.Lock()
	t.badge = n
	t.mu.Unlock()
}
