package client

import (
	"sync"
	"time"

	"github.com/xavlink/realtime/ws"
)

// Emitter is the slice of the client a TypingNotifier needs.
type Emitter interface {
	Emit(op string, payload any) error
}

// TypingNotifier turns a stream of keystrokes into at most one typing event
// per throttle window and exactly one stop_typing once the user goes idle.
type TypingNotifier struct {
	emitter  Emitter
	chatID   string
	userID   string
	userName string
	idle     time.Duration

	mu       sync.Mutex
	active   bool
	lastEmit time.Time
	timer    *time.Timer
}

// NewTypingNotifier builds a notifier for one chat. idle is how long after
// the last keystroke the stop event fires.
func NewTypingNotifier(emitter Emitter, chatID, userID, userName string, idle time.Duration) *TypingNotifier {
	if idle <= 0 {
		idle = 3 * time.Second
	}
	return &TypingNotifier{
		emitter:  emitter,
		chatID:   chatID,
		userID:   userID,
		userName: userName,
		idle:     idle,
	}
}

// Keystroke records input activity. The first keystroke emits typing; further
// ones within the idle window only push the stop deadline out.
func (n *TypingNotifier) Keystroke() {
	n.mu.Lock()
	defer n.mu.Unlock()

	now := time.Now()
	if !n.active || now.Sub(n.lastEmit) >= n.idle {
		n.emitter.Emit(ws.OpTyping, ws.TypingData{
			ChatID:   n.chatID,
			UserID:   n.userID,
			UserName: n.userName,
		})
		n.lastEmit = now
	}
	n.active = true

	if n.timer != nil {
		n.timer.Stop()
	}
	n.timer = time.AfterFunc(n.idle, n.expire)
}

// Stop ends typing immediately, e.g. when the message is sent or the chat is
// closed. Safe to call when not typing.
func (n *TypingNotifier) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stopLocked()
}

func (n *TypingNotifier) expire() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stopLocked()
}

func (n *TypingNotifier) stopLocked() {
	if !n.active {
		return
	}
	n.active = false
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
	n.emitter.Emit(ws.OpStopTyping, ws.StopTypingData{
		ChatID: n.chatID,
		UserID: n.userID,
	})
}
