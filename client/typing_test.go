package client

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xavlink/realtime/ws"
)

type recordingEmitter struct {
	mu  sync.Mutex
	ops []string
}

func (e *recordingEmitter) Emit(op string, _ any) error {
	e.mu.Lock()
	e.ops = append(e.ops, op)
	e.mu.Unlock()
	return nil
}

func (e *recordingEmitter) count(op string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, o := range e.ops {
		if o == op {
			n++
		}
	}
	return n
}

func TestKeystrokesThrottleTypingEvents(t *testing.T) {
	em := &recordingEmitter{}
	n := NewTypingNotifier(em, "chat-1", "me", "Me", 200*time.Millisecond)
	defer n.Stop()

	for i := 0; i < 10; i++ {
		n.Keystroke()
	}

	assert.Equal(t, 1, em.count(ws.OpTyping),
		"a burst of keystrokes emits a single typing event")
}

func TestExactlyOneStopAfterIdle(t *testing.T) {
	em := &recordingEmitter{}
	n := NewTypingNotifier(em, "chat-1", "me", "Me", 50*time.Millisecond)

	n.Keystroke()
	n.Keystroke()
	n.Keystroke()

	require.Eventually(t, func() bool {
		return em.count(ws.OpStopTyping) == 1
	}, time.Second, 5*time.Millisecond)

	// No further stops fire once idle.
	time.Sleep(120 * time.Millisecond)
	assert.Equal(t, 1, em.count(ws.OpStopTyping))
}

func TestKeystrokePushesIdleDeadlineOut(t *testing.T) {
	em := &recordingEmitter{}
	n := NewTypingNotifier(em, "chat-1", "me", "Me", 80*time.Millisecond)
	defer n.Stop()

	n.Keystroke()
	time.Sleep(50 * time.Millisecond)
	n.Keystroke()
	time.Sleep(50 * time.Millisecond)

	assert.Zero(t, em.count(ws.OpStopTyping),
		"continuous typing must not produce a stop")
}

func TestExplicitStop(t *testing.T) {
	em := &recordingEmitter{}
	n := NewTypingNotifier(em, "chat-1", "me", "Me", time.Minute)

	n.Keystroke()
	n.Stop()
	n.Stop() // idempotent

	assert.Equal(t, 1, em.count(ws.OpStopTyping))
}

func TestTypingResumesAfterStop(t *testing.T) {
	em := &recordingEmitter{}
	n := NewTypingNotifier(em, "chat-1", "me", "Me", time.Minute)
	defer n.Stop()

	n.Keystroke()
	n.Stop()
	n.Keystroke()

	assert.Equal(t, 2, em.count(ws.OpTyping))
}

func TestStopWithoutTypingIsNoop(t *testing.T) {
	em := &recordingEmitter{}
	n := NewTypingNotifier(em, "chat-1", "me", "Me", time.Minute)

	n.Stop()
	assert.Empty(t, em.ops)
}
