package client

import (
	"encoding/json"
	"sync"

	"github.com/xavlink/realtime/ws"
)

// Handler receives one event's raw payload. Typed consumers decode with
// ws.Decode and drop malformed payloads at that boundary.
type Handler func(data json.RawMessage)

// dispatcher routes events by op name. Subscriptions return an unsubscribe
// func so view teardown cannot leak handlers.
type dispatcher struct {
	mu       sync.RWMutex
	nextID   int64
	handlers map[string]map[int64]Handler

	onConnected    map[int64]func(reconnected bool)
	onDisconnected map[int64]func(err error)
}

func newDispatcher() *dispatcher {
	return &dispatcher{
		handlers:       make(map[string]map[int64]Handler),
		onConnected:    make(map[int64]func(bool)),
		onDisconnected: make(map[int64]func(error)),
	}
}

func (d *dispatcher) on(op string, h Handler) func() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	id := d.nextID
	if _, ok := d.handlers[op]; !ok {
		d.handlers[op] = make(map[int64]Handler)
	}
	d.handlers[op][id] = h

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.handlers[op], id)
	}
}

func (d *dispatcher) connected(h func(reconnected bool)) func() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	id := d.nextID
	d.onConnected[id] = h
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.onConnected, id)
	}
}

func (d *dispatcher) disconnected(h func(err error)) func() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	id := d.nextID
	d.onDisconnected[id] = h
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.onDisconnected, id)
	}
}

// dispatch runs handlers synchronously, in the read loop's goroutine, so a
// single consumer sees events in connection order.
func (d *dispatcher) dispatch(event ws.Event) {
	d.mu.RLock()
	handlers := make([]Handler, 0, len(d.handlers[event.Op]))
	for _, h := range d.handlers[event.Op] {
		handlers = append(handlers, h)
	}
	d.mu.RUnlock()

	for _, h := range handlers {
		h(event.Data)
	}
}

func (d *dispatcher) emitConnected(reconnected bool) {
	d.mu.RLock()
	handlers := make([]func(bool), 0, len(d.onConnected))
	for _, h := range d.onConnected {
		handlers = append(handlers, h)
	}
	d.mu.RUnlock()

	for _, h := range handlers {
		h(reconnected)
	}
}

func (d *dispatcher) emitDisconnected(err error) {
	d.mu.RLock()
	handlers := make([]func(error), 0, len(d.onDisconnected))
	for _, h := range d.onDisconnected {
		handlers = append(handlers, h)
	}
	d.mu.RUnlock()

	for _, h := range handlers {
		h(err)
	}
}
