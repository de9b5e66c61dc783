package client

import (
	"context"
	"encoding/json"
	"log"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/xavlink/realtime/models"
	"github.com/xavlink/realtime/ws"
)

// MessageStore is the local cache a ChatView reads before the network and
// writes after it. Implementations must degrade to misses, never errors.
type MessageStore interface {
	Get(ctx context.Context, chatID string) ([]models.Message, bool)
	Put(ctx context.Context, chatID string, messages []models.Message)
}

// ChatView mirrors one open conversation: the message list, the draft in the
// input box, and who is typing. Events and REST responses both feed it;
// messages are deduplicated by ID so the two sources never double-insert.
type ChatView struct {
	client *Client
	rest   *RESTClient
	store  MessageStore
	chatID string
	selfID string

	mu       sync.Mutex
	messages []models.Message
	seen     map[string]bool
	draft    string
	typing   map[string]string // userID to display name
}

// NewChatView builds a view and wires it to the client's events. store may be
// nil when no local cache is available. The returned func unsubscribes.
func NewChatView(c *Client, rest *RESTClient, store MessageStore, chatID, selfID string) (*ChatView, func()) {
	v := &ChatView{
		client: c,
		rest:   rest,
		store:  store,
		chatID: chatID,
		selfID: selfID,
		seen:   make(map[string]bool),
		typing: make(map[string]string),
	}

	subs := []func(){
		c.On(ws.OpReceiveMessage, v.onMessage),
		c.On(ws.OpMessageDeleted, v.onDeleted),
		c.On(ws.OpUserTyping, v.onTyping),
		c.On(ws.OpUserStoppedTyping, v.onStoppedTyping),
	}
	unsubscribe := func() {
		for _, u := range subs {
			u()
		}
	}
	return v, unsubscribe
}

// Load renders the cached history immediately, then refreshes from REST. A
// REST failure on top of a cache hit keeps the stale list instead of erroring.
func (v *ChatView) Load(ctx context.Context) error {
	cached := false
	if v.store != nil {
		if messages, ok := v.store.Get(ctx, v.chatID); ok {
			v.replace(messages)
			cached = true
		}
	}

	messages, err := v.rest.Messages(ctx, v.chatID)
	if err != nil {
		if cached {
			log.Printf("[chat] refresh failed, keeping cached history: %v", err)
			return nil
		}
		return err
	}

	v.replace(messages)
	if v.store != nil {
		v.store.Put(ctx, v.chatID, messages)
	}
	return nil
}

// Messages returns the list, oldest first.
func (v *ChatView) Messages() []models.Message {
	v.mu.Lock()
	defer v.mu.Unlock()

	out := make([]models.Message, len(v.messages))
	copy(out, v.messages)
	return out
}

// SetDraft stores the input box contents.
func (v *ChatView) SetDraft(text string) {
	v.mu.Lock()
	v.draft = text
	v.mu.Unlock()
}

// Draft returns the input box contents.
func (v *ChatView) Draft() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.draft
}

// Send commits the draft. The message appears in the list immediately; when
// the REST call fails the insert is rolled back and the draft restored so
// nothing typed is lost.
func (v *ChatView) Send(ctx context.Context) (models.Message, error) {
	v.mu.Lock()
	text := v.draft
	v.draft = ""
	pending := models.Message{
		ID:       "pending-" + uuid.NewString(),
		ChatID:   v.chatID,
		SenderID: v.selfID,
		Text:     text,
	}
	v.messages = append(v.messages, pending)
	v.seen[pending.ID] = true
	v.mu.Unlock()

	committed, err := v.rest.SendMessage(ctx, v.chatID, text, "")
	if err != nil {
		v.mu.Lock()
		v.removeLocked(pending.ID)
		if v.draft == "" {
			v.draft = text
		}
		v.mu.Unlock()
		return models.Message{}, err
	}

	v.mu.Lock()
	v.removeLocked(pending.ID)
	v.insertLocked(committed)
	v.mu.Unlock()
	return committed, nil
}

// TypingUsers returns the display names currently typing, sorted.
func (v *ChatView) TypingUsers() []string {
	v.mu.Lock()
	defer v.mu.Unlock()

	names := make([]string, 0, len(v.typing))
	for _, name := range v.typing {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (v *ChatView) onMessage(data json.RawMessage) {
	event, err := ws.Decode[ws.ReceiveMessageData](data)
	if err != nil {
		return
	}
	if event.ChatID != v.chatID {
		return
	}

	v.mu.Lock()
	v.insertLocked(event.Message)
	v.mu.Unlock()
}

func (v *ChatView) onDeleted(data json.RawMessage) {
	event, err := ws.Decode[ws.MessageDeletedData](data)
	if err != nil || event.ChatID != v.chatID {
		return
	}

	v.mu.Lock()
	for i := range v.messages {
		if v.messages[i].ID == event.MessageID {
			v.messages[i].Deleted = true
			v.messages[i].Text = ""
			break
		}
	}
	v.mu.Unlock()
}

func (v *ChatView) onTyping(data json.RawMessage) {
	event, err := ws.Decode[ws.UserTypingData](data)
	if err != nil || event.ChatID != v.chatID || event.UserID == v.selfID {
		return
	}

	v.mu.Lock()
	name := event.UserName
	if name == "" {
		name = event.UserID
	}
	v.typing[event.UserID] = name
	v.mu.Unlock()
}

func (v *ChatView) onStoppedTyping(data json.RawMessage) {
	event, err := ws.Decode[ws.UserStoppedTypingData](data)
	if err != nil || event.ChatID != v.chatID {
		return
	}

	v.mu.Lock()
	delete(v.typing, event.UserID)
	v.mu.Unlock()
}

func (v *ChatView) replace(messages []models.Message) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.messages = make([]models.Message, len(messages))
	copy(v.messages, messages)
	sort.SliceStable(v.messages, func(i, j int) bool {
		return v.messages[i].CreatedAt.Before(v.messages[j].CreatedAt)
	})
	v.seen = make(map[string]bool, len(v.messages))
	for _, m := range v.messages {
		v.seen[m.ID] = true
	}
}

// insertLocked adds a message keeping order; duplicates by ID are dropped.
func (v *ChatView) insertLocked(msg models.Message) {
	if v.seen[msg.ID] {
		return
	}
	v.seen[msg.ID] = true
	v.messages = append(v.messages, msg)
	sort.SliceStable(v.messages, func(i, j int) bool {
		return v.messages[i].CreatedAt.Before(v.messages[j].CreatedAt)
	})
}

func (v *ChatView) removeLocked(id string) {
	delete(v.seen, id)
	for i := range v.messages {
		if v.messages[i].ID == id {
			v.messages = append(v.messages[:i], v.messages[i+1:]...)
			return
		}
	}
}
