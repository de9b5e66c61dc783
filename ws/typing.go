package ws

import (
	"time"

	"github.com/xavlink/realtime/models"
	"github.com/xavlink/realtime/pkg/cache"
)

// typingKey identifies one typist in one chat.
type typingKey struct {
	ChatID string
	UserID string
}

// TypingRegistry tracks who is typing where, with server-side expiry.
//
// Clients emit stop_typing after their idle window, but a client that
// disconnects mid-type never sends it. Without the registry that leaves a
// stale "is typing" indicator on every peer until reload; when an entry
// expires here the registry emits user_stopped_typing to the room itself.
type TypingRegistry struct {
	entries   *cache.TTLCache[typingKey, string] // value: display name
	publisher Publisher
}

// NewTypingRegistry creates the registry. expiry is how long a typing signal
// stays live without renewal.
func NewTypingRegistry(publisher Publisher, expiry time.Duration) *TypingRegistry {
	sweep := expiry / 2
	if sweep < time.Second {
		sweep = time.Second
	}

	r := &TypingRegistry{
		entries:   cache.New[typingKey, string](expiry, sweep),
		publisher: publisher,
	}

	r.entries.OnExpire(func(key typingKey, _ string) {
		r.publisher.BroadcastToRoom(models.ChatRoom(key.ChatID), mustEvent(
			OpUserStoppedTyping,
			UserStoppedTypingData{ChatID: key.ChatID, UserID: key.UserID},
		))
	})

	return r
}

// Started records a typing signal, renewing its expiry, and fans the
// indicator out to everyone in the chat except the typist.
func (r *TypingRegistry) Started(data TypingData) {
	r.entries.Set(typingKey{ChatID: data.ChatID, UserID: data.UserID}, data.UserName)

	r.publisher.BroadcastToRoomExcept(models.ChatRoom(data.ChatID), data.UserID, mustEvent(
		OpUserTyping,
		UserTypingData{ChatID: data.ChatID, UserID: data.UserID, UserName: data.UserName},
	))
}

// Stopped clears the typist's entry and fans the stop out. Explicit stops
// and expiry produce the same event, so peers cannot tell the difference.
func (r *TypingRegistry) Stopped(data StopTypingData) {
	r.entries.Delete(typingKey{ChatID: data.ChatID, UserID: data.UserID})

	r.publisher.BroadcastToRoom(models.ChatRoom(data.ChatID), mustEvent(
		OpUserStoppedTyping,
		UserStoppedTypingData{ChatID: data.ChatID, UserID: data.UserID},
	))
}

// UserDisconnected clears every chat the user was typing in; each cleared
// entry gets an explicit stop so peers update immediately instead of waiting
// for the sweep.
func (r *TypingRegistry) UserDisconnected(userID string) {
	for _, key := range r.entries.Keys() {
		if key.UserID != userID {
			continue
		}
		r.Stopped(StopTypingData{ChatID: key.ChatID, UserID: key.UserID})
	}
}

// Close stops the expiry sweeper.
func (r *TypingRegistry) Close() {
	r.entries.Close()
}
