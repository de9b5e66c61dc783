// Package ws manages WebSocket connections and realtime event fan-out.
//
// Architecture:
//   - Hub: central registry of connections grouped into rooms
//   - Client: one WebSocket connection (read pump + write pump)
//   - Event: the wire envelope exchanged in both directions
//
// Delivery flow: the REST backend commits a row, then POSTs the event to the
// gateway's internal API; the publish service resolves the target room and
// the Hub writes the event to every member connection. The channel is a
// delivery mechanism only: consumers dedupe by id and reconcile against REST
// snapshots, so duplicates and reordering across reconnects are tolerated.
package ws

import (
	"encoding/json"
	"fmt"

	"github.com/xavlink/realtime/models"
	"github.com/xavlink/realtime/pkg"
)

// Event is the wire envelope. Data stays raw until an op-specific struct
// decodes and validates it; malformed payloads are dropped at that boundary
// instead of leaking undefined fields into consumer state.
//
// Seq is a per-hub counter stamped on every outbound event. Consumers can
// detect gaps within one connection; no ordering is promised across a
// reconnect.
type Event struct {
	Op   string          `json:"op"`
	Data json.RawMessage `json:"d,omitempty"`
	Seq  int64           `json:"seq,omitempty"`
}

// NewEvent builds an outbound event, marshaling the payload.
func NewEvent(op string, payload any) (Event, error) {
	if payload == nil {
		return Event{Op: op}, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", op, err)
	}
	return Event{Op: op, Data: data}, nil
}

// Client to server operations.
const (
	OpPing         = "ping"           // heartbeat, carries the client's timestamp
	OpJoinUserRoom = "join_user_room" // attach this connection to the user's personal room
	OpJoinRoom     = "join_room"      // attach this connection to a chat room
	OpUserOnline   = "user_online"    // announce presence after (re)connect
	OpTyping       = "typing"         // user is typing in a chat
	OpStopTyping   = "stop_typing"    // user stopped typing
)

// Server to client operations.
const (
	OpPong = "pong" // heartbeat ack, echoes the client's timestamp

	OpReceiveMessage = "receive_message" // new chat message committed via REST
	OpMessageDeleted = "message_deleted" // sender removed a message
	OpMessageRead    = "message_read"    // a single message was marked read
	OpMarkChatRead   = "mark_chat_as_read"

	OpUserTyping        = "user_typing"
	OpUserStoppedTyping = "user_stopped_typing"

	OpPostLiked   = "post_liked"   // absolute likes_count, never a delta
	OpPostUnliked = "post_unliked" // same payload shape as post_liked
	OpNewPost     = "new_post"

	OpNotificationNew         = "notification:new"
	OpNotificationUnreadCount = "notification:unread-count"
	OpNotificationDeleted     = "notification:deleted"

	OpUserPresence = "user_presence" // broadcast on first connect / full disconnect
)

// Payload is implemented by every event payload so the decode boundary can
// validate before anything reaches consumer state.
type Payload interface {
	Validate() error
}

// Decode unmarshals raw event data into a typed payload and validates it.
func Decode[T Payload](raw json.RawMessage) (T, error) {
	var payload T
	if len(raw) == 0 {
		return payload, fmt.Errorf("%w: empty payload", pkg.ErrBadRequest)
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return payload, fmt.Errorf("%w: %v", pkg.ErrBadRequest, err)
	}
	if err := payload.Validate(); err != nil {
		return payload, err
	}
	return payload, nil
}

// PingData carries the client's send timestamp (unix millis) so the echoed
// pong measures round-trip time.
type PingData struct {
	Timestamp int64 `json:"timestamp"`
}

func (d PingData) Validate() error {
	if d.Timestamp <= 0 {
		return fmt.Errorf("%w: timestamp is required", pkg.ErrBadRequest)
	}
	return nil
}

// JoinUserRoomData attaches the connection to a personal room. The user id
// must match the authenticated connection; the handler ignores mismatches.
type JoinUserRoomData struct {
	UserID string `json:"userId"`
}

func (d JoinUserRoomData) Validate() error {
	if d.UserID == "" {
		return fmt.Errorf("%w: userId is required", pkg.ErrBadRequest)
	}
	return nil
}

// JoinRoomData attaches the connection to a chat room. Joins are idempotent
// and there is no leave op: membership lives and dies with the connection.
type JoinRoomData struct {
	ChatID string `json:"chatId"`
}

func (d JoinRoomData) Validate() error {
	if d.ChatID == "" {
		return fmt.Errorf("%w: chatId is required", pkg.ErrBadRequest)
	}
	return nil
}

// UserOnlineData announces presence after connect.
type UserOnlineData struct {
	UserID string `json:"userId"`
}

func (d UserOnlineData) Validate() error {
	if d.UserID == "" {
		return fmt.Errorf("%w: userId is required", pkg.ErrBadRequest)
	}
	return nil
}

// TypingData is the client's typing signal.
type TypingData struct {
	ChatID   string `json:"chatId"`
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

func (d TypingData) Validate() error {
	if d.ChatID == "" {
		return fmt.Errorf("%w: chatId is required", pkg.ErrBadRequest)
	}
	if d.UserID == "" {
		return fmt.Errorf("%w: userId is required", pkg.ErrBadRequest)
	}
	return nil
}

// StopTypingData is the client's explicit stop signal.
type StopTypingData struct {
	ChatID string `json:"chatId"`
	UserID string `json:"userId"`
}

func (d StopTypingData) Validate() error {
	if d.ChatID == "" {
		return fmt.Errorf("%w: chatId is required", pkg.ErrBadRequest)
	}
	if d.UserID == "" {
		return fmt.Errorf("%w: userId is required", pkg.ErrBadRequest)
	}
	return nil
}

// PongData echoes the ping timestamp.
type PongData struct {
	Timestamp int64 `json:"timestamp"`
}

func (d PongData) Validate() error {
	if d.Timestamp <= 0 {
		return fmt.Errorf("%w: timestamp is required", pkg.ErrBadRequest)
	}
	return nil
}

// ReceiveMessageData delivers a committed chat message to the chat room.
type ReceiveMessageData struct {
	models.Message
}

func (d ReceiveMessageData) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("%w: message id is required", pkg.ErrBadRequest)
	}
	if d.ChatID == "" {
		return fmt.Errorf("%w: chat_id is required", pkg.ErrBadRequest)
	}
	if d.SenderID == "" {
		return fmt.Errorf("%w: sender_id is required", pkg.ErrBadRequest)
	}
	return nil
}

// MessageDeletedData tells room members to drop a message.
type MessageDeletedData struct {
	MessageID string `json:"messageId"`
	ChatID    string `json:"chatId"`
}

func (d MessageDeletedData) Validate() error {
	if d.MessageID == "" {
		return fmt.Errorf("%w: messageId is required", pkg.ErrBadRequest)
	}
	return nil
}

// MessageReadData marks a single message read for peers' unread folding.
type MessageReadData struct {
	ChatID    string `json:"chatId"`
	UserID    string `json:"userId"`
	MessageID string `json:"messageId"`
}

func (d MessageReadData) Validate() error {
	if d.ChatID == "" || d.UserID == "" {
		return fmt.Errorf("%w: chatId and userId are required", pkg.ErrBadRequest)
	}
	return nil
}

// MarkChatReadData zeroes a chat's unread count on the recipient's other tabs.
type MarkChatReadData struct {
	ChatID string `json:"chatId"`
	UserID string `json:"userId"`
}

func (d MarkChatReadData) Validate() error {
	if d.ChatID == "" || d.UserID == "" {
		return fmt.Errorf("%w: chatId and userId are required", pkg.ErrBadRequest)
	}
	return nil
}

// UserTypingData is the fan-out form of TypingData.
type UserTypingData struct {
	ChatID   string `json:"chatId"`
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

func (d UserTypingData) Validate() error {
	if d.ChatID == "" || d.UserID == "" {
		return fmt.Errorf("%w: chatId and userId are required", pkg.ErrBadRequest)
	}
	return nil
}

// UserStoppedTypingData is the fan-out form of StopTypingData.
type UserStoppedTypingData struct {
	ChatID string `json:"chatId"`
	UserID string `json:"userId"`
}

func (d UserStoppedTypingData) Validate() error {
	if d.ChatID == "" || d.UserID == "" {
		return fmt.Errorf("%w: chatId and userId are required", pkg.ErrBadRequest)
	}
	return nil
}

// PostLikedData carries the absolute like count after a like or unlike.
// Consumers must set this value, never increment: applying the same event
// twice has to be a no-op.
type PostLikedData struct {
	PostID     string `json:"postId"`
	LikesCount int    `json:"likesCount"`
}

func (d PostLikedData) Validate() error {
	if d.PostID == "" {
		return fmt.Errorf("%w: postId is required", pkg.ErrBadRequest)
	}
	if d.LikesCount < 0 {
		return fmt.Errorf("%w: likesCount must not be negative", pkg.ErrBadRequest)
	}
	return nil
}

// NewPostData announces a new feed post.
type NewPostData struct {
	Post models.Post `json:"post"`
}

func (d NewPostData) Validate() error {
	if d.Post.ID == "" {
		return fmt.Errorf("%w: post.id is required", pkg.ErrBadRequest)
	}
	if d.Post.AuthorID == "" {
		return fmt.Errorf("%w: post.author_id is required", pkg.ErrBadRequest)
	}
	return nil
}

// NotificationNewData delivers a committed notification to its recipient.
type NotificationNewData struct {
	models.Notification
}

func (d NotificationNewData) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("%w: notification id is required", pkg.ErrBadRequest)
	}
	if d.RecipientID == "" {
		return fmt.Errorf("%w: recipient_id is required", pkg.ErrBadRequest)
	}
	if !d.Type.Valid() {
		return fmt.Errorf("%w: unknown notification type %q", pkg.ErrBadRequest, d.Type)
	}
	return nil
}

// UnreadCountData carries the authoritative unread count. It always replaces
// any locally folded value on the client.
type UnreadCountData struct {
	UnreadCount int `json:"unreadCount"`
}

func (d UnreadCountData) Validate() error {
	if d.UnreadCount < 0 {
		return fmt.Errorf("%w: unreadCount must not be negative", pkg.ErrBadRequest)
	}
	return nil
}

// NotificationDeletedData tells the recipient to drop a notification.
type NotificationDeletedData struct {
	NotificationID string `json:"notificationId"`
}

func (d NotificationDeletedData) Validate() error {
	if d.NotificationID == "" {
		return fmt.Errorf("%w: notificationId is required", pkg.ErrBadRequest)
	}
	return nil
}

// UserPresenceData is broadcast when a user's first connection arrives or
// last connection drops.
type UserPresenceData struct {
	UserID string `json:"userId"`
	Online bool   `json:"online"`
}

func (d UserPresenceData) Validate() error {
	if d.UserID == "" {
		return fmt.Errorf("%w: userId is required", pkg.ErrBadRequest)
	}
	return nil
}

// ValidateOutbound maps server-to-client ops to their payload check. Events
// arriving on the internal publish API pass through here before fan-out so a
// buggy backend cannot push malformed payloads to every client.
func ValidateOutbound(op string, raw json.RawMessage) error {
	switch op {
	case OpReceiveMessage:
		_, err := Decode[ReceiveMessageData](raw)
		return err
	case OpMessageDeleted:
		_, err := Decode[MessageDeletedData](raw)
		return err
	case OpMessageRead:
		_, err := Decode[MessageReadData](raw)
		return err
	case OpMarkChatRead:
		_, err := Decode[MarkChatReadData](raw)
		return err
	case OpUserTyping:
		_, err := Decode[UserTypingData](raw)
		return err
	case OpUserStoppedTyping:
		_, err := Decode[UserStoppedTypingData](raw)
		return err
	case OpPostLiked, OpPostUnliked:
		_, err := Decode[PostLikedData](raw)
		return err
	case OpNewPost:
		_, err := Decode[NewPostData](raw)
		return err
	case OpNotificationNew:
		_, err := Decode[NotificationNewData](raw)
		return err
	case OpNotificationUnreadCount:
		_, err := Decode[UnreadCountData](raw)
		return err
	case OpNotificationDeleted:
		_, err := Decode[NotificationDeletedData](raw)
		return err
	case OpUserPresence:
		_, err := Decode[UserPresenceData](raw)
		return err
	default:
		return fmt.Errorf("%w: unknown op %q", pkg.ErrBadRequest, op)
	}
}
