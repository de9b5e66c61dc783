package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/xavlink/realtime/models"
	"github.com/xavlink/realtime/pkg"
	"github.com/xavlink/realtime/repository"
	"github.com/xavlink/realtime/ws"
)

// PublishRequest is what the REST backend sends after committing a row.
// Exactly one of ChatID or UserID addresses the target room.
type PublishRequest struct {
	Op     string          `json:"op"`
	ChatID string          `json:"chatId,omitempty"`
	UserID string          `json:"userId,omitempty"`
	Data   json.RawMessage `json:"d"`
}

// PublishResult reports what the fan-out did.
type PublishResult struct {
	EventID    string `json:"event_id"`
	Room       string `json:"room"`
	Recipients int    `json:"recipients"`
}

// PublishService accepts committed events from the internal API and fans
// them out. The invariant it defends: every event delivered over the channel
// corresponds to a row the REST layer already committed, so the gateway
// validates shape, addresses the room, and delivers; it never creates state.
type PublishService interface {
	Publish(ctx context.Context, req PublishRequest) (*PublishResult, error)
}

type publishService struct {
	publisher   ws.Publisher
	deliveryLog repository.DeliveryLogRepository
	unread      UnreadService
}

// NewPublishService wires the fan-out path.
func NewPublishService(
	publisher ws.Publisher,
	deliveryLog repository.DeliveryLogRepository,
	unread UnreadService,
) PublishService {
	return &publishService{
		publisher:   publisher,
		deliveryLog: deliveryLog,
		unread:      unread,
	}
}

func (s *publishService) Publish(ctx context.Context, req PublishRequest) (*PublishResult, error) {
	if req.Op == "" {
		return nil, fmt.Errorf("%w: op is required", pkg.ErrBadRequest)
	}

	// Reject malformed payloads here, before fan-out. A buggy backend must
	// not be able to push undefined fields into every connected client.
	if err := ws.ValidateOutbound(req.Op, req.Data); err != nil {
		return nil, err
	}

	room, err := resolveRoom(req)
	if err != nil {
		return nil, err
	}

	// Side effects that feed reconciliation, before delivery so a client
	// re-fetching immediately after the event sees consistent counts.
	s.applyReadSideEffects(ctx, req)

	event := ws.Event{Op: req.Op, Data: req.Data}
	recipients := s.publisher.BroadcastToRoom(room, event)

	eventID := uuid.NewString()
	if err := s.deliveryLog.RecordDelivery(ctx, eventID, req.Op, room, recipients); err != nil {
		// Delivery already happened; the audit row is best effort.
		log.Printf("[publish] failed to record delivery %s: %v", eventID, err)
	}

	return &PublishResult{
		EventID:    eventID,
		Room:       room,
		Recipients: recipients,
	}, nil
}

// resolveRoom maps the request's address to a room name.
func resolveRoom(req PublishRequest) (string, error) {
	switch {
	case req.ChatID != "" && req.UserID != "":
		return "", fmt.Errorf("%w: chatId and userId are mutually exclusive", pkg.ErrBadRequest)
	case req.ChatID != "":
		return models.ChatRoom(req.ChatID), nil
	case req.UserID != "":
		return models.UserRoom(req.UserID), nil
	default:
		return "", fmt.Errorf("%w: chatId or userId is required", pkg.ErrBadRequest)
	}
}

// applyReadSideEffects updates the gateway's read-state index for ops that
// change it, then pushes authoritative unread counts to affected users.
// Failures are logged, not returned: delivery must not fail because the
// reconciliation index is behind.
func (s *publishService) applyReadSideEffects(ctx context.Context, req PublishRequest) {
	switch req.Op {
	case ws.OpReceiveMessage:
		data, err := ws.Decode[ws.ReceiveMessageData](req.Data)
		if err != nil {
			return // already validated; unreachable in practice
		}
		if err := s.unread.MessageDelivered(ctx, data.Message); err != nil {
			log.Printf("[publish] unread index update failed for message %s: %v", data.ID, err)
		}

	case ws.OpMarkChatRead:
		data, err := ws.Decode[ws.MarkChatReadData](req.Data)
		if err != nil {
			return
		}
		if err := s.unread.ChatRead(ctx, data.UserID, data.ChatID); err != nil {
			log.Printf("[publish] mark read failed for user %s chat %s: %v", data.UserID, data.ChatID, err)
		}

	case ws.OpMessageRead:
		data, err := ws.Decode[ws.MessageReadData](req.Data)
		if err != nil {
			return
		}
		if err := s.unread.MessageRead(ctx, data.UserID, data.ChatID, data.MessageID); err != nil {
			log.Printf("[publish] message read failed for user %s: %v", data.UserID, err)
		}
	}
}
