package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/xavlink/realtime/models"
	"github.com/xavlink/realtime/pkg"
	"github.com/xavlink/realtime/repository"
	"github.com/xavlink/realtime/ws"
)

// UnreadService keeps the gateway's unread index and pushes authoritative
// counts. The count pushed over notification:unread-count always wins over
// anything a client folded locally, so this service is the single source of
// truth for the badge.
type UnreadService interface {
	// MessageDelivered indexes a delivered message and pushes fresh counts
	// to every chat member currently online, except the sender.
	MessageDelivered(ctx context.Context, msg models.Message) error

	// ChatRead records that the user read the whole chat and pushes the
	// user's fresh total.
	ChatRead(ctx context.Context, userID, chatID string) error

	// MessageRead records a single-message read pointer.
	MessageRead(ctx context.Context, userID, chatID, messageID string) error

	// Snapshot returns per-chat unread counts for the REST snapshot path.
	Snapshot(ctx context.Context, userID string) ([]repository.UnreadInfo, error)
}

type unreadService struct {
	readStates  repository.ReadStateRepository
	deliveryLog repository.DeliveryLogRepository
	publisher   ws.Publisher
}

// NewUnreadService wires the unread reconciliation path.
func NewUnreadService(
	readStates repository.ReadStateRepository,
	deliveryLog repository.DeliveryLogRepository,
	publisher ws.Publisher,
) UnreadService {
	return &unreadService{
		readStates:  readStates,
		deliveryLog: deliveryLog,
		publisher:   publisher,
	}
}

func (s *unreadService) MessageDelivered(ctx context.Context, msg models.Message) error {
	if err := s.deliveryLog.RecordMessage(ctx, msg); err != nil {
		return err
	}

	// Push fresh totals to online chat members. The sender's own unread
	// count cannot change from their own message.
	for _, userID := range s.publisher.RoomUserIDs(models.ChatRoom(msg.ChatID)) {
		if userID == msg.SenderID {
			continue
		}
		if err := s.pushTotal(ctx, userID); err != nil {
			return err
		}
	}
	return nil
}

func (s *unreadService) ChatRead(ctx context.Context, userID, chatID string) error {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(chatID) == "" {
		return fmt.Errorf("%w: userId and chatId are required", pkg.ErrBadRequest)
	}

	// Reading the whole chat moves the pointer to the newest delivered
	// message. No delivered messages means nothing to mark.
	latest, err := s.deliveryLog.LatestMessageID(ctx, chatID)
	if err != nil {
		return err
	}
	if latest != "" {
		if err := s.readStates.MarkRead(ctx, userID, chatID, latest); err != nil {
			return err
		}
	}
	return s.pushTotal(ctx, userID)
}

func (s *unreadService) MessageRead(ctx context.Context, userID, chatID, messageID string) error {
	if strings.TrimSpace(messageID) == "" {
		return fmt.Errorf("%w: messageId is required", pkg.ErrBadRequest)
	}
	if err := s.readStates.MarkRead(ctx, userID, chatID, messageID); err != nil {
		return err
	}
	return s.pushTotal(ctx, userID)
}

func (s *unreadService) Snapshot(ctx context.Context, userID string) ([]repository.UnreadInfo, error) {
	return s.readStates.UnreadCounts(ctx, userID)
}

// pushTotal sends the authoritative total to all of the user's connections.
func (s *unreadService) pushTotal(ctx context.Context, userID string) error {
	total, err := s.readStates.TotalUnread(ctx, userID)
	if err != nil {
		return err
	}

	event, err := ws.NewEvent(ws.OpNotificationUnreadCount, ws.UnreadCountData{UnreadCount: total})
	if err != nil {
		return err
	}
	s.publisher.BroadcastToUser(userID, event)
	return nil
}
