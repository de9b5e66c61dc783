// Package repository defines the gateway's persistence interfaces and their
// SQLite implementations. One interface file and one sqlite_ file per
// concern; services depend on the interfaces only.
package repository

import (
	"context"

	"github.com/xavlink/realtime/models"
)

// UnreadInfo is one chat's unread tally for a user.
type UnreadInfo struct {
	ChatID      string `json:"chat_id"`
	UnreadCount int    `json:"unread_count"`
}

// ReadStateRepository tracks the last message each user has read per chat.
//
// MarkRead upserts the pointer; UnreadCounts derives per-chat unread tallies
// from the delivered-message log, excluding the user's own messages (your
// own messages are never "unread").
type ReadStateRepository interface {
	MarkRead(ctx context.Context, userID, chatID, messageID string) error
	UnreadCounts(ctx context.Context, userID string) ([]UnreadInfo, error)
	TotalUnread(ctx context.Context, userID string) (int, error)
}

// DeliveryLogRepository records what the gateway fanned out.
//
// RecordMessage keeps the delivered-message index that unread counts are
// computed from; RecordDelivery keeps the per-event audit row operators use
// to answer "did event X reach room Y".
type DeliveryLogRepository interface {
	RecordMessage(ctx context.Context, msg models.Message) error
	LatestMessageID(ctx context.Context, chatID string) (string, error)
	RecordDelivery(ctx context.Context, eventID, op, room string, recipients int) error
	DeliveredCount(ctx context.Context) (int64, error)
}
