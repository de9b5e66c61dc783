package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/xavlink/realtime/models"
)

// sqliteDeliveryLogRepo implements DeliveryLogRepository over SQLite.
type sqliteDeliveryLogRepo struct {
	db *sql.DB
}

// NewSQLiteDeliveryLogRepo returns the SQLite-backed DeliveryLogRepository.
func NewSQLiteDeliveryLogRepo(db *sql.DB) DeliveryLogRepository {
	return &sqliteDeliveryLogRepo{db: db}
}

// RecordMessage indexes a delivered message for unread counting. INSERT OR
// IGNORE keeps redelivery of the same committed message idempotent.
func (r *sqliteDeliveryLogRepo) RecordMessage(ctx context.Context, msg models.Message) error {
	query := `
		INSERT OR IGNORE INTO delivered_messages (id, chat_id, sender_id, created_at)
		VALUES (?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query, msg.ID, msg.ChatID, msg.SenderID, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record delivered message: %w", err)
	}
	return nil
}

// LatestMessageID returns the newest delivered message id in a chat, or ""
// when nothing has been delivered yet.
func (r *sqliteDeliveryLogRepo) LatestMessageID(ctx context.Context, chatID string) (string, error) {
	var id string
	err := r.db.QueryRowContext(ctx, `
		SELECT id FROM delivered_messages
		WHERE chat_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1`, chatID).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query latest message: %w", err)
	}
	return id, nil
}

// RecordDelivery appends one audit row per fanned-out event.
func (r *sqliteDeliveryLogRepo) RecordDelivery(ctx context.Context, eventID, op, room string, recipients int) error {
	query := `
		INSERT INTO delivery_log (event_id, op, room, recipients)
		VALUES (?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query, eventID, op, room, recipients)
	if err != nil {
		return fmt.Errorf("failed to record delivery: %w", err)
	}
	return nil
}

// DeliveredCount returns the total number of fanned-out events.
func (r *sqliteDeliveryLogRepo) DeliveredCount(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM delivery_log").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count deliveries: %w", err)
	}
	return count, nil
}
