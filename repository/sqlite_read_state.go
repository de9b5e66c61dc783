package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// sqliteReadStateRepo implements ReadStateRepository over SQLite.
type sqliteReadStateRepo struct {
	db *sql.DB
}

// NewSQLiteReadStateRepo returns the SQLite-backed ReadStateRepository.
func NewSQLiteReadStateRepo(db *sql.DB) ReadStateRepository {
	return &sqliteReadStateRepo{db: db}
}

// MarkRead upserts the user's last-read pointer for a chat.
func (r *sqliteReadStateRepo) MarkRead(ctx context.Context, userID, chatID, messageID string) error {
	query := `
		INSERT INTO chat_reads (user_id, chat_id, last_read_message_id, last_read_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id, chat_id)
		DO UPDATE SET last_read_message_id = excluded.last_read_message_id,
		              last_read_at = excluded.last_read_at`

	_, err := r.db.ExecContext(ctx, query, userID, chatID, messageID)
	if err != nil {
		return fmt.Errorf("failed to upsert read state: %w", err)
	}
	return nil
}

// UnreadCounts tallies delivered messages newer than the user's last-read
// pointer per chat. Chats with no read record count every delivered message;
// the user's own messages are excluded either way. Only chats with a
// positive count are returned.
func (r *sqliteReadStateRepo) UnreadCounts(ctx context.Context, userID string) ([]UnreadInfo, error) {
	query := `
		SELECT chat_id, unread_count FROM (
			SELECT m.chat_id,
			       COUNT(*) AS unread_count
			FROM delivered_messages m
			LEFT JOIN chat_reads cr
			       ON cr.chat_id = m.chat_id AND cr.user_id = ?
			WHERE m.sender_id != ?
			  AND (cr.last_read_message_id IS NULL
			       OR m.created_at > (SELECT created_at FROM delivered_messages
			                          WHERE id = cr.last_read_message_id))
			GROUP BY m.chat_id
		) WHERE unread_count > 0`

	rows, err := r.db.QueryContext(ctx, query, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query unread counts: %w", err)
	}
	defer rows.Close()

	var unreads []UnreadInfo
	for rows.Next() {
		var info UnreadInfo
		if err := rows.Scan(&info.ChatID, &info.UnreadCount); err != nil {
			return nil, fmt.Errorf("failed to scan unread info: %w", err)
		}
		unreads = append(unreads, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate unread rows: %w", err)
	}
	return unreads, nil
}

// TotalUnread sums unread counts across all chats. This is the value behind
// the notification:unread-count payload, so it must agree with UnreadCounts.
func (r *sqliteReadStateRepo) TotalUnread(ctx context.Context, userID string) (int, error) {
	infos, err := r.UnreadCounts(ctx, userID)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, info := range infos {
		total += info.UnreadCount
	}
	return total, nil
}
