// Package models defines the entities carried over the realtime channel.
// The gateway never owns these rows: the REST backend commits them first and
// the channel only delivers copies (delivery mechanism, not source of truth).
package models

import "time"

// Message is one chat utterance, echoed to room members after the REST
// backend has committed it. Edits are out of scope; deletes arrive as a
// separate message_deleted event.
type Message struct {
	ID            string    `json:"id"`
	ChatID        string    `json:"chat_id"`
	SenderID      string    `json:"sender_id"`
	Text          string    `json:"text"`
	AttachmentURL string    `json:"attachment_url,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	Read          bool      `json:"read"`
	Deleted       bool      `json:"deleted"`
}

// Post is the feed entity referenced by new_post / post_liked events.
// LikesCount is always the absolute server-side value, never a delta.
type Post struct {
	ID         string    `json:"id"`
	AuthorID   string    `json:"author_id"`
	Text       string    `json:"text"`
	ImageURL   string    `json:"image_url,omitempty"`
	LikesCount int       `json:"likes_count"`
	CreatedAt  time.Time `json:"created_at"`
}
