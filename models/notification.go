package models

import "time"

// NotificationType enumerates the alert kinds the app produces.
type NotificationType string

const (
	NotificationLike    NotificationType = "like"
	NotificationComment NotificationType = "comment"
	NotificationFollow  NotificationType = "follow"
	NotificationRequest NotificationType = "request"
	NotificationMessage NotificationType = "message"
	NotificationSystem  NotificationType = "system"
)

// Valid reports whether t is a known notification type.
func (t NotificationType) Valid() bool {
	switch t {
	case NotificationLike, NotificationComment, NotificationFollow,
		NotificationRequest, NotificationMessage, NotificationSystem:
		return true
	}
	return false
}

// Notification is one user-facing alert. Created by server-side triggers,
// delivered by event, mutated (read/pin) via REST.
type Notification struct {
	ID          string           `json:"id"`
	RecipientID string           `json:"recipient_id"`
	Type        NotificationType `json:"type"`
	Actor       string           `json:"actor,omitempty"`
	Text        string           `json:"text,omitempty"`
	Read        bool             `json:"read"`
	Pinned      bool             `json:"pinned"`
	CreatedAt   time.Time        `json:"created_at"`
}
