package models

import "time"

// Chat is one direct conversation as the REST backend reports it.
type Chat struct {
	ID            string    `json:"id"`
	PeerID        string    `json:"peerId"`
	PeerName      string    `json:"peerName"`
	LastMessage   string    `json:"lastMessage,omitempty"`
	LastMessageAt time.Time `json:"lastMessageAt"`
	UnreadCount   int       `json:"unreadCount"`
}
