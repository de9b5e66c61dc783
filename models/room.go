package models

// Rooms are broadcast groups keyed by user id (personal notifications) or
// chat id (conversations). Membership is rebuilt every session, never persisted.

// UserRoom returns the room name for a user's personal notification room.
func UserRoom(userID string) string {
	return "user:" + userID
}

// ChatRoom returns the room name for a conversation.
func ChatRoom(chatID string) string {
	return "chat:" + chatID
}
