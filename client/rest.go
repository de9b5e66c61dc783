package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/xavlink/realtime/models"
	"github.com/xavlink/realtime/pkg"
)

// RESTClient talks to the HTTP API that owns the data the realtime channel
// only accelerates. Reads and writes go here; events arrive over the socket.
type RESTClient struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewRESTClient builds a client for the given API base URL.
func NewRESTClient(baseURL, token string) *RESTClient {
	return &RESTClient{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// apiEnvelope mirrors the server's response wrapper with the data left raw
// so each call can decode into its own type.
type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// ChatUnread is one chat's unread count in the reconciliation snapshot.
type ChatUnread struct {
	ChatID      string `json:"chat_id"`
	UnreadCount int    `json:"unread_count"`
}

// UnreadSnapshot is the authoritative unread state fetched on load and after
// reconnect gaps.
type UnreadSnapshot struct {
	Chats []ChatUnread `json:"chats"`
	Total int          `json:"total"`
}

// Chats lists the user's conversations.
func (c *RESTClient) Chats(ctx context.Context) ([]models.Chat, error) {
	var chats []models.Chat
	if err := c.do(ctx, http.MethodGet, "/api/chats", nil, &chats); err != nil {
		return nil, err
	}
	return chats, nil
}

// Messages fetches a chat's message history, oldest first.
func (c *RESTClient) Messages(ctx context.Context, chatID string) ([]models.Message, error) {
	var messages []models.Message
	path := fmt.Sprintf("/api/chats/%s/messages", url.PathEscape(chatID))
	if err := c.do(ctx, http.MethodGet, path, nil, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

type sendMessageRequest struct {
	Text          string `json:"text"`
	AttachmentURL string `json:"attachmentUrl,omitempty"`
}

// SendMessage commits a message. The committed row comes back; the matching
// receive_message event follows over the socket and is deduplicated by ID.
func (c *RESTClient) SendMessage(ctx context.Context, chatID, text, attachmentURL string) (models.Message, error) {
	var msg models.Message
	path := fmt.Sprintf("/api/chats/%s/messages", url.PathEscape(chatID))
	body := sendMessageRequest{Text: text, AttachmentURL: attachmentURL}
	if err := c.do(ctx, http.MethodPost, path, body, &msg); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// MarkChatRead tells the backend every message in the chat is read.
func (c *RESTClient) MarkChatRead(ctx context.Context, chatID string) error {
	path := fmt.Sprintf("/api/chats/%s/read", url.PathEscape(chatID))
	return c.do(ctx, http.MethodPost, path, nil, nil)
}

// Notifications lists the user's notifications, newest first.
func (c *RESTClient) Notifications(ctx context.Context) ([]models.Notification, error) {
	var notifications []models.Notification
	if err := c.do(ctx, http.MethodGet, "/api/notifications", nil, &notifications); err != nil {
		return nil, err
	}
	return notifications, nil
}

// UnreadSnapshot fetches the authoritative unread counts.
func (c *RESTClient) UnreadSnapshot(ctx context.Context) (UnreadSnapshot, error) {
	var snapshot UnreadSnapshot
	if err := c.do(ctx, http.MethodGet, "/api/unreads", nil, &snapshot); err != nil {
		return UnreadSnapshot{}, err
	}
	return snapshot, nil
}

func (c *RESTClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("rest: marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("rest: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("rest: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var envelope apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("rest: decode response: %w", err)
	}

	if resp.StatusCode >= 400 || !envelope.Success {
		msg := envelope.Error
		if msg == "" {
			msg = resp.Status
		}
		switch resp.StatusCode {
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: %s", pkg.ErrUnauthorized, msg)
		case http.StatusForbidden:
			return fmt.Errorf("%w: %s", pkg.ErrForbidden, msg)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s", pkg.ErrNotFound, msg)
		case http.StatusBadRequest:
			return fmt.Errorf("%w: %s", pkg.ErrBadRequest, msg)
		default:
			return fmt.Errorf("%w: %s", pkg.ErrInternal, msg)
		}
	}

	if out == nil || envelope.Data == nil {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("rest: decode %s payload: %w", path, err)
	}
	return nil
}
