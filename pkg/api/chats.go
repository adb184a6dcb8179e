package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/killallgit/vivu/pkg/chat"
	"github.com/killallgit/vivu/pkg/sanitize"
)

const DefaultChatTitle = "New chat"

// Chat is a conversation stored by the backend.
type Chat struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Model       string    `json:"model"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type chatFields Chat

// UnmarshalJSON reads the backend's date-times leniently. Older backends
// send lastUpdated instead of updatedAt.
func (c *Chat) UnmarshalJSON(data []byte) error {
	var wire struct {
		chatFields
		CreatedAt   timestamp `json:"createdAt"`
		UpdatedAt   timestamp `json:"updatedAt"`
		LastUpdated timestamp `json:"lastUpdated"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	*c = Chat(wire.chatFields)
	c.CreatedAt = wire.CreatedAt.Time
	c.UpdatedAt = wire.UpdatedAt.Time
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = wire.LastUpdated.Time
	}
	return nil
}

// ChatPage is one page of the chat list.
type ChatPage struct {
	Chats         []Chat `json:"content"`
	Page          int    `json:"number"`
	Size          int    `json:"size"`
	TotalElements int    `json:"totalElements"`
	TotalPages    int    `json:"totalPages"`
}

type storedMessage struct {
	ID        int64     `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt timestamp `json:"createdAt"`
}

func (m storedMessage) toMessage() chat.Message {
	parsed := chat.ParseMessageThinking(m.Content)
	return chat.Message{
		ID:        m.ID,
		Role:      strings.ToLower(m.Role),
		Content:   sanitize.Sanitize(parsed.ResponseContent),
		Thinking:  parsed.ThinkingContent,
		Timestamp: m.CreatedAt.Time,
	}
}

type createChatRequest struct {
	Model       string             `json:"model"`
	Title       string             `json:"title"`
	Messages    []chat.WireMessage `json:"messages"`
	Description string             `json:"description,omitempty"`
}

type saveMessageRequest struct {
	Content string `json:"content"`
	Role    string `json:"role"`
}

// ListChats returns one page of the user's chats, newest first as the
// backend orders them.
func (c *Client) ListChats(ctx context.Context, page, size int) (*ChatPage, error) {
	if page < 0 {
		page = 0
	}
	if size <= 0 {
		size = 10
	}
	var out ChatPage
	if err := c.do(ctx, http.MethodGet, pagePath("/api/chat", page, size), nil, &out); err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}
	return &out, nil
}

// ChatMessages loads the stored history of a chat. Stored assistant replies
// keep their reasoning inline; it is split back out here.
func (c *Client) ChatMessages(ctx context.Context, chatID int64) ([]chat.Message, error) {
	var stored []storedMessage
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/chat/%d/messages", chatID), nil, &stored); err != nil {
		return nil, fmt.Errorf("failed to get messages of chat %d: %w", chatID, err)
	}

	messages := make([]chat.Message, 0, len(stored))
	for _, m := range stored {
		messages = append(messages, m.toMessage())
	}
	return messages, nil
}

// CreateChat starts an empty chat. An empty title becomes DefaultChatTitle.
func (c *Client) CreateChat(ctx context.Context, model, title, description string) (*Chat, error) {
	if strings.TrimSpace(title) == "" {
		title = DefaultChatTitle
	}
	body := createChatRequest{
		Model:       model,
		Title:       title,
		Messages:    []chat.WireMessage{},
		Description: description,
	}

	var out Chat
	if err := c.do(ctx, http.MethodPost, "/api/chat", body, &out); err != nil {
		return nil, fmt.Errorf("failed to create chat: %w", err)
	}
	return &out, nil
}

// SendMessage stores one message in a chat and returns it as saved.
// Assistant reasoning is stored inline in front of the answer.
func (c *Client) SendMessage(ctx context.Context, chatID int64, msg chat.Message) (chat.Message, error) {
	content := strings.TrimSpace(msg.Content)
	if msg.IsAssistant() && msg.HasThinking() {
		content = chat.FormatWithThinking(msg.Thinking, content)
	}
	role := strings.ToUpper(msg.Role)
	if role == "" {
		role = strings.ToUpper(chat.RoleUser)
	}

	var saved storedMessage
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/chat/%d/message", chatID), saveMessageRequest{Content: content, Role: role}, &saved); err != nil {
		return chat.Message{}, fmt.Errorf("failed to save message in chat %d: %w", chatID, err)
	}

	out := saved.toMessage()
	if out.Role == "" {
		out.Role = msg.Role
	}
	if out.Timestamp.IsZero() {
		out.Timestamp = time.Now()
	}
	return out, nil
}

func (c *Client) DeleteChat(ctx context.Context, chatID int64) error {
	if err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/chat/%d", chatID), nil, nil); err != nil {
		return fmt.Errorf("failed to delete chat %d: %w", chatID, err)
	}
	return nil
}
