package chat

import (
	"strings"
	"time"
)

type Message struct {
	ID        int64     `json:"id,omitempty"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Thinking  string    `json:"think,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleError     = "error"
)

func NewUserMessage(content string) Message {
	return Message{
		Role:      RoleUser,
		Content:   strings.TrimSpace(content),
		Timestamp: time.Now(),
	}
}

func NewAssistantMessage(content string) Message {
	return Message{
		Role:      RoleAssistant,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewAssistantMessageWithThinking keeps the reasoning text of a finished
// response next to its visible answer.
func NewAssistantMessageWithThinking(content, thinking string) Message {
	msg := NewAssistantMessage(content)
	msg.Thinking = thinking
	return msg
}

func NewSystemMessage(content string) Message {
	return Message{
		Role:      RoleSystem,
		Content:   content,
		Timestamp: time.Now(),
	}
}

func NewErrorMessage(content string) Message {
	return Message{
		Role:      RoleError,
		Content:   content,
		Timestamp: time.Now(),
	}
}

func (m Message) IsUser() bool {
	return m.Role == RoleUser
}

func (m Message) IsAssistant() bool {
	return m.Role == RoleAssistant
}

func (m Message) IsSystem() bool {
	return m.Role == RoleSystem
}

func (m Message) IsError() bool {
	return m.Role == RoleError
}

func (m Message) HasThinking() bool {
	return strings.TrimSpace(m.Thinking) != ""
}

func (m Message) IsEmpty() bool {
	return strings.TrimSpace(m.Content) == ""
}

func (m Message) WithTimestamp(t time.Time) Message {
	m.Timestamp = t
	return m
}

// WireMessage is the role/content pair sent as conversation history.
type WireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest asks the backend to stream a reply to the given history.
type ChatRequest struct {
	Model    string        `json:"model"`
	Messages []WireMessage `json:"messages"`
}

// NewChatRequest builds a request from prior messages. Error messages are
// local only and never sent.
func NewChatRequest(model string, history []Message) ChatRequest {
	req := ChatRequest{
		Model:    model,
		Messages: make([]WireMessage, 0, len(history)),
	}
	for _, m := range history {
		if m.IsError() {
			continue
		}
		req.Messages = append(req.Messages, WireMessage{Role: m.Role, Content: m.Content})
	}
	return req
}

const maxTitleLength = 50

// TitleFromMessage derives a chat title from the first user message.
func TitleFromMessage(content string) string {
	title := strings.Join(strings.Fields(content), " ")
	runes := []rune(title)
	if len(runes) > maxTitleLength {
		return string(runes[:maxTitleLength-3]) + "..."
	}
	return title
}
