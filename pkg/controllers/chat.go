package controllers

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/killallgit/vivu/pkg/chat"
	"github.com/killallgit/vivu/pkg/logger"
	"github.com/killallgit/vivu/pkg/stream"
)

var ErrEmptyMessage = errors.New("message content cannot be empty")

// ChatController runs one conversation: it keeps the history, streams each
// reply and saves both sides when a store is configured.
type ChatController struct {
	manager    *stream.Manager
	model      string
	store      ChatStore
	streamOpts []stream.Option
	log        *logger.ComponentLogger

	mu             sync.Mutex
	chatID         int64
	conversationID string
	history        []chat.Message
}

type ChatOption func(*ChatController)

// WithStore saves the conversation in a backend.
func WithStore(store ChatStore) ChatOption {
	return func(cc *ChatController) {
		cc.store = store
	}
}

// WithChatID continues a stored chat instead of creating a new one.
func WithChatID(id int64) ChatOption {
	return func(cc *ChatController) {
		cc.chatID = id
	}
}

func WithStreamOptions(opts ...stream.Option) ChatOption {
	return func(cc *ChatController) {
		cc.streamOpts = append(cc.streamOpts, opts...)
	}
}

func NewChatController(manager *stream.Manager, model string, opts ...ChatOption) *ChatController {
	cc := &ChatController{
		manager: manager,
		model:   model,
		log:     logger.WithComponent("chat_controller"),
	}
	for _, opt := range opts {
		opt(cc)
	}
	if cc.chatID > 0 {
		cc.conversationID = strconv.FormatInt(cc.chatID, 10)
	} else {
		cc.conversationID = uuid.NewString()
	}
	return cc
}

// LoadHistory replaces the history with the stored messages of the chat.
func (cc *ChatController) LoadHistory(ctx context.Context) error {
	cc.mu.Lock()
	id := cc.chatID
	cc.mu.Unlock()
	if cc.store == nil || id == 0 {
		return nil
	}

	messages, err := cc.store.ChatMessages(ctx, id)
	if err != nil {
		return err
	}

	cc.mu.Lock()
	cc.history = messages
	cc.mu.Unlock()
	cc.log.Debug("Loaded history", "chat_id", id, "messages", len(messages))
	return nil
}

// Send streams the reply to content. onSnapshot sees every snapshot,
// including the final one, which is also returned. Cancelling ctx stops
// the reply; the partial answer is kept in the history but not saved.
func (cc *ChatController) Send(ctx context.Context, content string, onSnapshot stream.SnapshotFunc) (stream.Snapshot, error) {
	if strings.TrimSpace(content) == "" {
		return stream.Snapshot{}, ErrEmptyMessage
	}

	userMsg := chat.NewUserMessage(content)
	chatID := cc.ensureChat(ctx, userMsg.Content)
	cc.save(ctx, chatID, userMsg)

	cc.mu.Lock()
	cc.history = append(cc.history, userMsg)
	req := chat.NewChatRequest(cc.model, cc.history)
	convID := cc.conversationID
	cc.mu.Unlock()

	var (
		final     stream.Snapshot
		elapsed   *time.Duration
		streamErr error
	)
	session := cc.manager.Start(ctx, convID, req,
		func(s stream.Snapshot) {
			if s.ReasoningElapsed != nil {
				elapsed = s.ReasoningElapsed
			}
			if s.IsFinal {
				final = s
			}
			if onSnapshot != nil {
				onSnapshot(s)
			}
		},
		func(err error) {
			streamErr = err
		},
		cc.streamOpts...,
	)
	session.Wait()

	if streamErr != nil {
		cc.mu.Lock()
		cc.history = append(cc.history, chat.NewErrorMessage(streamErr.Error()))
		cc.mu.Unlock()
		return stream.Snapshot{}, streamErr
	}

	if final.ReasoningElapsed == nil {
		final.ReasoningElapsed = elapsed
	}

	// A stop before any answer leaves no assistant turn; the placeholder
	// must not reach the model with the next request.
	if final.IsPlaceholder {
		cc.log.Debug("Reply stopped before any answer", "session", session.ID())
		return final, nil
	}

	reply := chat.NewAssistantMessageWithThinking(final.AnswerText, final.ReasoningText)
	cc.mu.Lock()
	cc.history = append(cc.history, reply)
	cc.mu.Unlock()

	if !final.WasCancelled && !reply.IsEmpty() {
		cc.save(ctx, chatID, reply)
	}

	cc.log.Debug("Reply finished", "session", session.ID(), "cancelled", final.WasCancelled, "answer_len", len(final.AnswerText))
	return final, nil
}

// Cancel stops the reply in progress, if any.
func (cc *ChatController) Cancel() bool {
	cc.mu.Lock()
	convID := cc.conversationID
	cc.mu.Unlock()
	return cc.manager.Cancel(convID)
}

func (cc *ChatController) History() []chat.Message {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return append([]chat.Message(nil), cc.history...)
}

func (cc *ChatController) ChatID() int64 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.chatID
}

func (cc *ChatController) Model() string {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.model
}

func (cc *ChatController) SetModel(model string) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.model = model
}

// ensureChat creates the stored chat on the first message. A chat that
// cannot be created leaves the conversation local.
func (cc *ChatController) ensureChat(ctx context.Context, firstMessage string) int64 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	if cc.store == nil || cc.chatID != 0 {
		return cc.chatID
	}

	created, err := cc.store.CreateChat(ctx, cc.model, chat.TitleFromMessage(firstMessage), "")
	if err != nil {
		cc.log.Warn("Failed to create chat, continuing without saving", "error", err)
		return 0
	}
	cc.chatID = created.ID
	cc.log.Info("Created chat", "chat_id", created.ID, "title", created.Title)
	return cc.chatID
}

func (cc *ChatController) save(ctx context.Context, chatID int64, msg chat.Message) {
	if cc.store == nil || chatID == 0 {
		return
	}
	if _, err := cc.store.SendMessage(ctx, chatID, msg); err != nil {
		cc.log.Warn("Failed to save message", "chat_id", chatID, "role", msg.Role, "error", err)
	}
}
