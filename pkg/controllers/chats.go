package controllers

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/killallgit/vivu/pkg/api"
	"github.com/killallgit/vivu/pkg/chat"
	"github.com/killallgit/vivu/pkg/logger"
	"github.com/killallgit/vivu/pkg/render"
	"github.com/killallgit/vivu/pkg/stream"
)

// ChatStore keeps chats and their messages. api.Client is the real one.
type ChatStore interface {
	ListChats(ctx context.Context, page, size int) (*api.ChatPage, error)
	ChatMessages(ctx context.Context, chatID int64) ([]chat.Message, error)
	CreateChat(ctx context.Context, model, title, description string) (*api.Chat, error)
	SendMessage(ctx context.Context, chatID int64, msg chat.Message) (chat.Message, error)
	DeleteChat(ctx context.Context, chatID int64) error
}

var _ ChatStore = (*api.Client)(nil)

type ChatsController struct {
	store     ChatStore
	formatter *render.Formatter
}

func NewChatsController(store ChatStore, formatter *render.Formatter) *ChatsController {
	if formatter == nil {
		formatter = render.NewFormatter(80, render.Plain())
	}
	return &ChatsController{
		store:     store,
		formatter: formatter,
	}
}

func (cc *ChatsController) ListChats(ctx context.Context, writer io.Writer, page, size int) error {
	log := logger.WithComponent("chats_controller")

	result, err := cc.store.ListChats(ctx, page, size)
	if err != nil {
		log.Error("Listing chats failed", "error", err)
		return err
	}
	log.Debug("Listed chats", "count", len(result.Chats), "total", result.TotalElements)

	if len(result.Chats) == 0 {
		fmt.Fprintln(writer, "No chats found")
		return nil
	}

	w := tabwriter.NewWriter(writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tMODEL\tUPDATED")
	for _, c := range result.Chats {
		updated := "-"
		if !c.UpdatedAt.IsZero() {
			updated = c.UpdatedAt.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", c.ID, c.Title, orDash(c.Model), updated)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if result.TotalPages > 1 {
		fmt.Fprintf(writer, "\npage %d of %d (%d chats)\n", result.Page+1, result.TotalPages, result.TotalElements)
	}
	return nil
}

// ShowChat prints the stored history of a chat.
func (cc *ChatsController) ShowChat(ctx context.Context, writer io.Writer, chatID int64, showReasoning bool) error {
	messages, err := cc.store.ChatMessages(ctx, chatID)
	if err != nil {
		return err
	}
	if len(messages) == 0 {
		fmt.Fprintln(writer, "No messages")
		return nil
	}

	for i, m := range messages {
		if i > 0 {
			fmt.Fprintln(writer)
		}
		switch {
		case m.IsUser():
			fmt.Fprintf(writer, "> %s\n", m.Content)
		case m.IsAssistant():
			snap := stream.Snapshot{AnswerText: m.Content, ReasoningText: m.Thinking}
			fmt.Fprintln(writer, cc.formatter.FormatFinal(snap, showReasoning))
		default:
			fmt.Fprintf(writer, "[%s] %s\n", m.Role, m.Content)
		}
	}
	return nil
}

func (cc *ChatsController) DeleteChat(ctx context.Context, chatID int64) error {
	if err := cc.store.DeleteChat(ctx, chatID); err != nil {
		return err
	}
	logger.WithComponent("chats_controller").Info("Deleted chat", "chat_id", chatID)
	return nil
}
