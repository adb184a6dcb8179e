package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/killallgit/vivu/pkg/chat"
	"github.com/killallgit/vivu/pkg/logger"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

// LLMTransport streams a reply from a langchaingo model and re-encodes the
// chunks as event-stream lines, so the session reads it like the backend.
type LLMTransport struct {
	llm   llms.Model
	model string
	now   func() time.Time
}

// NewOllama talks to an Ollama server directly.
func NewOllama(serverURL, model string) (*LLMTransport, error) {
	var opts []ollama.Option

	if serverURL != "" {
		opts = append(opts, ollama.WithServerURL(serverURL))
	}

	if model != "" {
		opts = append(opts, ollama.WithModel(model))
	}

	llm, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Ollama client: %w", err)
	}

	return NewLLMTransport(llm, model), nil
}

// NewLLMTransport wraps any langchaingo model. model is reported in events
// when the request names none.
func NewLLMTransport(llm llms.Model, model string) *LLMTransport {
	return &LLMTransport{llm: llm, model: model, now: time.Now}
}

type wireChunk struct {
	Model         string       `json:"model"`
	CreatedAt     string       `json:"created_at"`
	Message       *wireMessage `json:"message,omitempty"`
	Done          bool         `json:"done"`
	TotalDuration int64        `json:"total_duration,omitempty"`
	EvalCount     int          `json:"eval_count,omitempty"`
}

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (t *LLMTransport) Open(ctx context.Context, req chat.ChatRequest) (io.ReadCloser, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("chat request has no messages")
	}

	model := req.Model
	if model == "" {
		model = t.model
	}

	pr, pw := io.Pipe()
	go t.generate(ctx, pw, model, toMessageContent(req.Messages))
	return pr, nil
}

func (t *LLMTransport) generate(ctx context.Context, pw *io.PipeWriter, model string, messages []llms.MessageContent) {
	log := logger.WithComponent("llm_transport")
	started := t.now()

	write := func(c wireChunk) error {
		c.Model = model
		c.CreatedAt = t.now().UTC().Format(time.RFC3339Nano)
		b, err := json.Marshal(c)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(pw, "data: %s\n\n", b)
		return err
	}

	opts := []llms.CallOption{
		llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
			if len(chunk) == 0 {
				return nil
			}
			return write(wireChunk{Message: &wireMessage{Role: chat.RoleAssistant, Content: string(chunk)}})
		}),
	}
	if model != "" {
		opts = append(opts, llms.WithModel(model))
	}

	log.Debug("Generating", "model", model, "messages", len(messages))
	resp, err := t.llm.GenerateContent(ctx, messages, opts...)
	if err != nil {
		if ctx.Err() != nil {
			pw.CloseWithError(ctx.Err())
			return
		}
		if errors.Is(err, io.ErrClosedPipe) {
			return
		}
		log.Error("Generation failed", "model", model, "error", err)
		b, _ := json.Marshal(map[string]string{"error": err.Error()})
		fmt.Fprintf(pw, "data: %s\n\n", b)
		pw.Close()
		return
	}

	final := wireChunk{Done: true, TotalDuration: int64(t.now().Sub(started))}
	if resp != nil && len(resp.Choices) > 0 {
		final.EvalCount = completionTokens(resp.Choices[0].GenerationInfo)
	}
	if err := write(final); err != nil {
		log.Debug("Reader went away before the final chunk", "error", err)
	}
	pw.Close()
}

func completionTokens(info map[string]any) int {
	switch v := info["CompletionTokens"].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

func toMessageContent(history []chat.WireMessage) []llms.MessageContent {
	messages := make([]llms.MessageContent, 0, len(history))
	for _, msg := range history {
		messageType := llms.ChatMessageTypeHuman
		switch msg.Role {
		case chat.RoleSystem:
			messageType = llms.ChatMessageTypeSystem
		case chat.RoleAssistant:
			messageType = llms.ChatMessageTypeAI
		case chat.RoleUser:
			messageType = llms.ChatMessageTypeHuman
		}
		messages = append(messages, llms.TextParts(messageType, msg.Content))
	}
	return messages
}
