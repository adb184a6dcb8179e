package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/tmc/langchaingo/llms"
)

// FakeLLM is a langchaingo model that replays canned responses. When the
// caller passes a streaming function each response is delivered word by
// word through it.
type FakeLLM struct {
	mu           sync.Mutex
	responses    []string
	currentIndex int
	callCount    int
	lastMessages []llms.MessageContent
	lastModel    string
	errorOnCall  int // If > 0, return error on this call number
	errorMessage string
	hang         bool
}

// NewFakeLLM creates a new fake LLM with predefined responses
func NewFakeLLM(responses ...string) *FakeLLM {
	return &FakeLLM{
		responses: responses,
	}
}

// Call implements the LLM interface
func (f *FakeLLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

// GenerateContent implements the LLM interface for message-based generation
func (f *FakeLLM) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := llms.CallOptions{}
	for _, opt := range options {
		opt(&opts)
	}

	response, hang, err := f.next(messages, opts.Model)
	if err != nil {
		return nil, err
	}

	chunks := Words(response)
	if opts.StreamingFunc != nil {
		for _, chunk := range chunks {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if err := opts.StreamingFunc(ctx, []byte(chunk)); err != nil {
				return nil, err
			}
		}
	}

	if hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{
			{
				Content:        response,
				GenerationInfo: map[string]any{"CompletionTokens": len(chunks)},
			},
		},
	}, nil
}

func (f *FakeLLM) next(messages []llms.MessageContent, model string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.callCount++
	f.lastMessages = messages
	f.lastModel = model

	if f.errorOnCall > 0 && f.callCount == f.errorOnCall {
		if f.errorMessage != "" {
			return "", false, fmt.Errorf("%s", f.errorMessage)
		}
		return "", false, fmt.Errorf("fake error on call %d", f.callCount)
	}

	if len(f.responses) == 0 {
		return "", false, fmt.Errorf("no responses configured")
	}

	response := f.responses[f.currentIndex]
	f.currentIndex = (f.currentIndex + 1) % len(f.responses)
	return response, f.hang, nil
}

// Words splits text into chunks that each end after a space, the way a
// model streams tokens. Joining the chunks gives back text.
func Words(text string) []string {
	if text == "" {
		return nil
	}
	return strings.SplitAfter(text, " ")
}

// Reset resets the response index and call count
func (f *FakeLLM) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.currentIndex = 0
	f.callCount = 0
	f.lastMessages = nil
	f.lastModel = ""
}

// AddResponse adds a new response to the LLM
func (f *FakeLLM) AddResponse(response string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, response)
}

// SetErrorOnCall configures the LLM to return an error on a specific call
func (f *FakeLLM) SetErrorOnCall(callNumber int, errorMessage string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errorOnCall = callNumber
	f.errorMessage = errorMessage
}

// HangAfterStreaming keeps every following call open after its last chunk
// until the context is cancelled.
func (f *FakeLLM) HangAfterStreaming() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hang = true
}

// GetCallCount returns the number of generation calls
func (f *FakeLLM) GetCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.callCount
}

// GetLastMessages returns the conversation passed to the last call
func (f *FakeLLM) GetLastMessages() []llms.MessageContent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastMessages
}

// GetLastModel returns the model option of the last call
func (f *FakeLLM) GetLastModel() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastModel
}
