package testutil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/killallgit/vivu/pkg/chat"
)

// FakeTransport is a stream transport driven by the test. Each Open gets a
// fresh pipe; Send, Close and Fail act on the most recent one.
type FakeTransport struct {
	mu       sync.Mutex
	requests []chat.ChatRequest
	writer   *io.PipeWriter
	openErr  error
}

func NewFakeTransport() *FakeTransport {
	return &FakeTransport{}
}

// FailOpen makes every following Open return err.
func (f *FakeTransport) FailOpen(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.openErr = err
}

func (f *FakeTransport) Open(ctx context.Context, req chat.ChatRequest) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, req)
	if f.openErr != nil {
		return nil, f.openErr
	}

	pr, pw := io.Pipe()
	f.writer = pw

	go func() {
		<-ctx.Done()
		pw.CloseWithError(ctx.Err())
	}()

	return pr, nil
}

// Requests returns every request passed to Open so far.
func (f *FakeTransport) Requests() []chat.ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]chat.ChatRequest(nil), f.requests...)
}

// OpenCount returns how many times Open was called.
func (f *FakeTransport) OpenCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

// WaitForOpen blocks until Open was called n times or the timeout passes.
func (f *FakeTransport) WaitForOpen(n int, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if f.OpenCount() >= n {
			return nil
		}
		time.Sleep(time.Millisecond)
	}
	return fmt.Errorf("transport opened %d times, want %d", f.OpenCount(), n)
}

func (f *FakeTransport) current() (*io.PipeWriter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writer == nil {
		return nil, errors.New("transport not opened")
	}
	return f.writer, nil
}

// Send writes raw stream text in a single write. It blocks until the
// session has read all of it.
func (f *FakeTransport) Send(text string) error {
	w, err := f.current()
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, text)
	return err
}

// SendLines writes the given lines, newline terminated, in a single write.
func (f *FakeTransport) SendLines(lines ...string) error {
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	return f.Send(b.String())
}

// Close ends the current stream cleanly.
func (f *FakeTransport) Close() error {
	w, err := f.current()
	if err != nil {
		return err
	}
	return w.Close()
}

// Fail breaks the current stream with err.
func (f *FakeTransport) Fail(err error) error {
	w, cerr := f.current()
	if cerr != nil {
		return cerr
	}
	return w.CloseWithError(err)
}

// ChunkLine renders one event line the way the chat backend sends it.
func ChunkLine(model, content string, done bool) string {
	payload := map[string]any{
		"model":      model,
		"created_at": "",
		"message":    map[string]string{"role": "assistant", "content": content},
		"done":       done,
	}
	b, _ := json.Marshal(payload)
	return "data: " + string(b)
}

// FinalLine renders the closing event line carrying generation statistics.
func FinalLine(model string, totalDuration time.Duration, evalCount int) string {
	payload := map[string]any{
		"model":          model,
		"message":        map[string]string{"role": "assistant", "content": ""},
		"done":           true,
		"total_duration": totalDuration.Nanoseconds(),
		"eval_count":     evalCount,
	}
	b, _ := json.Marshal(payload)
	return "data: " + string(b)
}

// ErrorLine renders an event line reporting a server failure.
func ErrorLine(message string) string {
	b, _ := json.Marshal(map[string]string{"error": message})
	return "data: " + string(b)
}
