package stream

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// EventPrefix marks the lines of the event stream that carry a payload.
const EventPrefix = "data:"

// Event is a decoded event line. It is either a DataEvent or an ErrorEvent.
type Event interface {
	isEvent()
}

// DataEvent carries one chunk of the response.
type DataEvent struct {
	Model     string
	CreatedAt string
	Done      bool
	// Content is the text fragment; HasContent is false when the chunk had
	// no message content at all.
	Content    string
	HasContent bool

	TotalDuration time.Duration
	EvalCount     int
}

// ErrorEvent is a failure reported by the server. It ends the session.
type ErrorEvent struct {
	Message string
}

func (DataEvent) isEvent()  {}
func (ErrorEvent) isEvent() {}

type payload struct {
	Model     string `json:"model"`
	CreatedAt string `json:"created_at"`
	Done      bool   `json:"done"`
	Message   *struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Error         any   `json:"error"`
	TotalDuration int64 `json:"total_duration"`
	EvalCount     int   `json:"eval_count"`
}

// ParseLine decodes one line of the event stream. Lines without the event
// prefix, empty payloads and payloads that fail to decode yield nil.
func ParseLine(line string) Event {
	line = strings.TrimRight(line, "\r")
	if !strings.HasPrefix(line, EventPrefix) {
		return nil
	}

	raw := strings.TrimSpace(line[len(EventPrefix):])
	if raw == "" {
		return nil
	}

	var p payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil
	}

	if msg, ok := errorMessage(p.Error); ok {
		return ErrorEvent{Message: msg}
	}

	ev := DataEvent{
		Model:         p.Model,
		CreatedAt:     p.CreatedAt,
		Done:          p.Done,
		TotalDuration: time.Duration(p.TotalDuration),
		EvalCount:     p.EvalCount,
	}
	if p.Message != nil && p.Message.Content != "" {
		ev.Content = p.Message.Content
		ev.HasContent = true
	}
	return ev
}

// errorMessage treats any non-empty error field as a server failure. Empty
// values (false, 0, "") mean no error.
func errorMessage(v any) (string, bool) {
	switch e := v.(type) {
	case nil:
		return "", false
	case string:
		return e, e != ""
	case bool:
		if !e {
			return "", false
		}
		return "server reported an error", true
	case float64:
		if e == 0 {
			return "", false
		}
		return fmt.Sprint(e), true
	case map[string]any:
		if msg, ok := e["message"].(string); ok && msg != "" {
			return msg, true
		}
		b, _ := json.Marshal(e)
		return string(b), true
	default:
		return fmt.Sprint(e), true
	}
}
