package stream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		expected Event
	}{
		{
			name:     "no prefix",
			line:     `{"model":"gemma3:4b"}`,
			expected: nil,
		},
		{
			name:     "comment line",
			line:     ": keep-alive",
			expected: nil,
		},
		{
			name:     "empty payload",
			line:     "data:   ",
			expected: nil,
		},
		{
			name:     "malformed json",
			line:     `data: {"model":`,
			expected: nil,
		},
		{
			name:     "wrong field type",
			line:     `data: {"done":"yes"}`,
			expected: nil,
		},
		{
			name: "content chunk",
			line: `data: {"model":"gemma3:4b","created_at":"2025-01-01T00:00:01Z","message":{"role":"assistant","content":"Hel"},"done":false}`,
			expected: DataEvent{
				Model:      "gemma3:4b",
				CreatedAt:  "2025-01-01T00:00:01Z",
				Content:    "Hel",
				HasContent: true,
			},
		},
		{
			name: "no space after prefix and trailing carriage return",
			line: "data:{\"model\":\"llama3:8b\",\"message\":{\"content\":\"lo\"}}\r",
			expected: DataEvent{
				Model:      "llama3:8b",
				Content:    "lo",
				HasContent: true,
			},
		},
		{
			name: "final chunk with statistics",
			line: `data: {"model":"gemma3:4b","message":{"role":"assistant","content":""},"done":true,"total_duration":1500000000,"eval_count":42}`,
			expected: DataEvent{
				Model:         "gemma3:4b",
				Done:          true,
				TotalDuration: 1500 * time.Millisecond,
				EvalCount:     42,
			},
		},
		{
			name:     "string error",
			line:     `data: {"error":"model not found"}`,
			expected: ErrorEvent{Message: "model not found"},
		},
		{
			name:     "object error",
			line:     `data: {"error":{"code":500,"message":"overloaded"}}`,
			expected: ErrorEvent{Message: "overloaded"},
		},
		{
			name:     "empty error is ignored",
			line:     `data: {"error":"","model":"gemma3:4b"}`,
			expected: DataEvent{Model: "gemma3:4b"},
		},
		{
			name:     "zero error is ignored",
			line:     `data: {"error":0,"model":"gemma3:4b","message":{"content":"ok"}}`,
			expected: DataEvent{Model: "gemma3:4b", Content: "ok", HasContent: true},
		},
		{
			name:     "false error is ignored",
			line:     `data: {"error":false,"model":"gemma3:4b"}`,
			expected: DataEvent{Model: "gemma3:4b"},
		},
		{
			name:     "numeric error code",
			line:     `data: {"error":503}`,
			expected: ErrorEvent{Message: "503"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseLine(tt.line))
		})
	}
}
