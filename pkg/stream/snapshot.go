package stream

import "time"

// Snapshot is one cumulative view of a streaming response, delivered at a
// flush boundary. Consumers must treat it as read-only.
type Snapshot struct {
	SessionID string
	Model     string
	CreatedAt time.Time
	IsFinal   bool

	AnswerText        string
	ReasoningText     string
	IsReasoningActive bool
	// ReasoningElapsed is set only on the snapshot where a reasoning
	// segment closed.
	ReasoningElapsed *time.Duration

	WasCancelled bool
	// IsPlaceholder marks an AnswerText that is the cancel placeholder
	// rather than model output.
	IsPlaceholder bool

	// Generation statistics reported by the server on its last chunk.
	TotalDuration time.Duration
	EvalCount     int
}

// HasReasoning reports whether the snapshot carries any reasoning text.
func (s Snapshot) HasReasoning() bool {
	return s.ReasoningText != ""
}

func parseServerTime(ts string, fallback time.Time) time.Time {
	if ts == "" {
		return fallback
	}
	parsed, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return fallback
	}
	return parsed
}
