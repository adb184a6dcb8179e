package stream

import (
	"strings"
	"time"
)

// Markers delimit a reasoning segment inside model output.
type Markers struct {
	Open  string
	Close string
}

// DefaultMarkers are the tags reasoning models wrap their thinking in.
var DefaultMarkers = Markers{Open: "<think>", Close: "</think>"}

// State is the running parse state of one response. It belongs to a single
// session and is never shared.
type State struct {
	IsReasoning     bool
	ReasoningBuffer string
	AnswerBuffer    string

	// ReasoningStartedAt is the client clock at the opening marker. Zero
	// when no opening marker was observed.
	ReasoningStartedAt time.Time
	// ReasoningEndedAt is the server timestamp of the chunk that closed
	// the last segment.
	ReasoningEndedAt string
}

// SplitResult is the cumulative view after one fragment.
type SplitResult struct {
	ReasoningText       string
	AnswerText          string
	IsReasoningActive   bool
	JustClosedReasoning bool
	// ReasoningElapsed is set only when a segment closed in this fragment
	// and its start was observed.
	ReasoningElapsed *time.Duration
}

// Splitter separates reasoning from answer text fragment by fragment.
// Text is appended verbatim; markers are matched literally and a marker
// broken across two fragments is not recognized.
type Splitter struct {
	markers Markers
	now     func() time.Time
}

type SplitterOption func(*Splitter)

func WithMarkers(m Markers) SplitterOption {
	return func(s *Splitter) {
		if m.Open != "" && m.Close != "" {
			s.markers = m
		}
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) SplitterOption {
	return func(s *Splitter) {
		if now != nil {
			s.now = now
		}
	}
}

func NewSplitter(opts ...SplitterOption) *Splitter {
	s := &Splitter{
		markers: DefaultMarkers,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Markers returns the markers this splitter matches.
func (s *Splitter) Markers() Markers {
	return s.markers
}

// Process feeds one fragment into state and returns the cumulative split.
// serverTimestamp is the created_at of the chunk carrying the fragment and
// may be empty.
func (s *Splitter) Process(state *State, fragment, serverTimestamp string) SplitResult {
	openTag, closeTag := s.markers.Open, s.markers.Close
	openIdx := strings.Index(fragment, openTag)
	closeIdx := strings.Index(fragment, closeTag)

	// While reasoning, a close that comes before a stray open wins.
	if state.IsReasoning && closeIdx >= 0 && openIdx > closeIdx {
		openIdx = -1
	}

	closed := false

	switch {
	case openIdx >= 0:
		before, rest := fragment[:openIdx], fragment[openIdx+len(openTag):]
		if state.IsReasoning {
			state.ReasoningBuffer += before
		} else {
			state.AnswerBuffer += before
			state.IsReasoning = true
			state.ReasoningStartedAt = s.now()
		}

		if idx := strings.Index(rest, closeTag); idx >= 0 {
			state.ReasoningBuffer += rest[:idx]
			state.AnswerBuffer += rest[idx+len(closeTag):]
			closed = true
		} else {
			state.ReasoningBuffer += rest
		}

	case state.IsReasoning:
		if closeIdx >= 0 {
			state.ReasoningBuffer += fragment[:closeIdx]
			state.AnswerBuffer += fragment[closeIdx+len(closeTag):]
			closed = true
		} else {
			state.ReasoningBuffer += fragment
		}

	default:
		// A lone close only counts when there is reasoning left to close.
		if closeIdx >= 0 && state.ReasoningBuffer != "" {
			state.ReasoningBuffer += fragment[:closeIdx]
			state.AnswerBuffer += fragment[closeIdx+len(closeTag):]
			closed = true
		} else {
			state.AnswerBuffer += fragment
		}
	}

	result := SplitResult{
		ReasoningText:     state.ReasoningBuffer,
		AnswerText:        state.AnswerBuffer,
		IsReasoningActive: state.IsReasoning,
	}

	if closed {
		result.IsReasoningActive = false
		result.JustClosedReasoning = true
		state.ReasoningEndedAt = serverTimestamp
		result.ReasoningElapsed = s.elapsed(state)

		state.IsReasoning = false
		state.ReasoningBuffer = ""
		state.ReasoningStartedAt = time.Time{}
	}

	return result
}

// Elapsed reports how long the open segment has been running, or nil when
// no segment is open or its start was not observed.
func (s *Splitter) Elapsed(state *State) *time.Duration {
	if !state.IsReasoning {
		return nil
	}
	return s.elapsed(state)
}

func (s *Splitter) elapsed(state *State) *time.Duration {
	if state.ReasoningStartedAt.IsZero() {
		return nil
	}

	end := s.now()
	if state.ReasoningEndedAt != "" {
		if ts, err := time.Parse(time.RFC3339Nano, state.ReasoningEndedAt); err == nil {
			end = ts
		}
	}

	d := end.Sub(state.ReasoningStartedAt)
	if d < 0 {
		d = 0
	}
	return &d
}
