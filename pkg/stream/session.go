package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/killallgit/vivu/pkg/chat"
	"github.com/killallgit/vivu/pkg/logger"
	"github.com/killallgit/vivu/pkg/sanitize"
)

const (
	DefaultMinBatchSize      = 3
	DefaultBatchInterval     = 50 * time.Millisecond
	DefaultCancelPlaceholder = "response stopped by user"
)

// Transport opens the byte stream for a chat request. Closing the returned
// body must abort any blocked read.
type Transport interface {
	Open(ctx context.Context, req chat.ChatRequest) (io.ReadCloser, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, req chat.ChatRequest) (io.ReadCloser, error)

func (f TransportFunc) Open(ctx context.Context, req chat.ChatRequest) (io.ReadCloser, error) {
	return f(ctx, req)
}

type SnapshotFunc func(Snapshot)
type ErrorFunc func(error)

type options struct {
	minBatchSize      int
	batchInterval     time.Duration
	cancelPlaceholder string
	markers           Markers
	now               func() time.Time
}

type Option func(*options)

// WithMinBatchSize sets how many lines force a flush before the timer fires.
func WithMinBatchSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.minBatchSize = n
		}
	}
}

// WithBatchInterval sets how long the first unflushed line may wait.
func WithBatchInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.batchInterval = d
		}
	}
}

func WithCancelPlaceholder(text string) Option {
	return func(o *options) {
		if text != "" {
			o.cancelPlaceholder = text
		}
	}
}

func WithReasoningMarkers(m Markers) Option {
	return func(o *options) {
		if m.Open != "" && m.Close != "" {
			o.markers = m
		}
	}
}

func WithSessionClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// Session is one streaming response. All callbacks run on the session's own
// goroutine, one at a time and in line order.
type Session struct {
	id     string
	cancel context.CancelFunc
	done   chan struct{}

	req        chat.ChatRequest
	transport  Transport
	onSnapshot SnapshotFunc
	onError    ErrorFunc
	opts       options
	splitter   *Splitter
	log        *logger.ComponentLogger

	// Owned by the session goroutine.
	state          State
	model          string
	createdAt      time.Time
	// lastReasoning is the last closed segment. Later snapshots keep showing
	// it even though the splitter has cleared its buffer.
	lastReasoning  string
	totalDuration  time.Duration
	evalCount      int
	linesProcessed int
}

// Start opens the transport and streams the response in the background.
// The returned session is the cancellation handle.
func Start(ctx context.Context, transport Transport, req chat.ChatRequest, onSnapshot SnapshotFunc, onError ErrorFunc, opts ...Option) *Session {
	o := options{
		minBatchSize:      DefaultMinBatchSize,
		batchInterval:     DefaultBatchInterval,
		cancelPlaceholder: DefaultCancelPlaceholder,
		markers:           DefaultMarkers,
		now:               time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if onSnapshot == nil {
		onSnapshot = func(Snapshot) {}
	}
	if onError == nil {
		onError = func(error) {}
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	s := &Session{
		id:         uuid.NewString(),
		cancel:     cancel,
		done:       make(chan struct{}),
		req:        req,
		transport:  transport,
		onSnapshot: onSnapshot,
		onError:    onError,
		opts:       o,
		splitter:   NewSplitter(WithMarkers(o.markers), WithClock(o.now)),
		log:        logger.WithComponent("stream_session"),
		model:      req.Model,
	}

	go s.run(sessionCtx)
	return s
}

// ID identifies the session in logs and snapshots.
func (s *Session) ID() string {
	return s.id
}

// Cancel stops the session. It is safe to call repeatedly, from callbacks,
// and after the session finished; only the first call before completion
// has an effect.
func (s *Session) Cancel() {
	s.cancel()
}

// Done is closed once the session delivered its last callback.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the session finished.
func (s *Session) Wait() {
	<-s.done
}

type flushOutcome int

const (
	flushContinue flushOutcome = iota
	flushDone
	flushFailed
	flushCancelled
)

func (s *Session) run(ctx context.Context) {
	defer close(s.done)
	defer s.cancel()

	s.log.Debug("opening stream", "session", s.id, "model", s.req.Model, "messages", len(s.req.Messages))

	body, err := s.transport.Open(ctx, s.req)
	if err != nil {
		if ctx.Err() != nil {
			s.finishCancelled()
			return
		}
		s.fail(fmt.Errorf("failed to open stream: %w", err))
		return
	}

	closeBody := sync.OnceFunc(func() { _ = body.Close() })
	defer closeBody()

	stop := make(chan struct{})
	defer close(stop)

	results := make(chan readResult, 1)
	go readLines(body, results, stop)

	var (
		batch  []string
		timer  *time.Timer
		timerC <-chan time.Time
	)
	stopTimer := func() {
		if timer != nil {
			timer.Stop()
			timer, timerC = nil, nil
		}
	}
	defer stopTimer()

	for {
		if ctx.Err() != nil {
			s.finishCancelled()
			return
		}

		select {
		case <-ctx.Done():
			s.finishCancelled()
			return

		case <-timerC:
			timer, timerC = nil, nil
			outcome := s.flush(ctx, batch)
			batch = nil
			if s.settle(ctx, outcome) {
				return
			}

		case res := <-results:
			batch = append(batch, res.lines...)

			if res.err != nil {
				stopTimer()
				if !errors.Is(res.err, io.EOF) {
					if ctx.Err() != nil {
						s.finishCancelled()
						return
					}
					s.fail(fmt.Errorf("failed to read stream: %w", res.err))
					return
				}

				outcome := s.flush(ctx, batch)
				if outcome == flushContinue {
					outcome = flushDone
				}
				s.settle(ctx, outcome)
				return
			}

			if len(batch) >= s.opts.minBatchSize {
				stopTimer()
				outcome := s.flush(ctx, batch)
				batch = nil
				if s.settle(ctx, outcome) {
					return
				}
			} else if timer == nil && len(batch) > 0 {
				timer = time.NewTimer(s.opts.batchInterval)
				timerC = timer.C
			}
		}
	}
}

// settle finishes the session for any outcome other than flushContinue and
// reports whether the session is over.
func (s *Session) settle(ctx context.Context, outcome flushOutcome) bool {
	switch outcome {
	case flushDone:
		if ctx.Err() != nil {
			s.finishCancelled()
		} else {
			s.finish()
		}
		return true
	case flushCancelled:
		s.finishCancelled()
		return true
	case flushFailed:
		return true
	}
	return false
}

// flush runs a batch of lines through the parser and splitter and delivers
// one snapshot for it.
func (s *Session) flush(ctx context.Context, lines []string) flushOutcome {
	if len(lines) == 0 {
		return flushContinue
	}

	var (
		changed       bool
		done          bool
		closedElapsed *time.Duration
	)

	for _, line := range lines {
		ev := ParseLine(line)
		if ev == nil {
			continue
		}

		switch e := ev.(type) {
		case ErrorEvent:
			s.fail(&ServerError{Message: e.Message})
			return flushFailed

		case DataEvent:
			s.linesProcessed++
			changed = true
			s.applyMeta(e)

			if e.HasContent {
				res := s.splitter.Process(&s.state, sanitize.Fragment(e.Content), e.CreatedAt)
				if res.JustClosedReasoning {
					s.lastReasoning = res.ReasoningText
					closedElapsed = res.ReasoningElapsed
				}
			}

			if e.Done {
				done = true
			}
		}

		if done {
			break
		}
	}

	s.log.Debug("flushed batch", "session", s.id, "lines", len(lines), "done", done)

	if changed {
		if ctx.Err() != nil {
			return flushCancelled
		}
		s.onSnapshot(s.snapshot(closedElapsed))
	}

	if done {
		return flushDone
	}
	return flushContinue
}

func (s *Session) applyMeta(e DataEvent) {
	if e.Model != "" {
		s.model = e.Model
	}
	s.createdAt = parseServerTime(e.CreatedAt, s.opts.now())
	if e.TotalDuration > 0 {
		s.totalDuration = e.TotalDuration
	}
	if e.EvalCount > 0 {
		s.evalCount = e.EvalCount
	}
}

func (s *Session) snapshot(closedElapsed *time.Duration) Snapshot {
	snap := Snapshot{
		SessionID:         s.id,
		Model:             s.model,
		CreatedAt:         s.createdAt,
		AnswerText:        s.state.AnswerBuffer,
		IsReasoningActive: s.state.IsReasoning,
		ReasoningText:     s.lastReasoning,
		ReasoningElapsed:  closedElapsed,
		TotalDuration:     s.totalDuration,
		EvalCount:         s.evalCount,
	}
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = s.opts.now()
	}
	if s.state.IsReasoning {
		snap.ReasoningText = s.state.ReasoningBuffer
	}
	return snap
}

// finish delivers the terminal snapshot of a stream that ran to completion.
// A reasoning segment still open at the end is closed by it.
func (s *Session) finish() {
	var elapsed *time.Duration
	if s.state.IsReasoning {
		elapsed = s.splitter.Elapsed(&s.state)
	}

	snap := s.snapshot(elapsed)
	snap.IsFinal = true
	snap.IsReasoningActive = false
	snap.CreatedAt = s.opts.now()

	s.log.Info("stream completed", "session", s.id, "model", snap.Model, "lines", s.linesProcessed, "answer_len", len(snap.AnswerText))
	s.onSnapshot(snap)
}

// finishCancelled delivers the terminal snapshot for a cancelled session.
// Unflushed lines are discarded.
func (s *Session) finishCancelled() {
	var elapsed *time.Duration
	if s.state.IsReasoning {
		elapsed = s.splitter.Elapsed(&s.state)
	}

	snap := s.snapshot(elapsed)
	snap.IsFinal = true
	snap.IsReasoningActive = false
	snap.WasCancelled = true
	snap.CreatedAt = s.opts.now()
	if snap.AnswerText == "" {
		snap.AnswerText = s.opts.cancelPlaceholder
		snap.IsPlaceholder = true
	}

	s.log.Info("stream cancelled", "session", s.id, "lines", s.linesProcessed)
	s.onSnapshot(snap)
}

func (s *Session) fail(err error) {
	s.log.Error("stream failed", "session", s.id, "error", err)
	s.onError(err)
}
