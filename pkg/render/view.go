package render

import (
	"strings"
	"sync"
	"time"

	"github.com/killallgit/vivu/pkg/stream"
	"github.com/killallgit/vivu/pkg/typing"
)

// StreamView shows a streaming response: the reasoning block while the
// model thinks, then the answer typed out at a steady pace. Without a live
// terminal it stays silent until Finish.
type StreamView struct {
	formatter     *Formatter
	live          *Live
	renderer      *typing.Renderer
	showReasoning bool
	dotsInterval  time.Duration

	mu      sync.Mutex
	snap    stream.Snapshot
	elapsed *time.Duration
	tick    int
	stop    chan struct{}
	stopped bool
}

type ViewOption func(*StreamView)

// WithLive redraws the response in place on a terminal.
func WithLive(live *Live) ViewOption {
	return func(v *StreamView) {
		v.live = live
	}
}

func WithReasoning(show bool) ViewOption {
	return func(v *StreamView) {
		v.showReasoning = show
	}
}

// WithTyping passes options to the typing renderer of the answer.
func WithTyping(opts ...typing.Option) ViewOption {
	return func(v *StreamView) {
		v.renderer = typing.NewRenderer(append(opts, typing.OnUpdate(v.typed))...)
	}
}

func WithDotsInterval(d time.Duration) ViewOption {
	return func(v *StreamView) {
		v.dotsInterval = d
	}
}

func NewStreamView(formatter *Formatter, opts ...ViewOption) *StreamView {
	v := &StreamView{
		formatter:     formatter,
		showReasoning: true,
		dotsInterval:  typing.DotsInterval,
		stop:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.renderer == nil {
		v.renderer = typing.NewRenderer(typing.OnUpdate(v.typed))
	}
	return v
}

// Start begins pacing and animating. Call it once before the first Update.
func (v *StreamView) Start() {
	v.renderer.Start()
	if v.live == nil {
		return
	}
	v.live.Start()
	v.redraw()
	if v.dotsInterval > 0 {
		go v.animate()
	}
}

func (v *StreamView) animate() {
	ticker := time.NewTicker(v.dotsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-v.stop:
			return
		case <-ticker.C:
			v.mu.Lock()
			v.tick++
			v.mu.Unlock()
			v.redraw()
		}
	}
}

// Update takes the latest snapshot of the response.
func (v *StreamView) Update(s stream.Snapshot) {
	v.mu.Lock()
	if v.stopped {
		v.mu.Unlock()
		return
	}
	v.snap = s
	if s.ReasoningElapsed != nil {
		v.elapsed = s.ReasoningElapsed
	}
	v.mu.Unlock()

	v.renderer.SetTarget(s.AnswerText)
	v.redraw()
}

// Finish stops the live display and returns the formatted final response.
func (v *StreamView) Finish(s stream.Snapshot) string {
	v.mu.Lock()
	if !v.stopped {
		v.stopped = true
		close(v.stop)
	}
	if s.ReasoningElapsed == nil {
		s.ReasoningElapsed = v.elapsed
	}
	v.mu.Unlock()

	v.renderer.CompleteNow()
	if v.live != nil {
		v.live.Stop()
	}
	return v.formatter.FormatFinal(s, v.showReasoning)
}

// Abort stops the live display without printing a response.
func (v *StreamView) Abort() {
	v.mu.Lock()
	if !v.stopped {
		v.stopped = true
		close(v.stop)
	}
	v.mu.Unlock()

	v.renderer.Reset()
	if v.live != nil {
		v.live.Stop()
	}
}

// Frame is what the live display currently shows.
func (v *StreamView) Frame() string {
	v.mu.Lock()
	snap, elapsed, tick := v.snap, v.elapsed, v.tick
	v.mu.Unlock()
	shown := v.renderer.State().DisplayedText

	var blocks []string
	if v.showReasoning && (snap.IsReasoningActive || snap.HasReasoning()) {
		blocks = append(blocks, v.formatter.FormatReasoning(snap.ReasoningText, snap.IsReasoningActive, elapsed, tick))
	} else if snap.IsReasoningActive {
		blocks = append(blocks, ReasoningHeader(true, nil, tick))
	}

	switch {
	case shown != "":
		blocks = append(blocks, shown)
	case len(blocks) == 0:
		blocks = append(blocks, typing.Dots(tick))
	}
	return strings.Join(blocks, "\n\n")
}

func (v *StreamView) typed(typing.State) {
	v.redraw()
}

func (v *StreamView) redraw() {
	if v.live == nil {
		return
	}
	v.mu.Lock()
	stopped := v.stopped
	v.mu.Unlock()
	if stopped {
		return
	}
	v.live.Draw(v.Frame())
}
