// Package typing re-paces already received text for display. It is a
// presentation rate limiter only: the text it is given keeps growing at
// whatever speed it arrives and nothing here pushes back on the producer.
package typing

import (
	"strings"
	"sync"
)

// State is what a view binds to.
type State struct {
	DisplayedText string
	TargetText    string
	IsAdvancing   bool
	IsComplete    bool
	ContentClass  ContentClass
	// Progress is the shown share of the target, from 0 to 1.
	Progress float64
}

type Option func(*Renderer)

func WithScheduler(s Scheduler) Option {
	return func(r *Renderer) {
		if s != nil {
			r.scheduler = s
		}
	}
}

func WithPacer(p Pacer) Option {
	return func(r *Renderer) {
		r.pacer = p
	}
}

// WithInstant disables pacing; every target is shown in full at once.
func WithInstant() Option {
	return func(r *Renderer) {
		r.instant = true
		r.skipped = true
	}
}

// OnUpdate is called after every change of the displayed text. It runs on
// the goroutine that caused the change and must not call back into the
// renderer.
func OnUpdate(fn func(State)) Option {
	return func(r *Renderer) {
		r.onUpdate = fn
	}
}

// Renderer advances a displayed prefix toward a target text. One renderer
// belongs to one message; Reset it before reusing it for another.
type Renderer struct {
	mu       sync.Mutex
	notifyMu sync.Mutex

	scheduler Scheduler
	pacer     Pacer
	onUpdate  func(State)
	instant   bool

	target  []rune
	shown   int
	class   ContentClass
	task    Task
	gen     uint64
	started bool
	skipped bool
}

func NewRenderer(opts ...Option) *Renderer {
	r := &Renderer{
		scheduler: RealScheduler(),
		pacer:     defaultPacer,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetTarget replaces the text to converge to. A target that does not
// extend what is already shown, or is shorter than the previous one, starts
// over from an empty display.
func (r *Renderer) SetTarget(text string) {
	r.mu.Lock()

	if text == string(r.target) {
		r.mu.Unlock()
		return
	}

	runes := []rune(text)
	displayed := string(r.target[:r.shown])
	if len(runes) < len(r.target) || !strings.HasPrefix(text, displayed) {
		r.cancelLocked()
		r.shown = 0
		r.skipped = r.instant
	}

	r.target = runes
	r.class = Classify(text)

	if r.skipped {
		r.shown = len(r.target)
	} else if r.started {
		r.scheduleLocked()
	}

	r.mu.Unlock()
	r.notify()
}

// Start begins advancing. Targets set before Start are held back until it
// is called.
func (r *Renderer) Start() {
	r.mu.Lock()
	r.started = true
	r.scheduleLocked()
	r.mu.Unlock()
}

// CompleteNow shows the whole target immediately and keeps showing later
// growth without pacing.
func (r *Renderer) CompleteNow() {
	r.mu.Lock()
	r.cancelLocked()
	r.skipped = true
	r.shown = len(r.target)
	r.mu.Unlock()
	r.notify()
}

// Reset clears the renderer for a new message. Pacing has to be started
// again.
func (r *Renderer) Reset() {
	r.mu.Lock()
	r.cancelLocked()
	r.target = nil
	r.shown = 0
	r.class = ClassPlain
	r.started = false
	r.skipped = r.instant
	r.mu.Unlock()
	r.notify()
}

// State returns the current view state.
func (r *Renderer) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stateLocked()
}

func (r *Renderer) stateLocked() State {
	st := State{
		DisplayedText: string(r.target[:r.shown]),
		TargetText:    string(r.target),
		IsAdvancing:   r.task != nil,
		ContentClass:  r.class,
		Progress:      1,
	}
	st.IsComplete = !st.IsAdvancing && r.shown == len(r.target)
	if len(r.target) > 0 {
		st.Progress = float64(r.shown) / float64(len(r.target))
	}
	return st
}

// scheduleLocked arms the next step unless one is pending or nothing is
// left to show.
func (r *Renderer) scheduleLocked() {
	if r.task != nil || r.skipped || r.shown >= len(r.target) {
		return
	}
	gen := r.gen
	pace := r.pacer.Next(r.class, string(r.target[r.shown:]))
	r.task = r.scheduler.Schedule(pace.Delay, func() { r.step(gen) })
}

func (r *Renderer) cancelLocked() {
	if r.task != nil {
		r.task.Cancel()
		r.task = nil
	}
	r.gen++
}

func (r *Renderer) step(gen uint64) {
	r.mu.Lock()
	if gen != r.gen {
		r.mu.Unlock()
		return
	}
	r.task = nil

	remaining := r.target[r.shown:]
	pace := r.pacer.Next(r.class, string(remaining))
	r.shown += min(pace.Batch, len(remaining))
	r.scheduleLocked()

	r.mu.Unlock()
	r.notify()
}

// notify reports the latest state. Updates are serialized so a slow
// callback never sees them out of order.
func (r *Renderer) notify() {
	if r.onUpdate == nil {
		return
	}
	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()
	r.onUpdate(r.State())
}
