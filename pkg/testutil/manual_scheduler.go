package testutil

import (
	"sort"
	"sync"
	"time"

	"github.com/killallgit/vivu/pkg/typing"
)

// ManualScheduler is a typing.Scheduler that only runs tasks when the test
// says so, in due-time order.
type ManualScheduler struct {
	mu      sync.Mutex
	now     time.Duration
	seq     int
	pending []*manualTask
	delays  []time.Duration
}

type manualTask struct {
	s         *ManualScheduler
	due       time.Duration
	seq       int
	fn        func()
	cancelled bool
}

func (t *manualTask) Cancel() {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	t.cancelled = true
}

func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

func (m *ManualScheduler) Schedule(d time.Duration, fn func()) typing.Task {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	task := &manualTask{s: m, due: m.now + d, seq: m.seq, fn: fn}
	m.pending = append(m.pending, task)
	m.delays = append(m.delays, d)
	return task
}

// Pending returns the number of tasks that are scheduled and not cancelled.
func (m *ManualScheduler) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.pending {
		if !t.cancelled {
			n++
		}
	}
	return n
}

// Delays returns the delay of every Schedule call so far.
func (m *ManualScheduler) Delays() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]time.Duration(nil), m.delays...)
}

// Step runs the earliest pending task. It reports false when there is none.
func (m *ManualScheduler) Step() bool {
	m.mu.Lock()
	live := m.pending[:0]
	for _, t := range m.pending {
		if !t.cancelled {
			live = append(live, t)
		}
	}
	m.pending = live
	if len(m.pending) == 0 {
		m.mu.Unlock()
		return false
	}

	sort.Slice(m.pending, func(i, j int) bool {
		if m.pending[i].due == m.pending[j].due {
			return m.pending[i].seq < m.pending[j].seq
		}
		return m.pending[i].due < m.pending[j].due
	})
	next := m.pending[0]
	m.pending = m.pending[1:]
	m.now = next.due
	m.mu.Unlock()

	next.fn()
	return true
}

// RunAll steps until nothing is pending or limit steps ran, and returns the
// number of steps taken.
func (m *ManualScheduler) RunAll(limit int) int {
	steps := 0
	for steps < limit && m.Step() {
		steps++
	}
	return steps
}

// Elapsed returns the simulated time of the last step.
func (m *ManualScheduler) Elapsed() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}
