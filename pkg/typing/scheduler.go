package typing

import "time"

// Task is a pending scheduled call.
type Task interface {
	// Cancel stops the call if it has not started yet.
	Cancel()
}

// Scheduler runs fn once after d.
type Scheduler interface {
	Schedule(d time.Duration, fn func()) Task
}

type timerScheduler struct{}

type timerTask struct {
	timer *time.Timer
}

func (t timerTask) Cancel() {
	t.timer.Stop()
}

func (timerScheduler) Schedule(d time.Duration, fn func()) Task {
	return timerTask{timer: time.AfterFunc(d, fn)}
}

// RealScheduler schedules on the runtime timers.
func RealScheduler() Scheduler {
	return timerScheduler{}
}
