package viewer

import "time"

// Scheduler abstracts the per-attempt deadline timer so the fallback cycle
// can be driven in tests without wall-clock waits.
type Scheduler interface {
	// Schedule runs fn after d unless the returned timer is cancelled first.
	Schedule(d time.Duration, fn func()) Timer
}

type Timer interface {
	// Cancel stops the timer; a no-op if it already fired.
	Cancel()
}

// ClockScheduler is the production Scheduler backed by time.AfterFunc.
type ClockScheduler struct{}

func (ClockScheduler) Schedule(d time.Duration, fn func()) Timer {
	return clockTimer{t: time.AfterFunc(d, fn)}
}

type clockTimer struct {
	t *time.Timer
}

func (c clockTimer) Cancel() { c.t.Stop() }
