package core

import "time"

// TimerHandle cancels a scheduled action.
type TimerHandle interface {
	// Stop cancels the action and reports whether it prevented the fire.
	// Stopping twice, or stopping after the fire, is a harmless no-op.
	Stop() bool
}

// Scheduler arms cancelable deferred actions. The hub uses it for ring
// timeouts; tests substitute a manual implementation to fast-forward time.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) TimerHandle
}

type wallScheduler struct{}

// NewScheduler returns a Scheduler backed by the wall clock.
func NewScheduler() Scheduler {
	return wallScheduler{}
}

func (wallScheduler) AfterFunc(d time.Duration, fn func()) TimerHandle {
	return time.AfterFunc(d, fn)
}
