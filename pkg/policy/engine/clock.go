package engine

import "time"

// Clock abstracts time for the engine so grant expiry can be tested
// with a fake clock instead of wall-clock waits.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// AfterFunc schedules f to run in its own goroutine after d elapses
	// and returns a Timer that can cancel the call.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a scheduled call that can be cancelled. Stop reports whether
// the call was cancelled before it started; a false return does not
// guarantee the call already ran, so callers must pair Stop with the
// engine's generation check.
type Timer interface {
	Stop() bool
}

// realClock implements Clock on top of the time package.
type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return realTimer{time.AfterFunc(d, f)}
}

type realTimer struct{ t *time.Timer }

func (rt realTimer) Stop() bool { return rt.t.Stop() }

// RealClock returns a Clock backed by the time package. This is the
// default when no clock is injected.
func RealClock() Clock { return realClock{} }
