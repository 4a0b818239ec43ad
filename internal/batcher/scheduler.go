package batcher

import "time"

// Timer is a pending scheduled call.
type Timer interface {
	// Stop prevents the call from running. It reports false if the call has
	// already started or been stopped.
	Stop() bool
}

// Scheduler runs f once after d has elapsed, on its own goroutine.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// WallClock schedules on real time.
type WallClock struct{}

func (WallClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
