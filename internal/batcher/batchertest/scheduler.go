// Package batchertest provides a manually driven scheduler for tests.
package batchertest

import (
	"sync"
	"time"

	"go-party/internal/batcher"
)

// Epoch is the instant a new Scheduler starts at.
var Epoch = time.Date(2026, 1, 1, 21, 0, 0, 0, time.UTC)

// Scheduler only moves when Advance is called. Due callbacks run on the
// goroutine calling Advance, in deadline order.
type Scheduler struct {
	mu      sync.Mutex
	elapsed time.Duration
	seq     int
	timers  []*timer
}

type timer struct {
	s       *Scheduler
	at      time.Duration
	seq     int
	f       func()
	stopped bool
	fired   bool
}

func New() *Scheduler {
	return &Scheduler{}
}

func (s *Scheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Epoch.Add(s.elapsed)
}

func (s *Scheduler) AfterFunc(d time.Duration, f func()) batcher.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	t := &timer{s: s, at: s.elapsed + d, seq: s.seq, f: f}
	s.timers = append(s.timers, t)
	return t
}

func (t *timer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves time forward by d, running every callback that comes due,
// including ones scheduled by earlier callbacks within the same span.
func (s *Scheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.elapsed + d
	s.mu.Unlock()

	for {
		s.mu.Lock()
		var next *timer
		for _, t := range s.timers {
			if t.fired || t.stopped || t.at > target {
				continue
			}
			if next == nil || t.at < next.at || (t.at == next.at && t.seq < next.seq) {
				next = t
			}
		}
		if next == nil {
			s.elapsed = target
			s.mu.Unlock()
			return
		}
		next.fired = true
		if next.at > s.elapsed {
			s.elapsed = next.at
		}
		s.mu.Unlock()
		next.f()
	}
}

// Pending counts armed callbacks that have neither fired nor been stopped.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.timers {
		if !t.fired && !t.stopped {
			n++
		}
	}
	return n
}
