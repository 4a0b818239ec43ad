// Package cooldown throttles how often a member may submit a message.
package cooldown

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// DefaultWindow is the minimum interval between two accepted submissions.
const DefaultWindow = 5 * time.Second

// RejectedError reports a submission refused by the gate. Remaining is the
// exact wait the gate computed and is meant to be surfaced as-is.
type RejectedError struct {
	Remaining time.Duration
}

func (e *RejectedError) Error() string {
	secs := int(math.Ceil(e.Remaining.Seconds()))
	return fmt.Sprintf("wait %ds before sending another message", secs)
}

// Gate records the last accepted submission per member.
type Gate struct {
	window time.Duration

	mu   sync.Mutex
	last map[string]time.Time
}

func NewGate(window time.Duration) *Gate {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Gate{
		window: window,
		last:   make(map[string]time.Time),
	}
}

// Window returns the configured interval.
func (g *Gate) Window() time.Duration {
	return g.window
}

// TryAccept accepts iff at least the window has elapsed since the member's
// last accepted submission. Acceptance records now immediately, so a message
// still waiting on generation keeps blocking the member.
func (g *Gate) TryAccept(memberID string, now time.Time) (bool, time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if last, ok := g.last[memberID]; ok {
		elapsed := now.Sub(last)
		if elapsed < g.window {
			return false, g.window - elapsed
		}
	}
	g.last[memberID] = now
	return true, 0
}

// Check is TryAccept returning a *RejectedError on refusal.
func (g *Gate) Check(memberID string, now time.Time) error {
	if ok, remaining := g.TryAccept(memberID, now); !ok {
		return &RejectedError{Remaining: remaining}
	}
	return nil
}

// Forget drops the member's record.
func (g *Gate) Forget(memberID string) {
	g.mu.Lock()
	delete(g.last, memberID)
	g.mu.Unlock()
}
