// Package reputation keeps the private, bounded affinity score every member
// holds with every recipient of a room.
package reputation

import "sync"

const (
	// Min is the lowest value a score can reach.
	Min = -50
	// Max is the highest value a score can reach.
	Max = 100
	// Default is the score every (member, recipient) pair starts with.
	Default = 5
)

// Clamp bounds v to [Min, Max].
func Clamp(v int) int {
	if v < Min {
		return Min
	}
	if v > Max {
		return Max
	}
	return v
}

type pair struct {
	member    string
	recipient string
}

// cell serializes writes to a single (member, recipient) score.
type cell struct {
	mu    sync.Mutex
	value int
}

// Ledger owns every score of one room. Reads and writes to the same pair are
// linearized by the pair's own lock; different pairs never contend.
type Ledger struct {
	mu    sync.RWMutex
	cells map[pair]*cell
}

func NewLedger() *Ledger {
	return &Ledger{cells: make(map[pair]*cell)}
}

// Init seeds Default for every member/recipient combination, overwriting any
// previous value.
func (l *Ledger) Init(members, recipients []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range members {
		for _, r := range recipients {
			l.cells[pair{m, r}] = &cell{value: Default}
		}
	}
}

// Get returns the current score, or Default when the pair was never written.
func (l *Ledger) Get(member, recipient string) int {
	c := l.lookup(member, recipient, false)
	if c == nil {
		return Default
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Apply adds delta to the pair's score and returns the clamped result.
func (l *Ledger) Apply(member, recipient string, delta int) int {
	c := l.lookup(member, recipient, true)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = Clamp(c.value + delta)
	return c.value
}

// ApplyIfPresent is Apply for a pair that already has a score. It reports
// false, and creates nothing, once the pair was forgotten.
func (l *Ledger) ApplyIfPresent(member, recipient string, delta int) (int, bool) {
	c := l.lookup(member, recipient, false)
	if c == nil {
		return 0, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = Clamp(c.value + delta)
	return c.value, true
}

// Forget drops every score held by member.
func (l *Ledger) Forget(member string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for k := range l.cells {
		if k.member == member {
			delete(l.cells, k)
		}
	}
}

func (l *Ledger) lookup(member, recipient string, create bool) *cell {
	k := pair{member, recipient}
	l.mu.RLock()
	c, ok := l.cells[k]
	l.mu.RUnlock()
	if ok || !create {
		return c
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if c, ok := l.cells[k]; ok {
		return c
	}
	c = &cell{value: Default}
	l.cells[k] = c
	return c
}
