// Package history keeps a short transcript per (room, recipient) that is fed
// back to the generator as context. It never drives game state.
package history

import "sync"

// DefaultCap is how many entries are retained per recipient.
const DefaultCap = 10

// Role tells who spoke an entry.
type Role string

const (
	FromMember    Role = "member"
	FromRecipient Role = "recipient"
)

type Entry struct {
	Role    Role   `json:"role"`
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

type key struct {
	room      string
	recipient string
}

// Store is safe for concurrent use.
type Store struct {
	cap int

	mu      sync.Mutex
	entries map[key][]Entry
}

func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCap
	}
	return &Store{
		cap:     capacity,
		entries: make(map[key][]Entry),
	}
}

// Append adds entries in order, evicting the oldest beyond the cap.
func (s *Store) Append(room, recipient string, entries ...Entry) {
	if len(entries) == 0 {
		return
	}
	k := key{room, recipient}

	s.mu.Lock()
	defer s.mu.Unlock()
	list := append(s.entries[k], entries...)
	if len(list) > s.cap {
		list = append([]Entry(nil), list[len(list)-s.cap:]...)
	}
	s.entries[k] = list
}

// Get returns a copy of the retained entries, oldest first.
func (s *Store) Get(room, recipient string) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.entries[key{room, recipient}]
	out := make([]Entry, len(list))
	copy(out, list)
	return out
}

// Purge drops every transcript of room.
func (s *Store) Purge(room string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.entries {
		if k.room == room {
			delete(s.entries, k)
		}
	}
}
