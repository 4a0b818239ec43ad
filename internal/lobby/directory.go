package lobby

import (
	"fmt"
	"math/rand/v2"
	"net/url"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/text/cases"

	"go-party/internal/generation"
)

var recipientNames = []string{
	"Amber", "Bella", "Chloe", "Diana", "Eva", "Fiona",
	"Grace", "Hazel", "Ivy", "Jade", "Kate", "Luna",
	"Mia", "Nina", "Olivia", "Paige", "Quinn", "Rose",
	"Sophia", "Tara", "Uma", "Violet", "Willow", "Zoe",
}

// LeaveResult describes what a departure did to its room.
type LeaveResult struct {
	Room      Room
	Member    Member
	WasHost   bool
	NewHostID string
	Deleted   bool
}

// Directory is the in-memory room registry.
type Directory struct {
	mu         sync.Mutex
	rng        *rand.Rand
	rooms      map[string]*Room
	memberRoom map[string]string
}

func NewDirectory(seed uint64) *Directory {
	return &Directory{
		rng:        rand.New(rand.NewPCG(seed, seed>>1|1)),
		rooms:      make(map[string]*Room),
		memberRoom: make(map[string]string),
	}
}

func normalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > MaxNameRunes {
		return "", ErrInvalidName
	}
	return name, nil
}

// NormalizeCode upper-cases and trims a user supplied room code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// newCode must be called with d.mu held.
func (d *Directory) newCode() string {
	buf := make([]byte, CodeLength)
	for {
		for i := range buf {
			buf[i] = codeAlphabet[d.rng.IntN(len(codeAlphabet))]
		}
		if _, taken := d.rooms[string(buf)]; !taken {
			return string(buf)
		}
	}
}

// Create opens a Waiting room hosted by the caller.
func (d *Directory) Create(memberID, name string) (Room, error) {
	name, err := normalizeName(name)
	if err != nil {
		return Room{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.memberRoom[memberID]; ok {
		return Room{}, ErrAlreadyInRoom
	}

	room := &Room{
		Code:    d.newCode(),
		Members: []Member{{ID: memberID, Name: name, Host: true}},
		State:   Waiting,
		HostID:  memberID,
	}
	d.rooms[room.Code] = room
	d.memberRoom[memberID] = room.Code
	return room.clone(), nil
}

// Join adds the caller to a Waiting room. Names are compared with Unicode
// case folding.
func (d *Directory) Join(code, memberID, name string) (Room, error) {
	name, err := normalizeName(name)
	if err != nil {
		return Room{}, err
	}
	code = NormalizeCode(code)

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.memberRoom[memberID]; ok {
		return Room{}, ErrAlreadyInRoom
	}
	room, ok := d.rooms[code]
	if !ok {
		return Room{}, ErrRoomNotFound
	}
	if room.State != Waiting {
		return Room{}, ErrRoomNotWaiting
	}
	if len(room.Members) >= MaxMembers {
		return Room{}, ErrRoomFull
	}
	fold := cases.Fold()
	folded := fold.String(name)
	for _, m := range room.Members {
		if fold.String(m.Name) == folded {
			return Room{}, ErrNameTaken
		}
	}

	room.Members = append(room.Members, Member{ID: memberID, Name: name})
	d.memberRoom[memberID] = code
	return room.clone(), nil
}

// Leave removes the member from its room. The first remaining member becomes
// host if the host left; an empty room is deleted. ok is false when the
// member was in no room.
func (d *Directory) Leave(memberID string) (LeaveResult, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	code, ok := d.memberRoom[memberID]
	if !ok {
		return LeaveResult{}, false
	}
	delete(d.memberRoom, memberID)
	room, ok := d.rooms[code]
	if !ok {
		return LeaveResult{}, false
	}

	res := LeaveResult{WasHost: room.HostID == memberID}
	kept := room.Members[:0]
	for _, m := range room.Members {
		if m.ID == memberID {
			res.Member = m
			continue
		}
		kept = append(kept, m)
	}
	room.Members = kept

	if len(room.Members) == 0 {
		delete(d.rooms, code)
		res.Deleted = true
		res.Room = room.clone()
		return res, true
	}
	if res.WasHost {
		room.Members[0].Host = true
		room.HostID = room.Members[0].ID
		res.NewHostID = room.HostID
	}
	res.Room = room.clone()
	return res, true
}

// Start moves the caller's room to Active and deals its recipients.
func (d *Directory) Start(memberID string) (Room, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	code, ok := d.memberRoom[memberID]
	if !ok {
		return Room{}, ErrNotInRoom
	}
	room := d.rooms[code]
	if room.HostID != memberID {
		return Room{}, ErrNotHost
	}
	if room.State != Waiting {
		return Room{}, ErrRoomNotWaiting
	}
	if len(room.Members) < MinMembers {
		return Room{}, ErrNotEnoughMembers
	}

	room.Recipients = d.dealRecipients()
	room.State = Active
	return room.clone(), nil
}

// dealRecipients must be called with d.mu held.
func (d *Directory) dealRecipients() []Recipient {
	names := append([]string(nil), recipientNames...)
	d.rng.Shuffle(len(names), func(i, j int) { names[i], names[j] = names[j], names[i] })
	personas := generation.Personas()
	d.rng.Shuffle(len(personas), func(i, j int) { personas[i], personas[j] = personas[j], personas[i] })

	out := make([]Recipient, RecipientCount)
	for i := range out {
		out[i] = Recipient{
			ID:        fmt.Sprintf("npc-%d", i+1),
			Name:      names[i],
			Persona:   personas[i%len(personas)],
			AvatarURL: "https://api.dicebear.com/7.x/lorelei/svg?seed=" + url.QueryEscape(names[i]),
		}
	}
	return out
}

// Finish moves an Active room to Finished with winnerID. Only the first call
// for a room succeeds; later ones get ErrRoomNotActive.
func (d *Directory) Finish(code, winnerID string) (Room, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	room, ok := d.rooms[code]
	if !ok {
		return Room{}, ErrRoomNotFound
	}
	if room.State != Active {
		return Room{}, ErrRoomNotActive
	}
	room.State = Finished
	room.WinnerID = winnerID
	return room.clone(), nil
}

func (d *Directory) Get(code string) (Room, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	room, ok := d.rooms[NormalizeCode(code)]
	if !ok {
		return Room{}, false
	}
	return room.clone(), true
}

// RoomOf returns the room the member is in.
func (d *Directory) RoomOf(memberID string) (Room, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	code, ok := d.memberRoom[memberID]
	if !ok {
		return Room{}, false
	}
	room, ok := d.rooms[code]
	if !ok {
		return Room{}, false
	}
	return room.clone(), true
}

func (d *Directory) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.rooms)
}
