// Package lobby keeps rooms, their members and their recipients.
//
// Every method returns Room values copied out under the directory lock, so
// callers can read them freely while the directory keeps mutating.
package lobby

import (
	"errors"

	"go-party/internal/generation"
)

const (
	MinMembers     = 2
	MaxMembers     = 6
	RecipientCount = 6
	CodeLength     = 6
	MaxNameRunes   = 24

	// codeAlphabet leaves out 0, O, 1 and I.
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

var (
	ErrRoomNotFound     = errors.New("room not found")
	ErrAlreadyInRoom    = errors.New("already in a room")
	ErrNotInRoom        = errors.New("not in a room")
	ErrRoomFull         = errors.New("room is full")
	ErrNameTaken        = errors.New("name already taken in this room")
	ErrInvalidName      = errors.New("name must be 1-24 characters")
	ErrRoomNotWaiting   = errors.New("game already started")
	ErrNotHost          = errors.New("only the host can start the game")
	ErrNotEnoughMembers = errors.New("need at least 2 players to start")
	ErrRoomNotActive    = errors.New("game not in progress")
)

type State string

const (
	Waiting  State = "waiting"
	Active   State = "active"
	Finished State = "finished"
)

type Member struct {
	ID   string
	Name string
	Host bool
}

// Recipient is an NPC. Persona must never leave the server.
type Recipient struct {
	ID        string
	Name      string
	Persona   generation.Persona
	AvatarURL string
}

type Room struct {
	Code       string
	Members    []Member
	Recipients []Recipient
	State      State
	HostID     string
	WinnerID   string
}

func (r Room) MemberIDs() []string {
	ids := make([]string, len(r.Members))
	for i, m := range r.Members {
		ids[i] = m.ID
	}
	return ids
}

func (r Room) RecipientIDs() []string {
	ids := make([]string, len(r.Recipients))
	for i, rc := range r.Recipients {
		ids[i] = rc.ID
	}
	return ids
}

func (r Room) Member(id string) (Member, bool) {
	for _, m := range r.Members {
		if m.ID == id {
			return m, true
		}
	}
	return Member{}, false
}

func (r Room) Recipient(id string) (Recipient, bool) {
	for _, rc := range r.Recipients {
		if rc.ID == id {
			return rc, true
		}
	}
	return Recipient{}, false
}

func (r Room) clone() Room {
	out := r
	out.Members = append([]Member(nil), r.Members...)
	out.Recipients = append([]Recipient(nil), r.Recipients...)
	return out
}
