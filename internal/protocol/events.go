package protocol

import (
	"encoding/json"
	"time"

	"go-party/internal/lobby"
)

const (
	TypeSession          = "session"
	TypeRoomState        = "room-state"
	TypeMemberJoined     = "member-joined"
	TypeMemberLeft       = "member-left"
	TypeGameStarted      = "game-started"
	TypeMessageSent      = "message-sent"
	TypeTypingIndicator  = "typing-indicator"
	TypeReply            = "reply"
	TypeReputationUpdate = "reputation-update"
	TypeProposalSent     = "proposal-sent"
	TypeProposalResult   = "proposal-result"
	TypeGameWon          = "game-won"
	TypeGenerationFailed = "generation-failed"
	TypeError            = "error"
)

// Error codes carried by TypeError frames.
const (
	CodeNotInRoom              = "NOT_IN_ROOM"
	CodeAlreadyInRoom          = "ALREADY_IN_ROOM"
	CodeRoomNotFound           = "ROOM_NOT_FOUND"
	CodeRoomFull               = "ROOM_FULL"
	CodeNameTaken              = "NAME_TAKEN"
	CodeRoomNotWaiting         = "ROOM_NOT_WAITING"
	CodeNotHost                = "NOT_HOST"
	CodeNotEnoughPlayers       = "NOT_ENOUGH_PLAYERS"
	CodeRoomNotActive          = "ROOM_NOT_ACTIVE"
	CodeUnknownRecipient       = "UNKNOWN_RECIPIENT"
	CodeCooldown               = "COOLDOWN"
	CodeInsufficientReputation = "INSUFFICIENT_REPUTATION"
	CodeInvalidArgument        = "INVALID_ARGUMENT"
	CodeUnavailable            = "UNAVAILABLE"
)

// Event is an outbound message before encoding.
type Event struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`
	Payload   any    `json:"payload"`
}

func NewEvent(typ string, payload any) Event {
	return Event{Type: typ, Payload: payload}
}

// Encode renders ev as a frame.
func Encode(ev Event) ([]byte, error) {
	if ev.Payload == nil {
		ev.Payload = struct{}{}
	}
	return json.Marshal(ev)
}

type Session struct {
	MemberID string `json:"member_id"`
	Name     string `json:"name"`
}

type PublicMember struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	IsHost bool   `json:"is_host"`
}

// PublicRecipient is a recipient as clients see it, without its persona.
type PublicRecipient struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
}

type RoomState struct {
	Code       string            `json:"code"`
	State      string            `json:"state"`
	HostID     string            `json:"host_id"`
	Members    []PublicMember    `json:"members"`
	Recipients []PublicRecipient `json:"recipients"`
}

type MemberJoined struct {
	Member PublicMember `json:"member"`
}

type MemberLeft struct {
	MemberID  string `json:"member_id"`
	Name      string `json:"name"`
	NewHostID string `json:"new_host_id,omitempty"`
}

type GameStarted struct {
	Recipients []PublicRecipient `json:"recipients"`
}

type MessageSent struct {
	ID          string `json:"id"`
	SenderID    string `json:"sender_id"`
	SenderName  string `json:"sender_name"`
	RecipientID string `json:"recipient_id"`
	Text        string `json:"text"`
	SentAt      int64  `json:"sent_at"`
}

type TypingIndicator struct {
	RecipientID string `json:"recipient_id"`
}

// Reply is the single answer to a batch. ReplyTo lists the senders of the
// batch in arrival order.
type Reply struct {
	ID            string   `json:"id"`
	RecipientID   string   `json:"recipient_id"`
	RecipientName string   `json:"recipient_name"`
	Text          string   `json:"text"`
	ReplyTo       []string `json:"reply_to"`
}

// ReputationUpdate is only ever sent to the member it concerns.
type ReputationUpdate struct {
	RecipientID string `json:"recipient_id"`
	Value       int    `json:"value"`
	Delta       int    `json:"delta"`
}

type ProposalSent struct {
	ProposerID   string `json:"proposer_id"`
	ProposerName string `json:"proposer_name"`
	RecipientID  string `json:"recipient_id"`
	Text         string `json:"text"`
}

type ProposalResult struct {
	RecipientID  string `json:"recipient_id"`
	Accepted     bool   `json:"accepted"`
	Reply        string `json:"reply"`
	ProposerID   string `json:"proposer_id"`
	ProposerName string `json:"proposer_name"`
}

type GameWon struct {
	WinnerID      string `json:"winner_id"`
	WinnerName    string `json:"winner_name"`
	RecipientID   string `json:"recipient_id"`
	RecipientName string `json:"recipient_name"`
	AvatarURL     string `json:"avatar_url"`
}

type GenerationFailed struct {
	RecipientID string `json:"recipient_id"`
	Message     string `json:"message"`
}

type Error struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	RetryAfterMs int64  `json:"retry_after_ms,omitempty"`
}

// ErrorEvent builds an error frame; retryAfter is only set for cooldowns.
func ErrorEvent(requestID, code, message string, retryAfter time.Duration) Event {
	return Event{
		Type:      TypeError,
		RequestID: requestID,
		Payload:   Error{Code: code, Message: message, RetryAfterMs: retryAfter.Milliseconds()},
	}
}

func PublicRecipients(rs []lobby.Recipient) []PublicRecipient {
	out := make([]PublicRecipient, len(rs))
	for i, r := range rs {
		out[i] = PublicRecipient{ID: r.ID, Name: r.Name, AvatarURL: r.AvatarURL}
	}
	return out
}

func PublicMemberOf(m lobby.Member) PublicMember {
	return PublicMember{ID: m.ID, Name: m.Name, IsHost: m.Host}
}

// PublicRoom is the room view every member may see.
func PublicRoom(r lobby.Room) RoomState {
	members := make([]PublicMember, len(r.Members))
	for i, m := range r.Members {
		members[i] = PublicMemberOf(m)
	}
	return RoomState{
		Code:       r.Code,
		State:      string(r.State),
		HostID:     r.HostID,
		Members:    members,
		Recipients: PublicRecipients(r.Recipients),
	}
}
