package chat

import (
	"encoding/json"
	"time"
)

// ---------------------------------------------
// 🗄️ Database & API Models
// ---------------------------------------------

// Message is one archived transcript line as served by the API.
type Message struct {
	ID            string    `json:"id"`
	RoomCode      string    `json:"room_code"`
	RecipientID   string    `json:"recipient_id"`
	SpeakerID     string    `json:"speaker_id"`
	SpeakerName   string    `json:"speaker_name"` // 🟢 Denormalized, guests have no user table
	Content       string    `json:"content"`
	FromRecipient bool      `json:"from_recipient"`
	CreatedAt     time.Time `json:"created_at"`
}

type Result struct {
	RoomCode      string    `json:"room_code"`
	WinnerID      string    `json:"winner_id"`
	WinnerName    string    `json:"winner_name"`
	RecipientID   string    `json:"recipient_id"`
	RecipientName string    `json:"recipient_name"`
	FinishedAt    time.Time `json:"finished_at"`
}

type TranscriptResponse struct {
	Messages []Message `json:"messages"`
	Result   *Result   `json:"result"`
}

// ---------------------------------------------
// ⚡ Internal Hub Models
// ---------------------------------------------

// Envelope is what travels over the relay: an encoded frame and the members
// it is addressed to. Every hub delivers it to whichever of them it holds.
type Envelope struct {
	To    []string        `json:"to"`
	Frame json.RawMessage `json:"frame"`
}
