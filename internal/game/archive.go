package game

import (
	"context"
	"time"
)

// Line is one archived transcript line.
type Line struct {
	ID            string
	RoomCode      string
	RecipientID   string
	SpeakerID     string
	SpeakerName   string
	Text          string
	FromRecipient bool
	CreatedAt     time.Time
}

// Result is the archived outcome of a finished game.
type Result struct {
	RoomCode      string
	WinnerID      string
	WinnerName    string
	RecipientID   string
	RecipientName string
	FinishedAt    time.Time
}

// Archive persists transcripts. Writes happen off the commit path and their
// failures are only logged.
type Archive interface {
	SaveLines(ctx context.Context, lines []Line) error
	SaveResult(ctx context.Context, res Result) error
}

type nopArchive struct{}

func (nopArchive) SaveLines(context.Context, []Line) error { return nil }
func (nopArchive) SaveResult(context.Context, Result) error { return nil }
