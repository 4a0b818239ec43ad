// Package generation defines the contract with the external text generator
// that writes recipient replies and scores member messages, plus adapters.
//
// The generator is treated as slow, fallible and untrusted: every Reply is run
// through Sanitize before any of it reaches the reputation ledger.
package generation

import (
	"context"
	"errors"
	"strings"

	"go-party/internal/history"
)

const (
	// MinScore and MaxScore bound the per-message score a reply may carry.
	MinScore = -5
	MaxScore = 5
)

var (
	// ErrEmptyBatch indicates Respond was called without messages.
	ErrEmptyBatch = errors.New("batch has no messages")
	// ErrMalformedOutput indicates the generator answered with nothing usable.
	ErrMalformedOutput = errors.New("generator output is malformed")
)

// Message is one member line inside a batch, in arrival order.
type Message struct {
	SenderID   string `json:"sender_id"`
	SenderName string `json:"sender_name"`
	Text       string `json:"text"`
	Reputation int    `json:"reputation"`
}

type Request struct {
	RecipientName string
	Persona       Persona
	Messages      []Message
	History       []history.Entry
}

// Reply is a single shared answer plus one score per sender id.
type Reply struct {
	Text   string
	Scores map[string]int
}

type ProposalRequest struct {
	RecipientName string
	Persona       Persona
	ProposerName  string
	Reputation    int
	Text          string
	History       []history.Entry
}

type Verdict struct {
	Accepted bool
	Text     string
}

// Service produces replies and proposal verdicts.
type Service interface {
	Respond(ctx context.Context, req Request) (Reply, error)
	EvaluateProposal(ctx context.Context, req ProposalRequest) (Verdict, error)
}

// ClampScore bounds a raw score to [MinScore, MaxScore].
func ClampScore(v int) int {
	if v < MinScore {
		return MinScore
	}
	if v > MaxScore {
		return MaxScore
	}
	return v
}

// Sanitize restricts a reply to the senders of req: unknown ids are dropped,
// missing senders score 0 and every score is clamped. An empty text is
// replaced with a persona fallback line.
func Sanitize(req Request, r Reply) Reply {
	out := Reply{
		Text:   strings.TrimSpace(r.Text),
		Scores: make(map[string]int, len(req.Messages)),
	}
	for _, m := range req.Messages {
		out.Scores[m.SenderID] = ClampScore(r.Scores[m.SenderID])
	}
	if out.Text == "" {
		out.Text = FallbackLine(req.Persona)
	}
	return out
}

// SanitizeVerdict fills in a default line when the verdict carries no text.
func SanitizeVerdict(v Verdict) Verdict {
	v.Text = strings.TrimSpace(v.Text)
	if v.Text != "" {
		return v
	}
	if v.Accepted {
		v.Text = "Yes! Let's get out of here."
	} else {
		v.Text = "Sorry, I don't think so."
	}
	return v
}
