package game

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"go-party/internal/batcher"
	"go-party/internal/generation"
	"go-party/internal/history"
	"go-party/internal/lobby"
	"go-party/internal/protocol"
)

const generationFailedText = "Something went wrong, please try again."

// flush turns one batch into one reply and one score per queued message.
// The room is re-checked after generation: results for a room that is gone
// or no longer Active are dropped.
func (e *Engine) flush(ctx context.Context, b batcher.Batch) {
	code, recipientID := b.Key.Room, b.Key.Recipient
	if room, ok := e.rooms.Get(code); !ok || room.State != lobby.Active {
		log.Printf("[game] %s: room no longer active, dropping %d message(s)", b.Key, len(b.Messages))
		return
	}

	req := generation.Request{
		RecipientName: b.Target.Name,
		Persona:       b.Target.Persona,
		Messages:      make([]generation.Message, len(b.Messages)),
		History:       e.history.Get(code, recipientID),
	}
	for i, m := range b.Messages {
		req.Messages[i] = generation.Message{
			SenderID:   m.SenderID,
			SenderName: m.SenderName,
			Text:       m.Text,
			Reputation: m.Reputation,
		}
	}

	gctx, cancel := context.WithTimeout(ctx, e.timeout)
	reply, err := e.gen.Respond(gctx, req)
	cancel()
	if err != nil {
		log.Printf("❌ [game] %s: generation failed: %v", b.Key, err)
		e.failBatch(b)
		return
	}
	reply = generation.Sanitize(req, reply)

	room, ok := e.rooms.Get(code)
	if !ok || room.State != lobby.Active {
		log.Printf("[game] %s: room closed during generation, dropping reply", b.Key)
		return
	}
	ledger, ok := e.ledger(code)
	if !ok {
		return
	}

	now := e.now()
	entries := make([]history.Entry, 0, len(b.Messages)+1)
	lines := make([]Line, 0, len(b.Messages)+1)
	replyTo := make([]string, 0, len(b.Messages))
	for _, m := range b.Messages {
		entries = append(entries, history.Entry{Role: history.FromMember, Speaker: m.SenderName, Text: m.Text})
		lines = append(lines, Line{
			ID: uuid.NewString(), RoomCode: code, RecipientID: recipientID,
			SpeakerID: m.SenderID, SpeakerName: m.SenderName, Text: m.Text, CreatedAt: m.SentAt,
		})
		replyTo = append(replyTo, m.SenderID)
	}
	entries = append(entries, history.Entry{Role: history.FromRecipient, Speaker: b.Target.Name, Text: reply.Text})
	replyID := uuid.NewString()
	lines = append(lines, Line{
		ID: replyID, RoomCode: code, RecipientID: recipientID,
		SpeakerID: recipientID, SpeakerName: b.Target.Name, Text: reply.Text, FromRecipient: true, CreatedAt: now,
	})
	e.history.Append(code, recipientID, entries...)

	e.broadcast(room, protocol.TypeReply, protocol.Reply{
		ID:            replyID,
		RecipientID:   recipientID,
		RecipientName: b.Target.Name,
		Text:          reply.Text,
		ReplyTo:       replyTo,
	})

	for _, m := range b.Messages {
		if _, still := room.Member(m.SenderID); !still {
			continue
		}
		delta := reply.Scores[m.SenderID]
		value, ok := ledger.ApplyIfPresent(m.SenderID, recipientID, delta)
		if !ok {
			// left after the snapshot
			continue
		}
		e.tell(m.SenderID, protocol.TypeReputationUpdate, protocol.ReputationUpdate{
			RecipientID: recipientID,
			Value:       value,
			Delta:       delta,
		})
	}

	e.saveLines(lines)
}

func (e *Engine) failBatch(b batcher.Batch) {
	seen := make(map[string]bool, len(b.Messages))
	for _, m := range b.Messages {
		if seen[m.SenderID] {
			continue
		}
		seen[m.SenderID] = true
		e.tell(m.SenderID, protocol.TypeGenerationFailed, protocol.GenerationFailed{
			RecipientID: b.Key.Recipient,
			Message:     generationFailedText,
		})
	}
}

func (e *Engine) saveLines(lines []Line) {
	e.spawn(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.archive.SaveLines(ctx, lines); err != nil {
			log.Printf("❌ [game] archive %d line(s): %v", len(lines), err)
		}
	})
}
