package game

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"go-party/internal/generation"
	"go-party/internal/history"
	"go-party/internal/lobby"
	"go-party/internal/protocol"
)

const lostRaceText = "Sorry, I'm already leaving with someone else."

// Propose starts a proposal to recipientID. The verdict is evaluated in the
// background; only one accepted proposal per room can end the game.
func (e *Engine) Propose(memberID, recipientID, text string) error {
	text, err := protocol.NormalizeText(text)
	if err != nil {
		return errorf(ErrInvalidText, err)
	}
	room, rc, l, err := e.activeTarget(memberID, recipientID)
	if err != nil {
		return err
	}
	score := l.Get(memberID, rc.ID)
	if score < WinThreshold {
		return ErrInsufficientReputation
	}

	proposer, _ := room.Member(memberID)
	e.broadcast(room, protocol.TypeProposalSent, protocol.ProposalSent{
		ProposerID:   memberID,
		ProposerName: proposer.Name,
		RecipientID:  rc.ID,
		Text:         text,
	})

	req := generation.ProposalRequest{
		RecipientName: rc.Name,
		Persona:       rc.Persona,
		ProposerName:  proposer.Name,
		Reputation:    score,
		Text:          text,
		History:       e.history.Get(room.Code, rc.ID),
	}
	e.spawn(func() { e.resolveProposal(room.Code, proposer, rc, req) })
	return nil
}

func (e *Engine) resolveProposal(code string, proposer lobby.Member, rc lobby.Recipient, req generation.ProposalRequest) {
	ctx, cancel := context.WithTimeout(e.ctx, e.timeout)
	verdict, err := e.gen.EvaluateProposal(ctx, req)
	cancel()
	if err != nil {
		log.Printf("❌ [game] %s: proposal from %s failed: %v", code, proposer.ID, err)
		e.tell(proposer.ID, protocol.TypeGenerationFailed, protocol.GenerationFailed{
			RecipientID: rc.ID,
			Message:     generationFailedText,
		})
		return
	}
	verdict = generation.SanitizeVerdict(verdict)

	room, ok := e.rooms.Get(code)
	if !ok {
		return
	}
	if _, still := room.Member(proposer.ID); !still {
		return
	}
	result := protocol.ProposalResult{
		RecipientID:  rc.ID,
		Accepted:     verdict.Accepted,
		Reply:        verdict.Text,
		ProposerID:   proposer.ID,
		ProposerName: proposer.Name,
	}

	if verdict.Accepted {
		won, err := e.rooms.Finish(code, proposer.ID)
		if err != nil {
			result.Accepted = false
			result.Reply = lostRaceText
			e.tell(proposer.ID, protocol.TypeProposalResult, result)
			return
		}
		e.dispatch.Discard(code)
		e.recordProposal(code, proposer, rc, req.Text, verdict.Text)
		log.Printf("✅ Room %s won by %s with %s", code, proposer.Name, rc.Name)

		e.broadcast(won, protocol.TypeProposalResult, result)
		e.broadcast(won, protocol.TypeGameWon, protocol.GameWon{
			WinnerID:      proposer.ID,
			WinnerName:    proposer.Name,
			RecipientID:   rc.ID,
			RecipientName: rc.Name,
			AvatarURL:     rc.AvatarURL,
		})
		e.saveResult(Result{
			RoomCode:      code,
			WinnerID:      proposer.ID,
			WinnerName:    proposer.Name,
			RecipientID:   rc.ID,
			RecipientName: rc.Name,
			FinishedAt:    e.now(),
		})
		return
	}

	if room.State != lobby.Active {
		return
	}
	l, ok := e.ledger(code)
	if !ok {
		return
	}
	e.recordProposal(code, proposer, rc, req.Text, verdict.Text)
	e.broadcast(room, protocol.TypeProposalResult, result)
	value, ok := l.ApplyIfPresent(proposer.ID, rc.ID, RejectionPenalty)
	if !ok {
		return
	}
	e.tell(proposer.ID, protocol.TypeReputationUpdate, protocol.ReputationUpdate{
		RecipientID: rc.ID,
		Value:       value,
		Delta:       RejectionPenalty,
	})
}

func (e *Engine) recordProposal(code string, proposer lobby.Member, rc lobby.Recipient, text, answer string) {
	e.history.Append(code, rc.ID,
		history.Entry{Role: history.FromMember, Speaker: proposer.Name, Text: text},
		history.Entry{Role: history.FromRecipient, Speaker: rc.Name, Text: answer},
	)
	now := e.now()
	e.saveLines([]Line{
		{ID: uuid.NewString(), RoomCode: code, RecipientID: rc.ID, SpeakerID: proposer.ID, SpeakerName: proposer.Name, Text: text, CreatedAt: now},
		{ID: uuid.NewString(), RoomCode: code, RecipientID: rc.ID, SpeakerID: rc.ID, SpeakerName: rc.Name, Text: answer, FromRecipient: true, CreatedAt: now},
	})
}

func (e *Engine) saveResult(res Result) {
	e.spawn(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.archive.SaveResult(ctx, res); err != nil {
			log.Printf("❌ [game] archive result for %s: %v", res.RoomCode, err)
		}
	})
}
