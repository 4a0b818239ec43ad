package generation

import (
	"context"
	"math/rand/v2"
	"sync"
)

// Offline answers with canned persona lines and random scores. It needs no
// network access and is used when no generator endpoint is configured.
type Offline struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewOffline(seed uint64) *Offline {
	return &Offline{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (o *Offline) Respond(ctx context.Context, req Request) (Reply, error) {
	if err := ctx.Err(); err != nil {
		return Reply{}, err
	}
	if len(req.Messages) == 0 {
		return Reply{}, ErrEmptyBatch
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	scores := make(map[string]int, len(req.Messages))
	for _, m := range req.Messages {
		// slight positive bias, -1..+3
		scores[m.SenderID] = o.rng.IntN(5) - 1
	}
	return Reply{Text: FallbackLine(req.Persona), Scores: scores}, nil
}

func (o *Offline) EvaluateProposal(ctx context.Context, req ProposalRequest) (Verdict, error) {
	if err := ctx.Err(); err != nil {
		return Verdict{}, err
	}
	o.mu.Lock()
	accepted := o.rng.Float64() < 0.7
	o.mu.Unlock()

	if accepted {
		return Verdict{Accepted: true, Text: "You know what? Sure, let's do this."}, nil
	}
	return Verdict{Accepted: false, Text: "Hmm, I'm not feeling it. Sorry."}, nil
}
