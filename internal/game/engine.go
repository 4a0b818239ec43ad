// Package game is the session registry: it owns every room's reputation
// ledger, the cooldown gate, conversation history and the dispatcher, and
// turns member actions into events.
package game

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"go-party/internal/batcher"
	"go-party/internal/cooldown"
	"go-party/internal/generation"
	"go-party/internal/history"
	"go-party/internal/lobby"
	"go-party/internal/protocol"
	"go-party/internal/reputation"
)

const (
	// WinThreshold is the reputation a member needs to propose.
	WinThreshold = 100
	// RejectionPenalty is applied when a proposal is turned down.
	RejectionPenalty = -10

	DefaultGenerationTimeout = 20 * time.Second
)

var (
	ErrUnknownRecipient       = errors.New("unknown recipient")
	ErrInsufficientReputation = errors.New("reputation too low to propose")
	ErrInvalidText            = errors.New("invalid text")
)

// Broadcaster delivers events to connected members.
type Broadcaster interface {
	Send(memberIDs []string, ev protocol.Event)
}

type Config struct {
	Window            time.Duration
	Cooldown          time.Duration
	GenerationTimeout time.Duration
	Strategy          string
	HistoryCap        int
	// Scheduler drives batch windows; nil means wall clock.
	Scheduler batcher.Scheduler
	// Now is the cooldown clock; nil means time.Now.
	Now  func() time.Time
	Seed uint64
}

type Engine struct {
	rooms   *lobby.Directory
	gate    *cooldown.Gate
	history *history.Store
	gen     generation.Service
	out     Broadcaster
	archive Archive

	dispatch batcher.Dispatcher
	now      func() time.Time
	timeout  time.Duration

	ctx      context.Context
	cancel   context.CancelFunc
	spawnMu  sync.Mutex
	draining bool
	inflight sync.WaitGroup

	mu      sync.Mutex
	ledgers map[string]*reputation.Ledger
}

// New builds an engine. archive may be nil.
func New(cfg Config, gen generation.Service, out Broadcaster, archive Archive) *Engine {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.GenerationTimeout <= 0 {
		cfg.GenerationTimeout = DefaultGenerationTimeout
	}
	if archive == nil {
		archive = nopArchive{}
	}
	if cfg.Seed == 0 {
		cfg.Seed = uint64(time.Now().UnixNano())
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		rooms:   lobby.NewDirectory(cfg.Seed),
		gate:    cooldown.NewGate(cfg.Cooldown),
		history: history.NewStore(cfg.HistoryCap),
		gen:     gen,
		out:     out,
		archive: archive,
		now:     cfg.Now,
		timeout: cfg.GenerationTimeout,
		ctx:     ctx,
		cancel:  cancel,
		ledgers: make(map[string]*reputation.Ledger),
	}
	e.dispatch = batcher.NewDispatcher(cfg.Strategy, batcher.Options{
		Window:    cfg.Window,
		Scheduler: cfg.Scheduler,
		Flush:     e.flush,
		OnOpen:    e.typing,
		Context:   ctx,
	})
	return e
}

// Rooms exposes the room directory for read-only lookups.
func (e *Engine) Rooms() *lobby.Directory {
	return e.rooms
}

// RoomOf returns the member's current room.
func (e *Engine) RoomOf(memberID string) (lobby.Room, bool) {
	return e.rooms.RoomOf(memberID)
}

// Reputation returns the member's current score with recipient.
func (e *Engine) Reputation(code, memberID, recipientID string) (int, bool) {
	l, ok := e.ledger(code)
	if !ok {
		return 0, false
	}
	return l.Get(memberID, recipientID), true
}

func (e *Engine) ledger(code string) (*reputation.Ledger, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.ledgers[code]
	return l, ok
}

func (e *Engine) broadcast(room lobby.Room, typ string, payload any) {
	e.out.Send(room.MemberIDs(), protocol.NewEvent(typ, payload))
}

func (e *Engine) tell(memberID, typ string, payload any) {
	e.out.Send([]string{memberID}, protocol.NewEvent(typ, payload))
}

func (e *Engine) CreateRoom(memberID, name string) (lobby.Room, error) {
	room, err := e.rooms.Create(memberID, name)
	if err != nil {
		return lobby.Room{}, err
	}
	log.Printf("✅ Room %s created by %s", room.Code, memberID)
	e.broadcast(room, protocol.TypeRoomState, protocol.PublicRoom(room))
	return room, nil
}

func (e *Engine) JoinRoom(memberID, name, code string) (lobby.Room, error) {
	room, err := e.rooms.Join(code, memberID, name)
	if err != nil {
		return lobby.Room{}, err
	}
	joined, _ := room.Member(memberID)
	others := make([]string, 0, len(room.Members)-1)
	for _, m := range room.Members {
		if m.ID != memberID {
			others = append(others, m.ID)
		}
	}
	e.out.Send(others, protocol.NewEvent(protocol.TypeMemberJoined, protocol.MemberJoined{Member: protocol.PublicMemberOf(joined)}))
	e.tell(memberID, protocol.TypeRoomState, protocol.PublicRoom(room))
	return room, nil
}

// LeaveRoom removes the member from its room, dropping its cooldown and
// scores. The last member out tears the room down.
func (e *Engine) LeaveRoom(memberID string) error {
	res, ok := e.rooms.Leave(memberID)
	if !ok {
		return lobby.ErrNotInRoom
	}
	e.gate.Forget(memberID)
	if l, ok := e.ledger(res.Room.Code); ok {
		l.Forget(memberID)
	}

	if res.Deleted {
		e.teardown(res.Room.Code)
		return nil
	}
	e.broadcast(res.Room, protocol.TypeMemberLeft, protocol.MemberLeft{
		MemberID:  memberID,
		Name:      res.Member.Name,
		NewHostID: res.NewHostID,
	})
	e.broadcast(res.Room, protocol.TypeRoomState, protocol.PublicRoom(res.Room))
	return nil
}

// Disconnect is LeaveRoom for a dropped connection.
func (e *Engine) Disconnect(memberID string) {
	if err := e.LeaveRoom(memberID); err != nil && !errors.Is(err, lobby.ErrNotInRoom) {
		log.Printf("❌ Disconnect %s: %v", memberID, err)
	}
	e.gate.Forget(memberID)
}

func (e *Engine) teardown(code string) {
	e.dispatch.Discard(code)
	e.history.Purge(code)
	e.mu.Lock()
	delete(e.ledgers, code)
	e.mu.Unlock()
	log.Printf("Room %s closed", code)
}

// StartGame deals the recipients and seeds every score at the default.
func (e *Engine) StartGame(memberID string) (lobby.Room, error) {
	room, err := e.rooms.Start(memberID)
	if err != nil {
		return lobby.Room{}, err
	}
	l := reputation.NewLedger()
	l.Init(room.MemberIDs(), room.RecipientIDs())
	e.mu.Lock()
	e.ledgers[room.Code] = l
	e.mu.Unlock()

	log.Printf("✅ Room %s started with %d members", room.Code, len(room.Members))
	e.broadcast(room, protocol.TypeGameStarted, protocol.GameStarted{Recipients: protocol.PublicRecipients(room.Recipients)})
	e.broadcast(room, protocol.TypeRoomState, protocol.PublicRoom(room))
	return room, nil
}

// activeTarget resolves the caller's Active room, the recipient and the
// room's ledger.
func (e *Engine) activeTarget(memberID, recipientID string) (lobby.Room, lobby.Recipient, *reputation.Ledger, error) {
	room, ok := e.rooms.RoomOf(memberID)
	if !ok {
		return lobby.Room{}, lobby.Recipient{}, nil, lobby.ErrNotInRoom
	}
	if room.State != lobby.Active {
		return lobby.Room{}, lobby.Recipient{}, nil, lobby.ErrRoomNotActive
	}
	rc, ok := room.Recipient(recipientID)
	if !ok {
		return lobby.Room{}, lobby.Recipient{}, nil, ErrUnknownRecipient
	}
	l, ok := e.ledger(room.Code)
	if !ok {
		return lobby.Room{}, lobby.Recipient{}, nil, lobby.ErrRoomNotActive
	}
	return room, rc, l, nil
}

// SendMessage validates a chat line, charges the cooldown, shows the line to
// the room and queues it for the recipient. A refused cooldown comes back as
// *cooldown.RejectedError.
func (e *Engine) SendMessage(memberID, recipientID, text string) error {
	text, err := protocol.NormalizeText(text)
	if err != nil {
		return errorf(ErrInvalidText, err)
	}
	room, rc, l, err := e.activeTarget(memberID, recipientID)
	if err != nil {
		return err
	}
	now := e.now()
	if err := e.gate.Check(memberID, now); err != nil {
		return err
	}

	sender, _ := room.Member(memberID)
	e.broadcast(room, protocol.TypeMessageSent, protocol.MessageSent{
		ID:          uuid.NewString(),
		SenderID:    memberID,
		SenderName:  sender.Name,
		RecipientID: rc.ID,
		Text:        text,
		SentAt:      now.UnixMilli(),
	})
	e.dispatch.Enqueue(
		batcher.Key{Room: room.Code, Recipient: rc.ID},
		batcher.Target{Name: rc.Name, Persona: rc.Persona},
		batcher.Message{
			SenderID:   memberID,
			SenderName: sender.Name,
			Text:       text,
			SentAt:     now,
			Reputation: l.Get(memberID, rc.ID),
		},
	)
	return nil
}

func (e *Engine) typing(key batcher.Key) {
	room, ok := e.rooms.Get(key.Room)
	if !ok || room.State != lobby.Active {
		return
	}
	e.broadcast(room, protocol.TypeTypingIndicator, protocol.TypingIndicator{RecipientID: key.Recipient})
}

// Drain stops accepting batches and waits for in-flight generation work and
// archive writes. If ctx expires first the remaining calls are cancelled.
func (e *Engine) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.dispatch.Close()
		e.spawnMu.Lock()
		e.draining = true
		e.spawnMu.Unlock()
		e.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		e.cancel()
		return nil
	case <-ctx.Done():
		e.cancel()
		return ctx.Err()
	}
}

func errorf(sentinel, cause error) error {
	return fmt.Errorf("%w: %v", sentinel, cause)
}

// spawn runs f in the background and tracks it for Drain. Once Drain has
// started, f runs on the caller instead.
func (e *Engine) spawn(f func()) {
	e.spawnMu.Lock()
	if e.draining {
		e.spawnMu.Unlock()
		f()
		return
	}
	e.inflight.Add(1)
	e.spawnMu.Unlock()
	go func() {
		defer e.inflight.Done()
		f()
	}()
}
