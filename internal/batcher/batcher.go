// Package batcher coalesces messages addressed to the same recipient of a
// room into one flush per window.
//
// A queue moves Idle -> Collecting when its first message arrives and a
// timer is armed for the window; later messages never extend that timer.
// When it fires the live list is swapped for an empty one and the queue is
// Processing while the flush runs with no lock held. Messages that arrive
// meanwhile wait in the fresh list; once the flush returns the queue re-arms
// for them or goes back to Idle.
package batcher

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"go-party/internal/generation"
)

// DefaultWindow is how long a queue collects before flushing.
const DefaultWindow = 5 * time.Second

// Key identifies one queue.
type Key struct {
	Room      string
	Recipient string
}

func (k Key) String() string {
	return k.Room + ":" + k.Recipient
}

// Target describes the recipient a queue is addressed to.
type Target struct {
	Name    string
	Persona generation.Persona
}

// Message is a queued member submission with the sender's reputation at the
// time it was accepted.
type Message struct {
	SenderID   string
	SenderName string
	Text       string
	SentAt     time.Time
	Reputation int
}

// Batch is what a flush receives; Messages are in arrival order.
type Batch struct {
	Key      Key
	Target   Target
	Messages []Message
}

// FlushFunc consumes a batch. Whatever happens inside, the batch is
// considered consumed once it returns.
type FlushFunc func(ctx context.Context, b Batch)

// Dispatcher is the enqueue side shared by every strategy.
type Dispatcher interface {
	Enqueue(key Key, target Target, msg Message)
	// Discard drops everything pending for room and cancels its timers.
	Discard(room string)
	// Close discards all queues and waits for in-flight flushes.
	Close()
}

// State is the observable phase of a queue.
type State int

const (
	Idle State = iota
	Collecting
	Processing
)

func (s State) String() string {
	switch s {
	case Collecting:
		return "collecting"
	case Processing:
		return "processing"
	default:
		return "idle"
	}
}

type Options struct {
	Window    time.Duration
	Scheduler Scheduler
	Flush     FlushFunc
	// OnOpen runs once each time a new collection window is armed.
	OnOpen func(Key)
	// Context is handed to every flush.
	Context context.Context
}

type queue struct {
	mu         sync.Mutex
	target     Target
	messages   []Message
	timer      Timer
	epoch      uint64
	processing bool
	discarded  bool
}

// Batcher is the windowed Dispatcher.
type Batcher struct {
	window time.Duration
	sched  Scheduler
	flush  FlushFunc
	onOpen func(Key)
	ctx    context.Context

	inflight sync.WaitGroup

	mu     sync.Mutex
	queues map[Key]*queue
	closed bool
}

func New(opts Options) *Batcher {
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	if opts.Scheduler == nil {
		opts.Scheduler = WallClock{}
	}
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	return &Batcher{
		window: opts.Window,
		sched:  opts.Scheduler,
		flush:  opts.Flush,
		onOpen: opts.OnOpen,
		ctx:    opts.Context,
		queues: make(map[Key]*queue),
	}
}

// Enqueue appends msg to the queue for key, creating it if needed. Only an
// Idle queue arms a timer. After Close it drops msg.
func (b *Batcher) Enqueue(key Key, target Target, msg Message) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		log.Printf("[batcher] %s: closed, dropping message from %s", key, msg.SenderName)
		return
	}
	q, ok := b.queues[key]
	if !ok {
		q = &queue{target: target}
		b.queues[key] = q
	}
	q.mu.Lock()
	b.mu.Unlock()

	q.messages = append(q.messages, msg)
	if q.processing {
		q.mu.Unlock()
		log.Printf("[batcher] %s: %s queued for next batch", key, msg.SenderName)
		return
	}
	if q.timer != nil {
		q.mu.Unlock()
		return
	}
	b.arm(key, q)
	q.mu.Unlock()

	log.Printf("[batcher] %s: window opened (%s)", key, b.window)
	b.opened(key)
}

// arm must be called with q.mu held.
func (b *Batcher) arm(key Key, q *queue) {
	q.epoch++
	epoch := q.epoch
	q.timer = b.sched.AfterFunc(b.window, func() { b.fire(key, q, epoch) })
}

func (b *Batcher) opened(key Key) {
	if b.onOpen != nil {
		b.onOpen(key)
	}
}

func (b *Batcher) fire(key Key, q *queue, epoch uint64) {
	q.mu.Lock()
	if q.discarded || q.epoch != epoch || q.timer == nil {
		q.mu.Unlock()
		return
	}
	q.timer = nil
	if len(q.messages) == 0 {
		q.mu.Unlock()
		return
	}
	batch := Batch{Key: key, Target: q.target, Messages: q.messages}
	q.messages = nil
	q.processing = true
	b.inflight.Add(1)
	q.mu.Unlock()

	log.Printf("[batcher] %s: processing %d message(s)", key, len(batch.Messages))
	b.run(batch)

	q.mu.Lock()
	q.processing = false
	reopen := !q.discarded && len(q.messages) > 0
	if reopen {
		b.arm(key, q)
	}
	q.mu.Unlock()
	b.inflight.Done()

	if reopen {
		log.Printf("[batcher] %s: messages arrived while processing, window reopened", key)
		b.opened(key)
	}
}

func (b *Batcher) run(batch Batch) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("❌ [batcher] %s: flush panicked: %v", batch.Key, r)
		}
	}()
	if b.flush != nil {
		b.flush(b.ctx, batch)
	}
}

// Discard cancels pending timers and drops every queue of room. A flush
// already running is left to finish but its queue will not re-arm.
func (b *Batcher) Discard(room string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for key, q := range b.queues {
		if key.Room != room {
			continue
		}
		b.discard(q)
		delete(b.queues, key)
	}
}

func (b *Batcher) discard(q *queue) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.discarded = true
	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}
	q.messages = nil
}

func (b *Batcher) Close() {
	b.mu.Lock()
	b.closed = true
	for key, q := range b.queues {
		b.discard(q)
		delete(b.queues, key)
	}
	b.mu.Unlock()
	b.inflight.Wait()
}

// Stats reports the phase of a queue and how many messages wait in its live
// list.
func (b *Batcher) Stats(key Key) (State, int) {
	b.mu.Lock()
	q, ok := b.queues[key]
	b.mu.Unlock()
	if !ok {
		return Idle, 0
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	switch {
	case q.processing:
		return Processing, len(q.messages)
	case q.timer != nil:
		return Collecting, len(q.messages)
	default:
		return Idle, len(q.messages)
	}
}

// Rooms lists rooms that currently own at least one queue.
func (b *Batcher) Rooms() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	seen := make(map[string]bool)
	var out []string
	for key := range b.queues {
		if !seen[key.Room] {
			seen[key.Room] = true
			out = append(out, key.Room)
		}
	}
	return out
}

// ParseStrategy maps a configuration value to a strategy name.
func ParseStrategy(s string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", StrategyBatched:
		return StrategyBatched, true
	case StrategyImmediate:
		return StrategyImmediate, true
	}
	return "", false
}
