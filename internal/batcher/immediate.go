package batcher

import (
	"context"
	"log"
	"sync"
)

const (
	StrategyBatched   = "batched"
	StrategyImmediate = "immediate"
)

// Immediate flushes every message on its own as soon as it is enqueued. It
// trades more generator calls for lower latency and has no window.
type Immediate struct {
	flush  FlushFunc
	onOpen func(Key)
	ctx    context.Context

	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup
}

func NewImmediate(opts Options) *Immediate {
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	return &Immediate{flush: opts.Flush, onOpen: opts.OnOpen, ctx: opts.Context}
}

func (d *Immediate) Enqueue(key Key, target Target, msg Message) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		log.Printf("[batcher] %s: closed, dropping message from %s", key, msg.SenderName)
		return
	}
	d.inflight.Add(1)
	d.mu.Unlock()

	if d.onOpen != nil {
		d.onOpen(key)
	}
	batch := Batch{Key: key, Target: target, Messages: []Message{msg}}
	go func() {
		defer d.inflight.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Printf("❌ [batcher] %s: flush panicked: %v", key, r)
			}
		}()
		if d.flush != nil {
			d.flush(d.ctx, batch)
		}
	}()
}

// Discard is a no-op: nothing is ever pending. Callers drop results for
// rooms that are gone.
func (d *Immediate) Discard(string) {}

func (d *Immediate) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.inflight.Wait()
}

// NewDispatcher builds the dispatcher for strategy.
func NewDispatcher(strategy string, opts Options) Dispatcher {
	if strategy == StrategyImmediate {
		return NewImmediate(opts)
	}
	return New(opts)
}
