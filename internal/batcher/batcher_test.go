package batcher_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-party/internal/batcher"
	"go-party/internal/batcher/batchertest"
	"go-party/internal/generation"
)

type recorder struct {
	mu      sync.Mutex
	batches []batcher.Batch
	opened  []batcher.Key
	during  func(batcher.Batch)
}

func (r *recorder) flush(_ context.Context, b batcher.Batch) {
	r.mu.Lock()
	r.batches = append(r.batches, b)
	during := r.during
	r.mu.Unlock()
	if during != nil {
		during(b)
	}
}

func (r *recorder) open(k batcher.Key) {
	r.mu.Lock()
	r.opened = append(r.opened, k)
	r.mu.Unlock()
}

func (r *recorder) snapshot() ([]batcher.Batch, []batcher.Key) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]batcher.Batch(nil), r.batches...), append([]batcher.Key(nil), r.opened...)
}

var (
	key    = batcher.Key{Room: "ROOM01", Recipient: "npc-1"}
	target = batcher.Target{Name: "Luna", Persona: generation.Joker}
)

func newBatcher(rec *recorder, sched *batchertest.Scheduler) *batcher.Batcher {
	return batcher.New(batcher.Options{
		Window:    5 * time.Second,
		Scheduler: sched,
		Flush:     rec.flush,
		OnOpen:    rec.open,
	})
}

func msg(sender, text string) batcher.Message {
	return batcher.Message{SenderID: sender, SenderName: sender, Text: text}
}

func texts(b batcher.Batch) []string {
	out := make([]string, len(b.Messages))
	for i, m := range b.Messages {
		out[i] = m.Text
	}
	return out
}

func TestBatcherCoalescesWindowIntoOneFlush(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	sched := batchertest.New()
	b := newBatcher(rec, sched)

	b.Enqueue(key, target, msg("a", "one"))
	sched.Advance(time.Second)
	b.Enqueue(key, target, msg("b", "two"))
	sched.Advance(2 * time.Second)
	b.Enqueue(key, target, msg("a", "three"))

	state, queued := b.Stats(key)
	assert.Equal(t, batcher.Collecting, state)
	assert.Equal(t, 3, queued)

	sched.Advance(2 * time.Second)

	batches, opened := rec.snapshot()
	require.Len(t, batches, 1)
	assert.Equal(t, []string{"one", "two", "three"}, texts(batches[0]))
	assert.Equal(t, target, batches[0].Target)
	assert.Equal(t, []batcher.Key{key}, opened)

	state, queued = b.Stats(key)
	assert.Equal(t, batcher.Idle, state)
	assert.Zero(t, queued)
}

func TestBatcherWindowIsAnchoredToFirstMessage(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	sched := batchertest.New()
	b := newBatcher(rec, sched)

	b.Enqueue(key, target, msg("a", "t0"))
	sched.Advance(4000 * time.Millisecond)
	b.Enqueue(key, target, msg("b", "t4000"))
	sched.Advance(1000 * time.Millisecond)

	batches, _ := rec.snapshot()
	require.Len(t, batches, 1)
	assert.Equal(t, []string{"t0", "t4000"}, texts(batches[0]))

	sched.Advance(time.Millisecond)
	b.Enqueue(key, target, msg("c", "t5001"))
	sched.Advance(4999 * time.Millisecond)
	batches, _ = rec.snapshot()
	require.Len(t, batches, 1)

	sched.Advance(time.Millisecond)
	batches, opened := rec.snapshot()
	require.Len(t, batches, 2)
	assert.Equal(t, []string{"t5001"}, texts(batches[1]))
	assert.Len(t, opened, 2)
}

func TestBatcherKeepsMessagesArrivingWhileProcessing(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	sched := batchertest.New()
	b := newBatcher(rec, sched)

	var once sync.Once
	rec.during = func(batch batcher.Batch) {
		once.Do(func() {
			state, _ := b.Stats(key)
			assert.Equal(t, batcher.Processing, state)
			b.Enqueue(key, target, msg("c", "late"))
			state, queued := b.Stats(key)
			assert.Equal(t, batcher.Processing, state)
			assert.Equal(t, 1, queued)
			assert.Equal(t, 0, sched.Pending(), "no timer while processing")
		})
	}

	b.Enqueue(key, target, msg("a", "first"))
	b.Enqueue(key, target, msg("b", "second"))
	sched.Advance(5 * time.Second)

	batches, opened := rec.snapshot()
	require.Len(t, batches, 1)
	assert.Equal(t, []string{"first", "second"}, texts(batches[0]))
	assert.Len(t, opened, 2, "window reopens for the late message")

	state, queued := b.Stats(key)
	assert.Equal(t, batcher.Collecting, state)
	assert.Equal(t, 1, queued)

	sched.Advance(5 * time.Second)
	batches, _ = rec.snapshot()
	require.Len(t, batches, 2)
	assert.Equal(t, []string{"late"}, texts(batches[1]))
}

func TestBatcherQueuesAreIndependentPerKey(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	sched := batchertest.New()
	b := newBatcher(rec, sched)
	other := batcher.Key{Room: "ROOM01", Recipient: "npc-2"}

	b.Enqueue(key, target, msg("a", "to one"))
	b.Enqueue(other, target, msg("a", "to two"))
	sched.Advance(5 * time.Second)

	batches, opened := rec.snapshot()
	require.Len(t, batches, 2)
	assert.ElementsMatch(t, []batcher.Key{key, other}, opened)
	assert.ElementsMatch(t, []string{"ROOM01"}, b.Rooms())
}

func TestBatcherDiscardCancelsPendingWindow(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	sched := batchertest.New()
	b := newBatcher(rec, sched)

	b.Enqueue(key, target, msg("a", "doomed"))
	require.Equal(t, 1, sched.Pending())

	b.Discard("ROOM01")
	assert.Equal(t, 0, sched.Pending())

	sched.Advance(10 * time.Second)
	batches, _ := rec.snapshot()
	assert.Empty(t, batches)
	assert.Empty(t, b.Rooms())
}

func TestBatcherDiscardDuringProcessingDoesNotReopen(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	sched := batchertest.New()
	b := newBatcher(rec, sched)

	var once sync.Once
	rec.during = func(batcher.Batch) {
		once.Do(func() {
			b.Enqueue(key, target, msg("b", "late"))
			b.Discard("ROOM01")
		})
	}

	b.Enqueue(key, target, msg("a", "first"))
	sched.Advance(5 * time.Second)
	sched.Advance(10 * time.Second)

	batches, opened := rec.snapshot()
	require.Len(t, batches, 1)
	assert.Len(t, opened, 1)
	assert.Equal(t, 0, sched.Pending())
}

func TestBatcherSurvivesPanickingFlush(t *testing.T) {
	t.Parallel()

	sched := batchertest.New()
	calls := 0
	b := batcher.New(batcher.Options{
		Window:    time.Second,
		Scheduler: sched,
		Flush: func(context.Context, batcher.Batch) {
			calls++
			if calls == 1 {
				panic("boom")
			}
		},
	})

	b.Enqueue(key, target, msg("a", "x"))
	sched.Advance(time.Second)
	b.Enqueue(key, target, msg("a", "y"))
	sched.Advance(time.Second)

	assert.Equal(t, 2, calls)
}

func TestBatcherWithWallClock(t *testing.T) {
	t.Parallel()

	flushed := make(chan batcher.Batch, 1)
	b := batcher.New(batcher.Options{
		Window: 20 * time.Millisecond,
		Flush:  func(_ context.Context, batch batcher.Batch) { flushed <- batch },
	})
	defer b.Close()

	b.Enqueue(key, target, msg("a", "one"))
	b.Enqueue(key, target, msg("b", "two"))

	select {
	case got := <-flushed:
		assert.Equal(t, []string{"one", "two"}, texts(got))
	case <-time.After(2 * time.Second):
		t.Fatal("batch was never flushed")
	}
}

func TestImmediateFlushesEachMessageAlone(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	d := batcher.NewDispatcher(batcher.StrategyImmediate, batcher.Options{Flush: rec.flush, OnOpen: rec.open})

	d.Enqueue(key, target, msg("a", "one"))
	d.Enqueue(key, target, msg("b", "two"))
	d.Close()

	batches, opened := rec.snapshot()
	require.Len(t, batches, 2)
	for _, b := range batches {
		assert.Len(t, b.Messages, 1)
	}
	assert.Len(t, opened, 2)
}

func TestParseStrategy(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]string{"": "batched", "Batched": "batched", " immediate ": "immediate"} {
		got, ok := batcher.ParseStrategy(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got)
	}
	_, ok := batcher.ParseStrategy("random")
	assert.False(t, ok)
}

func TestBatcherDropsMessagesAfterClose(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	sched := batchertest.New()
	b := newBatcher(rec, sched)

	b.Close()
	b.Enqueue(key, target, msg("a", "late"))

	assert.Zero(t, sched.Pending())
	assert.Empty(t, b.Rooms())
	sched.Advance(10 * time.Second)
	batches, opened := rec.snapshot()
	assert.Empty(t, batches)
	assert.Empty(t, opened)
}

func TestImmediateDropsMessagesAfterClose(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	d := batcher.NewDispatcher(batcher.StrategyImmediate, batcher.Options{Flush: rec.flush, OnOpen: rec.open})

	d.Close()
	d.Enqueue(key, target, msg("a", "late"))
	d.Close()

	batches, opened := rec.snapshot()
	assert.Empty(t, batches)
	assert.Empty(t, opened)
}
