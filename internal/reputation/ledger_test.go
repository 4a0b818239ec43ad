package reputation

import (
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerGetDefaultsWhenUnset(t *testing.T) {
	t.Parallel()

	l := NewLedger()
	assert.Equal(t, Default, l.Get("m1", "npc-1"))
}

func TestLedgerApplyAccumulatesFromDefault(t *testing.T) {
	t.Parallel()

	l := NewLedger()
	l.Init([]string{"m1"}, []string{"npc-1"})

	assert.Equal(t, 10, l.Apply("m1", "npc-1", 5))
	assert.Equal(t, 10, l.Get("m1", "npc-1"))
}

func TestLedgerApplyClampsAtMin(t *testing.T) {
	t.Parallel()

	l := NewLedger()
	l.Init([]string{"m1"}, []string{"npc-1"})
	l.Apply("m1", "npc-1", 5)

	assert.Equal(t, -10, l.Apply("m1", "npc-1", -20))
	assert.Equal(t, -30, l.Apply("m1", "npc-1", -20))
	assert.Equal(t, Min, l.Apply("m1", "npc-1", -20))
	assert.Equal(t, -50, l.Get("m1", "npc-1"))
}

func TestLedgerApplyClampsAtMax(t *testing.T) {
	t.Parallel()

	l := NewLedger()
	assert.Equal(t, Max, l.Apply("m1", "npc-1", 1000))
	assert.Equal(t, Max-1, l.Apply("m1", "npc-1", -1))
}

func TestLedgerStaysInBoundsForRandomDeltas(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(42, 7))
	l := NewLedger()
	for i := 0; i < 10000; i++ {
		delta := rng.IntN(81) - 40
		got := l.Apply("m1", "npc-1", delta)
		require.GreaterOrEqual(t, got, Min)
		require.LessOrEqual(t, got, Max)
		require.Equal(t, got, l.Get("m1", "npc-1"))
	}
}

func TestLedgerApplyIsAtomicPerPair(t *testing.T) {
	t.Parallel()

	l := NewLedger()
	l.Init([]string{"m1"}, []string{"npc-1"})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Apply("m1", "npc-1", 1)
		}()
	}
	wg.Wait()

	assert.Equal(t, Default+50, l.Get("m1", "npc-1"))
}

func TestLedgerInitAndForget(t *testing.T) {
	t.Parallel()

	l := NewLedger()
	l.Init([]string{"m1", "m2"}, []string{"npc-1", "npc-2"})
	l.Apply("m1", "npc-2", 7)
	l.Apply("m2", "npc-2", -3)

	l.Forget("m1")

	assert.Equal(t, Default, l.Get("m1", "npc-2"))
	assert.Equal(t, Default-3, l.Get("m2", "npc-2"))
}

func TestLedgerApplyIfPresentSkipsForgottenMember(t *testing.T) {
	t.Parallel()

	l := NewLedger()
	l.Init([]string{"m1", "m2"}, []string{"npc-1"})

	v, ok := l.ApplyIfPresent("m1", "npc-1", 4)
	require.True(t, ok)
	assert.Equal(t, Default+4, v)

	l.Forget("m2")
	_, ok = l.ApplyIfPresent("m2", "npc-1", 4)
	assert.False(t, ok)
	assert.Nil(t, l.lookup("m2", "npc-1", false))

	v, ok = l.ApplyIfPresent("m1", "npc-1", 1000)
	require.True(t, ok)
	assert.Equal(t, Max, v)
}
