package cooldown

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)

func TestGateAcceptsFirstSubmission(t *testing.T) {
	t.Parallel()

	g := NewGate(5 * time.Second)
	ok, remaining := g.TryAccept("m1", t0)
	assert.True(t, ok)
	assert.Zero(t, remaining)
}

func TestGateRejectsWithinWindowWithRemaining(t *testing.T) {
	t.Parallel()

	g := NewGate(5 * time.Second)
	g.TryAccept("m1", t0)

	ok, remaining := g.TryAccept("m1", t0.Add(1200*time.Millisecond))
	assert.False(t, ok)
	assert.Equal(t, 3800*time.Millisecond, remaining)
}

func TestGateRejectionDoesNotResetWindow(t *testing.T) {
	t.Parallel()

	g := NewGate(5 * time.Second)
	g.TryAccept("m1", t0)
	g.TryAccept("m1", t0.Add(4*time.Second))

	ok, _ := g.TryAccept("m1", t0.Add(5*time.Second))
	assert.True(t, ok)
}

func TestGateAcceptsExactlyAtWindow(t *testing.T) {
	t.Parallel()

	g := NewGate(5 * time.Second)
	g.TryAccept("m1", t0)

	ok, _ := g.TryAccept("m1", t0.Add(5*time.Second-time.Millisecond))
	assert.False(t, ok)
	ok, _ = g.TryAccept("m1", t0.Add(5*time.Second))
	assert.True(t, ok)
}

func TestGateIsPerMember(t *testing.T) {
	t.Parallel()

	g := NewGate(5 * time.Second)
	g.TryAccept("m1", t0)

	ok, _ := g.TryAccept("m2", t0.Add(time.Second))
	assert.True(t, ok)
}

func TestGateCheckReturnsRejectedError(t *testing.T) {
	t.Parallel()

	g := NewGate(5 * time.Second)
	require.NoError(t, g.Check("m1", t0))

	err := g.Check("m1", t0.Add(500*time.Millisecond))
	var rejected *RejectedError
	require.True(t, errors.As(err, &rejected))
	assert.Equal(t, 4500*time.Millisecond, rejected.Remaining)
	assert.Equal(t, "wait 5s before sending another message", err.Error())
}

func TestGateForget(t *testing.T) {
	t.Parallel()

	g := NewGate(5 * time.Second)
	g.TryAccept("m1", t0)
	g.Forget("m1")

	ok, _ := g.TryAccept("m1", t0.Add(time.Millisecond))
	assert.True(t, ok)
}
