package presence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/jcarrell/galaxia/internal/game/character"
)

func activeSince(id int64, name string, last time.Time) *character.Character {
	c := town(id, name)
	c.Status = character.StatusActive
	c.LastActivityAt = last
	return c
}

func TestSweepDemotesStaleCharacters(t *testing.T) {
	t0 := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	store := newFakeStore(
		activeSince(1, "Aria", t0),                   // stale
		activeSince(2, "Brynn", t0.Add(10*time.Minute)), // fresh
	)

	sw := NewSweeper(store, zaptest.NewLogger(t), 15*time.Minute, time.Minute)
	sw.now = func() time.Time { return t0.Add(16 * time.Minute) }

	count, err := sw.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, character.StatusSleeping, store.status(1))
	assert.Equal(t, character.StatusActive, store.status(2))
}

func TestSweepIdempotent(t *testing.T) {
	t0 := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	store := newFakeStore(activeSince(1, "Aria", t0))

	sw := NewSweeper(store, zaptest.NewLogger(t), 15*time.Minute, time.Minute)
	sw.now = func() time.Time { return t0.Add(16 * time.Minute) }

	count, err := sw.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// Back-to-back sweep: already sleeping, counted zero times.
	count, err = sw.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
	assert.Equal(t, character.StatusSleeping, store.status(1))
}

func TestSweepExactThresholdNotDemoted(t *testing.T) {
	t0 := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	store := newFakeStore(activeSince(1, "Aria", t0))

	sw := NewSweeper(store, zaptest.NewLogger(t), 15*time.Minute, time.Minute)
	// lastActivityAt == cutoff: not strictly older, stays active.
	sw.now = func() time.Time { return t0.Add(15 * time.Minute) }

	count, err := sw.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
	assert.Equal(t, character.StatusActive, store.status(1))
}

func TestSweepLeavesRoomMembershipIntact(t *testing.T) {
	t0 := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	store := newFakeStore(town(1, "Aria"))
	gw, registry := newTestGateway(t, store)
	ctx := context.Background()

	gw.now = func() time.Time { return t0 }
	sess := gw.Connect(&fakeSender{}, "acct-1")
	require.NoError(t, gw.JoinLocation(ctx, sess, joinEvent(1)))

	// No heartbeats for 16 minutes, then the sweeper runs.
	sw := NewSweeper(store, zaptest.NewLogger(t), 15*time.Minute, time.Minute)
	sw.now = func() time.Time { return t0.Add(16 * time.Minute) }

	count, err := sw.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// Sleeping is a status flag, not a presence-removal event.
	assert.Equal(t, character.StatusSleeping, store.status(1))
	assert.Equal(t, []string{sess.ID()}, registry.MembersOf("Earth:Town:2:3"))
}

func TestSweeperRunStopsOnCancel(t *testing.T) {
	store := newFakeStore()
	sw := NewSweeper(store, zaptest.NewLogger(t), 15*time.Minute, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sw.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop on cancel")
	}
}

func TestNewSweeperRejectsBadArguments(t *testing.T) {
	store := newFakeStore()
	logger := zaptest.NewLogger(t)
	assert.Panics(t, func() { NewSweeper(store, logger, 0, time.Minute) })
	assert.Panics(t, func() { NewSweeper(store, logger, time.Minute, 0) })
}
