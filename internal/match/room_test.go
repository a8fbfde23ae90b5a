package match

import (
	"math/rand"
	"testing"
	"time"

	"coin-arena/internal/clock"
	"coin-arena/internal/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tick = time.Second / 30

func newTestRoom(t *testing.T, clk clock.Clock, modeKey string) *Room {
	t.Helper()
	mode, _ := config.LookupMode(modeKey)
	diff, _ := config.LookupDifficulty("inferno")
	sim := NewSimulation(Settings{
		RoomID:     "r1",
		Game:       config.DefaultGame(),
		Mode:       mode,
		Difficulty: diff,
		Rand:       rand.New(rand.NewSource(7)),
	}, []Entrant{{ID: "a", Slot: 1}, {ID: "b", Slot: 2}})
	return NewRoom("r1", sim, clk, tick, zerolog.Nop())
}

func nextEvent(t *testing.T, r *Room) Event {
	t.Helper()
	select {
	case ev, ok := <-r.Events():
		require.True(t, ok, "events closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for room event")
		return nil
	}
}

func waitDone(t *testing.T, r *Room) {
	t.Helper()
	select {
	case <-r.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("room did not exit")
	}
}

func TestRoomEmitsStartedThenState(t *testing.T) {
	clk := clock.NewFake(t0)
	r := newTestRoom(t, clk, "countdown")
	go r.Run()
	defer r.Stop()

	started, ok := nextEvent(t, r).(StartedEvent)
	require.True(t, ok)
	assert.Equal(t, t0.UnixMilli()+3000, started.CountdownEndsAt)
	assert.Equal(t, started.CountdownEndsAt+60_000, started.MatchEndsAt)

	for i := 0; i < 3; i++ {
		clk.Advance(tick)
		st, ok := nextEvent(t, r).(StateEvent)
		require.True(t, ok)
		assert.Equal(t, PhaseCountdown, st.Snapshot.Match.Phase, "state flows during countdown")
		assert.Equal(t, clk.Now().UnixMilli(), st.Snapshot.Timestamp)
	}
}

func TestRoomLeaveBelowRosterTerminates(t *testing.T) {
	clk := clock.NewFake(t0)
	r := newTestRoom(t, clk, "countdown")
	go r.Run()

	_ = nextEvent(t, r)
	r.Leave("a")

	ended, ok := nextEvent(t, r).(EndedEvent)
	require.True(t, ok)
	assert.Equal(t, ReasonDisconnected, ended.Result.Reason)
	assert.Nil(t, ended.Result.WinnerID)

	waitDone(t, r)
	_, open := <-r.Events()
	assert.False(t, open)

	// Calls after exit never block.
	r.Leave("b")
	assert.False(t, r.Input("b", KeyPatch{}))
	r.Stop()
}

func TestRoomEndsAtMatchDeadline(t *testing.T) {
	clk := clock.NewFake(t0)
	r := newTestRoom(t, clk, "countdown")
	go r.Run()

	started := nextEvent(t, r).(StartedEvent)

	// Jump straight to the deadline; the collapsed tick ends the match.
	clk.Advance(time.Duration(started.MatchEndsAt-t0.UnixMilli()) * time.Millisecond)

	st, ok := nextEvent(t, r).(StateEvent)
	require.True(t, ok)
	assert.Equal(t, PhaseResults, st.Snapshot.Match.Phase)

	ended, ok := nextEvent(t, r).(EndedEvent)
	require.True(t, ok)
	assert.Equal(t, ReasonTimer, ended.Result.Reason)
	assert.Nil(t, ended.Result.WinnerID, "0-0 is a draw")

	waitDone(t, r)
}

func TestRoomStopClosesEvents(t *testing.T) {
	clk := clock.NewFake(t0)
	r := newTestRoom(t, clk, "countdown")
	go r.Run()
	_ = nextEvent(t, r)

	r.Stop()
	r.Stop()

	waitDone(t, r)
	for range r.Events() {
	}
}

func TestRoomFaultIsReported(t *testing.T) {
	clk := clock.NewFake(t0)
	r := newTestRoom(t, clk, "countdown")
	// A nil rng makes the first coin spawn panic inside a tick.
	r.sim.(*Simulation).rng = nil
	go r.Run()

	_ = nextEvent(t, r)
	clk.Advance(3 * time.Second)

	fault, ok := nextEvent(t, r).(FaultEvent)
	require.True(t, ok)
	assert.Contains(t, fault.Err.Error(), "simulation panic")
	waitDone(t, r)
}

func TestRoomInputMovesPilot(t *testing.T) {
	clk := clock.NewFake(t0)
	r := newTestRoom(t, clk, "countdown")
	go r.Run()
	defer r.Stop()

	_ = nextEvent(t, r)
	yes := true
	require.True(t, r.Input("a", KeyPatch{Down: &yes}))

	// The actor drains its mailbox before the countdown tick collapses in.
	require.Eventually(t, func() bool { return len(r.inputs) == 0 }, time.Second, time.Millisecond)
	clk.Advance(3 * time.Second)

	st := nextEvent(t, r).(StateEvent)
	a, ok := st.Snapshot.Player("a")
	require.True(t, ok)
	assert.Greater(t, a.Position.Y, 320.0)
}
