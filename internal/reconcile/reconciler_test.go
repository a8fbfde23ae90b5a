package reconcile

import (
	"testing"
	"time"

	"coin-arena/internal/clock"
	"coin-arena/internal/config"
	"coin-arena/internal/match"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.UnixMilli(1_700_000_000_000)

func snap(ts int64, players ...match.PlayerState) match.Snapshot {
	return match.Snapshot{
		RoomID:    "room",
		Timestamp: ts,
		Match:     match.Meta{Phase: match.PhasePlaying},
		Players:   players,
	}
}

func pilot(id string, x, y float64) match.PlayerState {
	return match.PlayerState{ID: id, Position: match.Vec2{X: x, Y: y}}
}

func TestInterpolateEndpoints(t *testing.T) {
	older := snap(1000, pilot("a", 100, 100), pilot("b", 500, 200))
	newer := snap(1100, pilot("a", 200, 300), pilot("b", 400, 200))
	newer.Coins = []match.Coin{{ID: "coin-1", X: 10, Y: 10, Value: 1}}

	at0 := Interpolate(older, newer, 0)
	assert.Equal(t, match.Vec2{X: 100, Y: 100}, at0.Players[0].Position)
	assert.Equal(t, match.Vec2{X: 500, Y: 200}, at0.Players[1].Position)
	assert.Equal(t, int64(1000), at0.Timestamp)

	at1 := Interpolate(older, newer, 1)
	assert.Equal(t, newer.Players, at1.Players)
	assert.Equal(t, int64(1100), at1.Timestamp)

	mid := Interpolate(older, newer, 0.5)
	assert.InDelta(t, 150, mid.Players[0].Position.X, 1e-9)
	assert.InDelta(t, 200, mid.Players[0].Position.Y, 1e-9)
	assert.Equal(t, int64(1050), mid.Timestamp)
	assert.Equal(t, newer.Coins, mid.Coins, "coins come from the newer bracket")

	assert.Equal(t, at1.Players, Interpolate(older, newer, 7).Players, "t is clamped")
	assert.Equal(t, match.Vec2{X: 100, Y: 100}, older.Players[0].Position, "inputs are not mutated")
}

func TestInterpolatePassesThroughUnsharedPilots(t *testing.T) {
	older := snap(1000, pilot("a", 0, 0), pilot("gone", 50, 50))
	newer := snap(1100, pilot("a", 100, 0), pilot("new", 70, 70))

	got := Interpolate(older, newer, 0.5)

	require.Len(t, got.Players, 3)
	assert.Equal(t, match.Vec2{X: 50, Y: 0}, got.Players[0].Position)
	assert.Equal(t, pilot("new", 70, 70), got.Players[1])
	assert.Equal(t, pilot("gone", 50, 50), got.Players[2])
}

func TestDriftEMA(t *testing.T) {
	clk := clock.NewFake(t0)
	r := New(clk, config.DefaultGame())
	now := t0.UnixMilli()

	r.Ingest(snap(now - 100))
	assert.InDelta(t, float64(100*time.Millisecond), float64(r.Drift()), 1e3, "first sample initializes")

	r.Ingest(snap(now - 200))
	assert.InDelta(t, float64(110*time.Millisecond), float64(r.Drift()), 1e3)
	assert.Equal(t, now-110, r.SyncedNow())

	r.Ingest(snap(now + 1000))
	assert.InDelta(t, float64(-time.Millisecond), float64(r.Drift()), 1e3)
}

func TestRingDropsOldest(t *testing.T) {
	r := New(clock.NewFake(t0), config.DefaultGame(), WithCapacity(3))
	for i := int64(0); i < 5; i++ {
		r.Ingest(snap(1000 + i*100))
	}

	assert.Equal(t, 3, r.Len())
	got, ok := r.Sample(0)
	require.True(t, ok)
	assert.Equal(t, int64(1200), got.Timestamp, "before the buffer clamps to the oldest kept")
}

func TestSample(t *testing.T) {
	r := New(clock.NewFake(t0), config.DefaultGame())
	_, ok := r.Sample(1000)
	assert.False(t, ok)

	r.Ingest(snap(1000, pilot("a", 0, 0)))
	only, ok := r.Sample(5000)
	require.True(t, ok)
	assert.Equal(t, int64(1000), only.Timestamp, "single snapshot passes through")

	r.Ingest(snap(1100, pilot("a", 100, 0)))
	r.Ingest(snap(1200, pilot("a", 300, 0)))

	tests := []struct {
		target int64
		wantX  float64
	}{
		{target: 900, wantX: 0},
		{target: 1000, wantX: 0},
		{target: 1050, wantX: 50},
		{target: 1100, wantX: 100},
		{target: 1150, wantX: 200},
		{target: 1200, wantX: 300},
		{target: 9999, wantX: 300},
	}
	for _, tt := range tests {
		got, ok := r.Sample(tt.target)
		require.True(t, ok)
		assert.InDelta(t, tt.wantX, got.Players[0].Position.X, 1e-9, "target %d", tt.target)
	}
}

func TestSampleEqualTimestamps(t *testing.T) {
	r := New(clock.NewFake(t0), config.DefaultGame())
	r.Ingest(snap(1000, pilot("a", 0, 0)))
	r.Ingest(snap(1000, pilot("a", 10, 0)))

	got, ok := r.Sample(1000)
	require.True(t, ok)
	assert.Equal(t, 0.0, got.Players[0].Position.X)
}

func TestPredict(t *testing.T) {
	game := config.DefaultGame()
	base := snap(1000, pilot("me", 400, 300), pilot("peer", 100, 100))

	still := Predict(base, "me", match.Keys{}, 230, InterpolationDelay, game)
	assert.Equal(t, base.Players, still.Players)

	right := Predict(base, "me", match.Keys{Right: true}, 230, InterpolationDelay, game)
	assert.InDelta(t, 446, right.Players[0].Position.X, 1e-9)
	assert.Equal(t, base.Players[1], right.Players[1], "peers are never extrapolated")
	assert.Equal(t, 400.0, base.Players[0].Position.X, "input untouched")

	diag := Predict(base, "me", match.Keys{Up: true, Left: true}, 100, time.Second, game)
	step := 100 / 1.4142135623730951
	assert.InDelta(t, 400-step, diag.Players[0].Position.X, 1e-9)
	assert.InDelta(t, 300-step, diag.Players[0].Position.Y, 1e-9)

	edge := Predict(snap(0, pilot("me", 950, 630)), "me", match.Keys{Right: true, Down: true}, 280, InterpolationDelay, game)
	assert.Equal(t, match.Vec2{X: 944, Y: 624}, edge.Players[0].Position)

	missing := Predict(base, "ghost", match.Keys{Right: true}, 230, InterpolationDelay, game)
	assert.Equal(t, base.Players, missing.Players)
}

func TestFrame(t *testing.T) {
	clk := clock.NewFake(t0)
	r := New(clk, config.DefaultGame())
	_, ok := r.Frame("me", match.Keys{}, 230)
	assert.False(t, ok)

	// Zero transit: synced time equals server time.
	now := t0.UnixMilli()
	r.Ingest(snap(now, pilot("me", 100, 100)))
	clk.Advance(100 * time.Millisecond)
	r.Ingest(snap(now+100, pilot("me", 200, 100)))
	clk.Advance(100 * time.Millisecond)
	r.Ingest(snap(now+200, pilot("me", 300, 100)))

	// Render target is now+200-200 = now, the first snapshot.
	frame, ok := r.Frame("me", match.Keys{}, 230)
	require.True(t, ok)
	assert.InDelta(t, 100, frame.Players[0].Position.X, 1e-9)

	clk.Advance(50 * time.Millisecond)
	frame, ok = r.Frame("me", match.Keys{Right: true}, 230)
	require.True(t, ok)
	assert.InDelta(t, 150+46, frame.Players[0].Position.X, 1e-9)
}
