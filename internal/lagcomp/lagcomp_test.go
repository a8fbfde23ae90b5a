package lagcomp

import (
	"testing"
	"time"

	"coin-arena/internal/match"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapAt(ts int64, ax, bx float64) match.Snapshot {
	return match.Snapshot{
		RoomID:    "r",
		Timestamp: ts,
		Match:     match.Meta{Phase: match.PhasePlaying},
		Players: []match.PlayerState{
			{ID: "a", Slot: 1, Position: match.Vec2{X: ax}, Name: "Ann"},
			{ID: "b", Slot: 2, Position: match.Vec2{X: bx}, Name: "Bob"},
		},
		Coins: []match.Coin{{ID: "c", X: float64(ts)}},
	}
}

func TestHistoryPrunesByTimestamp(t *testing.T) {
	h := NewHistory(3 * time.Second)
	for ts := int64(0); ts <= 5000; ts += 1000 {
		h.Record(snapAt(ts, 0, 0))
	}

	assert.Equal(t, 4, h.Len(), "entries at 2000..5000 remain")
	oldest, ok := h.At(0)
	require.True(t, ok)
	assert.Equal(t, int64(2000), oldest.Timestamp)
}

func TestHistoryAt(t *testing.T) {
	h := NewHistory(DefaultWindow)
	_, ok := h.At(100)
	assert.False(t, ok)

	h.Record(snapAt(1000, 0, 0))
	h.Record(snapAt(1033, 0, 0))
	h.Record(snapAt(1066, 0, 0))

	tests := []struct {
		ts   int64
		want int64
	}{
		{1066, 1066},
		{1050, 1033},
		{1033, 1033},
		{999, 1000}, // everything newer: oldest
		{5000, 1066},
	}
	for _, tt := range tests {
		got, ok := h.At(tt.ts)
		require.True(t, ok)
		assert.Equal(t, tt.want, got.Timestamp, "At(%d)", tt.ts)
	}

	latest, ok := h.Latest()
	require.True(t, ok)
	assert.Equal(t, int64(1066), latest.Timestamp)
}

func TestPersonalizeLagsOnlyPeers(t *testing.T) {
	h := NewHistory(DefaultWindow)
	h.Record(snapAt(1000, 10, 500))
	h.Record(snapAt(1100, 20, 510))
	h.Record(snapAt(1200, 30, 520))
	latest := snapAt(1300, 40, 530)
	h.Record(latest)

	forA := Personalize(latest, h, "a", 200*time.Millisecond)

	require.Len(t, forA.Players, 2)
	assert.Equal(t, 40.0, forA.Players[0].Position.X, "viewer sees itself now")
	assert.Equal(t, 510.0, forA.Players[1].Position.X, "peer from t-200ms")
	assert.Equal(t, latest.Coins, forA.Coins)
	assert.Equal(t, int64(1300), forA.Timestamp)

	forB := Personalize(latest, h, "b", 100*time.Millisecond)
	assert.Equal(t, 30.0, forB.Players[0].Position.X)
	assert.Equal(t, 530.0, forB.Players[1].Position.X)

	// The source snapshot is never mutated.
	assert.Equal(t, 530.0, latest.Players[1].Position.X)
}

func TestPersonalizeFallbacks(t *testing.T) {
	latest := snapAt(1300, 40, 530)

	got := Personalize(latest, nil, "a", time.Second)
	assert.Equal(t, latest.Players, got.Players, "no history: newest")

	h := NewHistory(DefaultWindow)
	h.Record(match.Snapshot{Timestamp: 1000, Players: []match.PlayerState{{ID: "a", Position: match.Vec2{X: 1}}}})
	h.Record(latest)
	got = Personalize(latest, h, "a", 200*time.Millisecond)
	assert.Equal(t, 530.0, got.Players[1].Position.X, "peer missing from lagged snapshot: newest")
}

func TestPersonalizeKeepsCurrentIdentity(t *testing.T) {
	h := NewHistory(DefaultWindow)
	old := snapAt(1000, 0, 0)
	h.Record(old)
	latest := snapAt(1200, 5, 5)
	latest.Players[1].Name = "Bobby"
	h.Record(latest)

	got := Personalize(latest, h, "a", 200*time.Millisecond)
	assert.Equal(t, "Bobby", got.Players[1].Name)
	assert.Equal(t, 0.0, got.Players[1].Position.X)
}

func TestDistributor(t *testing.T) {
	d := NewDistributor(DefaultWindow)
	_, ok := d.Latest()
	assert.False(t, ok)

	d.Distribute(snapAt(1000, 0, 100), nil)
	out := d.Distribute(snapAt(1200, 10, 110), []Viewer{
		{ID: "a", Budget: 200 * time.Millisecond},
		{ID: "b", Budget: 200 * time.Millisecond},
	})

	require.Len(t, out, 2)
	assert.Equal(t, 10.0, out[0].Players[0].Position.X)
	assert.Equal(t, 100.0, out[0].Players[1].Position.X)
	assert.Equal(t, 0.0, out[1].Players[0].Position.X)
	assert.Equal(t, 110.0, out[1].Players[1].Position.X)

	latest, ok := d.Latest()
	require.True(t, ok)
	assert.Equal(t, int64(1200), latest.Timestamp)
}
