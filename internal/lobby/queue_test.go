package lobby

import (
	"testing"

	"coin-arena/internal/config"
	"coin-arena/internal/protocol"
	"coin-arena/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(ps []*session.Player) []string {
	var out []string
	for _, p := range ps {
		out = append(out, p.ID)
	}
	return out
}

func TestQueueBuckets(t *testing.T) {
	q := NewQueue()
	blitz := config.Selection{ModeKey: "blitz", DifficultyKey: "chill"}
	survival := config.Selection{ModeKey: "survival", DifficultyKey: "chill"}
	a, b, c := session.NewPlayer("a", nil, 0), session.NewPlayer("b", nil, 0), session.NewPlayer("c", nil, 0)

	q.Add(a, blitz)
	q.Add(b, blitz)
	q.Add(a, blitz)
	q.Add(c, survival)

	assert.Equal(t, []string{"a", "b"}, ids(q.Members(blitz)), "re-adding keeps position")
	assert.Equal(t, 3, q.Waiting())

	q.Add(a, survival)
	assert.Equal(t, []string{"b"}, ids(q.Members(blitz)), "a player sits in one bucket")
	assert.Equal(t, []string{"c", "a"}, ids(q.Members(survival)))

	sel, ok := q.Remove("c")
	require.True(t, ok)
	assert.Equal(t, survival, sel)
	_, ok = q.Remove("c")
	assert.False(t, ok)

	assert.Nil(t, q.PopFront(blitz, 2), "not enough waiting")
	popped := q.PopFront(survival, 1)
	assert.Equal(t, []string{"a"}, ids(popped))
	assert.False(t, q.Contains("a"))
	assert.Equal(t, 0, q.Len(survival))
	assert.Equal(t, 1, q.Waiting())
}

func TestJoinQueueBroadcastsPositions(t *testing.T) {
	h := newHarness(t, func(g *config.GameConfig) { g.RequiredPlayers = 4 })
	a, b, c := h.connect(), h.connect(), h.connect()

	for _, cl := range []client{a, b, c} {
		h.send(cl, joinQueue("blitz", "inferno"))
	}

	q := c.conn.last("queue")
	assert.Equal(t, protocol.QueueWaiting, q["status"])
	assert.Equal(t, 3.0, q["position"])
	assert.Equal(t, 4.0, q["needed"])
	assert.Equal(t, map[string]any{"modeKey": "blitz", "difficultyKey": "inferno"}, q["selection"])
	assert.Equal(t, 1.0, a.conn.last("queue")["position"])

	// Leaving from the middle keeps order for the rest.
	h.send(b, protocol.LeaveQueue{})
	assert.Equal(t, 2.0, c.conn.last("queue")["position"])
	assert.Equal(t, 1.0, a.conn.last("queue")["position"])
	assert.Equal(t, map[string]any{"type": "queue", "status": "idle"}, map[string]any(b.conn.last("queue")))

	lobby := c.conn.last("lobbySnapshot")
	assert.Equal(t, 2.0, lobby["waitingPlayers"])
	h.assertConsistent()
}

func TestJoinQueueInvalidSelectionFallsBack(t *testing.T) {
	h := newHarness(t)
	a := h.connect()

	h.send(a, joinQueue("warp", "impossible"))

	q := a.conn.last("queue")
	assert.Equal(t, map[string]any{"modeKey": "countdown", "difficultyKey": "striker"}, q["selection"])
	p := h.player(a.id)
	assert.Equal(t, session.StatusQueued, p.Status)
	require.NotNil(t, p.Selection)
}

func TestLeaveQueueIsIdempotent(t *testing.T) {
	h := newHarness(t)
	a := h.connect()
	h.send(a, joinQueue("countdown", "striker"))

	h.send(a, protocol.LeaveQueue{})
	h.send(a, protocol.LeaveQueue{})

	assert.Len(t, a.conn.match("queue", ""), 3, "one waiting, two idle")
	p := h.player(a.id)
	assert.Equal(t, session.StatusIdle, p.Status)
	assert.Nil(t, p.Selection)
	assert.Equal(t, 0, h.lobby.Snapshot().WaitingPlayers)
	h.assertConsistent()
}

func TestSwitchingBucketsMovesPlayer(t *testing.T) {
	h := newHarness(t)
	a := h.connect()

	h.send(a, joinQueue("countdown", "striker"))
	h.send(a, joinQueue("survival", "chill"))

	snap := h.lobby.Snapshot()
	assert.Equal(t, 1, snap.WaitingPlayers)
	require.Len(t, snap.Players, 1)
	assert.Equal(t, &config.Selection{ModeKey: "survival", DifficultyKey: "chill"}, snap.Players[0].Selection)
}

func TestRosterNeverExceedsRequired(t *testing.T) {
	h := newHarness(t)
	a, b, c := h.connect(), h.connect(), h.connect()

	for _, cl := range []client{a, b, c} {
		h.send(cl, joinQueue("countdown", "striker"))
	}

	assert.Equal(t, 1, h.roomCount())
	assert.Equal(t, session.StatusInMatch, h.player(a.id).Status)
	assert.Equal(t, session.StatusInMatch, h.player(b.id).Status)
	assert.Equal(t, session.StatusQueued, h.player(c.id).Status)
	assert.Equal(t, 1.0, c.conn.last("queue")["position"])
	assert.Empty(t, c.conn.match("matchAssignment", ""))
	h.assertConsistent()
}

func TestQueueBlockedInMatch(t *testing.T) {
	h := newHarness(t)
	a, b := h.connect(), h.connect()
	h.send(a, joinQueue("countdown", "striker"))
	h.send(b, joinQueue("countdown", "striker"))

	h.send(a, joinQueue("blitz", "chill"))

	q := a.conn.last("queue")
	assert.Equal(t, protocol.QueueBlocked, q["status"])
	assert.Equal(t, ReasonInMatch, q["reason"])
	assert.Equal(t, session.StatusInMatch, h.player(a.id).Status)
	h.assertConsistent()
}
