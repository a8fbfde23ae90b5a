package lobby

import (
	"testing"
	"time"

	"coin-arena/internal/config"
	"coin-arena/internal/match"
	"coin-arena/internal/protocol"
	"coin-arena/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startMatch queues a and b into the default bucket and waits until the
// room has started.
func startMatch(t *testing.T, h *harness, a, b client) string {
	t.Helper()
	h.send(a, joinQueue("countdown", "striker"))
	h.send(b, joinQueue("countdown", "striker"))
	started := a.conn.waitFor(t, "matchEvent", protocol.EventStarted)
	b.conn.waitFor(t, "matchEvent", protocol.EventStarted)
	return started["roomId"].(string)
}

func TestTwoPlayersStartCountdown(t *testing.T) {
	h := newHarness(t)
	a, b := h.connect(), h.connect()

	roomID := startMatch(t, h, a, b)

	assignA, assignB := a.conn.last("matchAssignment"), b.conn.last("matchAssignment")
	require.NotNil(t, assignA)
	require.NotNil(t, assignB)
	assert.Equal(t, roomID, assignA["roomId"])
	assert.Equal(t, 1.0, assignA["slot"])
	assert.Equal(t, 2.0, assignB["slot"])
	assert.Equal(t, "striker", assignA["difficulty"].(map[string]any)["key"])
	assert.Len(t, assignA["opponents"], 2)

	started := a.conn.last("matchEvent")
	assert.Equal(t, float64(t0.UnixMilli()+3000), started["countdownEndsAt"])
	assert.Equal(t, float64(t0.UnixMilli()+3000+75_000), started["matchEndsAt"])

	roster := b.conn.match("matchEvent", protocol.EventRoster)
	require.Len(t, roster, 1)
	assert.Len(t, roster[0]["roster"], 2)

	for _, cl := range []client{a, b} {
		p := h.player(cl.id)
		assert.Equal(t, session.StatusInMatch, p.Status)
		assert.Equal(t, roomID, p.RoomID)
	}
	snap := h.lobby.Snapshot()
	require.Len(t, snap.Rooms, 1)
	assert.Equal(t, match.PhaseCountdown, snap.Rooms[0].Phase)
	assert.Equal(t, 0, snap.WaitingPlayers)
	h.assertConsistent()
}

func TestStateIsPersonalized(t *testing.T) {
	h := newHarness(t)
	a, b := h.connect(), h.connect()
	roomID := startMatch(t, h, a, b)

	h.clock.Advance(h.lobby.Config().TickInterval())

	state := a.conn.waitFor(t, "state", "")
	b.conn.waitFor(t, "state", "")
	assert.Equal(t, roomID, state["roomId"])
	assert.Equal(t, "countdown", state["match"].(map[string]any)["phase"])
	players := state["players"].([]any)
	require.Len(t, players, 2)
	first := players[0].(map[string]any)
	assert.Equal(t, a.id, first["id"])
	assert.Equal(t, "Pilot-"+a.id[:3], first["name"])
	assert.NotEmpty(t, first["avatarKey"])

	got, ok := h.lobby.RoomSnapshot(roomID)
	require.True(t, ok)
	assert.Equal(t, match.PhaseCountdown, got.Match.Phase)
	assert.Len(t, got.Players, 2)
}

func TestInputReachesRoom(t *testing.T) {
	h := newHarness(t)
	a, b := h.connect(), h.connect()
	roomID := startMatch(t, h, a, b)
	right := true
	h.send(a, protocol.Input{Keys: match.KeyPatch{Right: &right}})

	// Skip the countdown, then move for one tick.
	tick := h.lobby.Config().TickInterval()
	h.clock.Advance(3 * time.Second)
	a.conn.waitFor(t, "state", "")
	a.conn.reset()
	h.clock.Advance(tick)

	require.Eventually(t, func() bool {
		snap, ok := h.lobby.RoomSnapshot(roomID)
		if !ok {
			return false
		}
		p, ok := snap.Player(a.id)
		return ok && p.Position.X > h.lobby.Config().SpawnInset
	}, 2*time.Second, time.Millisecond)
}

func TestMatchEndsAtDeadline(t *testing.T) {
	h := newHarness(t)
	a, b := h.connect(), h.connect()
	startMatch(t, h, a, b)

	h.clock.Advance(78 * time.Second)

	ended := a.conn.waitFor(t, "matchEvent", protocol.EventEnded)
	assert.Equal(t, match.ReasonTimer, ended["reason"])
	assert.Contains(t, ended, "winnerId")
	scores := ended["scores"].([]any)
	require.Len(t, scores, 2)
	assert.Equal(t, 1.0, scores[0].(map[string]any)["slot"])

	require.Eventually(t, func() bool { return h.roomCount() == 0 }, 2*time.Second, time.Millisecond)
	for _, cl := range []client{a, b} {
		p := h.player(cl.id)
		assert.Equal(t, session.StatusIdle, p.Status)
		assert.False(t, p.InRoom())
	}
	assert.Empty(t, h.lobby.Snapshot().Rooms)
	h.assertConsistent()

	// Released players can queue again.
	h.send(a, joinQueue("blitz", "chill"))
	assert.Equal(t, protocol.QueueWaiting, a.conn.last("queue")["status"])
}

func TestDisconnectMidMatch(t *testing.T) {
	h := newHarness(t)
	a, b := h.connect(), h.connect()
	startMatch(t, h, a, b)

	h.lobby.Disconnect(a.id)

	ended := b.conn.waitFor(t, "matchEvent", protocol.EventEnded)
	assert.Equal(t, match.ReasonDisconnected, ended["reason"])
	assert.Nil(t, ended["winnerId"])

	leftAt := b.conn.indexOf("matchEvent", protocol.EventPlayerLeft)
	require.GreaterOrEqual(t, leftAt, 0)
	assert.Less(t, leftAt, b.conn.indexOf("matchEvent", protocol.EventEnded))
	assert.Equal(t, a.id, b.conn.match("matchEvent", protocol.EventPlayerLeft)[0]["playerId"])

	require.Eventually(t, func() bool { return h.roomCount() == 0 }, 2*time.Second, time.Millisecond)
	assert.Equal(t, session.StatusIdle, h.player(b.id).Status)
	assert.Equal(t, 1, h.lobby.Snapshot().OnlinePlayers)
	h.assertConsistent()
}

func TestRenameInMatchBroadcastsRoster(t *testing.T) {
	h := newHarness(t)
	a, b := h.connect(), h.connect()
	startMatch(t, h, a, b)

	h.send(a, protocol.SetName{Name: "  Nova  "})
	h.send(b, protocol.SetAvatar{AvatarKey: "red"})
	h.send(b, protocol.SetAvatar{AvatarKey: "chartreuse"})

	rosters := b.conn.match("matchEvent", protocol.EventRoster)
	require.Len(t, rosters, 3)
	entries := rosters[2]["roster"].([]any)
	assert.Equal(t, "Nova", entries[0].(map[string]any)["name"])
	assert.Equal(t, "red", entries[1].(map[string]any)["avatarKey"])
	assert.Equal(t, "red", h.player(b.id).AvatarKey, "unknown avatars are ignored")
}

func TestCloseStopsRooms(t *testing.T) {
	h := newHarness(t)
	a, b := h.connect(), h.connect()
	startMatch(t, h, a, b)

	h.lobby.Close()

	assert.Equal(t, 0, h.roomCount())
	assert.Equal(t, session.StatusIdle, h.player(a.id).Status)
}

func TestBlitzRoomUsesTarget(t *testing.T) {
	h := newHarness(t, func(g *config.GameConfig) { g.RequiredPlayers = 1 })
	a := h.connect()

	h.send(a, joinQueue("blitz", "chill"))

	assign := a.conn.waitFor(t, "matchAssignment", "")
	mode := assign["mode"].(map[string]any)
	assert.Equal(t, "target", mode["winCondition"])
	assert.Equal(t, 12.0, mode["targetScore"])
	assert.Equal(t, 1.0, assign["slot"])
}
