package lobby

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"coin-arena/internal/clock"
	"coin-arena/internal/config"
	"coin-arena/internal/protocol"
	"coin-arena/internal/session"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.UnixMilli(1_700_000_000_000)

const budget = 200 * time.Millisecond

type frame map[string]any

// testConn records decoded frames. Room pumps write from their own
// goroutines, so access is locked.
type testConn struct {
	mu     sync.Mutex
	frames []frame
}

func (c *testConn) Send(raw []byte) error {
	var f frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, f)
	return nil
}

func (c *testConn) Close() error { return nil }

func (c *testConn) all() []frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]frame(nil), c.frames...)
}

// match returns frames of the given type, optionally narrowed to a
// matchEvent name.
func (c *testConn) match(typ, event string) []frame {
	var out []frame
	for _, f := range c.all() {
		if f["type"] != typ {
			continue
		}
		if event != "" && f["event"] != event {
			continue
		}
		out = append(out, f)
	}
	return out
}

func (c *testConn) last(typ string) frame {
	fs := c.match(typ, "")
	if len(fs) == 0 {
		return nil
	}
	return fs[len(fs)-1]
}

func (c *testConn) waitFor(t *testing.T, typ, event string) frame {
	t.Helper()
	var got frame
	require.Eventually(t, func() bool {
		fs := c.match(typ, event)
		if len(fs) == 0 {
			return false
		}
		got = fs[len(fs)-1]
		return true
	}, 2*time.Second, time.Millisecond, "waiting for %s %s", typ, event)
	return got
}

// indexOf is the position of the first matching frame, or -1.
func (c *testConn) indexOf(typ, event string) int {
	for i, f := range c.all() {
		if f["type"] == typ && (event == "" || f["event"] == event) {
			return i
		}
	}
	return -1
}

func (c *testConn) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = nil
}

type harness struct {
	t     *testing.T
	lobby *Lobby
	clock *clock.Fake
}

func newHarness(t *testing.T, tweak ...func(*config.GameConfig)) *harness {
	t.Helper()
	return newHarnessWith(t, func(o *Options) {
		for _, fn := range tweak {
			fn(&o.Game)
		}
	})
}

// newHarnessWith builds a lobby on a fake clock after opts adjusts the
// default options.
func newHarnessWith(t *testing.T, opts func(*Options)) *harness {
	t.Helper()
	clk := clock.NewFake(t0)
	o := Options{Game: config.DefaultGame(), Clock: clk, Logger: zerolog.Nop()}
	opts(&o)
	l := New(o)
	t.Cleanup(l.Close)
	return &harness{t: t, lobby: l, clock: clk}
}

type client struct {
	id   string
	conn *testConn
}

func (h *harness) connect() client {
	conn := &testConn{}
	p := h.lobby.Connect(conn, budget)
	return client{id: p.ID, conn: conn}
}

func (h *harness) send(c client, msg protocol.Inbound) {
	h.lobby.Dispatch(c.id, msg)
}

// player reads a copy of a player's state under the lobby lock.
func (h *harness) player(id string) session.Player {
	h.lobby.mu.Lock()
	defer h.lobby.mu.Unlock()
	p, ok := h.lobby.players.Get(id)
	require.True(h.t, ok, "player %s not registered", id)
	return *p
}

func (h *harness) roomCount() int {
	h.lobby.mu.Lock()
	defer h.lobby.mu.Unlock()
	return len(h.lobby.rooms)
}

// assertConsistent checks that every player's status matches the stores.
func (h *harness) assertConsistent() {
	t := h.t
	t.Helper()
	l := h.lobby
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, p := range l.players.All() {
		queued := l.queue.Contains(p.ID)
		_, challenged := l.challenges.ForPlayer(p.ID)
		inRoom := p.InRoom()

		n := 0
		for _, b := range []bool{queued, challenged, inRoom} {
			if b {
				n++
			}
		}
		assert.LessOrEqual(t, n, 1, "player %s in several places", p.ID)

		switch p.Status {
		case session.StatusQueued:
			assert.True(t, queued, "queued player %s missing from queue", p.ID)
		case session.StatusChallenging, session.StatusChallenged:
			assert.True(t, challenged, "player %s has no challenge", p.ID)
		case session.StatusInMatch:
			assert.True(t, inRoom, "player %s has no room", p.ID)
		case session.StatusIdle:
			assert.Equal(t, 0, n, "idle player %s is busy", p.ID)
		}
		if inRoom {
			_, ok := l.rooms[p.RoomID]
			assert.True(t, ok, "player %s points at a dead room", p.ID)
		}
	}
	for _, r := range l.rooms {
		assert.LessOrEqual(t, len(r.attached()), l.cfg.RequiredPlayers)
	}
}

func joinQueue(mode, difficulty string) protocol.JoinQueue {
	return protocol.JoinQueue{ModeKey: mode, DifficultyKey: difficulty}
}
