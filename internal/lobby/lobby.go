// Package lobby owns every player-facing store: the session registry, the
// match queue, pending challenges and running rooms. A single mutex
// serializes all mutation; rooms run on their own goroutines and report
// back through per-room event pumps.
package lobby

import (
	"sync"
	"time"

	"coin-arena/internal/clock"
	"coin-arena/internal/config"
	"coin-arena/internal/match"
	"coin-arena/internal/metrics"
	"coin-arena/internal/protocol"
	"coin-arena/internal/session"

	"github.com/rs/zerolog"
)

// Options configures a Lobby.
type Options struct {
	Game   config.GameConfig
	Clock  clock.Clock // defaults to clock.Real
	Logger zerolog.Logger
	// Engine builds each room's simulation. Defaults to match.NewSimulation.
	Engine func(match.Settings, []match.Entrant) match.Engine
}

func newSimulation(s match.Settings, roster []match.Entrant) match.Engine {
	return match.NewSimulation(s, roster)
}

// Lobby is the room supervisor.
type Lobby struct {
	mu    sync.Mutex
	cfg   config.GameConfig
	clock clock.Clock
	log   zerolog.Logger
	build func(match.Settings, []match.Entrant) match.Engine

	players    *session.Registry
	queue      *Queue
	challenges *Broker
	rooms      map[string]*roomHandle
	roomOrder  []string

	dirty  bool // lobby snapshot must be re-broadcast
	closed bool
	pumps  sync.WaitGroup
}

// New creates an empty lobby.
func New(opts Options) *Lobby {
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real{}
	}
	build := opts.Engine
	if build == nil {
		build = newSimulation
	}
	return &Lobby{
		cfg:        opts.Game,
		build:      build,
		clock:      clk,
		log:        opts.Logger,
		players:    session.NewRegistry(),
		queue:      NewQueue(),
		challenges: NewBroker(clk, opts.Game.ChallengeTTL),
		rooms:      make(map[string]*roomHandle),
	}
}

// Connect registers a new player on conn and sends the welcome frame.
func (l *Lobby) Connect(conn session.Conn, budget time.Duration) *session.Player {
	l.mu.Lock()
	defer l.mu.Unlock()
	defer l.flush()

	p := session.NewPlayer(session.NewID(6), conn, budget)
	l.players.Add(p)
	l.touch()

	p.Send(protocol.Welcome{
		PlayerID:     p.ID,
		LatencyMs:    budget.Milliseconds(),
		Map:          l.cfg.Map,
		Difficulties: config.Difficulties(),
		Modes:        config.Modes(),
		Avatars:      config.Avatars(),
		Player:       p.Public(),
		Lobby:        l.snapshotLocked(),
	})
	l.log.Info().Str("player", p.ID).Int("online", l.players.Len()).Msg("📱 Player connected")
	return p
}

// Disconnect removes a player and cascades: queue exit, challenge
// cancellation and room detachment.
func (l *Lobby) Disconnect(playerID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	defer l.flush()

	p, ok := l.players.Get(playerID)
	if !ok {
		return
	}
	l.leaveQueue(p)
	if c, ok := l.challenges.ForPlayer(p.ID); ok {
		l.finishChallenge(c.ID, ChallengeCancelled, ReasonDisconnect)
	}
	if p.InRoom() {
		l.detach(p, ReasonDisconnect)
	}
	l.players.Remove(p.ID)
	l.touch()
	l.log.Info().Str("player", p.ID).Int("online", l.players.Len()).Msg("📱 Player disconnected")
}

// Dispatch applies one decoded client frame from playerID.
func (l *Lobby) Dispatch(playerID string, msg protocol.Inbound) {
	l.mu.Lock()
	defer l.mu.Unlock()
	defer l.flush()

	p, ok := l.players.Get(playerID)
	if !ok {
		return
	}

	switch m := msg.(type) {
	case protocol.SetName:
		l.rename(p, m.Name)
	case protocol.SetAvatar:
		l.setAvatar(p, m.AvatarKey)
	case protocol.JoinQueue:
		l.leaveQueue(p)
		l.enqueue(p, m.Selection())
	case protocol.LeaveQueue:
		l.leaveQueue(p)
		p.Send(protocol.Queue{Status: protocol.QueueIdle})
	case protocol.ChallengePlayer:
		l.challengePlayer(p, m.TargetID, m.Selection())
	case protocol.RespondChallenge:
		l.respondChallenge(p, m.ChallengeID, m.Accept)
	case protocol.CancelChallenge:
		l.cancelChallenge(p, m.ChallengeID)
	case protocol.Input:
		if h, ok := l.rooms[p.RoomID]; ok && p.InRoom() {
			h.room.Input(p.ID, m.Keys)
		}
	case protocol.LatencyPing:
		p.Send(protocol.LatencyPong{SentAt: m.SentAt})
	default:
		l.log.Debug().Str("player", p.ID).Msgf("Ignoring frame %T", msg)
	}
}

func (l *Lobby) rename(p *session.Player, raw string) {
	name, ok := session.SanitizeName(raw)
	if !ok {
		return
	}
	p.Name = name
	l.identityChanged(p)
}

func (l *Lobby) setAvatar(p *session.Player, key string) {
	if _, ok := config.LookupAvatar(key); !ok {
		return
	}
	p.AvatarKey = key
	l.identityChanged(p)
}

func (l *Lobby) identityChanged(p *session.Player) {
	if h, ok := l.rooms[p.RoomID]; ok && p.InRoom() {
		h.broadcast(protocol.MatchRoster{RoomID: h.id, Event: protocol.EventRoster, Roster: h.roster()})
		return
	}
	l.touch()
}

// Snapshot returns the current lobby summary.
func (l *Lobby) Snapshot() protocol.LobbySnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

// Config returns the game configuration the lobby runs with.
func (l *Lobby) Config() config.GameConfig {
	return l.cfg
}

// RoomSnapshot returns the newest simulation snapshot of a running room.
func (l *Lobby) RoomSnapshot(roomID string) (match.Snapshot, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	h, ok := l.rooms[roomID]
	if !ok {
		return match.Snapshot{}, false
	}
	snap, ok := h.dist.Latest()
	if !ok {
		// Not ticked yet: report an empty arena in its current phase.
		return match.Snapshot{RoomID: h.id, Match: match.Meta{Phase: h.phase, ModeKey: h.mode.Key, DifficultyKey: h.difficulty.Key}}, true
	}
	return snap, true
}

// Close stops every room and waits for their pumps to finish.
func (l *Lobby) Close() {
	l.mu.Lock()
	l.closed = true
	for _, h := range l.rooms {
		h.room.Stop()
	}
	l.mu.Unlock()
	l.pumps.Wait()
}

func (l *Lobby) snapshotLocked() protocol.LobbySnapshot {
	snap := protocol.LobbySnapshot{
		OnlinePlayers:  l.players.Len(),
		WaitingPlayers: l.queue.Waiting(),
		Rooms:          make([]protocol.RoomSummary, 0, len(l.roomOrder)),
		Players:        make([]protocol.LobbyPlayer, 0, l.players.Len()),
	}
	for _, id := range l.roomOrder {
		h := l.rooms[id]
		snap.Rooms = append(snap.Rooms, protocol.RoomSummary{
			ID:            h.id,
			ModeKey:       h.mode.Key,
			DifficultyKey: h.difficulty.Key,
			Phase:         h.phase,
			Players:       h.roster(),
		})
	}
	for _, p := range l.players.All() {
		lp := protocol.LobbyPlayer{
			ID:        p.ID,
			Name:      p.Name,
			AvatarKey: p.AvatarKey,
			Status:    string(p.Status),
		}
		if p.InRoom() {
			roomID := p.RoomID
			lp.CurrentRoomID = &roomID
		}
		if p.Selection != nil {
			sel := *p.Selection
			lp.Selection = &sel
		}
		snap.Players = append(snap.Players, lp)
	}
	return snap
}

// touch marks the lobby summary stale.
func (l *Lobby) touch() { l.dirty = true }

// flush broadcasts the lobby summary once per operation. Callers hold mu.
func (l *Lobby) flush() {
	if !l.dirty {
		return
	}
	l.dirty = false
	snap := l.snapshotLocked()
	for _, p := range l.players.All() {
		p.Send(snap)
	}
	metrics.SetPlayersOnline(snap.OnlinePlayers)
	metrics.SetQueueWaiting(snap.WaitingPlayers)
}
