package lobby

import (
	"coin-arena/internal/config"
	"coin-arena/internal/lagcomp"
	"coin-arena/internal/match"
	"coin-arena/internal/metrics"
	"coin-arena/internal/protocol"
	"coin-arena/internal/session"
)

// roomHandle is the supervisor's side of a running room.
type roomHandle struct {
	id         string
	mode       config.Mode
	difficulty config.Difficulty
	room       *match.Room
	dist       *lagcomp.Distributor

	members []*session.Player // slot order, including pilots who left
	slots   map[string]int
	phase   match.Phase

	released bool
}

// attached returns members still bound to this room.
func (h *roomHandle) attached() []*session.Player {
	out := make([]*session.Player, 0, len(h.members))
	for _, p := range h.members {
		if p.RoomID == h.id {
			out = append(out, p)
		}
	}
	return out
}

func (h *roomHandle) roster() []protocol.RosterEntry {
	out := make([]protocol.RosterEntry, 0, len(h.members))
	for _, p := range h.attached() {
		out = append(out, protocol.RosterEntry{
			ID:        p.ID,
			Name:      p.Name,
			Slot:      h.slots[p.ID],
			AvatarKey: p.AvatarKey,
		})
	}
	return out
}

func (h *roomHandle) broadcast(msg protocol.Outbound) {
	for _, p := range h.attached() {
		p.Send(msg)
	}
}

func (h *roomHandle) member(id string) (*session.Player, bool) {
	for _, p := range h.members {
		if p.ID == id {
			return p, true
		}
	}
	return nil, false
}

// createRoom launches a room for roster, assigning slots in roster order.
func (l *Lobby) createRoom(sel config.Selection, roster []*session.Player) {
	mode, _ := config.LookupMode(sel.ModeKey)
	difficulty, _ := config.LookupDifficulty(sel.DifficultyKey)

	h := &roomHandle{
		id:         session.NewID(6),
		mode:       mode,
		difficulty: difficulty,
		dist:       lagcomp.NewDistributor(l.cfg.HistoryWindow),
		members:    roster,
		slots:      make(map[string]int, len(roster)),
		phase:      match.PhaseStaging,
	}
	entrants := make([]match.Entrant, 0, len(roster))
	for i, p := range roster {
		slot := i + 1
		h.slots[p.ID] = slot
		entrants = append(entrants, match.Entrant{ID: p.ID, Slot: slot})
		p.RoomID = h.id
		p.Status = session.StatusInMatch
		p.Selection = nil
	}

	sim := l.build(match.Settings{
		RoomID:     h.id,
		Game:       l.cfg,
		Mode:       mode,
		Difficulty: difficulty,
	}, entrants)
	h.room = match.NewRoom(h.id, sim, l.clock, l.cfg.TickInterval(), l.log)

	l.rooms[h.id] = h
	l.roomOrder = append(l.roomOrder, h.id)
	l.touch()

	roll := h.roster()
	for _, p := range roster {
		p.Send(protocol.MatchAssignment{
			RoomID:     h.id,
			Slot:       h.slots[p.ID],
			Mode:       mode,
			Difficulty: difficulty,
			Opponents:  roll,
		})
	}
	h.broadcast(protocol.MatchRoster{RoomID: h.id, Event: protocol.EventRoster, Roster: roll})

	metrics.RoomStarted()
	l.log.Info().Str("room", h.id).Str("mode", mode.Key).Str("difficulty", difficulty.Key).Msg("🎮 Room launched")

	l.pumps.Add(1)
	go h.room.Run()
	go l.pump(h)
	if l.closed {
		h.room.Stop()
	}
}

// pump applies a room's events in order until its channel closes.
func (l *Lobby) pump(h *roomHandle) {
	defer l.pumps.Done()
	for ev := range h.room.Events() {
		l.mu.Lock()
		l.handleRoomEvent(h, ev)
		l.flush()
		l.mu.Unlock()
	}
	l.mu.Lock()
	l.release(h, "stopped")
	l.flush()
	l.mu.Unlock()
}

func (l *Lobby) handleRoomEvent(h *roomHandle, ev match.Event) {
	if h.released {
		return
	}
	switch e := ev.(type) {
	case match.StartedEvent:
		h.phase = match.PhaseCountdown
		l.touch()
		h.broadcast(protocol.MatchStarted{
			RoomID:          h.id,
			Event:           protocol.EventStarted,
			CountdownEndsAt: e.CountdownEndsAt,
			MatchEndsAt:     e.MatchEndsAt,
		})

	case match.StateEvent:
		l.distribute(h, e.Snapshot)

	case match.EndedEvent:
		if e.Result.Reason == match.ReasonDisconnected {
			h.phase = match.PhaseTerminated
		} else {
			h.phase = match.PhaseResults
		}
		h.broadcast(protocol.MatchEnded{
			RoomID:   h.id,
			Event:    protocol.EventEnded,
			WinnerID: e.Result.WinnerID,
			Scores:   l.enrichScores(h, e.Result.Scores),
			Reason:   e.Result.Reason,
		})
		l.log.Info().Str("room", h.id).Str("reason", e.Result.Reason).Msg("🏁 Match ended")
		l.release(h, e.Result.Reason)

	case match.FaultEvent:
		h.phase = match.PhaseTerminated
		h.broadcast(protocol.MatchError{RoomID: h.id, Event: protocol.EventError, Message: MessageMatchCrashed})
		l.log.Error().Err(e.Err).Str("room", h.id).Msg("💥 Room torn down")
		l.release(h, "fault")
	}
}

// distribute enriches a tick with pilot identities and sends each attached
// member its lag-compensated view.
func (l *Lobby) distribute(h *roomHandle, snap match.Snapshot) {
	if snap.Match.Phase != h.phase {
		h.phase = snap.Match.Phase
		l.touch()
	}

	players := make([]match.PlayerState, len(snap.Players))
	for i, ps := range snap.Players {
		if p, ok := h.member(ps.ID); ok {
			ps.Name = p.Name
			ps.AvatarKey = p.AvatarKey
		} else {
			ps.Name = ps.ID
		}
		players[i] = ps
	}
	snap.Players = players

	recipients := h.attached()
	viewers := make([]lagcomp.Viewer, len(recipients))
	for i, p := range recipients {
		viewers[i] = lagcomp.Viewer{ID: p.ID, Budget: p.LatencyBudget}
	}
	for i, view := range h.dist.Distribute(snap, viewers) {
		recipients[i].Send(protocol.State{Snapshot: view})
	}
}

func (l *Lobby) enrichScores(h *roomHandle, scores []match.Score) []protocol.ScoreEntry {
	out := make([]protocol.ScoreEntry, 0, len(scores))
	for _, s := range scores {
		entry := protocol.ScoreEntry{ID: s.ID, Score: s.Score, Name: s.ID, Slot: 1}
		if p, ok := h.member(s.ID); ok {
			entry.Name = p.Name
			entry.Slot = h.slots[p.ID]
			entry.AvatarKey = p.AvatarKey
		}
		out = append(out, entry)
	}
	return out
}

// detach unbinds a departing player and tells the room. The remaining
// members hear about it first; the room then ends itself if it is short.
func (l *Lobby) detach(p *session.Player, reason string) {
	h, ok := l.rooms[p.RoomID]
	p.RoomID = ""
	p.Status = session.StatusIdle
	l.touch()
	if !ok {
		return
	}
	h.broadcast(protocol.MatchPlayerLeft{RoomID: h.id, Event: protocol.EventPlayerLeft, PlayerID: p.ID, Reason: reason})
	h.room.Leave(p.ID)
}

// release returns the room's members to idle and forgets the room. Only
// the first call has any effect.
func (l *Lobby) release(h *roomHandle, reason string) {
	if h.released {
		return
	}
	h.released = true
	h.room.Stop()

	for _, p := range h.attached() {
		p.RoomID = ""
		p.Selection = nil
		if !l.challenges.Active(p.ID) {
			p.Status = session.StatusIdle
		}
	}
	delete(l.rooms, h.id)
	for i, id := range l.roomOrder {
		if id == h.id {
			l.roomOrder = append(l.roomOrder[:i], l.roomOrder[i+1:]...)
			break
		}
	}
	metrics.RoomFinished(reason)
	l.touch()
}
