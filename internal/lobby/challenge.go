package lobby

import (
	"time"

	"coin-arena/internal/clock"
	"coin-arena/internal/config"
	"coin-arena/internal/metrics"
	"coin-arena/internal/protocol"
	"coin-arena/internal/session"
)

// ChallengeState is the lifecycle of a direct challenge. Pending is the
// only non-terminal state.
type ChallengeState string

const (
	ChallengePending   ChallengeState = "pending"
	ChallengeAccepted  ChallengeState = "accepted"
	ChallengeDeclined  ChallengeState = "declined"
	ChallengeExpired   ChallengeState = "expired"
	ChallengeCancelled ChallengeState = "cancelled"
)

// Challenge is a direct match proposal from one player to another.
type Challenge struct {
	ID           string
	ChallengerID string
	TargetID     string
	Selection    config.Selection
	ExpiresAt    time.Time
	State        ChallengeState

	timer clock.Timer
}

// Involves reports whether id is either party.
func (c *Challenge) Involves(id string) bool {
	return c.ChallengerID == id || c.TargetID == id
}

// Broker stores pending challenges and guarantees each one leaves the
// pending state exactly once.
type Broker struct {
	clock clock.Clock
	ttl   time.Duration
	byID  map[string]*Challenge
}

func NewBroker(clk clock.Clock, ttl time.Duration) *Broker {
	return &Broker{clock: clk, ttl: ttl, byID: make(map[string]*Challenge)}
}

// Open creates a pending challenge and arms its expiry timer. onExpire
// runs on the timer goroutine with the challenge id.
func (b *Broker) Open(challengerID, targetID string, sel config.Selection, onExpire func(id string)) *Challenge {
	c := &Challenge{
		ID:           session.NewID(10),
		ChallengerID: challengerID,
		TargetID:     targetID,
		Selection:    sel,
		ExpiresAt:    b.clock.Now().Add(b.ttl),
		State:        ChallengePending,
	}
	id := c.ID
	c.timer = b.clock.AfterFunc(b.ttl, func() { onExpire(id) })
	b.byID[id] = c
	return c
}

// Get returns a pending challenge.
func (b *Broker) Get(id string) (*Challenge, bool) {
	c, ok := b.byID[id]
	return c, ok
}

// ForPlayer returns the pending challenge involving id, if any.
func (b *Broker) ForPlayer(id string) (*Challenge, bool) {
	for _, c := range b.byID {
		if c.Involves(id) {
			return c, true
		}
	}
	return nil, false
}

// Active reports whether id is party to a pending challenge.
func (b *Broker) Active(id string) bool {
	_, ok := b.ForPlayer(id)
	return ok
}

// Resolve moves a pending challenge to a terminal state, disarms its timer
// and forgets it. It returns false if the challenge was already resolved.
func (b *Broker) Resolve(id string, state ChallengeState) (*Challenge, bool) {
	c, ok := b.byID[id]
	if !ok || c.State != ChallengePending || state == ChallengePending {
		return nil, false
	}
	delete(b.byID, id)
	c.timer.Stop()
	c.State = state
	metrics.ChallengeResolved(string(state))
	return c, true
}

func (b *Broker) Len() int { return len(b.byID) }

// available reports whether p can take part in a new challenge.
func (l *Lobby) available(p *session.Player) bool {
	if p.InRoom() || l.challenges.Active(p.ID) {
		return false
	}
	return p.Status == session.StatusIdle
}

func (l *Lobby) challengePlayer(challenger *session.Player, targetID string, requested config.Selection) {
	fail := func(reason string) {
		challenger.Send(protocol.ChallengeUpdate{State: StateError, Reason: reason})
	}
	if targetID == "" || targetID == challenger.ID {
		fail(ReasonInvalidTarget)
		return
	}
	target, ok := l.players.Get(targetID)
	if !ok {
		fail(ReasonNotFound)
		return
	}
	if !l.available(challenger) || !l.available(target) {
		fail(ReasonUnavailable)
		return
	}

	sel := config.ValidateSelection(requested)
	c := l.challenges.Open(challenger.ID, target.ID, sel, l.expireChallenge)
	challenger.Status = session.StatusChallenging
	target.Status = session.StatusChallenged
	l.touch()

	opponent := target.Public()
	challenger.Send(protocol.ChallengeUpdate{
		ChallengeID: c.ID,
		State:       string(ChallengePending),
		Opponent:    &opponent,
		Selection:   &sel,
	})
	target.Send(protocol.ChallengeRequest{
		ChallengeID: c.ID,
		From:        challenger.Public(),
		Selection:   sel,
		ExpiresInMs: l.cfg.ChallengeTTL.Milliseconds(),
	})
	l.log.Info().Str("challenge", c.ID).Str("from", challenger.ID).Str("to", target.ID).Msg("⚔️ Challenge issued")
}

func (l *Lobby) respondChallenge(p *session.Player, id string, accept bool) {
	c, ok := l.challenges.Get(id)
	if !ok {
		p.Send(protocol.ChallengeUpdate{ChallengeID: id, State: StateError, Reason: ReasonNotPending})
		return
	}
	if c.TargetID != p.ID {
		p.Send(protocol.ChallengeUpdate{ChallengeID: id, State: StateError, Reason: ReasonForbidden})
		return
	}
	if !accept {
		l.finishChallenge(id, ChallengeDeclined, ReasonDeclined)
		return
	}

	challenger, okC := l.players.Get(c.ChallengerID)
	target, okT := l.players.Get(c.TargetID)
	if !okC || !okT {
		l.finishChallenge(id, ChallengeCancelled, ReasonDisconnect)
		return
	}
	if challenger.InRoom() || target.InRoom() {
		l.finishChallenge(id, ChallengeCancelled, ReasonUnavailable)
		return
	}

	if _, ok := l.challenges.Resolve(id, ChallengeAccepted); !ok {
		return
	}
	forChallenger, forTarget := target.Public(), challenger.Public()
	challenger.Send(protocol.ChallengeUpdate{ChallengeID: id, State: string(ChallengeAccepted), Opponent: &forChallenger})
	target.Send(protocol.ChallengeUpdate{ChallengeID: id, State: string(ChallengeAccepted), Opponent: &forTarget})
	l.createRoom(c.Selection, []*session.Player{challenger, target})
}

func (l *Lobby) cancelChallenge(p *session.Player, id string) {
	c, ok := l.challenges.Get(id)
	if !ok {
		p.Send(protocol.ChallengeUpdate{ChallengeID: id, State: StateError, Reason: ReasonNotPending})
		return
	}
	if !c.Involves(p.ID) {
		p.Send(protocol.ChallengeUpdate{ChallengeID: id, State: StateError, Reason: ReasonForbidden})
		return
	}
	l.finishChallenge(id, ChallengeCancelled, ReasonCancelled)
}

// expireChallenge is the TTL timer callback.
func (l *Lobby) expireChallenge(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	defer l.flush()
	l.finishChallenge(id, ChallengeExpired, ReasonTimeout)
}

// finishChallenge is the single non-accept terminal path: both parties
// still waiting on the challenge are notified and returned to idle.
func (l *Lobby) finishChallenge(id string, state ChallengeState, reason string) bool {
	c, ok := l.challenges.Resolve(id, state)
	if !ok {
		return false
	}
	challenger, okC := l.players.Get(c.ChallengerID)
	target, okT := l.players.Get(c.TargetID)

	notify := func(p *session.Player, want session.Status, other *session.Player, present bool) {
		if p.Status != want {
			return
		}
		p.Status = session.StatusIdle
		update := protocol.ChallengeUpdate{ChallengeID: id, State: string(state), Reason: reason}
		if present {
			op := other.Public()
			update.Opponent = &op
		}
		p.Send(update)
	}
	if okC {
		notify(challenger, session.StatusChallenging, target, okT)
	}
	if okT {
		notify(target, session.StatusChallenged, challenger, okC)
	}
	l.touch()
	l.log.Info().Str("challenge", id).Str("state", string(state)).Str("reason", reason).Msg("⚔️ Challenge closed")
	return true
}
