package match

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"coin-arena/internal/config"
)

const hazardTint = "#7c3aed"

// Settings configures one simulation.
type Settings struct {
	RoomID     string
	Game       config.GameConfig
	Mode       config.Mode
	Difficulty config.Difficulty
	Rand       *rand.Rand // nil seeds from the room id
}

type pilot struct {
	id       string
	slot     int
	position Vec2
	velocity Vec2
	keys     Keys
	score    int
}

// Simulation is the authoritative state of one match. It is not safe for
// concurrent use; the owning Room serializes every call.
type Simulation struct {
	settings Settings
	rng      *rand.Rand
	dt       float64

	pilots []*pilot // slot order
	phase  Phase

	countdownEndsAt int64
	matchEndsAt     int64
	nextCoinAt      int64 // 0 until the first playing tick
	nextHazardAt    int64

	coins   []Coin
	hazards []Hazard
	spawned int // entities ever spawned; ids are unique per match
	result  *Result
}

// NewSimulation creates a staged simulation for the given roster.
func NewSimulation(s Settings, roster []Entrant) *Simulation {
	rng := s.Rand
	if rng == nil {
		var seed int64
		for _, c := range s.RoomID {
			seed = seed*31 + int64(c)
		}
		rng = rand.New(rand.NewSource(seed ^ time.Now().UnixNano()))
	}
	sim := &Simulation{
		settings: s,
		rng:      rng,
		dt:       s.Game.TickInterval().Seconds(),
		phase:    PhaseStaging,
	}
	for _, e := range roster {
		sim.pilots = append(sim.pilots, &pilot{id: e.ID, slot: e.Slot})
	}
	sort.SliceStable(sim.pilots, func(i, j int) bool { return sim.pilots[i].slot < sim.pilots[j].slot })
	for _, p := range sim.pilots {
		p.position = sim.spawn(p.slot)
	}
	return sim
}

// Phase returns the current phase.
func (s *Simulation) Phase() Phase { return s.phase }

// Result returns the terminal outcome once the match has finished.
func (s *Simulation) Result() *Result { return s.result }

// Pilots is the number of pilots still in the match.
func (s *Simulation) Pilots() int { return len(s.pilots) }

// Start moves a staged match into its countdown and fixes both deadlines.
// It returns the countdown and match end timestamps in Unix milliseconds.
func (s *Simulation) Start(now time.Time) (countdownEndsAt, matchEndsAt int64) {
	if s.phase != PhaseStaging {
		return s.countdownEndsAt, s.matchEndsAt
	}
	s.phase = PhaseCountdown
	s.countdownEndsAt = now.Add(s.settings.Game.Countdown).UnixMilli()
	s.matchEndsAt = s.countdownEndsAt + int64(s.settings.Difficulty.MatchDurationMs)
	s.coins = nil
	s.hazards = nil
	s.nextCoinAt = 0
	s.nextHazardAt = 0
	for _, p := range s.pilots {
		p.position = s.spawn(p.slot)
		p.velocity = Vec2{}
		p.keys = Keys{}
		p.score = 0
	}
	return s.countdownEndsAt, s.matchEndsAt
}

// ApplyInput merges a key patch into a pilot's held keys. Unknown ids and
// finished matches are ignored.
func (s *Simulation) ApplyInput(id string, patch KeyPatch) {
	if s.phase.Finished() {
		return
	}
	if p := s.find(id); p != nil {
		p.keys = patch.Apply(p.keys)
	}
}

// RemovePlayer drops a pilot. When the roster falls below the required
// size the match terminates and the result is returned.
func (s *Simulation) RemovePlayer(id string) *Result {
	for i, p := range s.pilots {
		if p.id == id {
			s.pilots = append(s.pilots[:i], s.pilots[i+1:]...)
			break
		}
	}
	if s.phase.Finished() || len(s.pilots) >= s.settings.Game.RequiredPlayers {
		return nil
	}
	s.phase = PhaseTerminated
	s.result = &Result{Scores: s.scores(), Reason: ReasonDisconnected}
	return s.result
}

// Step advances one fixed tick and returns the resulting snapshot. A
// non-nil result means this tick ended the match; later calls only
// re-snapshot the final state.
func (s *Simulation) Step(now time.Time) (Snapshot, *Result) {
	if s.phase.Finished() || s.phase == PhaseStaging {
		return s.snapshot(now.UnixMilli()), nil
	}
	ms := now.UnixMilli()
	if s.phase == PhaseCountdown && ms >= s.countdownEndsAt {
		s.phase = PhasePlaying
	}

	var res *Result
	if s.phase == PhasePlaying {
		for _, p := range s.pilots {
			s.integrate(p)
		}
		s.collectCoins()
		s.resolveHazards(ms)
		s.spawnCoin(ms)
		s.spawnHazard(ms)
		res = s.evaluate(ms)
	}
	if res != nil {
		s.phase = PhaseResults
		s.result = res
	}
	return s.snapshot(ms), res
}

func (s *Simulation) integrate(p *pilot) {
	dx, dy := p.keys.Direction()
	speed := s.settings.Difficulty.PlayerSpeed
	if dx != 0 || dy != 0 {
		l := math.Hypot(dx, dy)
		p.velocity = Vec2{X: dx / l * speed, Y: dy / l * speed}
	} else {
		p.velocity = Vec2{}
	}
	p.position.X += p.velocity.X * s.dt
	p.position.Y += p.velocity.Y * s.dt
	p.position = ClampToArena(p.position, s.settings.Game)
}

// ClampToArena keeps a pilot's centre half a pilot away from every wall.
func ClampToArena(pos Vec2, g config.GameConfig) Vec2 {
	half := g.PlayerSize / 2
	pos.X = math.Max(half, math.Min(g.Map.Width-half, pos.X))
	pos.Y = math.Max(half, math.Min(g.Map.Height-half, pos.Y))
	return pos
}

func (s *Simulation) collectCoins() {
	reach := s.settings.Game.CoinRadius + s.settings.Game.PlayerSize/2
	for _, p := range s.pilots {
		kept := s.coins[:0]
		for _, c := range s.coins {
			if math.Hypot(p.position.X-c.X, p.position.Y-c.Y) <= reach {
				p.score += c.Value
				continue
			}
			kept = append(kept, c)
		}
		s.coins = kept
	}
}

func (s *Simulation) resolveHazards(now int64) {
	live := s.hazards[:0]
	for _, h := range s.hazards {
		if now < h.ExpiresAt {
			live = append(live, h)
		}
	}
	s.hazards = live
	if !s.settings.Mode.AllowHazards {
		return
	}

	reach := s.settings.Game.HazardRadius + s.settings.Game.PlayerSize/2
	for _, p := range s.pilots {
		kept := s.hazards[:0]
		for _, h := range s.hazards {
			if math.Hypot(p.position.X-h.X, p.position.Y-h.Y) <= reach {
				p.score = max(0, p.score-h.Penalty)
				continue
			}
			kept = append(kept, h)
		}
		s.hazards = kept
	}
}

func (s *Simulation) spawnCoin(now int64) {
	if s.nextCoinAt == 0 {
		s.nextCoinAt = now
	}
	limit := s.settings.Game.MaxCoins
	if s.settings.Mode.AllowHazards {
		limit = s.settings.Game.MaxCoinsWithHazards
	}
	if len(s.coins) >= limit || now < s.nextCoinAt {
		return
	}
	m := s.settings.Game.CoinMargin
	s.coins = append(s.coins, Coin{
		ID:    s.entityID("coin"),
		X:     s.between(m, s.settings.Game.Map.Width-m),
		Y:     s.between(m, s.settings.Game.Map.Height-m),
		Value: 1,
	})
	s.nextCoinAt = now + int64(s.settings.Difficulty.CoinIntervalMs)
}

func (s *Simulation) spawnHazard(now int64) {
	if !s.settings.Mode.AllowHazards {
		return
	}
	if s.nextHazardAt == 0 {
		s.nextHazardAt = now
	}
	if len(s.hazards) >= s.settings.Game.MaxHazards || now < s.nextHazardAt {
		return
	}
	m := s.settings.Game.HazardMargin
	s.hazards = append(s.hazards, Hazard{
		ID:        s.entityID("haz"),
		X:         s.between(m, s.settings.Game.Map.Width-m),
		Y:         s.between(m, s.settings.Game.Map.Height-m),
		Penalty:   1,
		ExpiresAt: now + s.settings.Game.HazardTTL.Milliseconds(),
		Tint:      hazardTint,
	})
	s.nextHazardAt = now + int64(s.settings.Difficulty.HazardIntervalMs)
}

func (s *Simulation) evaluate(now int64) *Result {
	mode := s.settings.Mode
	if mode.WinCondition == config.WinTarget && mode.TargetScore != nil {
		for _, p := range s.pilots {
			if p.score >= *mode.TargetScore {
				id := p.id
				return &Result{WinnerID: &id, Scores: s.scores(), Reason: ReasonTarget}
			}
		}
	}
	// Target matches fall back to the timer so they cannot run forever.
	if now >= s.matchEndsAt {
		return s.timerResult()
	}
	return nil
}

func (s *Simulation) timerResult() *Result {
	res := &Result{Scores: s.scores(), Reason: ReasonTimer}
	if len(s.pilots) == 0 {
		return res
	}
	ranked := append([]*pilot(nil), s.pilots...)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	if len(ranked) > 1 && ranked[0].score == ranked[1].score {
		return res
	}
	id := ranked[0].id
	res.WinnerID = &id
	return res
}

func (s *Simulation) scores() []Score {
	out := make([]Score, 0, len(s.pilots))
	for _, p := range s.pilots {
		out = append(out, Score{ID: p.id, Score: p.score})
	}
	return out
}

func (s *Simulation) snapshot(now int64) Snapshot {
	players := make([]PlayerState, 0, len(s.pilots))
	for _, p := range s.pilots {
		players = append(players, PlayerState{
			ID:       p.id,
			Slot:     p.slot,
			Position: p.position,
			Velocity: p.velocity,
			Score:    p.score,
		})
	}
	return Snapshot{
		RoomID:    s.settings.RoomID,
		Timestamp: now,
		Match: Meta{
			Phase:           s.phase,
			CountdownEndsAt: s.countdownEndsAt,
			MatchEndsAt:     s.matchEndsAt,
			ModeKey:         s.settings.Mode.Key,
			DifficultyKey:   s.settings.Difficulty.Key,
			TargetScore:     s.settings.Mode.TargetScore,
		},
		Players: players,
		Coins:   append([]Coin{}, s.coins...),
		Hazards: append([]Hazard{}, s.hazards...),
	}
}

func (s *Simulation) spawn(slot int) Vec2 {
	g := s.settings.Game
	if slot == 1 {
		return Vec2{X: g.SpawnInset, Y: g.Map.Height / 2}
	}
	return Vec2{X: g.Map.Width - g.SpawnInset, Y: g.Map.Height / 2}
}

func (s *Simulation) find(id string) *pilot {
	for _, p := range s.pilots {
		if p.id == id {
			return p
		}
	}
	return nil
}

func (s *Simulation) between(lo, hi float64) float64 {
	return lo + s.rng.Float64()*(hi-lo)
}

func (s *Simulation) entityID(prefix string) string {
	s.spawned++
	return fmt.Sprintf("%s-%05d", prefix, s.spawned)
}
