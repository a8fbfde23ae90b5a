// Package match runs one isolated arena match: a pure, step-driven
// Simulation and the Room actor goroutine that ticks it.
package match

// Phase is the match lifecycle stage.
type Phase string

const (
	PhaseStaging    Phase = "staging"
	PhaseCountdown  Phase = "countdown"
	PhasePlaying    Phase = "playing"
	PhaseResults    Phase = "results"
	PhaseTerminated Phase = "terminated"
)

// Finished reports whether the phase is terminal.
func (p Phase) Finished() bool {
	return p == PhaseResults || p == PhaseTerminated
}

// End reasons.
const (
	ReasonTarget       = "target"
	ReasonTimer        = "timer"
	ReasonDisconnected = "disconnected"
)

type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Keys is the set of held direction keys.
type Keys struct {
	Up    bool `json:"up"`
	Down  bool `json:"down"`
	Left  bool `json:"left"`
	Right bool `json:"right"`
}

// KeyPatch is a partial Keys update; nil fields keep their held value.
type KeyPatch struct {
	Up    *bool `json:"up,omitempty"`
	Down  *bool `json:"down,omitempty"`
	Left  *bool `json:"left,omitempty"`
	Right *bool `json:"right,omitempty"`
}

// Apply merges the patch into k.
func (p KeyPatch) Apply(k Keys) Keys {
	if p.Up != nil {
		k.Up = *p.Up
	}
	if p.Down != nil {
		k.Down = *p.Down
	}
	if p.Left != nil {
		k.Left = *p.Left
	}
	if p.Right != nil {
		k.Right = *p.Right
	}
	return k
}

// Direction returns the held direction as an unnormalized axis pair.
func (k Keys) Direction() (dx, dy float64) {
	if k.Left {
		dx--
	}
	if k.Right {
		dx++
	}
	if k.Up {
		dy--
	}
	if k.Down {
		dy++
	}
	return dx, dy
}

// Entrant is a roster entry handed to a new simulation.
type Entrant struct {
	ID   string
	Slot int
}

// PlayerState is one pilot inside a snapshot. Name and AvatarKey are
// filled in by the lobby before distribution.
type PlayerState struct {
	ID        string `json:"id"`
	Slot      int    `json:"slot"`
	Position  Vec2   `json:"position"`
	Velocity  Vec2   `json:"velocity"`
	Score     int    `json:"score"`
	Name      string `json:"name,omitempty"`
	AvatarKey string `json:"avatarKey,omitempty"`
}

type Coin struct {
	ID    string  `json:"id"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Value int     `json:"value"`
}

type Hazard struct {
	ID        string  `json:"id"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Penalty   int     `json:"penalty"`
	ExpiresAt int64   `json:"expiresAt"`
	Tint      string  `json:"tint"`
}

// Meta is the match header carried by every snapshot.
type Meta struct {
	Phase           Phase  `json:"phase"`
	CountdownEndsAt int64  `json:"countdownEndsAt"`
	MatchEndsAt     int64  `json:"matchEndsAt"`
	ModeKey         string `json:"modeKey"`
	DifficultyKey   string `json:"difficultyKey"`
	TargetScore     *int   `json:"targetScore,omitempty"`
}

// Snapshot is an immutable capture of one tick. Timestamps are Unix
// milliseconds.
type Snapshot struct {
	RoomID    string        `json:"roomId"`
	Timestamp int64         `json:"timestamp"`
	Match     Meta          `json:"match"`
	Players   []PlayerState `json:"players"`
	Coins     []Coin        `json:"coins"`
	Hazards   []Hazard      `json:"hazards"`
}

// Player returns the state of id, if present.
func (s Snapshot) Player(id string) (PlayerState, bool) {
	for _, p := range s.Players {
		if p.ID == id {
			return p, true
		}
	}
	return PlayerState{}, false
}

// Score is a final per-player score.
type Score struct {
	ID    string `json:"id"`
	Score int    `json:"score"`
}

// Result is the terminal outcome. WinnerID is nil for draws and
// disconnect terminations.
type Result struct {
	WinnerID *string
	Scores   []Score
	Reason   string
}
