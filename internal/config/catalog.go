package config

import "time"

// Win conditions.
const (
	WinTimer  = "timer"
	WinTarget = "target"
)

// Default selection used when a client sends unknown keys.
const (
	DefaultModeKey       = "countdown"
	DefaultDifficultyKey = "striker"
)

// Difficulty tunes pilot speed, spawn cadence and match length.
// Intervals and duration are milliseconds so the catalog serializes the
// same way clients configure their HUD.
type Difficulty struct {
	Key              string  `json:"key"`
	Label            string  `json:"label"`
	Description      string  `json:"description"`
	PlayerSpeed      float64 `json:"playerSpeed"`
	CoinIntervalMs   int     `json:"coinInterval"`
	HazardIntervalMs int     `json:"hazardInterval"`
	MatchDurationMs  int     `json:"matchDuration"`
}

func (d Difficulty) CoinInterval() time.Duration {
	return time.Duration(d.CoinIntervalMs) * time.Millisecond
}

func (d Difficulty) HazardInterval() time.Duration {
	return time.Duration(d.HazardIntervalMs) * time.Millisecond
}

func (d Difficulty) MatchDuration() time.Duration {
	return time.Duration(d.MatchDurationMs) * time.Millisecond
}

// Mode picks the win condition and whether hazards spawn.
type Mode struct {
	Key          string `json:"key"`
	Label        string `json:"label"`
	Description  string `json:"description"`
	WinCondition string `json:"winCondition"`
	TargetScore  *int   `json:"targetScore" jsonschema:"nullable"`
	AllowHazards bool   `json:"allowHazards"`
}

// Avatar is a selectable pilot skin. Asset is the client-side sprite name.
type Avatar struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Asset string `json:"asset"`
}

// Selection is a (mode, difficulty) pair; it doubles as the queue bucket key.
type Selection struct {
	ModeKey       string `json:"modeKey"`
	DifficultyKey string `json:"difficultyKey"`
}

// Key is the canonical bucket identifier.
func (s Selection) Key() string {
	return s.ModeKey + ":" + s.DifficultyKey
}

var difficulties = []Difficulty{
	{
		Key:              "chill",
		Label:            "Chill Orbit",
		Description:      "Slower pilots, relaxed spawn cadence, long rounds.",
		PlayerSpeed:      190,
		CoinIntervalMs:   3200,
		HazardIntervalMs: 7000,
		MatchDurationMs:  90_000,
	},
	{
		Key:              "striker",
		Label:            "Star Runner",
		Description:      "Balanced movement with moderate spawn pressure.",
		PlayerSpeed:      230,
		CoinIntervalMs:   2600,
		HazardIntervalMs: 5200,
		MatchDurationMs:  75_000,
	},
	{
		Key:              "inferno",
		Label:            "Solar Storm",
		Description:      "Fastest pilots, relentless spawns, short intense rounds.",
		PlayerSpeed:      280,
		CoinIntervalMs:   1900,
		HazardIntervalMs: 4200,
		MatchDurationMs:  60_000,
	},
}

var blitzTarget = 12

var modes = []Mode{
	{
		Key:          "countdown",
		Label:        "Countdown",
		Description:  "High-score chase. Highest score after the horn wins.",
		WinCondition: WinTimer,
	},
	{
		Key:          "blitz",
		Label:        "Blitz",
		Description:  "First to 12 coins wins instantly. No ties.",
		WinCondition: WinTarget,
		TargetScore:  &blitzTarget,
	},
	{
		Key:          "survival",
		Label:        "Survival",
		Description:  "Void hazards deduct points. Highest score after timer wins.",
		WinCondition: WinTimer,
		AllowHazards: true,
	},
}

var avatars = []Avatar{
	{Key: "black", Label: "Shadow", Asset: "pilot-black.png"},
	{Key: "brown", Label: "Copper", Asset: "pilot-brown.png"},
	{Key: "red", Label: "Ember", Asset: "pilot-red.png"},
	{Key: "skyblue", Label: "Skyline", Asset: "pilot-skyblue.png"},
	{Key: "white", Label: "Frost", Asset: "pilot-white.png"},
	{Key: "yellow", Label: "Solar", Asset: "pilot-yellow.png"},
}

// Difficulties returns the difficulty catalog in display order.
func Difficulties() []Difficulty {
	return append([]Difficulty(nil), difficulties...)
}

// Modes returns the mode catalog in display order.
func Modes() []Mode {
	return append([]Mode(nil), modes...)
}

// Avatars returns the avatar pool in display order.
func Avatars() []Avatar {
	return append([]Avatar(nil), avatars...)
}

// LookupDifficulty finds a difficulty by key.
func LookupDifficulty(key string) (Difficulty, bool) {
	for _, d := range difficulties {
		if d.Key == key {
			return d, true
		}
	}
	return Difficulty{}, false
}

// LookupMode finds a mode by key.
func LookupMode(key string) (Mode, bool) {
	for _, m := range modes {
		if m.Key == key {
			return m, true
		}
	}
	return Mode{}, false
}

// LookupAvatar finds an avatar by key.
func LookupAvatar(key string) (Avatar, bool) {
	for _, a := range avatars {
		if a.Key == key {
			return a, true
		}
	}
	return Avatar{}, false
}

// DefaultAvatarKey is assigned to new sessions.
func DefaultAvatarKey() string {
	return avatars[0].Key
}

// ValidateSelection replaces unknown keys with the defaults independently,
// so a valid mode survives next to a bogus difficulty.
func ValidateSelection(sel Selection) Selection {
	out := sel
	if _, ok := LookupMode(sel.ModeKey); !ok {
		out.ModeKey = DefaultModeKey
	}
	if _, ok := LookupDifficulty(sel.DifficultyKey); !ok {
		out.DifficultyKey = DefaultDifficultyKey
	}
	return out
}
