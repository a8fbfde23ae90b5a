package protocol

import (
	"bytes"
	"encoding/json"

	"coin-arena/internal/config"
	"coin-arena/internal/match"

	"github.com/pkg/errors"
)

// Outbound is a server frame. Kind is written as the "type" field.
type Outbound interface {
	Kind() string
}

// Encode marshals msg with its type discriminator as the first field.
func Encode(msg Outbound) ([]byte, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, errors.Wrapf(err, "encode %s", msg.Kind())
	}
	if len(body) < 2 || body[0] != '{' {
		return nil, errors.Errorf("encode %s: not an object", msg.Kind())
	}
	kind, _ := json.Marshal(msg.Kind())

	var buf bytes.Buffer
	buf.Grow(len(body) + len(kind) + 9)
	buf.WriteString(`{"type":`)
	buf.Write(kind)
	if len(body) > 2 {
		buf.WriteByte(',')
	}
	buf.Write(body[1:])
	return buf.Bytes(), nil
}

// Match event names.
const (
	EventStarted    = "started"
	EventEnded      = "ended"
	EventRoster     = "roster"
	EventPlayerLeft = "playerLeft"
	EventError      = "error"
)

// Queue statuses.
const (
	QueueWaiting = "waiting"
	QueueIdle    = "idle"
	QueueBlocked = "blocked"
)

// PublicPlayer is how one player is shown to another.
type PublicPlayer struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarKey string `json:"avatarKey"`
	Status    string `json:"status"`
}

// RosterEntry is a room member.
type RosterEntry struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Slot      int    `json:"slot"`
	AvatarKey string `json:"avatarKey"`
}

type RoomSummary struct {
	ID            string        `json:"id"`
	ModeKey       string        `json:"modeKey"`
	DifficultyKey string        `json:"difficultyKey"`
	Phase         match.Phase   `json:"phase"`
	Players       []RosterEntry `json:"players"`
}

type LobbyPlayer struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	AvatarKey     string            `json:"avatarKey"`
	Status        string            `json:"status"`
	CurrentRoomID *string           `json:"currentRoomId" jsonschema:"nullable"`
	Selection     *config.Selection `json:"selection" jsonschema:"nullable"`
}

// LobbySnapshot is broadcast to every connected player on lobby changes.
type LobbySnapshot struct {
	OnlinePlayers  int           `json:"onlinePlayers"`
	WaitingPlayers int           `json:"waitingPlayers"`
	Rooms          []RoomSummary `json:"rooms"`
	Players        []LobbyPlayer `json:"players"`
}

type Welcome struct {
	PlayerID     string              `json:"playerId"`
	LatencyMs    int64               `json:"latencyMs"`
	Map          config.MapConfig    `json:"map"`
	Difficulties []config.Difficulty `json:"difficulties"`
	Modes        []config.Mode       `json:"modes"`
	Avatars      []config.Avatar     `json:"avatars"`
	Player       PublicPlayer        `json:"player"`
	Lobby        LobbySnapshot       `json:"lobby"`
}

type Queue struct {
	Status    string            `json:"status"`
	Selection *config.Selection `json:"selection,omitempty"`
	Position  int               `json:"position,omitempty"`
	Needed    int               `json:"needed,omitempty"`
	Reason    string            `json:"reason,omitempty"`
}

type ChallengeRequest struct {
	ChallengeID string           `json:"challengeId"`
	From        PublicPlayer     `json:"from"`
	Selection   config.Selection `json:"selection"`
	ExpiresInMs int64            `json:"expiresInMs"`
}

type ChallengeUpdate struct {
	ChallengeID string            `json:"challengeId,omitempty"`
	State       string            `json:"state"`
	Opponent    *PublicPlayer     `json:"opponent,omitempty"`
	Selection   *config.Selection `json:"selection,omitempty"`
	Reason      string            `json:"reason,omitempty"`
}

type MatchAssignment struct {
	RoomID     string            `json:"roomId"`
	Slot       int               `json:"slot"`
	Mode       config.Mode       `json:"mode"`
	Difficulty config.Difficulty `json:"difficulty"`
	Opponents  []RosterEntry     `json:"opponents"`
}

type MatchStarted struct {
	RoomID          string `json:"roomId"`
	Event           string `json:"event"`
	CountdownEndsAt int64  `json:"countdownEndsAt"`
	MatchEndsAt     int64  `json:"matchEndsAt"`
}

// ScoreEntry is a final score with the pilot's identity attached.
type ScoreEntry struct {
	ID        string `json:"id"`
	Score     int    `json:"score"`
	Name      string `json:"name"`
	Slot      int    `json:"slot"`
	AvatarKey string `json:"avatarKey"`
}

type MatchEnded struct {
	RoomID   string       `json:"roomId"`
	Event    string       `json:"event"`
	WinnerID *string      `json:"winnerId" jsonschema:"nullable"`
	Scores   []ScoreEntry `json:"scores"`
	Reason   string       `json:"reason"`
}

type MatchRoster struct {
	RoomID string        `json:"roomId"`
	Event  string        `json:"event"`
	Roster []RosterEntry `json:"roster"`
}

type MatchPlayerLeft struct {
	RoomID   string `json:"roomId"`
	Event    string `json:"event"`
	PlayerID string `json:"playerId"`
	Reason   string `json:"reason"`
}

type MatchError struct {
	RoomID  string `json:"roomId"`
	Event   string `json:"event"`
	Message string `json:"message"`
}

// State is one personalized tick.
type State struct {
	match.Snapshot
}

type LatencyPong struct {
	SentAt int64 `json:"sentAt"`
}

func (Welcome) Kind() string          { return "welcome" }
func (LobbySnapshot) Kind() string    { return "lobbySnapshot" }
func (Queue) Kind() string            { return "queue" }
func (ChallengeRequest) Kind() string { return "challengeRequest" }
func (ChallengeUpdate) Kind() string  { return "challengeUpdate" }
func (MatchAssignment) Kind() string  { return "matchAssignment" }
func (MatchStarted) Kind() string     { return "matchEvent" }
func (MatchEnded) Kind() string       { return "matchEvent" }
func (MatchRoster) Kind() string      { return "matchEvent" }
func (MatchPlayerLeft) Kind() string  { return "matchEvent" }
func (MatchError) Kind() string       { return "matchEvent" }
func (State) Kind() string            { return "state" }
func (LatencyPong) Kind() string      { return "latencyPong" }
