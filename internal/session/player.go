// Package session tracks connected players and their lobby status.
package session

import (
	"strings"
	"time"
	"unicode/utf8"

	"coin-arena/internal/config"
	"coin-arena/internal/protocol"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// MaxNameLength caps display names, in runes.
const MaxNameLength = 18

// Status is a player's lobby state. A player is in exactly one of them.
type Status string

const (
	StatusIdle        Status = "idle"
	StatusQueued      Status = "queued"
	StatusChallenging Status = "challenging"
	StatusChallenged  Status = "challenged"
	StatusInMatch     Status = "inMatch"
)

// Conn is the outbound half of a player's transport.
type Conn interface {
	Send(frame []byte) error
	Close() error
}

// Player is one connected session. Fields are guarded by the lobby that
// owns the Registry.
type Player struct {
	ID            string
	Name          string
	AvatarKey     string
	Status        Status
	LatencyBudget time.Duration
	RoomID        string
	Selection     *config.Selection // set while queued

	conn Conn
}

// NewPlayer creates an idle player with a default name and avatar.
func NewPlayer(id string, conn Conn, budget time.Duration) *Player {
	prefix := id
	if len(prefix) > 3 {
		prefix = prefix[:3]
	}
	return &Player{
		ID:            id,
		Name:          "Pilot-" + prefix,
		AvatarKey:     config.DefaultAvatarKey(),
		Status:        StatusIdle,
		LatencyBudget: budget,
		conn:          conn,
	}
}

// NewID returns a short random hex id.
func NewID(size int) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	if size > 0 && size < len(id) {
		return id[:size]
	}
	return id
}

// Send encodes and writes msg. Transport errors are logged; the read side
// of the connection notices a dead peer and triggers cleanup.
func (p *Player) Send(msg protocol.Outbound) {
	if p.conn == nil {
		return
	}
	frame, err := protocol.Encode(msg)
	if err != nil {
		log.Error().Err(err).Str("player", p.ID).Msg("⚠️ Failed to encode frame")
		return
	}
	if err := p.conn.Send(frame); err != nil {
		log.Debug().Err(err).Str("player", p.ID).Str("type", msg.Kind()).Msg("Send failed")
	}
}

// InRoom reports whether the player is attached to a room.
func (p *Player) InRoom() bool { return p.RoomID != "" }

// Public is the view other players get.
func (p *Player) Public() protocol.PublicPlayer {
	return protocol.PublicPlayer{
		ID:        p.ID,
		Name:      p.Name,
		AvatarKey: p.AvatarKey,
		Status:    string(p.Status),
	}
}

// SanitizeName trims and truncates a requested display name. It returns
// false when nothing is left.
func SanitizeName(raw string) (string, bool) {
	name := strings.TrimSpace(raw)
	if utf8.RuneCountInString(name) > MaxNameLength {
		name = strings.TrimSpace(string([]rune(name)[:MaxNameLength]))
	}
	return name, name != ""
}
