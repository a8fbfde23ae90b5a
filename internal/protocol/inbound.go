// Package protocol defines the JSON frames exchanged over the player
// websocket. Every frame is an object with a "type" discriminator.
package protocol

import (
	"encoding/json"

	"coin-arena/internal/config"
	"coin-arena/internal/match"

	"github.com/pkg/errors"
)

var (
	// ErrMalformed is returned for frames that are not a JSON object with a
	// string "type" field, or whose body does not fit the declared type.
	ErrMalformed = errors.New("malformed frame")
	// ErrUnknownType is returned for well-formed frames of an unknown type.
	ErrUnknownType = errors.New("unknown frame type")
)

// Inbound frame types.
const (
	TypeSetName          = "setName"
	TypeSetAvatar        = "setAvatar"
	TypeJoinQueue        = "joinQueue"
	TypeLeaveQueue       = "leaveQueue"
	TypeChallengePlayer  = "challengePlayer"
	TypeRespondChallenge = "respondChallenge"
	TypeCancelChallenge  = "cancelChallenge"
	TypeInput            = "input"
	TypeLatencyPing      = "latencyPing"
)

// Inbound is a decoded client frame.
type Inbound interface {
	inbound()
}

type SetName struct {
	Name string `json:"name"`
}

type SetAvatar struct {
	AvatarKey string `json:"avatarKey"`
}

type JoinQueue struct {
	ModeKey       string `json:"modeKey"`
	DifficultyKey string `json:"difficultyKey"`
}

// Selection returns the requested bucket, unvalidated.
func (j JoinQueue) Selection() config.Selection {
	return config.Selection{ModeKey: j.ModeKey, DifficultyKey: j.DifficultyKey}
}

type LeaveQueue struct{}

type ChallengePlayer struct {
	TargetID      string `json:"targetId"`
	ModeKey       string `json:"modeKey"`
	DifficultyKey string `json:"difficultyKey"`
}

func (c ChallengePlayer) Selection() config.Selection {
	return config.Selection{ModeKey: c.ModeKey, DifficultyKey: c.DifficultyKey}
}

type RespondChallenge struct {
	ChallengeID string `json:"challengeId"`
	Accept      bool   `json:"accept"`
}

type CancelChallenge struct {
	ChallengeID string `json:"challengeId"`
}

// Input carries a partial update of the held direction keys.
type Input struct {
	Keys match.KeyPatch `json:"keys"`
}

type LatencyPing struct {
	SentAt int64 `json:"sentAt"`
}

func (SetName) inbound()          {}
func (SetAvatar) inbound()        {}
func (JoinQueue) inbound()        {}
func (LeaveQueue) inbound()       {}
func (ChallengePlayer) inbound()  {}
func (RespondChallenge) inbound() {}
func (CancelChallenge) inbound()  {}
func (Input) inbound()            {}
func (LatencyPing) inbound()      {}

type envelope struct {
	Type string `json:"type"`
}

// FrameType reads a frame's type without decoding its body. Malformed
// frames report "".
func FrameType(raw []byte) string {
	var env envelope
	if json.Unmarshal(raw, &env) != nil {
		return ""
	}
	return env.Type
}

// Decode parses one client frame.
func Decode(raw []byte) (Inbound, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, errors.Wrap(ErrMalformed, err.Error())
	}

	var msg Inbound
	switch env.Type {
	case TypeSetName:
		msg = &SetName{}
	case TypeSetAvatar:
		msg = &SetAvatar{}
	case TypeJoinQueue:
		msg = &JoinQueue{}
	case TypeLeaveQueue:
		return LeaveQueue{}, nil
	case TypeChallengePlayer:
		msg = &ChallengePlayer{}
	case TypeRespondChallenge:
		msg = &RespondChallenge{}
	case TypeCancelChallenge:
		msg = &CancelChallenge{}
	case TypeInput:
		msg = &Input{}
	case TypeLatencyPing:
		msg = &LatencyPing{}
	case "":
		return nil, errors.Wrap(ErrMalformed, "missing type")
	default:
		return nil, errors.Wrapf(ErrUnknownType, "%q", env.Type)
	}

	if err := json.Unmarshal(raw, msg); err != nil {
		return nil, errors.Wrapf(ErrMalformed, "%s: %v", env.Type, err)
	}
	return deref(msg), nil
}

func deref(msg Inbound) Inbound {
	switch m := msg.(type) {
	case *SetName:
		return *m
	case *SetAvatar:
		return *m
	case *JoinQueue:
		return *m
	case *ChallengePlayer:
		return *m
	case *RespondChallenge:
		return *m
	case *CancelChallenge:
		return *m
	case *Input:
		return *m
	case *LatencyPing:
		return *m
	}
	return msg
}
