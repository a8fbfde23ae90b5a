package protocol

import (
	"github.com/invopop/jsonschema"
)

// ClientFrames lists every frame a client may send, keyed by type.
type ClientFrames struct {
	SetName          *SetName          `json:"setName,omitempty"`
	SetAvatar        *SetAvatar        `json:"setAvatar,omitempty"`
	JoinQueue        *JoinQueue        `json:"joinQueue,omitempty"`
	LeaveQueue       *LeaveQueue       `json:"leaveQueue,omitempty"`
	ChallengePlayer  *ChallengePlayer  `json:"challengePlayer,omitempty"`
	RespondChallenge *RespondChallenge `json:"respondChallenge,omitempty"`
	CancelChallenge  *CancelChallenge  `json:"cancelChallenge,omitempty"`
	Input            *Input            `json:"input,omitempty"`
	LatencyPing      *LatencyPing      `json:"latencyPing,omitempty"`
}

// ServerFrames lists every frame the server sends. The matchEvent
// variants are keyed by their event name.
type ServerFrames struct {
	Welcome          *Welcome          `json:"welcome,omitempty"`
	LobbySnapshot    *LobbySnapshot    `json:"lobbySnapshot,omitempty"`
	Queue            *Queue            `json:"queue,omitempty"`
	ChallengeRequest *ChallengeRequest `json:"challengeRequest,omitempty"`
	ChallengeUpdate  *ChallengeUpdate  `json:"challengeUpdate,omitempty"`
	MatchAssignment  *MatchAssignment  `json:"matchAssignment,omitempty"`
	MatchStarted     *MatchStarted     `json:"matchEvent.started,omitempty"`
	MatchEnded       *MatchEnded       `json:"matchEvent.ended,omitempty"`
	MatchRoster      *MatchRoster      `json:"matchEvent.roster,omitempty"`
	MatchPlayerLeft  *MatchPlayerLeft  `json:"matchEvent.playerLeft,omitempty"`
	MatchError       *MatchError       `json:"matchEvent.error,omitempty"`
	State            *State            `json:"state,omitempty"`
	LatencyPong      *LatencyPong      `json:"latencyPong,omitempty"`
}

// Frames is the root of the published protocol schema.
type Frames struct {
	Client ClientFrames `json:"client"`
	Server ServerFrames `json:"server"`
}

// Schema reflects the protocol into a JSON schema document.
func Schema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: true,
	}
	schema := reflector.Reflect(new(Frames))
	schema.Title = "Coin Arena Protocol"
	schema.Description = "Websocket frames; every frame also carries a string \"type\" field naming its key."
	return schema
}
