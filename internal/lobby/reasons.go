package lobby

// Reason codes sent to clients when a request is rejected or a challenge
// closes.
const (
	ReasonChallengePending = "challengePending"
	ReasonInMatch          = "inMatch"

	ReasonInvalidTarget = "invalidTarget"
	ReasonNotFound      = "notFound"
	ReasonUnavailable   = "unavailable"
	ReasonNotPending    = "notPending"
	ReasonForbidden     = "forbidden"

	ReasonDeclined   = "declined"
	ReasonTimeout    = "timeout"
	ReasonCancelled  = "cancelled"
	ReasonDisconnect = "disconnect"
)

// StateError is the challengeUpdate state for rejected requests.
const StateError = "error"

// MessageMatchCrashed is sent when a room's simulation faults.
const MessageMatchCrashed = "Match crashed"
