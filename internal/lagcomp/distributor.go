package lagcomp

import (
	"time"

	"coin-arena/internal/match"
)

// Personalize builds the snapshot sent to viewerID. Pilot order follows
// latest. Coins, hazards and the match header are always current.
func Personalize(latest match.Snapshot, h *History, viewerID string, budget time.Duration) match.Snapshot {
	lagged := latest
	if h != nil {
		if snap, ok := h.At(latest.Timestamp - budget.Milliseconds()); ok {
			lagged = snap
		}
	}

	out := latest
	out.Players = make([]match.PlayerState, 0, len(latest.Players))
	for _, p := range latest.Players {
		if p.ID != viewerID {
			if past, ok := lagged.Player(p.ID); ok {
				// Identity fields may have changed since the lagged tick.
				past.Name, past.AvatarKey, past.Slot = p.Name, p.AvatarKey, p.Slot
				p = past
			}
		}
		out.Players = append(out.Players, p)
	}
	return out
}

// Distributor records every tick and fans out personalized snapshots.
type Distributor struct {
	history *History
}

// NewDistributor creates a distributor with the given history window.
func NewDistributor(window time.Duration) *Distributor {
	return &Distributor{history: NewHistory(window)}
}

// Viewer is a recipient of the per-tick broadcast.
type Viewer struct {
	ID     string
	Budget time.Duration
}

// Distribute records snap and returns one personalized snapshot per viewer,
// in viewer order.
func (d *Distributor) Distribute(snap match.Snapshot, viewers []Viewer) []match.Snapshot {
	d.history.Record(snap)
	out := make([]match.Snapshot, len(viewers))
	for i, v := range viewers {
		out[i] = Personalize(snap, d.history, v.ID, v.Budget)
	}
	return out
}

// Latest returns the most recently recorded snapshot.
func (d *Distributor) Latest() (match.Snapshot, bool) {
	return d.history.Latest()
}
