// Package lagcomp keeps a short history of room snapshots and builds the
// per-viewer state broadcast: the viewer sees itself as of the newest
// tick and every other pilot as of one latency budget ago.
package lagcomp

import (
	"time"

	"coin-arena/internal/match"
)

// DefaultWindow is how much history a room retains.
const DefaultWindow = 3 * time.Second

// History is a timestamp-ordered window of snapshots. It is owned by a
// single room pump and is not safe for concurrent use.
type History struct {
	window  int64 // ms
	entries []match.Snapshot
}

// NewHistory creates an empty history retaining the given window.
func NewHistory(window time.Duration) *History {
	if window <= 0 {
		window = DefaultWindow
	}
	return &History{window: window.Milliseconds()}
}

// Record appends snap and drops entries older than the window relative
// to snap's timestamp.
func (h *History) Record(snap match.Snapshot) {
	h.entries = append(h.entries, snap)
	cutoff := snap.Timestamp - h.window
	drop := 0
	for drop < len(h.entries) && h.entries[drop].Timestamp < cutoff {
		drop++
	}
	if drop > 0 {
		h.entries = append(h.entries[:0], h.entries[drop:]...)
	}
}

// Len returns the number of retained snapshots.
func (h *History) Len() int { return len(h.entries) }

// Latest returns the newest snapshot.
func (h *History) Latest() (match.Snapshot, bool) {
	if len(h.entries) == 0 {
		return match.Snapshot{}, false
	}
	return h.entries[len(h.entries)-1], true
}

// At returns the newest snapshot taken at or before ts. When every
// retained snapshot is newer it returns the oldest one; ok is false only
// for an empty history.
func (h *History) At(ts int64) (match.Snapshot, bool) {
	for i := len(h.entries) - 1; i >= 0; i-- {
		if h.entries[i].Timestamp <= ts {
			return h.entries[i], true
		}
	}
	if len(h.entries) == 0 {
		return match.Snapshot{}, false
	}
	return h.entries[0], true
}
