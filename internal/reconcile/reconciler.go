// Package reconcile is the read side of a client: it buffers server
// snapshots, estimates the server clock, renders a point slightly in the
// past by interpolation and pushes the local pilot forward by its held
// input. Nothing here feeds back into the simulation.
package reconcile

import (
	"math"
	"sync"
	"time"

	"coin-arena/internal/clock"
	"coin-arena/internal/config"
	"coin-arena/internal/match"
)

const (
	// DefaultCapacity is how many snapshots the ring keeps.
	DefaultCapacity = 80
	// InterpolationDelay is how far behind the synced clock frames render.
	InterpolationDelay = 200 * time.Millisecond

	driftKeep   = 0.9
	driftSample = 0.1
)

// Reconciler buffers snapshots for one client. It is safe for a network
// reader and a render loop to share.
type Reconciler struct {
	mu       sync.Mutex
	clock    clock.Clock
	game     config.GameConfig
	delay    time.Duration
	capacity int

	ring   []match.Snapshot // oldest first
	drift  float64          // ms, local receive minus server timestamp
	synced bool
}

// Option tweaks a Reconciler.
type Option func(*Reconciler)

// WithCapacity overrides the ring size.
func WithCapacity(n int) Option {
	return func(r *Reconciler) {
		if n > 0 {
			r.capacity = n
		}
	}
}

// WithDelay overrides the interpolation delay.
func WithDelay(d time.Duration) Option {
	return func(r *Reconciler) { r.delay = d }
}

func New(clk clock.Clock, game config.GameConfig, opts ...Option) *Reconciler {
	if clk == nil {
		clk = clock.Real{}
	}
	r := &Reconciler{
		clock:    clk,
		game:     game,
		delay:    InterpolationDelay,
		capacity: DefaultCapacity,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Ingest records a snapshot as received now and updates the drift estimate.
func (r *Reconciler) Ingest(snap match.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sample := float64(clock.UnixMilli(r.clock) - snap.Timestamp)
	if r.synced {
		r.drift = r.drift*driftKeep + sample*driftSample
	} else {
		r.drift = sample
		r.synced = true
	}

	r.ring = append(r.ring, snap)
	if over := len(r.ring) - r.capacity; over > 0 {
		r.ring = append(r.ring[:0], r.ring[over:]...)
	}
}

// Len is the number of buffered snapshots.
func (r *Reconciler) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ring)
}

// Drift is the smoothed offset between the local and server clocks.
func (r *Reconciler) Drift() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return time.Duration(r.drift * float64(time.Millisecond))
}

// SyncedNow estimates the server's current time in unix milliseconds.
func (r *Reconciler) SyncedNow() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.syncedNowLocked()
}

func (r *Reconciler) syncedNowLocked() int64 {
	return clock.UnixMilli(r.clock) - int64(math.Round(r.drift))
}

// Sample returns the view at server time target: a blend of the two
// snapshots bracketing it, the only snapshot if there is one, or the newest
// if target is past the buffer.
func (r *Reconciler) Sample(target int64) (match.Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sampleLocked(target)
}

func (r *Reconciler) sampleLocked(target int64) (match.Snapshot, bool) {
	switch len(r.ring) {
	case 0:
		return match.Snapshot{}, false
	case 1:
		return r.ring[0], true
	}
	older := r.ring[0]
	for _, newer := range r.ring[1:] {
		if target <= newer.Timestamp {
			span := math.Max(1, float64(newer.Timestamp-older.Timestamp))
			t := float64(target-older.Timestamp) / span
			return Interpolate(older, newer, t), true
		}
		older = newer
	}
	return r.ring[len(r.ring)-1], true
}

// Frame renders what the local pilot should see right now: the sample at
// synced time minus the interpolation delay, with the local pilot
// predicted forward by its held keys at speed.
func (r *Reconciler) Frame(localID string, held match.Keys, speed float64) (match.Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap, ok := r.sampleLocked(r.syncedNowLocked() - r.delay.Milliseconds())
	if !ok {
		return snap, false
	}
	return Predict(snap, localID, held, speed, r.delay, r.game), true
}

// Interpolate blends two snapshots. t is clamped to [0, 1]. Pilots present
// in both are positioned linearly between them; pilots in only one pass
// through as they are. Coins, hazards and match meta come from newer.
func Interpolate(older, newer match.Snapshot, t float64) match.Snapshot {
	t = math.Min(math.Max(t, 0), 1)

	out := newer
	out.Timestamp = int64(math.Round(lerp(float64(older.Timestamp), float64(newer.Timestamp), t)))
	out.Players = make([]match.PlayerState, 0, len(newer.Players)+len(older.Players))

	seen := make(map[string]bool, len(newer.Players))
	for _, n := range newer.Players {
		seen[n.ID] = true
		if o, ok := older.Player(n.ID); ok {
			n.Position = match.Vec2{
				X: lerp(o.Position.X, n.Position.X, t),
				Y: lerp(o.Position.Y, n.Position.Y, t),
			}
		}
		out.Players = append(out.Players, n)
	}
	for _, o := range older.Players {
		if !seen[o.ID] {
			out.Players = append(out.Players, o)
		}
	}
	return out
}

// Predict returns snap with localID advanced along its held direction for
// ahead at speed, clamped to the arena. Other pilots are untouched and the
// input snapshot is not modified.
func Predict(snap match.Snapshot, localID string, held match.Keys, speed float64, ahead time.Duration, game config.GameConfig) match.Snapshot {
	dx, dy := held.Direction()
	if dx == 0 && dy == 0 {
		return snap
	}
	idx := -1
	for i, p := range snap.Players {
		if p.ID == localID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return snap
	}

	l := math.Hypot(dx, dy)
	step := speed * ahead.Seconds()
	players := append([]match.PlayerState(nil), snap.Players...)
	me := players[idx]
	me.Position = match.ClampToArena(match.Vec2{
		X: me.Position.X + dx/l*step,
		Y: me.Position.Y + dy/l*step,
	}, game)
	players[idx] = me
	snap.Players = players
	return snap
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}
