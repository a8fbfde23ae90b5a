package match

import (
	"sync"
	"time"

	"coin-arena/internal/clock"
	"coin-arena/internal/metrics"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// InputBuffer bounds each room's input mailbox.
const InputBuffer = 64

// Event is emitted by a Room, in tick order, on Events().
type Event interface {
	isEvent()
}

// StartedEvent is emitted once, before the first tick.
type StartedEvent struct {
	CountdownEndsAt int64
	MatchEndsAt     int64
}

// StateEvent carries the snapshot of one tick.
type StateEvent struct {
	Snapshot Snapshot
}

// EndedEvent is the single terminal event of a match that finished normally.
type EndedEvent struct {
	Result Result
}

// FaultEvent replaces EndedEvent when the simulation panicked.
type FaultEvent struct {
	Err error
}

func (StartedEvent) isEvent() {}
func (StateEvent) isEvent()   {}
func (EndedEvent) isEvent()   {}
func (FaultEvent) isEvent()   {}

// Engine is the step-driven match a Room ticks. *Simulation is the only
// production implementation.
type Engine interface {
	Start(now time.Time) (countdownEndsAt, matchEndsAt int64)
	ApplyInput(id string, patch KeyPatch)
	RemovePlayer(id string) *Result
	Step(now time.Time) (Snapshot, *Result)
	Pilots() int
}

type inputMsg struct {
	playerID string
	patch    KeyPatch
}

// Room owns a Simulation and ticks it on its own goroutine. All
// interaction goes through channels; the simulation is never shared.
type Room struct {
	id    string
	sim   Engine
	clock clock.Clock
	tick  time.Duration
	log   zerolog.Logger

	inputs chan inputMsg
	leaves chan string
	events chan Event

	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewRoom wraps sim in an actor. Run must be called to start it.
func NewRoom(id string, sim Engine, clk clock.Clock, tick time.Duration, logger zerolog.Logger) *Room {
	return &Room{
		id:     id,
		sim:    sim,
		clock:  clk,
		tick:   tick,
		log:    logger.With().Str("room", id).Logger(),
		inputs: make(chan inputMsg, InputBuffer),
		// Each pilot leaves at most once, so Leave never blocks on a full buffer.
		leaves: make(chan string, sim.Pilots()+1),
		events: make(chan Event, 16),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

func (r *Room) ID() string { return r.id }

// Events is closed after the terminal event, or after Stop.
func (r *Room) Events() <-chan Event { return r.events }

// Done is closed once the actor goroutine has exited.
func (r *Room) Done() <-chan struct{} { return r.done }

// Input forwards a key patch. It never blocks; a full mailbox drops the
// update and returns false.
func (r *Room) Input(playerID string, patch KeyPatch) bool {
	select {
	case r.inputs <- inputMsg{playerID: playerID, patch: patch}:
		return true
	case <-r.done:
		return false
	default:
		metrics.InputDropped()
		return false
	}
}

// Leave tells the simulation a pilot is gone.
func (r *Room) Leave(playerID string) {
	select {
	case r.leaves <- playerID:
	case <-r.done:
	}
}

// Stop halts the actor without a terminal event. Safe to call repeatedly.
func (r *Room) Stop() {
	r.stopOnce.Do(func() {
		close(r.quit)
	})
}

// Run drives the match until it ends, faults or is stopped.
func (r *Room) Run() {
	defer close(r.done)
	defer close(r.events)
	defer func() {
		if p := recover(); p != nil {
			err := errors.Errorf("simulation panic: %v", p)
			r.log.Error().Err(err).Msg("💥 Room crashed")
			r.events <- FaultEvent{Err: err}
		}
	}()

	countdownEndsAt, matchEndsAt := r.sim.Start(r.clock.Now())
	ticker := r.clock.NewTicker(r.tick)
	defer ticker.Stop()

	r.events <- StartedEvent{CountdownEndsAt: countdownEndsAt, MatchEndsAt: matchEndsAt}

	for {
		select {
		case <-r.quit:
			return

		case in := <-r.inputs:
			r.sim.ApplyInput(in.playerID, in.patch)

		case id := <-r.leaves:
			if res := r.sim.RemovePlayer(id); res != nil {
				r.events <- EndedEvent{Result: *res}
				return
			}

		case <-ticker.C():
			start := time.Now()
			snap, res := r.sim.Step(r.clock.Now())
			metrics.RecordTick(time.Since(start))

			r.events <- StateEvent{Snapshot: snap}
			if res != nil {
				r.events <- EndedEvent{Result: *res}
				return
			}
		}
	}
}
