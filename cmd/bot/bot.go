package main

import (
	"encoding/json"
	"math"
	"sync"
	"time"

	"coin-arena/internal/config"
	"coin-arena/internal/match"
	"coin-arena/internal/protocol"
	"coin-arena/internal/reconcile"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Bot is a headless client that queues, chases the nearest coin and
// re-queues after each match.
type Bot struct {
	conn  *websocket.Conn
	log   zerolog.Logger
	sel   config.Selection
	games int

	writeMu sync.Mutex

	mu     sync.Mutex
	id     string
	game   config.GameConfig
	speed  float64
	held   match.Keys
	recon  *reconcile.Reconciler
	played int
	done   chan struct{}
}

func NewBot(conn *websocket.Conn, sel config.Selection, games int, log zerolog.Logger) *Bot {
	return &Bot{
		conn:  conn,
		log:   log,
		sel:   config.ValidateSelection(sel),
		games: games,
		game:  config.DefaultGame(),
		done:  make(chan struct{}),
	}
}

// envelope peeks at a frame's discriminators.
type envelope struct {
	Type  string `json:"type"`
	Event string `json:"event"`
}

func (b *Bot) send(msg map[string]any) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	b.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return errors.Wrap(b.conn.WriteJSON(msg), "write")
}

// Run reads frames until the connection drops or the game budget is spent.
func (b *Bot) Run(name string) error {
	go b.steerLoop()
	defer close(b.done)

	for {
		_, raw, err := b.conn.ReadMessage()
		if err != nil {
			return errors.Wrap(err, "read")
		}
		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			continue
		}
		finished, err := b.handle(env, raw, name)
		if err != nil {
			return err
		}
		if finished {
			return nil
		}
	}
}

func (b *Bot) handle(env envelope, raw []byte, name string) (bool, error) {
	switch env.Type {
	case "welcome":
		var w protocol.Welcome
		if err := json.Unmarshal(raw, &w); err != nil {
			return false, errors.Wrap(err, "decode welcome")
		}
		b.mu.Lock()
		b.id = w.PlayerID
		b.game.Map = w.Map
		b.recon = reconcile.New(nil, b.game)
		b.mu.Unlock()
		b.log.Info().Str("id", w.PlayerID).Int64("latencyMs", w.LatencyMs).Msg("✅ Connected")
		if err := b.send(map[string]any{"type": protocol.TypeSetName, "name": name}); err != nil {
			return false, err
		}
		return false, b.queue()

	case "matchAssignment":
		var a protocol.MatchAssignment
		if err := json.Unmarshal(raw, &a); err != nil {
			return false, errors.Wrap(err, "decode assignment")
		}
		b.mu.Lock()
		b.speed = a.Difficulty.PlayerSpeed
		b.recon = reconcile.New(nil, b.game)
		b.mu.Unlock()
		b.log.Info().Str("room", a.RoomID).Int("slot", a.Slot).Msg("🎮 Assigned")

	case "state":
		var s protocol.State
		if err := json.Unmarshal(raw, &s); err != nil {
			return false, errors.Wrap(err, "decode state")
		}
		b.mu.Lock()
		if b.recon != nil {
			b.recon.Ingest(s.Snapshot)
		}
		b.mu.Unlock()

	case "matchEvent":
		if env.Event != "ended" {
			return false, nil
		}
		var e protocol.MatchEnded
		if err := json.Unmarshal(raw, &e); err != nil {
			return false, errors.Wrap(err, "decode ended")
		}
		b.mu.Lock()
		b.played++
		played := b.played
		won := e.WinnerID != nil && *e.WinnerID == b.id
		b.held = match.Keys{}
		b.mu.Unlock()
		b.log.Info().Str("reason", e.Reason).Bool("won", won).Int("played", played).Msg("🏁 Match ended")

		if b.games > 0 && played >= b.games {
			return true, nil
		}
		return false, b.queue()
	}
	return false, nil
}

func (b *Bot) queue() error {
	return b.send(map[string]any{
		"type":          protocol.TypeJoinQueue,
		"modeKey":       b.sel.ModeKey,
		"difficultyKey": b.sel.DifficultyKey,
	})
}

// steerLoop re-aims at the nearest coin on the reconciled frame and sends
// only key changes.
func (b *Bot) steerLoop() {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-b.done:
			return
		case <-ticker.C:
		}

		b.mu.Lock()
		if b.recon == nil || b.id == "" {
			b.mu.Unlock()
			continue
		}
		recon := b.recon
		frame, ok := recon.Frame(b.id, b.held, b.speed)
		if !ok || frame.Match.Phase != match.PhasePlaying {
			b.mu.Unlock()
			continue
		}
		next := Steer(frame, b.id, b.game.PlayerSize/2)
		changed := next != b.held
		b.held = next
		b.mu.Unlock()

		if me, ok := frame.Player(b.id); ok {
			b.log.Debug().Float64("x", me.Position.X).Float64("y", me.Position.Y).Dur("drift", recon.Drift()).Msg("frame")
		}
		if changed {
			if err := b.send(map[string]any{"type": protocol.TypeInput, "keys": next}); err != nil {
				b.log.Warn().Err(err).Msg("⚠️ Input failed")
				return
			}
		}
	}
}

// Steer picks keys toward the nearest coin, ignoring axes already within
// deadzone.
func Steer(snap match.Snapshot, id string, deadzone float64) match.Keys {
	me, ok := snap.Player(id)
	if !ok || len(snap.Coins) == 0 {
		return match.Keys{}
	}

	best := snap.Coins[0]
	bestDist := math.Inf(1)
	for _, c := range snap.Coins {
		d := math.Hypot(c.X-me.Position.X, c.Y-me.Position.Y)
		if d < bestDist {
			best, bestDist = c, d
		}
	}

	dx := best.X - me.Position.X
	dy := best.Y - me.Position.Y
	return match.Keys{
		Left:  dx < -deadzone,
		Right: dx > deadzone,
		Up:    dy < -deadzone,
		Down:  dy > deadzone,
	}
}
