package api

import (
	"context"
	"testing"
	"time"

	"coin-arena/internal/config"
	"coin-arena/internal/lobby"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBareServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.AppConfig{
		Game:    config.DefaultGame(),
		Network: config.NetworkConfig{InputRate: 60, InputBurst: 120},
		Server:  config.DefaultServer(),
		Log:     config.DefaultLog(),
	}
	cfg.Server.Port = 0
	l := lobby.New(lobby.Options{Game: cfg.Game, Logger: zerolog.Nop()})
	t.Cleanup(l.Close)
	return NewServer(l, cfg)
}

func TestShutdownBeforeStart(t *testing.T) {
	s := newBareServer(t)
	require.NoError(t, s.Shutdown(context.Background()))

	// A late Start must not open a listener that nothing will close.
	assert.NoError(t, s.Start())
}

func TestShutdownRacingStart(t *testing.T) {
	for i := 0; i < 20; i++ {
		s := newBareServer(t)
		done := make(chan error, 1)
		go func() { done <- s.Start() }()

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		require.NoError(t, s.Shutdown(ctx))
		cancel()

		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("Start still serving after Shutdown")
		}
	}
}
