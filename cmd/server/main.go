package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coin-arena/internal/api"
	"coin-arena/internal/config"
	"coin-arena/internal/lobby"
	"coin-arena/internal/logger"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load .env file from parent directory, falling back to the current one
	envErr := godotenv.Load("../.env")
	if envErr != nil {
		envErr = godotenv.Load(".env")
	}

	appConfig := config.Load()
	logger.Init(appConfig.Log.Level, appConfig.Log.Pretty)
	if envErr != nil {
		log.Info().Msg("💡 No .env file found, using environment variables only")
	}

	if err := appConfig.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().Msg("🪙 ================================")
	log.Info().Msg("🪙  COIN ARENA - GO SERVER")
	log.Info().Msg("🪙 ================================")

	gameCfg := appConfig.Game
	log.Info().
		Int("tickRate", gameCfg.TickRate).
		Int("requiredPlayers", gameCfg.RequiredPlayers).
		Dur("latency", appConfig.Network.Latency).
		Float64("width", gameCfg.Map.Width).
		Float64("height", gameCfg.Map.Height).
		Msg("🎮 Config")

	api.StartDebugServer(api.ObservabilityFromServer(appConfig.Server))

	arena := lobby.New(lobby.Options{
		Game:   gameCfg,
		Logger: logger.For("lobby"),
	})
	server := api.NewServer(arena, appConfig)

	go func() {
		if err := server.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", appConfig.Server.Port).Msg("✅ Server ready! Press Ctrl+C to stop.")

	// Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("🛑 Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("⚠️ Shutdown incomplete")
	}
	arena.Close()
	log.Info().Msg("👋 Goodbye!")
}
