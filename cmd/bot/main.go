// Command bot is a headless arena client for load and smoke testing.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"coin-arena/internal/config"
	"coin-arena/internal/logger"

	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	_ = godotenv.Load(".env")

	url := os.Getenv("BOT_SERVER_URL")
	if url == "" {
		url = "ws://localhost:8080/ws"
	}

	var (
		count      int
		games      int
		mode       string
		difficulty string
	)
	flag.StringVar(&url, "url", url, "websocket endpoint")
	flag.IntVar(&count, "bots", 2, "number of concurrent bots")
	flag.IntVar(&games, "games", 0, "matches per bot before exiting (0 plays forever)")
	flag.StringVar(&mode, "mode", "countdown", "mode key to queue for")
	flag.StringVar(&difficulty, "difficulty", "striker", "difficulty key to queue for")
	flag.Parse()

	logCfg := config.LogFromEnv()
	logger.Init(logCfg.Level, logCfg.Pretty)

	sel := config.Selection{ModeKey: mode, DifficultyKey: difficulty}
	var wg sync.WaitGroup
	conns := make(chan *websocket.Conn, count)

	for i := 0; i < count; i++ {
		name := fmt.Sprintf("Bot-%02d", i+1)
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err != nil {
			log.Fatal().Err(err).Str("url", url).Msg("Dial failed")
		}
		conns <- conn

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer conn.Close()
			bot := NewBot(conn, sel, games, logger.For("bot").With().Str("bot", name).Logger())
			if err := bot.Run(name); err != nil {
				log.Warn().Err(err).Str("bot", name).Msg("⚠️ Bot stopped")
			}
		}()
	}
	close(conns)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()

	select {
	case <-quit:
		log.Info().Msg("🛑 Stopping bots...")
		for conn := range conns {
			conn.Close()
		}
		<-finished
	case <-finished:
	}
	log.Info().Msg("👋 Goodbye!")
}
