// Package config provides centralized configuration management.
// Arena geometry, the mode/difficulty catalog and every server tunable
// live here; other packages receive values from Load() instead of reading
// the environment themselves.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// =============================================================================
// ARENA CONFIGURATION
// =============================================================================

// MapConfig is the arena size in world units (pixels on the reference client).
type MapConfig struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// GameConfig holds simulation geometry, pacing and lobby rules.
type GameConfig struct {
	Map MapConfig

	PlayerSize   float64 // Square pilot edge; collisions use half of it as radius
	CoinRadius   float64
	HazardRadius float64

	RequiredPlayers int // Roster size that launches a room
	TickRate        int // Simulation ticks per second

	Countdown    time.Duration // Staging delay before play starts
	ChallengeTTL time.Duration // Pending challenge lifetime
	HazardTTL    time.Duration // Lifetime of an untouched hazard

	SpawnInset   float64 // Horizontal distance of slot spawns from the walls
	CoinMargin   float64 // Coins never spawn closer than this to a wall
	HazardMargin float64

	MaxCoins            int
	MaxCoinsWithHazards int
	MaxHazards          int

	HistoryWindow time.Duration // Server-side snapshot history kept for lag compensation
}

// DefaultGame returns the default game configuration.
func DefaultGame() GameConfig {
	return GameConfig{
		Map:                 MapConfig{Width: 960, Height: 640},
		PlayerSize:          32,
		CoinRadius:          18,
		HazardRadius:        20,
		RequiredPlayers:     2,
		TickRate:            30,
		Countdown:           3 * time.Second,
		ChallengeTTL:        15 * time.Second,
		HazardTTL:           7 * time.Second,
		SpawnInset:          120,
		CoinMargin:          50,
		HazardMargin:        70,
		MaxCoins:            3,
		MaxCoinsWithHazards: 2,
		MaxHazards:          2,
		HistoryWindow:       3 * time.Second,
	}
}

// GameFromEnv returns game configuration with environment variable overrides.
func GameFromEnv() GameConfig {
	cfg := DefaultGame()

	if w := getEnvFloat("GAME_WIDTH", 0); w > 0 {
		cfg.Map.Width = w
	}
	if h := getEnvFloat("GAME_HEIGHT", 0); h > 0 {
		cfg.Map.Height = h
	}
	if n := getEnvInt("REQUIRED_PLAYERS", 0); n > 0 {
		cfg.RequiredPlayers = n
	}
	if tr := getEnvInt("TICK_RATE", 0); tr > 0 {
		cfg.TickRate = tr
	}
	if ttl := getEnvInt("CHALLENGE_TTL_MS", 0); ttl > 0 {
		cfg.ChallengeTTL = time.Duration(ttl) * time.Millisecond
	}

	return cfg
}

// TickInterval is the fixed simulation step.
func (g GameConfig) TickInterval() time.Duration {
	return time.Second / time.Duration(g.TickRate)
}

// =============================================================================
// NETWORK CONFIGURATION
// =============================================================================

// NetworkConfig controls the simulated transport latency and per-connection
// inbound throttling.
type NetworkConfig struct {
	Latency    time.Duration // Applied to every inbound and outbound frame
	InputRate  float64       // Inbound frames per second per connection
	InputBurst int
}

// DefaultNetwork returns the default network configuration.
func DefaultNetwork() NetworkConfig {
	return NetworkConfig{
		Latency:    200 * time.Millisecond,
		InputRate:  60,
		InputBurst: 120,
	}
}

// NetworkFromEnv returns network configuration with environment variable overrides.
func NetworkFromEnv() NetworkConfig {
	cfg := DefaultNetwork()

	// Zero is a legitimate latency, so only negative values fall back.
	if ms := getEnvInt("NETWORK_LATENCY_MS", -1); ms >= 0 {
		cfg.Latency = time.Duration(ms) * time.Millisecond
	}
	if r := getEnvFloat("INPUT_RATE", 0); r > 0 {
		cfg.InputRate = r
	}
	if b := getEnvInt("INPUT_BURST", 0); b > 0 {
		cfg.InputBurst = b
	}

	return cfg
}

// =============================================================================
// SERVER CONFIGURATION
// =============================================================================

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port                int
	MaxConnections      int
	MaxConnectionsPerIP int
	AllowedOrigins      []string // Empty allows every origin
	DebugAddr           string
	DebugEnabled        bool
	DebugUser           string // Optional basic auth on the debug server
	DebugPass           string
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Port:                8080,
		MaxConnections:      500,
		MaxConnectionsPerIP: 10,
		DebugAddr:           "127.0.0.1:6060",
		DebugEnabled:        true,
	}
}

// ServerFromEnv returns server configuration with environment variable overrides.
func ServerFromEnv() ServerConfig {
	cfg := DefaultServer()

	if p := getEnvInt("PORT", 0); p > 0 {
		cfg.Port = p
	}
	if mc := getEnvInt("MAX_CONNECTIONS", 0); mc > 0 {
		cfg.MaxConnections = mc
	}
	if mc := getEnvInt("MAX_CONNECTIONS_PER_IP", 0); mc > 0 {
		cfg.MaxConnectionsPerIP = mc
	}
	if origins := getEnvList("ALLOWED_ORIGINS"); len(origins) > 0 {
		cfg.AllowedOrigins = origins
	}
	if addr := os.Getenv("DEBUG_ADDR"); addr != "" {
		cfg.DebugAddr = addr
	}
	if os.Getenv("DEBUG_SERVER") == "false" {
		cfg.DebugEnabled = false
	}
	cfg.DebugUser = os.Getenv("DEBUG_USER")
	cfg.DebugPass = os.Getenv("DEBUG_PASS")

	return cfg
}

// =============================================================================
// LOGGING CONFIGURATION
// =============================================================================

// LogConfig selects the zerolog level and output format.
type LogConfig struct {
	Level  string
	Pretty bool
}

// DefaultLog returns the default logging configuration.
func DefaultLog() LogConfig {
	return LogConfig{Level: "info", Pretty: true}
}

// LogFromEnv returns logging configuration with environment variable overrides.
func LogFromEnv() LogConfig {
	cfg := DefaultLog()

	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		cfg.Level = strings.ToLower(lvl)
	}
	if os.Getenv("LOG_PRETTY") == "false" {
		cfg.Pretty = false
	}

	return cfg
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Game    GameConfig
	Network NetworkConfig
	Server  ServerConfig
	Log     LogConfig
}

// Load returns the complete configuration with environment overrides.
func Load() AppConfig {
	return AppConfig{
		Game:    GameFromEnv(),
		Network: NetworkFromEnv(),
		Server:  ServerFromEnv(),
		Log:     LogFromEnv(),
	}
}

// Validate rejects combinations the simulation cannot run with.
func (c AppConfig) Validate() error {
	g := c.Game
	if g.RequiredPlayers < 1 {
		return errors.Errorf("required players must be positive, got %d", g.RequiredPlayers)
	}
	if g.TickRate < 1 || g.TickRate > 240 {
		return errors.Errorf("tick rate %d out of range [1, 240]", g.TickRate)
	}
	minEdge := 2 * g.SpawnInset
	if g.Map.Width <= minEdge || g.Map.Height <= 2*g.HazardMargin {
		return errors.Errorf("arena %.0fx%.0f too small", g.Map.Width, g.Map.Height)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.Errorf("invalid port %d", c.Server.Port)
	}
	return nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
