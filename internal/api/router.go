package api

import (
	"net/http"
	"time"

	"coin-arena/internal/config"
	"coin-arena/internal/match"
	"coin-arena/internal/metrics"
	"coin-arena/internal/preview"
	"coin-arena/internal/protocol"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// LobbyInterface defines the read-only lobby methods used by the HTTP API.
// Keep this minimal so tests can supply a stub.
type LobbyInterface interface {
	// Snapshot returns the lobby summary broadcast to clients
	Snapshot() protocol.LobbySnapshot
	// Config returns the arena and timing configuration
	Config() config.GameConfig
	// RoomSnapshot returns the newest state of a running room
	RoomSnapshot(roomID string) (match.Snapshot, bool)
}

// RouterConfig contains all dependencies needed to construct the HTTP router.
//
// Example usage in tests:
//
//	router := api.NewRouter(api.RouterConfig{
//	    Lobby: stubLobby,
//	    RateLimitConfig: &api.RateLimitConfig{
//	        RequestsPerSecond: 1000,
//	        Burst:             1000,
//	    },
//	    DisableLogging: true,
//	})
//	ts := httptest.NewServer(router)
type RouterConfig struct {
	// Lobby is the read side of the lobby (required)
	Lobby LobbyInterface

	// Network is reported by /api/config
	Network config.NetworkConfig

	// RateLimiter is an optional pre-configured rate limiter.
	// If nil, a new one will be created using RateLimitConfig.
	RateLimiter *IPRateLimiter

	// RateLimitConfig is only used if RateLimiter is nil.
	RateLimitConfig *RateLimitConfig

	// CORSOrigins lists allowed CORS origins. Empty allows all.
	CORSOrigins []string

	// PreviewScale sizes spectator PNGs relative to the arena. Zero means 0.5.
	PreviewScale float64

	// DisableLogging disables the request logger middleware (useful for benchmarks).
	DisableLogging bool
}

// routerHandlers holds the handler functions for the router.
type routerHandlers struct {
	lobby   LobbyInterface
	network config.NetworkConfig
	preview *preview.Renderer
}

// NewRouter constructs the HTTP router with all middleware and routes.
//
// It has no side effects beyond the rate limiter's cleanup goroutine when
// no limiter is passed in, so it is safe to use with httptest.NewServer.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware - order matters
	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(recordRequests)

	// Rate limiting before CORS to reject early
	rateLimiter := cfg.RateLimiter
	if rateLimiter == nil {
		rateLimitCfg := DefaultRateLimitConfig
		if cfg.RateLimitConfig != nil {
			rateLimitCfg = *cfg.RateLimitConfig
		}
		rateLimiter = NewIPRateLimiter(rateLimitCfg)
	}
	r.Use(rateLimiter.Middleware)

	corsOrigins := cfg.CORSOrigins
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	scale := cfg.PreviewScale
	if scale == 0 {
		scale = 0.5
	}
	h := &routerHandlers{
		lobby:   cfg.Lobby,
		network: cfg.Network,
		preview: preview.NewRenderer(cfg.Lobby.Config(), scale),
	}

	r.Get("/healthz", h.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/lobby", h.handleLobby)
		r.Get("/config", h.handleConfig)
		r.Get("/rooms/{roomID}/preview.png", h.handlePreview)
		r.Get("/protocol/schema", h.handleSchema)
	})

	return r
}

// recordRequests feeds the HTTP metrics, labelled by route pattern so
// cardinality stays bounded.
func recordRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		pattern := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				pattern = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.RecordRequest(r.Method, pattern, status, time.Since(start))
	})
}
