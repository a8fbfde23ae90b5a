package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"coin-arena/internal/config"
	"coin-arena/internal/logger"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// GameLobby is everything the server needs from the lobby: the read side
// for HTTP and the session side for websockets.
type GameLobby interface {
	LobbyInterface
	SessionHost
}

// Server is the HTTP API server with WebSocket support.
// It combines the HTTP router with the WebSocket hub for realtime play.
type Server struct {
	lobby       GameLobby
	cfg         config.AppConfig
	router      *chi.Mux
	wsHub       *WebSocketHub
	rateLimiter *IPRateLimiter
	httpServer  *http.Server
	log         zerolog.Logger
}

// NewServer creates a new API server.
//
// IMPORTANT: No listener opens until Start() is called, so tests can
// construct the server and drive Router() through httptest.
func NewServer(lobby GameLobby, cfg config.AppConfig) *Server {
	s := &Server{
		lobby: lobby,
		cfg:   cfg,
		log:   logger.For("api"),
		wsHub: NewWebSocketHub(lobby, HubConfig{
			Network:        cfg.Network,
			MaxConnections: cfg.Server.MaxConnections,
			MaxPerIP:       cfg.Server.MaxConnectionsPerIP,
			AllowedOrigins: cfg.Server.AllowedOrigins,
		}),
		rateLimiter: NewIPRateLimiter(DefaultRateLimitConfig),
	}

	s.router = NewRouter(RouterConfig{
		Lobby:       lobby,
		Network:     cfg.Network,
		RateLimiter: s.rateLimiter,
		CORSOrigins: cfg.Server.AllowedOrigins,
	})

	// The socket stays outside /api so the HTTP rate limiter only sees the
	// upgrade request.
	s.router.Get("/ws", s.wsHub.HandleWebSocket)

	s.httpServer = &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Server.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Start listens on the configured port and blocks until Shutdown. A
// Shutdown that lands first makes Start return nil without listening.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.httpServer.Addr).Msg("🌐 API server starting")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "listen")
	}
	return nil
}

// Router returns the HTTP handler for use with httptest.
//
// Example:
//
//	server := api.NewServer(lobby, config.Load())
//	ts := httptest.NewServer(server.Router())
//	defer ts.Close()
//	resp, _ := http.Get(ts.URL + "/api/lobby")
func (s *Server) Router() http.Handler {
	return s.router
}

// Hub exposes the websocket hub, mainly for connection counts in tests.
func (s *Server) Hub() *WebSocketHub {
	return s.wsHub
}

// Shutdown stops accepting requests, drops every socket and releases the
// rate limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.wsHub.Close()
	s.rateLimiter.Stop()
	return errors.Wrap(err, "http shutdown")
}
