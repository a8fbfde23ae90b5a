package api

import (
	"net/http"
	"net/http/pprof"
	"os"

	"coin-arena/internal/config"
	"coin-arena/internal/logger"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// =============================================================================
// DEBUG SERVER
// =============================================================================
// Serves pprof and Prometheus metrics on a separate port.
//
// SECURITY: Binds to localhost unless ALLOW_DEBUG_EXTERNAL=true.
// Expose through an SSH tunnel:
//   ssh -L 6060:localhost:6060 your-server
// =============================================================================

const defaultDebugAddr = "127.0.0.1:6060"

// ObservabilityConfig configures the debug server
type ObservabilityConfig struct {
	Enabled       bool
	ListenAddr    string // MUST be "127.0.0.1:6060" in production
	BasicAuthUser string // Optional basic auth
	BasicAuthPass string
}

// ObservabilityFromServer derives the debug server settings from the
// server configuration.
func ObservabilityFromServer(cfg config.ServerConfig) ObservabilityConfig {
	addr := cfg.DebugAddr
	if addr == "" {
		addr = defaultDebugAddr
	}
	return ObservabilityConfig{
		Enabled:       cfg.DebugEnabled,
		ListenAddr:    addr,
		BasicAuthUser: cfg.DebugUser,
		BasicAuthPass: cfg.DebugPass,
	}
}

// DebugHandler builds the debug mux, wrapped in basic auth when a user is set.
func DebugHandler(cfg ObservabilityConfig) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	if cfg.BasicAuthUser == "" {
		return mux
	}
	return basicAuthMiddleware(cfg.BasicAuthUser, cfg.BasicAuthPass, mux)
}

// StartDebugServer starts the debug HTTP server in the background.
// Returns immediately; errors are logged.
func StartDebugServer(cfg ObservabilityConfig) {
	log := logger.For("debug")
	if !cfg.Enabled {
		log.Info().Msg("📊 Debug server disabled")
		return
	}

	if cfg.ListenAddr != defaultDebugAddr && cfg.ListenAddr != "localhost:6060" {
		if os.Getenv("ALLOW_DEBUG_EXTERNAL") != "true" {
			log.Warn().Str("requested", cfg.ListenAddr).Msg("⚠️ Debug server forced to localhost for security")
			cfg.ListenAddr = defaultDebugAddr
		}
	}

	handler := DebugHandler(cfg)
	go func() {
		log.Info().
			Str("pprof", "http://"+cfg.ListenAddr+"/debug/pprof/").
			Str("metrics", "http://"+cfg.ListenAddr+"/metrics").
			Msg("📊 Debug server starting")

		if err := http.ListenAndServe(cfg.ListenAddr, handler); err != nil {
			log.Error().Err(err).Msg("⚠️ Debug server error")
		}
	}()
}

func basicAuthMiddleware(user, pass string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || u != user || p != pass {
			w.Header().Set("WWW-Authenticate", `Basic realm="debug"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
