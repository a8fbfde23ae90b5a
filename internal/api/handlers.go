package api

import (
	"bytes"
	"encoding/json"
	"net/http"

	"coin-arena/internal/config"
	"coin-arena/internal/protocol"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// configResponse is what a client needs before it opens a socket.
type configResponse struct {
	Map             config.MapConfig    `json:"map"`
	PlayerSize      float64             `json:"playerSize"`
	CoinRadius      float64             `json:"coinRadius"`
	HazardRadius    float64             `json:"hazardRadius"`
	RequiredPlayers int                 `json:"requiredPlayers"`
	TickRate        int                 `json:"tickRate"`
	CountdownMs     int64               `json:"countdownMs"`
	ChallengeTTLMs  int64               `json:"challengeTtlMs"`
	LatencyMs       int64               `json:"latencyMs"`
	Difficulties    []config.Difficulty `json:"difficulties"`
	Modes           []config.Mode       `json:"modes"`
	Avatars         []config.Avatar     `json:"avatars"`
}

func (h *routerHandlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (h *routerHandlers) handleLobby(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.lobby.Snapshot())
}

func (h *routerHandlers) handleConfig(w http.ResponseWriter, r *http.Request) {
	g := h.lobby.Config()
	writeJSON(w, configResponse{
		Map:             g.Map,
		PlayerSize:      g.PlayerSize,
		CoinRadius:      g.CoinRadius,
		HazardRadius:    g.HazardRadius,
		RequiredPlayers: g.RequiredPlayers,
		TickRate:        g.TickRate,
		CountdownMs:     g.Countdown.Milliseconds(),
		ChallengeTTLMs:  g.ChallengeTTL.Milliseconds(),
		LatencyMs:       h.network.Latency.Milliseconds(),
		Difficulties:    config.Difficulties(),
		Modes:           config.Modes(),
		Avatars:         config.Avatars(),
	})
}

func (h *routerHandlers) handlePreview(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	snap, ok := h.lobby.RoomSnapshot(roomID)
	if !ok {
		writeError(w, "Room not found", http.StatusNotFound)
		return
	}

	var buf bytes.Buffer
	if err := h.preview.PNG(&buf, snap); err != nil {
		log.Error().Err(err).Str("room", roomID).Msg("⚠️ Preview render failed")
		writeError(w, "Render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}

func (h *routerHandlers) handleSchema(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, protocol.Schema())
}

// Helper functions (package-level for reuse)

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
