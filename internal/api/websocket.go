package api

import (
	"net/http"
	"sync"
	"time"

	"coin-arena/internal/clock"
	"coin-arena/internal/config"
	"coin-arena/internal/logger"
	"coin-arena/internal/metrics"
	"coin-arena/internal/netsim"
	"coin-arena/internal/protocol"
	"coin-arena/internal/session"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 4096
)

// ErrConnClosed is returned by sends on a closed connection.
var ErrConnClosed = errors.New("connection closed")

// ErrSendBacklog is returned when the outbound delay line is full.
var ErrSendBacklog = errors.New("send backlog full")

// SessionHost is the part of the lobby a websocket connection drives.
type SessionHost interface {
	Connect(conn session.Conn, budget time.Duration) *session.Player
	Disconnect(playerID string)
	Dispatch(playerID string, msg protocol.Inbound)
}

// HubConfig configures admission and the simulated network.
type HubConfig struct {
	Network        config.NetworkConfig
	MaxConnections int
	MaxPerIP       int
	AllowedOrigins []string
	Clock          clock.Clock // defaults to clock.Real
}

// WebSocketHub admits websocket connections and bridges them to the lobby.
// Every frame in either direction crosses a netsim delay line.
type WebSocketHub struct {
	host     SessionHost
	cfg      HubConfig
	upgrader websocket.Upgrader
	limiter  *ConnLimiter
	log      zerolog.Logger

	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

// wsClient is one player connection. It implements session.Conn.
type wsClient struct {
	hub      *WebSocketHub
	conn     *websocket.Conn
	ip       string
	playerID string

	in  *netsim.DelayLine
	out *netsim.DelayLine

	closeOnce sync.Once
	closed    chan struct{}
}

func NewWebSocketHub(host SessionHost, cfg HubConfig) *WebSocketHub {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	h := &WebSocketHub{
		host:    host,
		cfg:     cfg,
		limiter: NewConnLimiter(cfg.MaxPerIP),
		log:     logger.For("ws"),
		clients: make(map[*wsClient]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if OriginAllowed(origin, cfg.AllowedOrigins) {
				return true
			}
			h.log.Warn().Str("origin", origin).Msg("⚠️ WebSocket connection rejected")
			metrics.RecordConnectionRejected("origin")
			return false
		},
	}
	return h
}

// ClientCount returns the number of connected clients
func (h *WebSocketHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// HandleWebSocket admits a connection, registers a player for it and
// pumps frames until the peer goes away.
func (h *WebSocketHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ip := GetClientIP(r)

	if total := h.ClientCount(); h.cfg.MaxConnections > 0 && total >= h.cfg.MaxConnections {
		h.log.Warn().Int("total", total).Msg("⚠️ WebSocket connection rejected: total limit reached")
		metrics.RecordConnectionRejected("ws_total_limit")
		http.Error(w, "Too many connections", http.StatusServiceUnavailable)
		return
	}
	if !h.limiter.Allow(ip) {
		h.log.Warn().Str("ip", ip).Msg("⚠️ WebSocket connection rejected: per-IP limit reached")
		metrics.RecordConnectionRejected("ws_ip_limit")
		http.Error(w, "Too many connections from your IP", http.StatusTooManyRequests)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug().Err(err).Str("ip", ip).Msg("WebSocket upgrade failed")
		h.limiter.Release(ip)
		return
	}
	conn.SetReadLimit(maxMessageSize)

	c := &wsClient{hub: h, conn: conn, ip: ip, closed: make(chan struct{})}
	latency := h.cfg.Network.Latency
	c.out = netsim.New(h.cfg.Clock, latency, netsim.DefaultCapacity, c.write)
	c.in = netsim.New(h.cfg.Clock, latency, netsim.DefaultCapacity, c.handle)
	c.out.Start()

	h.register(c)
	p := h.host.Connect(c, latency)
	c.playerID = p.ID
	c.in.Start()

	go c.readLoop()
}

// Close drops every connection. Used on shutdown.
func (h *WebSocketHub) Close() {
	h.mu.Lock()
	clients := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.Close()
	}
}

func (h *WebSocketHub) register(c *wsClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()

	metrics.UpdateWSConnections(count)
	h.log.Info().Str("ip", c.ip).Int("total", count).Msg("📱 Client connected")
}

func (h *WebSocketHub) unregister(c *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	count := len(h.clients)
	h.mu.Unlock()

	h.limiter.Release(c.ip)
	metrics.UpdateWSConnections(count)
	h.log.Info().Int("remaining", count).Msg("📱 Client disconnected")
}

// Send queues an encoded frame behind the simulated latency.
func (c *wsClient) Send(raw []byte) error {
	select {
	case <-c.closed:
		return ErrConnClosed
	default:
	}
	if !c.out.Push(raw) {
		metrics.WSFrameDropped("backlog")
		return ErrSendBacklog
	}
	return nil
}

// Close tears the connection down. The read loop notices and disconnects
// the player.
func (c *wsClient) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		c.in.Close()
		c.out.Close()
		err = c.conn.Close()
	})
	return err
}

// write runs on the outbound delay line, the connection's only writer.
func (c *wsClient) write(raw []byte) {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		c.hub.log.Debug().Err(err).Str("ip", c.ip).Msg("Write failed")
		c.Close()
		return
	}
	metrics.WSMessageOut()
}

// handle runs on the inbound delay line once a frame's latency elapsed.
func (c *wsClient) handle(raw []byte) {
	msg, err := protocol.Decode(raw)
	if err != nil {
		reason := "malformed"
		if errors.Is(err, protocol.ErrUnknownType) {
			reason = "unknown"
		}
		metrics.WSFrameDropped(reason)
		c.hub.log.Debug().Err(err).Str("player", c.playerID).Msg("Dropping frame")
		return
	}
	c.hub.host.Dispatch(c.playerID, msg)
}

func (c *wsClient) readLoop() {
	h := c.hub
	defer func() {
		c.Close()
		<-c.in.Done()
		h.host.Disconnect(c.playerID)
		h.unregister(c)
	}()

	limit := rate.Limit(h.cfg.Network.InputRate)
	if limit <= 0 {
		limit = rate.Inf
	}
	limiter := rate.NewLimiter(limit, h.cfg.Network.InputBurst)
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug().Err(err).Str("player", c.playerID).Msg("Read failed")
			}
			return
		}
		metrics.WSMessageIn()
		// Only movement is throttled; control frames always get through.
		if protocol.FrameType(raw) == protocol.TypeInput && !limiter.Allow() {
			metrics.WSFrameDropped("rate_limit")
			continue
		}
		if !c.in.Push(raw) {
			metrics.WSFrameDropped("backlog")
		}
	}
}
