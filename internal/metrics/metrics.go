// Package metrics holds the process-wide Prometheus collectors.
// Labels are bounded enums only; never label by player or room id.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Simulation
	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "arena_tick_duration_seconds",
		Help:    "Time spent in one room simulation tick",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.033},
	})

	roomsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arena_rooms_active",
		Help: "Rooms currently running",
	})

	roomsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arena_rooms_finished_total",
		Help: "Rooms that reached a terminal state",
	}, []string{"reason"}) // target, timer, disconnected, fault

	inputsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arena_inputs_dropped_total",
		Help: "Input updates dropped because a room mailbox was full",
	})

	// Lobby
	playersOnline = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arena_players_online",
		Help: "Connected players",
	})

	queueWaiting = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arena_queue_waiting",
		Help: "Players waiting in any match queue",
	})

	challengesResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arena_challenges_resolved_total",
		Help: "Challenges by terminal state",
	}, []string{"state"}) // accepted, declined, expired, cancelled

	// Transport
	connectionRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connection_rejected_total",
		Help: "Connections rejected by rate limiter or origin check",
	}, []string{"reason"}) // rate_limit, origin, ws_total_limit, ws_ip_limit

	requestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint"})

	requestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "endpoint", "status"})

	wsConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "websocket_connections_active",
		Help: "Currently active WebSocket connections",
	})

	wsMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "websocket_messages_total",
		Help: "WebSocket frames by direction",
	}, []string{"direction"}) // in, out

	wsFramesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "websocket_frames_dropped_total",
		Help: "WebSocket frames dropped before handling",
	}, []string{"reason"}) // rate_limit, malformed, unknown, backlog
)

// RecordTick records simulation tick timing.
func RecordTick(d time.Duration) {
	tickDuration.Observe(d.Seconds())
}

func RoomStarted() { roomsActive.Inc() }

// RoomFinished decrements the active gauge and counts the terminal reason.
func RoomFinished(reason string) {
	roomsActive.Dec()
	roomsFinished.WithLabelValues(reason).Inc()
}

func InputDropped() { inputsDropped.Inc() }

func SetPlayersOnline(n int) { playersOnline.Set(float64(n)) }

func SetQueueWaiting(n int) { queueWaiting.Set(float64(n)) }

func ChallengeResolved(state string) {
	challengesResolved.WithLabelValues(state).Inc()
}

// RecordConnectionRejected increments the rejection counter.
func RecordConnectionRejected(reason string) {
	connectionRejected.WithLabelValues(reason).Inc()
}

// RecordRequest records HTTP request metrics.
func RecordRequest(method, endpoint string, status int, d time.Duration) {
	requestLatency.WithLabelValues(method, endpoint).Observe(d.Seconds())
	requestTotal.WithLabelValues(method, endpoint, http.StatusText(status)).Inc()
}

func UpdateWSConnections(n int) { wsConnectionsActive.Set(float64(n)) }

func WSMessageIn()  { wsMessages.WithLabelValues("in").Inc() }
func WSMessageOut() { wsMessages.WithLabelValues("out").Inc() }

func WSFrameDropped(reason string) {
	wsFramesDropped.WithLabelValues(reason).Inc()
}
