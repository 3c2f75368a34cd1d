package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for the territory-capture room runtime.
//
// Naming convention: namespace_subsystem_name
// - namespace: territory_game (application-level grouping)
// - subsystem: websocket, room, tick, directory, circuit_breaker, rate_limit, auth
// - name: specific metric
//
// Metric Types:
// - Gauge: Current state (connections, rooms, players)
// - Counter: Cumulative events (ticks run, errors)
// - Histogram: Latency distributions (tick duration, directory op latency)

var (
	// ActivePlayerConnections tracks the current number of connected players.
	ActivePlayerConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "territory_game",
		Subsystem: "websocket",
		Name:      "connections_active",
		Help:      "Current number of active player WebSocket connections",
	})

	// ActiveRooms tracks the current number of live rooms cached on this replica.
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "territory_game",
		Subsystem: "room",
		Name:      "rooms_active",
		Help:      "Current number of active rooms on this replica",
	})

	// RoomPlayers tracks the number of players in each room.
	RoomPlayers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "territory_game",
		Subsystem: "room",
		Name:      "players_count",
		Help:      "Number of players in each room",
	}, []string{"room_id"})

	// WebsocketEvents tracks the total number of inbound WS events processed.
	WebsocketEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "territory_game",
		Subsystem: "websocket",
		Name:      "events_total",
		Help:      "Total WebSocket events processed",
	}, []string{"event_type", "status"})

	// MessageProcessingDuration tracks time spent handling an inbound WS message.
	MessageProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "territory_game",
		Subsystem: "websocket",
		Name:      "message_processing_seconds",
		Help:      "Time spent processing WebSocket messages",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"event_type"})

	// TickDuration tracks the wall-clock time spent running one simulation tick.
	TickDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "territory_game",
		Subsystem: "tick",
		Name:      "duration_seconds",
		Help:      "Time spent running one tick of the simulation loop",
		Buckets:   []float64{.01, .05, .1, .2, .35, .5, .7, 1},
	}, []string{"room_id"})

	// TicksTotal counts ticks run, per room.
	TicksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "territory_game",
		Subsystem: "tick",
		Name:      "total",
		Help:      "Total number of ticks executed",
	}, []string{"room_id"})

	// TurnStepDuration tracks time spent in each phase of a single turn.
	TurnStepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "territory_game",
		Subsystem: "tick",
		Name:      "step_duration_seconds",
		Help:      "Time spent in one phase of a turn",
		Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25},
	}, []string{"operation"})

	// RoomGameState tracks the current lifecycle state of a room.
	// 0: waiting_for_players, 1: in_progress, 2: finished
	RoomGameState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "territory_game",
		Subsystem: "room",
		Name:      "game_state",
		Help:      "Current lifecycle state of a room (0: waiting, 1: in_progress, 2: finished)",
	}, []string{"room_id"})

	// TerritorySize observes a player's territory size at the end of each turn.
	TerritorySize = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "territory_game",
		Subsystem: "room",
		Name:      "territory_size",
		Help:      "Distribution of per-player territory size observed each turn",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
	})

	// CircuitBreakerState tracks the current state of a circuit breaker.
	// 0: Closed (Healthy), 1: Open (Failure), 2: Half-Open (Recovering)
	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "territory_game",
		Subsystem: "circuit_breaker",
		Name:      "state",
		Help:      "Current state of the circuit breaker (0: Closed, 1: Open, 2: Half-Open)",
	}, []string{"service"})

	// CircuitBreakerFailures tracks requests rejected by an open circuit breaker.
	CircuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "territory_game",
		Subsystem: "circuit_breaker",
		Name:      "failures_total",
		Help:      "Total requests rejected by the circuit breaker",
	}, []string{"service"})

	// RateLimitExceeded tracks requests rejected by the rate limiter.
	RateLimitExceeded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "territory_game",
		Subsystem: "rate_limit",
		Name:      "exceeded_total",
		Help:      "Total number of requests that exceeded the rate limit",
	}, []string{"endpoint", "reason"})

	// RateLimitRequests tracks requests checked against the rate limiter.
	RateLimitRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "territory_game",
		Subsystem: "rate_limit",
		Name:      "requests_total",
		Help:      "Total number of requests checked against the rate limiter",
	}, []string{"endpoint"})

	// DirectoryOperationsTotal tracks directory (Redis-backed) operations.
	DirectoryOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "territory_game",
		Subsystem: "directory",
		Name:      "operations_total",
		Help:      "Total number of directory operations",
	}, []string{"operation", "status"})

	// DirectoryOperationDuration tracks the duration of directory operations.
	DirectoryOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "territory_game",
		Subsystem: "directory",
		Name:      "operation_duration_seconds",
		Help:      "Duration of directory operations",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})

	// AuthValidationAttempts tracks external auth-service validation attempts.
	AuthValidationAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "territory_game",
		Subsystem: "auth",
		Name:      "validation_attempts_total",
		Help:      "Total attempts to validate a player token against the auth service",
	}, []string{"status"})
)

func IncConnection() {
	ActivePlayerConnections.Inc()
}

func DecConnection() {
	ActivePlayerConnections.Dec()
}
