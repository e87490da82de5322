package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OperationsTotal counts domain operations by name and outcome code.
	OperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "socialfeed_operations_total",
		Help: "Total domain operations by operation and outcome",
	}, []string{"operation", "outcome"})

	// EventsPublished counts change events published by topic.
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "socialfeed_events_published_total",
		Help: "Total change events published by topic",
	}, []string{"topic"})

	// SubscriberDrops counts events discarded because a subscriber backlog was full.
	SubscriberDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "socialfeed_subscriber_drops_total",
		Help: "Total events dropped due to subscriber backlog overflow",
	}, []string{"topic"})

	// ActiveSubscriptions is the gauge of attached change-notifier subscriptions.
	ActiveSubscriptions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "socialfeed_active_subscriptions",
		Help: "Number of active change-notifier subscriptions",
	})

	// WebSocketConnections is the gauge of open websocket connections.
	WebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "socialfeed_websocket_connections",
		Help: "Number of active WebSocket connections",
	})

	// RedisErrors counts Redis errors by command.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "socialfeed_redis_errors_total",
		Help: "Total number of Redis errors by command",
	}, []string{"command"})

	// VersionConflicts counts conditional post updates rejected by the store.
	VersionConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "socialfeed_version_conflicts_total",
		Help: "Total conditional post updates rejected due to a stale version",
	})
)
