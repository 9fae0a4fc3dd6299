package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "friendpush_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "friendpush_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// FriendRequestsTotal counts friend request submissions by result.
	FriendRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "friendpush_friend_requests_total",
		Help: "Friend request submissions by result",
	}, []string{"result"})

	// NotificationsTotal counts push notification attempts by outcome and reason.
	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "friendpush_notifications_total",
		Help: "Push notification attempts by outcome",
	}, []string{"outcome", "reason"})

	// NotificationDispatchTotal counts post-commit dispatch attempts by dispatcher and result.
	NotificationDispatchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "friendpush_notification_dispatch_total",
		Help: "Notification dispatch attempts by dispatcher and result",
	}, []string{"dispatcher", "result"})

	// PushProviderLatency records provider round-trip time.
	PushProviderLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "friendpush_push_provider_latency_seconds",
		Help:    "Push provider send latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider"})

	// EventsPublishedTotal counts domain events by sink and result.
	EventsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "friendpush_events_published_total",
		Help: "Domain events published by sink and result",
	}, []string{"sink", "result"})

	// WebSocketConnectionsTotal is the gauge of total WebSocket connections.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "friendpush_websocket_connections_total",
		Help: "Total number of active WebSocket connections",
	})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by hub and reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "friendpush_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}

// ObservePush records a provider call that started at start.
func ObservePush(provider string, start time.Time) {
	PushProviderLatency.WithLabelValues(provider).Observe(time.Since(start).Seconds())
}

// ResultLabel maps an error to the "ok"/"error" label used by counters.
func ResultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
