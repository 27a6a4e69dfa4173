package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dm_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dm_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "route"},
	)

	// Messaging
	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dm_messages_sent_total",
			Help: "Total direct messages persisted",
		},
		[]string{"message_type"},
	)

	ConversationsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dm_conversations_created_total",
			Help: "Total conversations created",
		},
	)

	// Realtime
	EventsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dm_realtime_events_total",
			Help: "Realtime events fanned out to rooms",
		},
		[]string{"event"},
	)

	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dm_realtime_events_dropped_total",
			Help: "Realtime events or frames dropped",
		},
		[]string{"reason"}, // "queue_full", "slow_consumer", "mirror"
	)

	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dm_ws_active_connections",
			Help: "Open live connections",
		},
	)

	OnlineUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dm_online_users",
			Help: "Users with at least one open live connection",
		},
	)

	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dm_rate_limit_hits_total",
			Help: "Requests or frames rejected by rate limiting",
		},
		[]string{"surface"}, // "http", "ws"
	)
)
