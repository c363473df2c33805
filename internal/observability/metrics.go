package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DatabaseQueryLatency records repository query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "monolith_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// WebSocketEventsTotal counts realtime events delivered by type.
	WebSocketEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "monolith_websocket_events_total",
		Help: "Total realtime events delivered by type",
	}, []string{"event_type"})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by hub and reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "monolith_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})

	// JobsEnqueued counts delayed jobs scheduled by type.
	JobsEnqueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "monolith_jobs_enqueued_total",
		Help: "Total delayed jobs scheduled",
	}, []string{"type"})

	// JobsProcessed counts finished job attempts by type and outcome.
	JobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "monolith_jobs_processed_total",
		Help: "Total job attempts by outcome",
	}, []string{"type", "outcome"})

	// StoriesExpired counts stories removed by the expiry job or the sweeper.
	StoriesExpired = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "monolith_stories_expired_total",
		Help: "Total stories removed after their lifetime",
	}, []string{"source"})

	// MailsSent counts outgoing mails by driver and outcome.
	MailsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "monolith_mails_sent_total",
		Help: "Total outgoing mails",
	}, []string{"driver", "outcome"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}
