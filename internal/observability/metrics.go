// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Stream metrics
	EventsReceived   prometheus.Counter
	EventsValidated  prometheus.Counter
	EventsMalformed  *prometheus.CounterVec
	EventsOutOfOrder prometheus.Counter
	StreamReconnects prometheus.Counter
	MessagesSent     prometheus.Counter

	// Aggregation metrics
	WindowsClosed prometheus.Counter
	ActiveWindows prometheus.Gauge
	TrackedTokens prometheus.Gauge
	HighestSlot   prometheus.Gauge

	// Classification metrics
	ClassificationsEmitted *prometheus.CounterVec
	ClassifierErrors       *prometheus.CounterVec
	TrackedWallets         prometheus.Gauge

	// Sink metrics
	SinkDelivered   prometheus.Counter
	SinkRetries     prometheus.Counter
	SinkUndelivered prometheus.Counter

	// Latency metrics
	EventHandlingLatency *prometheus.HistogramVec
	SinkPersistLatency   prometheus.Histogram

	// Health metrics
	LastEventTimestamp prometheus.Gauge
}

// NewMetrics creates a Metrics instance registered on reg. A nil reg uses
// the default registerer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "token_sentry"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		EventsReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "events_received_total",
			Help:      "Total number of raw venue messages received",
		}),
		EventsValidated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "events_validated_total",
			Help:      "Total number of messages that passed validation",
		}),
		EventsMalformed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "events_malformed_total",
			Help:      "Total number of rejected messages by offending field",
		}, []string{"field"}),
		EventsOutOfOrder: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "events_out_of_order_total",
			Help:      "Total number of trades that arrived behind the token's highest slot",
		}),
		StreamReconnects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "reconnects_total",
			Help:      "Total number of websocket reconnections",
		}),
		MessagesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "messages_sent_total",
			Help:      "Total number of subscription messages sent to the venue",
		}),

		WindowsClosed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregate",
			Name:      "windows_closed_total",
			Help:      "Total number of trade windows closed",
		}),
		ActiveWindows: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "aggregate",
			Name:      "active_windows",
			Help:      "Number of currently open trade windows",
		}),
		TrackedTokens: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "aggregate",
			Name:      "tracked_tokens",
			Help:      "Number of tokens with aggregation state",
		}),
		HighestSlot: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "aggregate",
			Name:      "highest_slot",
			Help:      "Highest slot observed across all tokens",
		}),

		ClassificationsEmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "classify",
			Name:      "classifications_emitted_total",
			Help:      "Total number of classifications emitted by kind",
		}, []string{"kind"}),
		ClassifierErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "classify",
			Name:      "classifier_errors_total",
			Help:      "Total number of classifier failures by classifier",
		}, []string{"classifier"}),
		TrackedWallets: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "classify",
			Name:      "tracked_wallets",
			Help:      "Number of wallets in the activity index",
		}),

		SinkDelivered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sink",
			Name:      "delivered_total",
			Help:      "Total number of classifications delivered to the sink",
		}),
		SinkRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sink",
			Name:      "retries_total",
			Help:      "Total number of sink delivery retries",
		}),
		SinkUndelivered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sink",
			Name:      "undelivered_total",
			Help:      "Total number of classifications dropped after retry exhaustion",
		}),

		EventHandlingLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "event_handling_seconds",
			Help:      "Event handling latency by event type",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
		}, []string{"event_type"}),
		SinkPersistLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sink",
			Name:      "persist_seconds",
			Help:      "Sink delivery latency",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
		}),

		LastEventTimestamp: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_event_timestamp_ms",
			Help:      "Venue timestamp of the last applied event",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
