package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Transport metrics
	ReconnectAttempts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "jobtalk_reconnect_attempts_total",
			Help: "Total reconnection attempts after unexpected drops",
		},
	)

	MalformedEventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "jobtalk_malformed_events_dropped_total",
			Help: "Inbound transport frames dropped at the decode boundary",
		},
	)

	EventsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobtalk_events_sent_total",
			Help: "Outbound transport events by tag",
		},
		[]string{"event"},
	)

	EventsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobtalk_events_received_total",
			Help: "Decoded inbound transport events by tag",
		},
		[]string{"event"},
	)

	// Reconciliation metrics
	Resyncs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobtalk_resyncs_total",
			Help: "Post-reconnect resynchronizations",
		},
		[]string{"outcome"}, // "merged" or "truncated"
	)

	HistoryPagesFetched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "jobtalk_history_pages_fetched_total",
			Help: "History pages fetched from the request/response API",
		},
	)
)
