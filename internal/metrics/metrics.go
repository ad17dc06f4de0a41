package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// EventsTotal counts inbound chat events per role and kind.
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fieldops",
			Subsystem: "conversation",
			Name:      "events_total",
			Help:      "Inbound chat events handled",
		},
		[]string{"role", "kind"},
	)

	// EventFailuresTotal counts events whose handling returned an error.
	EventFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fieldops",
			Subsystem: "conversation",
			Name:      "event_failures_total",
			Help:      "Inbound chat events that failed",
		},
		[]string{"role"},
	)

	TicketsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "fieldops",
			Subsystem: "tickets",
			Name:      "created_total",
			Help:      "Tickets created",
		},
	)

	// TransitionsTotal counts committed transitions by target status.
	TransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fieldops",
			Subsystem: "tickets",
			Name:      "transitions_total",
			Help:      "Ticket status transitions committed",
		},
		[]string{"status"},
	)

	// NotificationsTotal counts per-recipient deliveries.
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fieldops",
			Subsystem: "notify",
			Name:      "deliveries_total",
			Help:      "Notification deliveries by target role and result",
		},
		[]string{"role", "result"},
	)

	RemindersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fieldops",
			Subsystem: "notify",
			Name:      "reminders_total",
			Help:      "Client reminders by stage (scheduled, sent, failed)",
		},
		[]string{"stage"},
	)

	// UpstreamFailuresTotal counts failed calls to the order source and image host.
	UpstreamFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fieldops",
			Subsystem: "upstream",
			Name:      "failures_total",
			Help:      "Failed upstream calls",
		},
		[]string{"upstream"},
	)

	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fieldops",
			Subsystem: "upstream",
			Name:      "duration_seconds",
			Help:      "Upstream call duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"upstream"},
	)
)

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
