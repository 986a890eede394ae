package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Patient flow
	AppointmentsCreated *prometheus.CounterVec
	CapacityRejections  prometheus.Counter
	ShiftRollovers      prometheus.Counter
	Transitions         *prometheus.CounterVec
	TransitionConflicts prometheus.Counter
	QueueLength         *prometheus.GaugeVec
	Announcements       *prometheus.CounterVec
	DisplayCache        *prometheus.CounterVec
	ShiftReports        *prometheus.CounterVec

	// Outbox related metrics
	OutboxEventsProcessed   prometheus.Counter
	OutboxEventsFailed      prometheus.Counter
	OutboxProcessingLatency prometheus.Histogram
	OutboxEventsCleaned     prometheus.Counter

	// HTTP metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Redis metrics
	RedisOperations *prometheus.CounterVec
}

// NewMetrics creates all application metrics and registers them with reg.
// Pass prometheus.DefaultRegisterer in binaries and a fresh registry in tests.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		AppointmentsCreated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "appointments_created_total",
			Help:      "Appointments admitted at intake",
		}, []string{"service_type", "priority"}),
		CapacityRejections: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capacity_rejections_total",
			Help:      "Intakes refused because the shift was full",
		}),
		ShiftRollovers: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shift_rollovers_total",
			Help:      "Times the stored shift config was reconciled to a new shift",
		}),
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "appointment_transitions_total",
			Help:      "Lifecycle transitions applied",
		}, []string{"from", "to"}),
		TransitionConflicts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "appointment_transition_conflicts_total",
			Help:      "Transitions rejected by the optimistic version check",
		}),
		QueueLength: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_length",
			Help:      "Patients waiting, as of the last queue read",
		}, []string{"queue"}),
		Announcements: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "announcements_total",
			Help:      "Patient call announcements by outcome",
		}, []string{"status"}),
		DisplayCache: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "display_cache_requests_total",
			Help:      "Public display snapshot lookups",
		}, []string{"result"}),
		ShiftReports: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shift_reports_total",
			Help:      "End-of-shift reports by outcome",
		}, []string{"status"}),

		OutboxEventsProcessed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_processed_total",
			Help:      "Total number of successfully processed outbox events",
		}),
		OutboxEventsFailed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_failed_total",
			Help:      "Total number of failed outbox events",
		}),
		OutboxProcessingLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "outbox_processing_duration_seconds",
			Help:      "Time spent processing outbox events",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		OutboxEventsCleaned: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_cleaned_total",
			Help:      "Processed outbox events removed by retention",
		}),

		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),

		RedisOperations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redis_operations_total",
			Help:      "Total number of Redis operations",
		}, []string{"operation", "status"}),
	}
}

// NewTest builds metrics on a private registry.
func NewTest() *Metrics {
	return NewMetrics("test", prometheus.NewRegistry())
}
