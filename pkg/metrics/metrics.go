package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Computation metrics
	ComputationsRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rookery_computations_running",
			Help: "Number of computations currently executing",
		},
	)

	ComputationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rookery_computations_total",
			Help: "Total number of finished computations by result",
		},
		[]string{"result"},
	)

	ComputationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rookery_computation_duration_seconds",
			Help:    "Computation duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)

	// Queue metrics
	QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rookery_queue_depth",
			Help: "Number of items waiting in the build queue",
		},
	)

	QueueBlocked = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rookery_queue_blocked_total",
			Help: "Total number of queue admission refusals by hook",
		},
		[]string{"hook"},
	)

	// Retention metrics
	OrphansDeleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rookery_orphans_deleted_total",
			Help: "Total number of children removed by orphan retention",
		},
	)

	// Child store metrics
	ChildrenLoaded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rookery_children_loaded_total",
			Help: "Total number of children loaded from disk",
		},
	)

	ChildrenSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rookery_children_skipped_total",
			Help: "Total number of children skipped during load",
		},
	)

	ChildLoadDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rookery_child_load_duration_seconds",
			Help:    "Duration of child store loads in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)

	// Event log metrics
	EventLogRotations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rookery_eventlog_rotations_total",
			Help: "Total number of event log rotations",
		},
	)

	EventLogDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rookery_eventlog_dropped_total",
			Help: "Total number of event log writes dropped on overflow",
		},
	)

	// Cron metrics
	CronTicks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rookery_cron_ticks_total",
			Help: "Total number of minute ticks fired, including catch-up",
		},
	)
)

func init() {
	prometheus.MustRegister(ComputationsRunning)
	prometheus.MustRegister(ComputationsTotal)
	prometheus.MustRegister(ComputationDuration)
	prometheus.MustRegister(QueueDepth)
	prometheus.MustRegister(QueueBlocked)
	prometheus.MustRegister(OrphansDeleted)
	prometheus.MustRegister(ChildrenLoaded)
	prometheus.MustRegister(ChildrenSkipped)
	prometheus.MustRegister(ChildLoadDuration)
	prometheus.MustRegister(EventLogRotations)
	prometheus.MustRegister(EventLogDropped)
	prometheus.MustRegister(CronTicks)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
