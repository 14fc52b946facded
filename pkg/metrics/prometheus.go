// Package metrics provides Prometheus metrics for the feature pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Manager manages all Prometheus metrics for a pipeline run.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	registry         prometheus.Registerer

	// Ingestion metrics - log reading and normalization
	rowsParsed  prometheus.Counter
	parseErrors prometheus.Counter
	rowsDropped prometheus.Counter

	// Pipeline metrics - stage progress and output shape
	stageDuration  *prometheus.HistogramVec
	subjects       prometheus.Gauge
	featureColumns prometheus.Gauge
	runsTotal      prometheus.Counter

	// Job metrics - feature-build queue and workers
	jobQueueSize     prometheus.Gauge
	jobQueueCapacity prometheus.Gauge
	workerCount      prometheus.Gauge
	jobsSucceeded    prometheus.Counter
	jobsFailed       prometheus.Counter
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "featable",
		subsystem:        "pipeline",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.rowsParsed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rows_parsed_total",
		Help:      "Total number of log rows parsed",
	})

	m.parseErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "parse_errors_total",
		Help:      "Total number of rows rejected by the timestamp parser",
	})

	m.rowsDropped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rows_dropped_total",
		Help:      "Total number of rows dropped for an unknown event type",
	})

	m.stageDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage in seconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"stage"},
	)

	m.subjects = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "subjects",
		Help:      "Number of subjects in the latest feature table",
	})

	m.featureColumns = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "feature_columns",
		Help:      "Number of columns in the latest feature table",
	})

	m.runsTotal = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "runs_total",
		Help:      "Total number of completed pipeline runs",
	})

	m.jobQueueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "job_queue_size",
		Help:      "Current number of queued feature-build jobs",
	})

	m.jobQueueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "job_queue_capacity",
		Help:      "Capacity of the feature-build job queue",
	})

	m.workerCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_count",
		Help:      "Number of feature-build workers",
	})

	m.jobsSucceeded = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "jobs_succeeded_total",
		Help:      "Total number of feature-build jobs that completed",
	})

	m.jobsFailed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "jobs_failed_total",
		Help:      "Total number of feature-build jobs that failed",
	})
}

// Package-level helpers operate on the global manager so call sites stay
// one line, the way the rest of the code uses them.

// RecordRowsParsed counts rows read from a log.
func RecordRowsParsed(n int) {
	if globalManager.enabled {
		globalManager.rowsParsed.Add(float64(n))
	}
}

// RecordParseError counts one rejected row.
func RecordParseError() {
	if globalManager.enabled {
		globalManager.parseErrors.Inc()
	}
}

// RecordRowsDropped counts rows dropped for an unknown event type.
func RecordRowsDropped(n int) {
	if globalManager.enabled {
		globalManager.rowsDropped.Add(float64(n))
	}
}

// ObserveStage records one stage's wall time.
func ObserveStage(stage string, d time.Duration) {
	if globalManager.enabled {
		globalManager.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
	}
}

// UpdateSubjects records the subject count of the latest feature table.
func UpdateSubjects(n int) {
	if globalManager.enabled {
		globalManager.subjects.Set(float64(n))
	}
}

// UpdateFeatureColumns records the width of the latest feature table.
func UpdateFeatureColumns(n int) {
	if globalManager.enabled {
		globalManager.featureColumns.Set(float64(n))
	}
}

// RecordRun counts one completed pipeline run.
func RecordRun() {
	if globalManager.enabled {
		globalManager.runsTotal.Inc()
	}
}

// UpdateJobQueueSize records the current job queue depth.
func UpdateJobQueueSize(n int) {
	if globalManager.enabled {
		globalManager.jobQueueSize.Set(float64(n))
	}
}

// UpdateJobQueueCapacity records the job queue capacity.
func UpdateJobQueueCapacity(n int) {
	if globalManager.enabled {
		globalManager.jobQueueCapacity.Set(float64(n))
	}
}

// UpdateWorkerCount records the number of feature-build workers.
func UpdateWorkerCount(n int) {
	if globalManager.enabled {
		globalManager.workerCount.Set(float64(n))
	}
}

// RecordJobSuccess counts one completed feature-build job.
func RecordJobSuccess() {
	if globalManager.enabled {
		globalManager.jobsSucceeded.Inc()
	}
}

// RecordJobFailure counts one failed feature-build job.
func RecordJobFailure() {
	if globalManager.enabled {
		globalManager.jobsFailed.Inc()
	}
}

// Handler returns an HTTP handler serving the custom registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(customRegistry, promhttp.HandlerOpts{})
}

// GetRegistry returns the custom registry, for tests and embedding.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
