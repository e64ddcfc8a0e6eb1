// Package observability provides Prometheus metrics for simulation runs.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultNamespace is used when NewMetrics gets an empty namespace.
const DefaultNamespace = "dca_backtest"

// Metrics holds all Prometheus metrics for the application.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Simulation metrics
	RunsTotal              *prometheus.CounterVec
	RunDuration            prometheus.Histogram
	DaysSimulated          prometheus.Counter
	TransactionsTotal      *prometheus.CounterVec
	QuestionableEvents     prometheus.Counter
	WhipsawWarnings        prometheus.Counter
	RegimeChangesTotal     *prometheus.CounterVec
	ClassificationFailures prometheus.Counter

	// Storage metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
	CacheRequests   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulRun prometheus.Gauge
}

// NewMetrics creates a Metrics instance registered on reg.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	factory := promauto.With(reg)

	return &Metrics{
		// Simulation metrics
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "runs_total",
			Help:      "Total number of simulation runs by status",
		}, []string{"status"}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "run_duration_seconds",
			Help:      "Simulation run duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		}),
		DaysSimulated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "days_simulated_total",
			Help:      "Total number of price days simulated",
		}),
		TransactionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "transactions_total",
			Help:      "Total number of ledger entries by type",
		}, []string{"type"}),
		QuestionableEvents: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "questionable_events_total",
			Help:      "Total number of questionable audit events",
		}),
		WhipsawWarnings: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "adaptive",
			Name:      "whipsaw_warnings_total",
			Help:      "Total number of whipsaw warnings",
		}),
		RegimeChangesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "adaptive",
			Name:      "regime_changes_total",
			Help:      "Total number of regime changes by new scenario",
		}, []string{"scenario"}),
		ClassificationFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "adaptive",
			Name:      "classification_failures_total",
			Help:      "Total number of failed scenario classifications",
		}),

		// Storage metrics
		DBQueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
		CacheRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "requests_total",
			Help:      "Price cache lookups by result",
		}, []string{"result"}),

		// Health metrics
		LastSuccessfulRun: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of last successful simulation run",
		}),
	}
}

// RecordRun records a finished run.
func (m *Metrics) RecordRun(status string, durationSeconds float64, days int) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(status).Inc()
	m.RunDuration.Observe(durationSeconds)
	m.DaysSimulated.Add(float64(days))
}

// RecordTransaction counts one ledger entry.
func (m *Metrics) RecordTransaction(txType string) {
	if m == nil {
		return
	}
	m.TransactionsTotal.WithLabelValues(txType).Inc()
}

// RecordQuestionable counts one questionable event.
func (m *Metrics) RecordQuestionable() {
	if m == nil {
		return
	}
	m.QuestionableEvents.Inc()
}

// RecordWhipsaw counts one whipsaw warning.
func (m *Metrics) RecordWhipsaw() {
	if m == nil {
		return
	}
	m.WhipsawWarnings.Inc()
}

// RecordRegimeChange counts a regime change into scenario.
func (m *Metrics) RecordRegimeChange(scenario string) {
	if m == nil {
		return
	}
	m.RegimeChangesTotal.WithLabelValues(scenario).Inc()
}

// RecordClassificationFailure counts a degraded classification.
func (m *Metrics) RecordClassificationFailure() {
	if m == nil {
		return
	}
	m.ClassificationFailures.Inc()
}

// RecordDBQuery records database query metrics.
func (m *Metrics) RecordDBQuery(database, operation string, seconds float64, err error) {
	if m == nil {
		return
	}
	m.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		m.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordCache records a cache hit or miss.
func (m *Metrics) RecordCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheRequests.WithLabelValues(result).Inc()
}

// MarkSuccess stamps the last successful run time.
func (m *Metrics) MarkSuccess(unixSeconds float64) {
	if m == nil {
		return
	}
	m.LastSuccessfulRun.Set(unixSeconds)
}
