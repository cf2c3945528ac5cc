// internal/orchestration/metrics.go
package orchestration

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains Prometheus metrics for the orchestration engine.
// A nil *Metrics is valid and records nothing, so library embedders that
// do not scrape can skip registration entirely.
type Metrics struct {
	ruleExecutions        *prometheus.CounterVec
	orchestrations        *prometheus.CounterVec
	orchestrationDuration prometheus.Histogram
	conflictsDetected     prometheus.Counter
	cacheHits             prometheus.Counter
	cacheMisses           prometheus.Counter
}

// NewMetrics creates a Metrics instance registered on the default registry.
// Call at most once per process.
func NewMetrics() *Metrics {
	return &Metrics{
		ruleExecutions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ratekeeper_rule_executions_total",
				Help: "Total number of rule executions by outcome",
			},
			[]string{"outcome"},
		),
		orchestrations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ratekeeper_orchestrations_total",
				Help: "Total number of orchestration calls by strategy and outcome",
			},
			[]string{"strategy", "outcome"},
		),
		orchestrationDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ratekeeper_orchestration_duration_seconds",
				Help:    "End-to-end orchestration call duration",
				Buckets: prometheus.DefBuckets,
			},
		),
		conflictsDetected: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "ratekeeper_rule_conflicts_detected_total",
				Help: "Total number of rule conflicts detected during planning",
			},
		),
		cacheHits: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "ratekeeper_rule_cache_hits_total",
				Help: "Total number of rule result cache hits",
			},
		),
		cacheMisses: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "ratekeeper_rule_cache_misses_total",
				Help: "Total number of rule result cache misses",
			},
		),
	}
}

func (m *Metrics) observeRule(outcome string) {
	if m == nil {
		return
	}
	m.ruleExecutions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) observeOrchestration(strategy, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.orchestrations.WithLabelValues(strategy, outcome).Inc()
	m.orchestrationDuration.Observe(duration.Seconds())
}

func (m *Metrics) addConflicts(n int) {
	if m == nil || n == 0 {
		return
	}
	m.conflictsDetected.Add(float64(n))
}

func (m *Metrics) observeCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}
