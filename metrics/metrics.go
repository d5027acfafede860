// Package metrics exposes Prometheus collectors for validations, rule
// executions and rule set reloads.
package metrics

import (
	"net/http"
	"time"

	"github.com/c360studio/defcheck/rules"
	"github.com/c360studio/defcheck/validation"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides observability for the validation engine. A nil
// *Metrics is a valid no-op recorder.
type Metrics struct {
	gatherer prometheus.Gatherer

	// Rule outcomes by rule, category and status
	RuleOutcome *prometheus.CounterVec

	// Rule evaluation latency by category
	RuleLatency *prometheus.HistogramVec

	// Completed validations by verdict
	Validations *prometheus.CounterVec

	// Overall validation latency
	ValidateLatency prometheus.Histogram

	// Validation score distribution
	Score prometheus.Histogram

	// Rule set loads by result
	Reloads *prometheus.CounterVec

	// Active rule set version and size
	RuleSetVersion prometheus.Gauge
	RuleSetSize    prometheus.Gauge
}

var _ validation.Recorder = (*Metrics)(nil)

// New creates a Metrics instance registered with reg. A nil reg uses a
// fresh private registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	return &Metrics{
		gatherer: reg,

		RuleOutcome: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "defcheck_rule_outcomes_total",
			Help: "Total rule outcomes by rule, category and status",
		}, []string{"rule", "category", "status"}), // status: "passed", "failed", "skipped"

		RuleLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "defcheck_rule_duration_seconds",
			Help:    "Duration of single rule evaluations by category",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1},
		}, []string{"category"}),

		Validations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "defcheck_validations_total",
			Help: "Total completed validations by verdict",
		}, []string{"verdict"}), // verdict: "passed", "failed", "incomplete"

		ValidateLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "defcheck_validate_duration_seconds",
			Help:    "Duration of full validations including aggregation",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),

		Score: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "defcheck_validation_score",
			Help:    "Distribution of validation scores",
			Buckets: prometheus.LinearBuckets(10, 10, 10),
		}),

		Reloads: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "defcheck_rule_reloads_total",
			Help: "Total rule set load attempts by result",
		}, []string{"result"}), // result: "success", "failure"

		RuleSetVersion: factory.NewGauge(prometheus.GaugeOpts{
			Name: "defcheck_rule_set_version",
			Help: "Version of the active rule snapshot",
		}),

		RuleSetSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "defcheck_rule_set_rules",
			Help: "Number of rules in the active snapshot",
		}),
	}
}

// RuleEvaluated records one rule outcome and its latency.
func (m *Metrics) RuleEvaluated(o *rules.Outcome, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RuleOutcome.WithLabelValues(o.RuleID, string(o.Category), o.Status()).Inc()
	m.RuleLatency.WithLabelValues(string(o.Category)).Observe(elapsed.Seconds())
}

// ValidationCompleted records a finished validation.
func (m *Metrics) ValidationCompleted(r *validation.Result, elapsed time.Duration) {
	if m == nil {
		return
	}
	verdict := "failed"
	switch {
	case r.Incomplete:
		verdict = "incomplete"
	case r.Passed:
		verdict = "passed"
	}
	m.Validations.WithLabelValues(verdict).Inc()
	m.ValidateLatency.Observe(elapsed.Seconds())
	m.Score.Observe(float64(r.Score))
}

// ObserveReload is a rules.ReloadHook recording load attempts and the
// active rule set.
func (m *Metrics) ObserveReload(snap *rules.Snapshot, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.Reloads.WithLabelValues("failure").Inc()
		return
	}
	m.Reloads.WithLabelValues("success").Inc()
	m.RuleSetVersion.Set(float64(snap.Version))
	m.RuleSetSize.Set(float64(snap.Len()))
}

// Handler serves the registered collectors in the Prometheus exposition
// format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
