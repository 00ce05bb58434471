package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/liamcoop/warden/coerce"
	"github.com/liamcoop/warden/internal/logger"
)

// Metrics owns the service's Prometheus registry and collectors
type Metrics struct {
	Registry *prometheus.Registry

	decodeMismatches   *prometheus.CounterVec
	ruleEvaluations    *prometheus.CounterVec
	evaluationDuration *prometheus.HistogramVec
	authorizeDecisions *prometheus.CounterVec
}

// New creates the collectors and registers them, together with the logger's
// counters, on a fresh registry
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		decodeMismatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_decode_mismatches_total",
			Help: "Values passed through undecoded because they did not match their descriptor",
		}, []string{"expected"}),
		ruleEvaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_rule_evaluations_total",
			Help: "Rule evaluations by outcome",
		}, []string{"outcome"}),
		evaluationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "warden_evaluation_duration_seconds",
			Help:    "Time spent decoding facts and evaluating rules for one request",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"endpoint"}),
		authorizeDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_authorize_decisions_total",
			Help: "Authorization decisions by result",
		}, []string{"allowed"}),
	}

	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		m.decodeMismatches,
		m.ruleEvaluations,
		m.evaluationDuration,
		m.authorizeDecisions,
	)

	for name, counter := range map[string]*atomic.Int64{
		"warden_log_errors_total":         &logger.TotalErrors,
		"warden_log_warnings_total":       &logger.TotalWarnings,
		"warden_http_5xx_total":           &logger.Total5xxErrors,
		"warden_http_4xx_total":           &logger.Total4xxErrors,
		"warden_http_slow_requests_total": &logger.SlowRequests,
	} {
		m.Registry.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: name,
			Help: "Mirrors the logger counter of the same name",
		}, func() float64 { return float64(counter.Load()) }))
	}

	return m
}

// MismatchHook returns a decoder hook that counts and debug-logs every pass-through.
// scope identifies the caller in log lines, typically a tenant id.
func (m *Metrics) MismatchHook(scope string) coerce.MismatchHook {
	return func(err *coerce.TypeMismatchError) {
		m.decodeMismatches.WithLabelValues(err.Expected.String()).Inc()
		logger.DecodeMismatch(scope, err.Path, err.Expected.String(), err.Actual)
	}
}

// ObserveRule records one rule evaluation outcome: matched, unmatched or error
func (m *Metrics) ObserveRule(matched bool, err error) {
	outcome := "unmatched"
	switch {
	case err != nil:
		outcome = "error"
	case matched:
		outcome = "matched"
	}
	m.ruleEvaluations.WithLabelValues(outcome).Inc()
}

// ObserveDuration records the time spent serving an evaluation endpoint
func (m *Metrics) ObserveDuration(endpoint string, d time.Duration) {
	m.evaluationDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

// ObserveDecision records an authorization decision
func (m *Metrics) ObserveDecision(allowed bool) {
	label := "false"
	if allowed {
		label = "true"
	}
	m.authorizeDecisions.WithLabelValues(label).Inc()
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
