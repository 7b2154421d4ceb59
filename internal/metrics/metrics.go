// Package metrics exposes Prometheus metrics for runs, oracle calls and
// tool calls.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "orderdesk"

// Metrics holds the collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry      *prometheus.Registry
	runs          *prometheus.CounterVec
	iterations    prometheus.Histogram
	oracleLatency *prometheus.HistogramVec
	toolCalls     *prometheus.CounterVec
	toolLatency   *prometheus.HistogramVec
}

// New creates metrics registered on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Finished runs by terminal status.",
		}, []string{"status"}),
		iterations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_iterations",
			Help:      "Oracle calls per run.",
			Buckets:   prometheus.LinearBuckets(1, 1, 10),
		}),
		oracleLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "oracle_call_duration_seconds",
			Help:      "Oracle call latency by outcome.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Tool calls by tool and status.",
		}, []string{"tool", "status"}),
		toolLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_call_duration_seconds",
			Help:      "Tool call latency by tool.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.runs, m.iterations, m.oracleLatency, m.toolCalls, m.toolLatency,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRun records a finished run.
func (m *Metrics) ObserveRun(status string, iterations int) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(status).Inc()
	m.iterations.Observe(float64(iterations))
}

// ObserveOracleCall records one oracle call.
func (m *Metrics) ObserveOracleCall(d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.oracleLatency.WithLabelValues(outcome).Observe(d.Seconds())
}

// ObserveToolCall records one tool call.
func (m *Metrics) ObserveToolCall(tool, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(tool, status).Inc()
	m.toolLatency.WithLabelValues(tool).Observe(d.Seconds())
}
