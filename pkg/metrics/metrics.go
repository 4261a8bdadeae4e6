// Package metrics defines the Prometheus metrics exposed by kitt-server.
//
// Metric naming follows Prometheus conventions: a kitt_ prefix for every
// custom metric, a _total suffix for counters, and a _seconds suffix for
// duration histograms.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every counter, histogram, and gauge kitt-server reports.
// It carries its own registry rather than using prometheus's global
// DefaultRegisterer, so tests can construct as many independent instances
// as they like without a "duplicate metrics collector registration" panic.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	runsTotal        *prometheus.CounterVec
	runDuration      *prometheus.HistogramVec
	activeRuns       prometheus.Gauge
	queueDepth       *prometheus.GaugeVec
	agentsOnline     prometheus.Gauge
	watchdogTimeouts *prometheus.CounterVec
}

// New constructs a Metrics instance and registers all collectors with its
// own registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kitt_http_requests_total",
			Help: "Total HTTP requests handled by the API server, by method, path, and status.",
		}, []string{"method", "path", "status"}),

		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kitt_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds, by method and path.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),

		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kitt_runs_total",
			Help: "Total benchmark runs by terminal status.",
		}, []string{"status"}),

		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kitt_run_duration_seconds",
			Help:    "Duration of completed benchmark runs in seconds.",
			Buckets: []float64{30, 60, 120, 300, 600, 1200, 1800, 3600, 7200},
		}, []string{"engine"}),

		activeRuns: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kitt_active_runs",
			Help: "Number of runs currently dispatched to an agent.",
		}),

		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "kitt_dispatch_queue_depth",
			Help: "Number of commands queued per agent, waiting to be dequeued.",
		}, []string{"agent"}),

		agentsOnline: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kitt_agents_online",
			Help: "Number of agents considered live by the liveness window.",
		}),

		watchdogTimeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kitt_watchdog_timeouts_total",
			Help: "Total runs force-failed by the watchdog sweep, by reason.",
		}, []string{"reason"}),
	}

	m.registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.runsTotal,
		m.runDuration,
		m.activeRuns,
		m.queueDepth,
		m.agentsOnline,
		m.watchdogTimeouts,
	)
	return m
}

// ObserveRequest satisfies pkg/api.Metrics.
func (m *Metrics) ObserveRequest(method, path string, status int, dur time.Duration) {
	if path == "" {
		path = "unmatched"
	}
	statusClass := statusLabel(status)
	m.requestsTotal.WithLabelValues(method, path, statusClass).Inc()
	m.requestDuration.WithLabelValues(method, path).Observe(dur.Seconds())
}

// RecordRunTerminal records a run reaching a terminal state.
func (m *Metrics) RecordRunTerminal(status, engine string, duration time.Duration) {
	m.runsTotal.WithLabelValues(status).Inc()
	m.runDuration.WithLabelValues(engine).Observe(duration.Seconds())
}

// SetActiveRuns reports the current count of dispatched-but-not-terminal runs.
func (m *Metrics) SetActiveRuns(n int) { m.activeRuns.Set(float64(n)) }

// SetQueueDepth reports the current queue depth for one agent.
func (m *Metrics) SetQueueDepth(agentID string, depth int) {
	m.queueDepth.WithLabelValues(agentID).Set(float64(depth))
}

// SetAgentsOnline reports the current count of live agents.
func (m *Metrics) SetAgentsOnline(n int) { m.agentsOnline.Set(float64(n)) }

// RecordWatchdogTimeout records one watchdog-forced run failure.
func (m *Metrics) RecordWatchdogTimeout(reason string) {
	m.watchdogTimeouts.WithLabelValues(reason).Inc()
}

// Handler exposes the registry over HTTP for Prometheus scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "other"
	}
}
