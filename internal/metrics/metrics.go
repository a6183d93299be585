// Package metrics exposes Prometheus counters for the progress service.
//
// Metrics are registered on a private registry rather than the global default
// so tests can build as many instances as they like. Every method is safe to
// call on a nil *Metrics, which lets components treat metrics as optional.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cmdshift"

// Metrics holds every collector the service reports.
type Metrics struct {
	registry *prometheus.Registry

	operations     *prometheus.CounterVec
	xpAwarded      prometheus.Counter
	unlocks        *prometheus.CounterVec
	evalFailures   prometheus.Counter
	evalInline     prometheus.Counter
	evalQueueDepth prometheus.Gauge
	eventsPruned   prometheus.Counter
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
}

// New creates and registers all collectors, plus the Go runtime and process
// collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "progress_operations_total",
			Help:      "Progress engine operations by name and outcome.",
		}, []string{"operation", "result"}),
		xpAwarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "xp_awarded_total",
			Help:      "Positive XP granted across all profiles.",
		}),
		unlocks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unlocks_total",
			Help:      "Achievements, milestones and rewards unlocked.",
		}, []string{"kind"}),
		evalFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluator_failures_total",
			Help:      "Achievement evaluation jobs that returned an error.",
		}),
		evalInline: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluator_inline_runs_total",
			Help:      "Evaluation jobs run on the caller's goroutine because the queue was full.",
		}),
		evalQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "evaluator_queue_depth",
			Help:      "Evaluation jobs waiting for a worker.",
		}),
		eventsPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_pruned_total",
			Help:      "Platform events removed by the retention job.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route pattern and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.operations,
		m.xpAwarded,
		m.unlocks,
		m.evalFailures,
		m.evalInline,
		m.evalQueueDepth,
		m.eventsPruned,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveOperation counts one engine operation. err == nil counts as "ok".
func (m *Metrics) ObserveOperation(op string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.operations.WithLabelValues(op, result).Inc()
}

// AddXP records granted XP. Counters cannot go down, so non-positive amounts
// are ignored.
func (m *Metrics) AddXP(amount int) {
	if m == nil || amount <= 0 {
		return
	}
	m.xpAwarded.Add(float64(amount))
}

// Unlocked counts one unlock of kind ("achievement", "milestone", "reward").
func (m *Metrics) Unlocked(kind string) {
	if m == nil {
		return
	}
	m.unlocks.WithLabelValues(kind).Inc()
}

// EvaluationFailed counts a failed evaluator job.
func (m *Metrics) EvaluationFailed() {
	if m == nil {
		return
	}
	m.evalFailures.Inc()
}

// EvaluationInline counts a job that bypassed the queue.
func (m *Metrics) EvaluationInline() {
	if m == nil {
		return
	}
	m.evalInline.Inc()
}

// SetQueueDepth reports the current evaluator backlog.
func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.evalQueueDepth.Set(float64(n))
}

// EventsPruned counts events removed by retention.
func (m *Metrics) EventsPruned(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.eventsPruned.Add(float64(n))
}

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
