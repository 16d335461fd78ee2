package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"payhook/internal/types"
)

// PrometheusMetrics keeps its collectors on a private registry so tests and
// multiple servers in one process do not collide on the default one.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	webhooksTotal      *prometheus.CounterVec
	outcomesTotal      *prometheus.CounterVec
	transactionsTotal  prometheus.Counter
	queueLag           prometheus.Histogram
	processingDuration prometheus.Histogram
	httpRequests       *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
}

var _ PipelineMetrics = (*PrometheusMetrics)(nil)

// NewPrometheusMetrics registers the pipeline collectors plus the Go and
// process collectors. namespace is lower-cased into the metric prefix.
func NewPrometheusMetrics(namespace string) *PrometheusMetrics {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	ns := prometheusNamespace(namespace)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		registry: reg,
		webhooksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "webhooks_received_total",
				Help:      "Inbound webhook calls by response status",
			},
			[]string{"status"},
		),
		outcomesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "message_outcomes_total",
				Help:      "Consumed queue messages by outcome",
			},
			[]string{"outcome"},
		),
		transactionsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "transactions_emitted_total",
				Help:      "Canonical transactions handed to the sink",
			},
		),
		queueLag: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: ns,
				Name:      "queue_lag_seconds",
				Help:      "Time between enqueue and processing start",
				Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 300, 900},
			},
		),
		processingDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: ns,
				Name:      "processing_duration_seconds",
				Help:      "Consumer processing time per message",
				Buckets:   prometheus.DefBuckets,
			},
		),
		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "http_requests_total",
				Help:      "HTTP requests by method, route and status",
			},
			[]string{"method", "endpoint", "status"},
		),
		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: ns,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency by route",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
	}
}

func (m *PrometheusMetrics) RecordIngress(_ context.Context, status int) {
	m.webhooksTotal.WithLabelValues(statusLabel(status)).Inc()
}

func (m *PrometheusMetrics) RecordOutcome(_ context.Context, kind types.FailureKind) {
	m.outcomesTotal.WithLabelValues(OutcomeLabel(kind)).Inc()
}

func (m *PrometheusMetrics) RecordTransactions(_ context.Context, n int) {
	m.transactionsTotal.Add(float64(n))
}

func (m *PrometheusMetrics) RecordQueueLag(_ context.Context, lag time.Duration) {
	m.queueLag.Observe(lag.Seconds())
}

func (m *PrometheusMetrics) RecordProcessingDuration(_ context.Context, d time.Duration) {
	m.processingDuration.Observe(d.Seconds())
}

// RecordRequest implements core.MetricsCollector.
func (m *PrometheusMetrics) RecordRequest(method, endpoint string, status int, d time.Duration) {
	m.httpRequests.WithLabelValues(method, endpoint, statusLabel(status)).Inc()
	m.httpDuration.WithLabelValues(method, endpoint).Observe(d.Seconds())
}

// Registry exposes the private registry.
func (m *PrometheusMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func prometheusNamespace(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z':
			out = append(out, c+('a'-'A'))
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '_':
			out = append(out, c)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
