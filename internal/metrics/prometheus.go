// Package metrics exports ledger engine metrics to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"balanceledger/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusCollector implements ledger.MetricsCollector on its own registry.
type PrometheusCollector struct {
	registry *prometheus.Registry

	operationDuration *prometheus.HistogramVec
	operationResults  *prometheus.CounterVec
	retries           *prometheus.CounterVec
	volume            *prometheus.CounterVec
	httpRequests      *prometheus.CounterVec
}

func NewPrometheusCollector() *PrometheusCollector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &PrometheusCollector{
		registry: reg,
		operationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ledger_operation_duration_seconds",
			Help:    "Latency distribution of ledger operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"operation"}),
		operationResults: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_operations_total",
			Help: "Ledger operations processed, labeled by result code",
		}, []string{"operation", "result"}),
		retries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_contention_retries_total",
			Help: "Transactions re-run after lock contention",
		}, []string{"operation"}),
		volume: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_moved_volume_total",
			Help: "Quantity moved by committed operations",
		}, []string{"kind", "unit"}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_http_requests_total",
			Help: "Total HTTP requests processed, labeled by status code",
		}, []string{"method", "route", "status"}),
	}
}

func (c *PrometheusCollector) RecordOperationDuration(operation string, duration time.Duration) {
	c.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (c *PrometheusCollector) RecordOperationResult(operation, result string) {
	c.operationResults.WithLabelValues(operation, result).Inc()
}

func (c *PrometheusCollector) RecordRetry(operation string) {
	c.retries.WithLabelValues(operation).Inc()
}

func (c *PrometheusCollector) RecordVolume(kind models.EntryKind, unit string, amount float64) {
	c.volume.WithLabelValues(string(kind), unit).Add(amount)
}

// RecordHTTPRequest counts one served request.
func (c *PrometheusCollector) RecordHTTPRequest(method, route, status string) {
	c.httpRequests.WithLabelValues(method, route, status).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (c *PrometheusCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, e.g. for tests.
func (c *PrometheusCollector) Registry() *prometheus.Registry {
	return c.registry
}
