package wallet

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// NoopMetricsCollector is a no-op implementation of MetricsCollector
type NoopMetricsCollector struct{}

func (n *NoopMetricsCollector) RecordOperationDuration(string, time.Duration) {}
func (n *NoopMetricsCollector) RecordOperationResult(string, string)          {}
func (n *NoopMetricsCollector) RecordCacheHit(string)                         {}
func (n *NoopMetricsCollector) RecordCacheMiss(string)                        {}
func (n *NoopMetricsCollector) RecordError(string, string)                    {}
func (n *NoopMetricsCollector) RecordTransaction(string, string, int64)       {}

// PrometheusMetrics exports wallet metrics to prometheus.
type PrometheusMetrics struct {
	operationDuration *prometheus.HistogramVec
	operationResults  *prometheus.CounterVec
	cacheLookups      *prometheus.CounterVec
	errors            *prometheus.CounterVec
	transactions      *prometheus.CounterVec
	volume            *prometheus.CounterVec
}

// NewPrometheusMetrics creates the collectors and registers them on reg.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	m := &PrometheusMetrics{
		operationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "wallet",
			Name:      "operation_duration_seconds",
			Help:      "Duration of wallet operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		operationResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wallet",
			Name:      "operations_total",
			Help:      "Wallet operations by result.",
		}, []string{"operation", "result"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wallet",
			Name:      "balance_cache_lookups_total",
			Help:      "Balance cache lookups by outcome.",
		}, []string{"key", "outcome"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wallet",
			Name:      "errors_total",
			Help:      "Wallet operation errors by code.",
		}, []string{"operation", "code"}),
		transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wallet",
			Name:      "transactions_total",
			Help:      "Recorded transactions by kind and status.",
		}, []string{"kind", "status"}),
		volume: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wallet",
			Name:      "transaction_volume_minor_units_total",
			Help:      "Sum of transaction amounts in minor units.",
		}, []string{"kind", "status"}),
	}
	reg.MustRegister(
		m.operationDuration,
		m.operationResults,
		m.cacheLookups,
		m.errors,
		m.transactions,
		m.volume,
	)
	return m
}

func (m *PrometheusMetrics) RecordOperationDuration(operation string, duration time.Duration) {
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *PrometheusMetrics) RecordOperationResult(operation, result string) {
	m.operationResults.WithLabelValues(operation, result).Inc()
}

func (m *PrometheusMetrics) RecordCacheHit(key string) {
	m.cacheLookups.WithLabelValues(key, "hit").Inc()
}

func (m *PrometheusMetrics) RecordCacheMiss(key string) {
	m.cacheLookups.WithLabelValues(key, "miss").Inc()
}

func (m *PrometheusMetrics) RecordError(operation, errType string) {
	m.errors.WithLabelValues(operation, errType).Inc()
}

func (m *PrometheusMetrics) RecordTransaction(kind, status string, amount int64) {
	m.transactions.WithLabelValues(kind, status).Inc()
	m.volume.WithLabelValues(kind, status).Add(float64(amount))
}
