package golock

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is the observability hook the coordinator calls on every
// acquire, polling retry and release (Refresh records nothing), mirroring the record-acquisition /
// record-failure / record-duration call sites this domain's backends
// (e.g. a Redis-based RWLocker) thread through their Lock/Unlock paths,
// but constructor-injected instead of reaching into a package-level
// global, so the library itself stays metrics-optional.
type Metrics interface {
	ObserveAcquire(backend, mode, result string, d time.Duration)
	ObserveRelease(backend, result string)
	ObserveRetry(backend, mode string)
}

type nopMetrics struct{}

func (nopMetrics) ObserveAcquire(string, string, string, time.Duration) {}
func (nopMetrics) ObserveRelease(string, string)                        {}
func (nopMetrics) ObserveRetry(string, string)                          {}

// NewNopMetrics returns a Metrics that records nothing, the default when
// no Metrics is supplied to NewLock.
func NewNopMetrics() Metrics {
	return nopMetrics{}
}

// PrometheusMetrics is the default non-trivial Metrics implementation,
// registering four instruments on the supplied registry.
type PrometheusMetrics struct {
	acquireDuration *prometheus.HistogramVec
	acquireTotal    *prometheus.CounterVec
	releaseTotal    *prometheus.CounterVec
	retryTotal      *prometheus.CounterVec
}

// NewPrometheusMetrics builds and registers golock's instruments on reg.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	m := &PrometheusMetrics{
		acquireDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "golock",
			Name:      "acquire_duration_seconds",
			Help:      "Time spent in a single Acquire/AcquireRead call.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"backend", "mode"}),
		acquireTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "golock",
			Name:      "acquire_total",
			Help:      "Acquire/AcquireRead attempts by result.",
		}, []string{"backend", "mode", "result"}),
		releaseTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "golock",
			Name:      "release_total",
			Help:      "Release attempts by result.",
		}, []string{"backend", "result"}),
		retryTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "golock",
			Name:      "retry_total",
			Help:      "Polling-fallback retries during a blocking acquire.",
		}, []string{"backend", "mode"}),
	}
	reg.MustRegister(m.acquireDuration, m.acquireTotal, m.releaseTotal, m.retryTotal)
	return m
}

func (m *PrometheusMetrics) ObserveAcquire(backend, mode, result string, d time.Duration) {
	m.acquireDuration.WithLabelValues(backend, mode).Observe(d.Seconds())
	m.acquireTotal.WithLabelValues(backend, mode, result).Inc()
}

func (m *PrometheusMetrics) ObserveRelease(backend, result string) {
	m.releaseTotal.WithLabelValues(backend, result).Inc()
}

func (m *PrometheusMetrics) ObserveRetry(backend, mode string) {
	m.retryTotal.WithLabelValues(backend, mode).Inc()
}
