package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Preview pipeline metrics
	PreviewAttempts  *prometheus.CounterVec
	PreviewDuration  *prometheus.HistogramVec
	GuardRejections  *prometheus.CounterVec
	CacheOperations  *prometheus.CounterVec
	ScreenshotTiming prometheus.Histogram
	SessionsActive   prometheus.Gauge

	// System metrics
	Uptime    prometheus.GaugeFunc
	startTime time.Time
}

// NewMetrics creates a metrics collector backed by its own registry, so
// several servers (e.g. in tests) can coexist in one process.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"method", "path"},
		),
		ResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),

		PreviewAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "preview_attempts_total",
				Help: "Rendering attempts by strategy and outcome",
			},
			[]string{"strategy", "outcome"},
		),
		PreviewDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "preview_attempt_duration_seconds",
				Help:    "Rendering attempt duration in seconds",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"strategy"},
		),
		GuardRejections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "guard_rejections_total",
				Help: "URLs rejected by the guard, by reason",
			},
			[]string{"reason"},
		),
		CacheOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_operations_total",
				Help: "Cache operations by entry kind and result",
			},
			[]string{"kind", "result"},
		),
		ScreenshotTiming: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "screenshot_duration_seconds",
				Help:    "Headless capture duration in seconds",
				Buckets: []float64{.5, 1, 2.5, 5, 10, 20, 30, 60},
			},
		),
		SessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "preview_sessions_active",
				Help: "Number of live preview sessions",
			},
		),
	}

	m.Uptime = factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "gateway_uptime_seconds",
			Help: "Gateway uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// StartTime returns when the collector was created.
func (m *Metrics) StartTime() time.Time {
	return m.startTime
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, respSize int64) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))
}

// RecordAttempt records one rendering attempt.
func (m *Metrics) RecordAttempt(strategy, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.PreviewAttempts.WithLabelValues(strategy, outcome).Inc()
	m.PreviewDuration.WithLabelValues(strategy).Observe(duration.Seconds())
}

// RecordRejection records a guard rejection.
func (m *Metrics) RecordRejection(reason string) {
	if m == nil {
		return
	}
	m.GuardRejections.WithLabelValues(reason).Inc()
}

// RecordCache records a cache operation result ("hit", "miss", "error", "set").
func (m *Metrics) RecordCache(kind, result string) {
	if m == nil {
		return
	}
	m.CacheOperations.WithLabelValues(kind, result).Inc()
}

// ObserveScreenshot records a capture duration.
func (m *Metrics) ObserveScreenshot(d time.Duration) {
	if m == nil {
		return
	}
	m.ScreenshotTiming.Observe(d.Seconds())
}

// SetSessionsActive sets the number of live preview sessions.
func (m *Metrics) SetSessionsActive(count int) {
	if m == nil {
		return
	}
	m.SessionsActive.Set(float64(count))
}
