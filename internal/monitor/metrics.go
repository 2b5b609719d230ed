package monitor

import (
	"context"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector registers and records all Prometheus metrics
type MetricsCollector struct {
	reservationTotal     *prometheus.CounterVec
	reservationDuration  *prometheus.HistogramVec
	rejectionTotal       *prometheus.CounterVec
	releaseTotal         *prometheus.CounterVec
	storeRetryTotal      prometheus.Counter
	breakerStateGauge    *prometheus.GaugeVec
	lifecycleTransitions *prometheus.CounterVec
	eventPublishTotal    *prometheus.CounterVec

	httpRequestTotal    *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	goroutineCount prometheus.Gauge
	memoryUsage    prometheus.Gauge
}

// NewMetricsCollector creates the collector and registers every metric on
// the default registry
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		reservationTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flashsale_reservation_total",
				Help: "Total reservation attempts by outcome",
			},
			[]string{"outcome"},
		),
		reservationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "flashsale_reservation_duration_seconds",
				Help:    "Duration of reservation attempts",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
		rejectionTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flashsale_rejection_total",
				Help: "Rejected reservation attempts by reason",
			},
			[]string{"reason"},
		),
		releaseTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flashsale_release_total",
				Help: "Release attempts by outcome",
			},
			[]string{"outcome"},
		),
		storeRetryTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "flashsale_store_retry_total",
				Help: "Store operations retried after a transient failure",
			},
		),
		breakerStateGauge: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "flashsale_breaker_state",
				Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
			},
			[]string{"breaker"},
		),
		lifecycleTransitions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flashsale_lifecycle_transition_total",
				Help: "Campaign lifecycle transitions by target status",
			},
			[]string{"status"},
		),
		eventPublishTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flashsale_event_publish_total",
				Help: "Events published to the bus by topic",
			},
			[]string{"topic"},
		),
		httpRequestTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flashsale_http_request_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "flashsale_http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		goroutineCount: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "flashsale_goroutine_count",
				Help: "Number of goroutines",
			},
		),
		memoryUsage: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "flashsale_memory_usage_bytes",
				Help: "Allocated heap bytes",
			},
		),
	}
}

// RecordReservation records a reservation attempt outcome and its duration
func (mc *MetricsCollector) RecordReservation(outcome string, duration time.Duration) {
	mc.reservationTotal.WithLabelValues(outcome).Inc()
	mc.reservationDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordRejection records a rejected reservation attempt
func (mc *MetricsCollector) RecordRejection(reason string) {
	mc.rejectionTotal.WithLabelValues(reason).Inc()
}

// RecordRelease records a release attempt outcome
func (mc *MetricsCollector) RecordRelease(outcome string) {
	mc.releaseTotal.WithLabelValues(outcome).Inc()
}

// RecordStoreRetry records a retried store operation
func (mc *MetricsCollector) RecordStoreRetry() {
	mc.storeRetryTotal.Inc()
}

// SetBreakerState records a circuit breaker state change
func (mc *MetricsCollector) SetBreakerState(name string, state int) {
	mc.breakerStateGauge.WithLabelValues(name).Set(float64(state))
}

// RecordLifecycleTransition records a campaign status transition
func (mc *MetricsCollector) RecordLifecycleTransition(status string) {
	mc.lifecycleTransitions.WithLabelValues(status).Inc()
}

// RecordEventPublished records an event published to the bus
func (mc *MetricsCollector) RecordEventPublished(topic string) {
	mc.eventPublishTotal.WithLabelValues(topic).Inc()
}

// RecordHTTPRequest records an HTTP request
func (mc *MetricsCollector) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	mc.httpRequestTotal.WithLabelValues(method, path, status).Inc()
	mc.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// UpdateSystemMetrics samples runtime metrics
func (mc *MetricsCollector) UpdateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	mc.memoryUsage.Set(float64(m.Alloc))
	mc.goroutineCount.Set(float64(runtime.NumGoroutine()))
}

// StartSystemMetricsCollection samples runtime metrics until ctx is done
func (mc *MetricsCollector) StartSystemMetricsCollection(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			mc.UpdateSystemMetrics()
		}
	}
}
