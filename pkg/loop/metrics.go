package loop

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsConfig configures loop Prometheus metrics.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "ripple").
	Namespace string

	// Subsystem is the metrics subsystem (default: "loop").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer.
	Registry prometheus.Registerer
}

// MetricsOption configures loop metrics.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "ripple",
		Subsystem: "loop",
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics holds the Prometheus metrics for a Loop.
//
// Metrics collected:
//   - ripple_loop_callbacks_dispatched_total: callbacks enqueued
//   - ripple_loop_callbacks_executed_total: callbacks run to completion
//   - ripple_loop_callback_panics_total: callbacks that panicked
//   - ripple_loop_callbacks_dropped_total: callbacks discarded at Close
//   - ripple_loop_queue_depth: queued callbacks at last enqueue
//   - ripple_loop_drain_duration_seconds: time per drain pass
type Metrics struct {
	dispatched prometheus.Counter
	executed   prometheus.Counter
	panics     prometheus.Counter
	dropped    prometheus.Counter
	queueDepth prometheus.Gauge
	drainTime  prometheus.Histogram
}

// NewMetrics creates the loop metric set.
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}

	factory := promauto.With(config.Registry)

	return &Metrics{
		dispatched: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "callbacks_dispatched_total",
			Help:        "Total callbacks enqueued onto the loop",
			ConstLabels: config.ConstLabels,
		}),
		executed: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "callbacks_executed_total",
			Help:        "Total callbacks executed by the loop",
			ConstLabels: config.ConstLabels,
		}),
		panics: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "callback_panics_total",
			Help:        "Total callbacks that panicked during execution",
			ConstLabels: config.ConstLabels,
		}),
		dropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "callbacks_dropped_total",
			Help:        "Total callbacks discarded when the loop closed",
			ConstLabels: config.ConstLabels,
		}),
		queueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "queue_depth",
			Help:        "Queued callbacks observed at the last enqueue",
			ConstLabels: config.ConstLabels,
		}),
		drainTime: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "drain_duration_seconds",
			Help:        "Duration of each drain pass",
			ConstLabels: config.ConstLabels,
			Buckets:     prometheus.DefBuckets,
		}),
	}
}

// All record methods are nil-safe so an uninstrumented Loop pays only a nil
// check.

func (m *Metrics) recordDispatch(depth int) {
	if m == nil {
		return
	}
	m.dispatched.Inc()
	m.queueDepth.Set(float64(depth))
}

func (m *Metrics) recordExecuted() {
	if m == nil {
		return
	}
	m.executed.Inc()
}

func (m *Metrics) recordPanic() {
	if m == nil {
		return
	}
	m.panics.Inc()
}

func (m *Metrics) recordDropped(n int) {
	if m == nil {
		return
	}
	m.dropped.Add(float64(n))
}

// startDrain begins timing a drain pass; the returned func records the
// duration and resets the observed queue depth.
func (m *Metrics) startDrain() func(executed int) {
	if m == nil {
		return func(int) {}
	}
	start := time.Now()
	return func(int) {
		m.drainTime.Observe(time.Since(start).Seconds())
		m.queueDepth.Set(0)
	}
}
