package task

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsConfig configures executor Prometheus metrics.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "ripple").
	Namespace string

	// Subsystem is the metrics subsystem (default: "task").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer.
	Registry prometheus.Registerer
}

// MetricsOption configures executor metrics.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
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
		Subsystem: "task",
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics holds the Prometheus metrics for an Executor.
//
// Metrics collected:
//   - ripple_task_spawned_total: tasks handed to the pool
//   - ripple_task_completed_total: tasks that ran to natural completion
//   - ripple_task_aborted_total: tasks cancelled before completing
//   - ripple_task_body_panics_total: task bodies that panicked
//   - ripple_task_running: live handles in the registry
type Metrics struct {
	spawned    prometheus.Counter
	completed  prometheus.Counter
	aborted    prometheus.Counter
	bodyPanics prometheus.Counter
	running    prometheus.Gauge
}

// NewMetrics creates the executor metric set.
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}

	factory := promauto.With(config.Registry)

	return &Metrics{
		spawned: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "spawned_total",
			Help:        "Total tasks handed to the executor",
			ConstLabels: config.ConstLabels,
		}),
		completed: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "completed_total",
			Help:        "Total tasks that ran to natural completion",
			ConstLabels: config.ConstLabels,
		}),
		aborted: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "aborted_total",
			Help:        "Total tasks cancelled before completing",
			ConstLabels: config.ConstLabels,
		}),
		bodyPanics: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "body_panics_total",
			Help:        "Total task bodies that panicked",
			ConstLabels: config.ConstLabels,
		}),
		running: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "running",
			Help:        "Live task handles in the registry",
			ConstLabels: config.ConstLabels,
		}),
	}
}

func (m *Metrics) recordSpawn() {
	if m == nil {
		return
	}
	m.spawned.Inc()
	m.running.Inc()
}

func (m *Metrics) recordFinish(h *Handle) {
	if m == nil {
		return
	}
	m.running.Dec()
	if h.IsAborted() {
		m.aborted.Inc()
	} else {
		m.completed.Inc()
	}
}

func (m *Metrics) recordBodyPanic() {
	if m == nil {
		return
	}
	m.bodyPanics.Inc()
}
