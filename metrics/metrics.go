// Package metrics exposes Prometheus collectors for agent dispatches, loop
// steps, action invocations and pipeline routing decisions.
//
// All recording methods are safe to call on a nil *Metrics, which disables
// collection.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config controls metrics collection.
type Config struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// Metrics bundles the collectors registered on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	dispatches   *prometheus.CounterVec
	steps        *prometheus.CounterVec
	stepDuration prometheus.Histogram
	failures     *prometheus.CounterVec
	actions      *prometheus.CounterVec
	routes       *prometheus.CounterVec
	activeAgents prometheus.Gauge
}

// New creates collectors under namespace (default "assistant").
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "assistant"
	}
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_dispatches_total",
			Help:      "Total agent dispatch attempts by result.",
		}, []string{"result"}),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_steps_total",
			Help:      "Total agent loop steps by outcome.",
		}, []string{"outcome"}),
		stepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "agent_step_duration_seconds",
			Help:      "Agent loop step duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_failures_total",
			Help:      "Total agent step failures by kind.",
		}, []string{"kind"}),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_actions_total",
			Help:      "Total module method invocations.",
		}, []string{"module", "method", "result"}),
		routes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_routes_total",
			Help:      "Total inbound messages by routing decision.",
		}, []string{"route"}),
		activeAgents: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "agents_registered",
			Help:      "Number of agents currently registered.",
		}),
	}
	reg.MustRegister(
		m.dispatches, m.steps, m.stepDuration, m.failures, m.actions, m.routes, m.activeAgents,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// NewFromConfig returns nil when metrics are disabled.
func NewFromConfig(cfg Config) *Metrics {
	if !cfg.Enabled {
		return nil
	}
	return New(cfg.Namespace)
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format. A nil receiver
// serves 404.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Dispatch records a dispatch attempt.
func (m *Metrics) Dispatch(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.dispatches.WithLabelValues(result).Inc()
}

// Step records a completed loop step.
func (m *Metrics) Step(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.steps.WithLabelValues(outcome).Inc()
	m.stepDuration.Observe(d.Seconds())
}

// Failure records a step failure of the given kind
// (configuration, decision, action).
func (m *Metrics) Failure(kind string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(kind).Inc()
}

// Action records a module method invocation.
func (m *Metrics) Action(module, method string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.actions.WithLabelValues(module, method, result).Inc()
}

// Route records how the assistant routed an inbound message.
func (m *Metrics) Route(route string) {
	if m == nil {
		return
	}
	m.routes.WithLabelValues(route).Inc()
}

// SetAgents sets the registered agent gauge.
func (m *Metrics) SetAgents(n int) {
	if m == nil {
		return
	}
	m.activeAgents.Set(float64(n))
}
