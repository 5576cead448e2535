package mcp

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "scrapinghub_mcp"

const (
	outcomeSuccess = "success"
	outcomeError   = "error"
	outcomeDenied  = "denied"
)

// Metrics holds the server's Prometheus collectors in a private registry.
type Metrics struct {
	registry    *prometheus.Registry
	toolCalls   *prometheus.CounterVec
	tools       *prometheus.GaugeVec
	allowMutate prometheus.Gauge
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "tool_calls_total",
			Help:      "Tool calls by tool and outcome.",
		}, []string{"tool", "outcome"}),
		tools: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "tools",
			Help:      "Known tools by classification and registration state.",
		}, []string{"classification", "state"}),
		allowMutate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "allow_mutate",
			Help:      "1 when mutating operations are enabled.",
		}),
	}
	m.registry.MustRegister(m.toolCalls, m.tools, m.allowMutate,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) observeCall(tool, outcome string) {
	m.toolCalls.WithLabelValues(tool, outcome).Inc()
}

func (m *Metrics) observeTool(mutating, registered bool) {
	classification := "non_mutating"
	if mutating {
		classification = "mutating"
	}
	state := "skipped"
	if registered {
		state = "registered"
	}
	m.tools.WithLabelValues(classification, state).Inc()
}

func (m *Metrics) setAllowMutate(allowMutate bool) {
	if allowMutate {
		m.allowMutate.Set(1)
		return
	}
	m.allowMutate.Set(0)
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
