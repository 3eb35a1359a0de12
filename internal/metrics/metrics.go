// Package metrics exposes Prometheus counters for the bridge and the panel.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the Prometheus metrics of one process. A nil *Collector is
// valid and records nothing, so components take it as an optional dependency.
type Collector struct {
	registry *prometheus.Registry

	MessagesSent     *prometheus.CounterVec
	MessagesReceived *prometheus.CounterVec
	MessagesDropped  *prometheus.CounterVec
	PendingRequests  *prometheus.GaugeVec
	PropPushes       *prometheus.CounterVec
	ToolRefreshes    *prometheus.CounterVec
}

// NewCollector creates a collector with its own registry.
func NewCollector(namespace string) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		MessagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bridge_messages_sent_total",
			Help:      "Envelopes sent by a bridge endpoint",
		}, []string{"endpoint", "kind"}),
		MessagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bridge_messages_received_total",
			Help:      "Envelopes received by a bridge endpoint",
		}, []string{"endpoint", "kind"}),
		MessagesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bridge_messages_dropped_total",
			Help:      "Envelopes ignored by a bridge endpoint",
		}, []string{"endpoint", "reason"}),
		PendingRequests: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bridge_pending_requests",
			Help:      "Requests waiting for a response",
		}, []string{"endpoint"}),
		PropPushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "viewprop_pushes_total",
			Help:      "View prop pushes by outcome",
		}, []string{"section", "result"}),
		ToolRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_refreshes_total",
			Help:      "Refresh events emitted by host tools",
		}, []string{"tool"}),
	}
	c.registry.MustRegister(
		c.MessagesSent,
		c.MessagesReceived,
		c.MessagesDropped,
		c.PendingRequests,
		c.PropPushes,
		c.ToolRefreshes,
	)
	return c
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) Sent(endpoint, kind string) {
	if c == nil {
		return
	}
	c.MessagesSent.WithLabelValues(endpoint, kind).Inc()
}

func (c *Collector) Received(endpoint, kind string) {
	if c == nil {
		return
	}
	c.MessagesReceived.WithLabelValues(endpoint, kind).Inc()
}

func (c *Collector) Dropped(endpoint, reason string) {
	if c == nil {
		return
	}
	c.MessagesDropped.WithLabelValues(endpoint, reason).Inc()
}

func (c *Collector) Pending(endpoint string, delta float64) {
	if c == nil {
		return
	}
	c.PendingRequests.WithLabelValues(endpoint).Add(delta)
}

// Push records a view prop push; applied is false when no panel was registered.
func (c *Collector) Push(section string, applied bool) {
	if c == nil {
		return
	}
	result := "applied"
	if !applied {
		result = "dropped"
	}
	c.PropPushes.WithLabelValues(section, result).Inc()
}

func (c *Collector) Refresh(tool string) {
	if c == nil {
		return
	}
	c.ToolRefreshes.WithLabelValues(tool).Inc()
}
