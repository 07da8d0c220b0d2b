package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every metric name.
const Namespace = "fedsim"

// Collectors holds the federation metrics registered on one registry.
type Collectors struct {
	timeGrants     *prometheus.CounterVec
	iterations     *prometheus.CounterVec
	valuesRouted   *prometheus.CounterVec
	messagesRouted *prometheus.CounterVec
	messagesDrop   *prometheus.CounterVec
	queries        *prometheus.CounterVec
	federates      *prometheus.GaugeVec
	grantedTime    *prometheus.GaugeVec
}

// New creates the collectors and registers them on reg. A nil reg uses
// prometheus.DefaultRegisterer. Collectors already registered on reg are
// reused, so several nodes may share one registry.
func New(reg prometheus.Registerer) *Collectors {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &Collectors{}

	c.timeGrants = register(reg, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "time_grants_total",
			Help:      "Total number of time grants issued",
		},
		[]string{"node"},
	))
	c.iterations = register(reg, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "iterations_total",
			Help:      "Total number of grants that returned ITERATING",
		},
		[]string{"node"},
	))
	c.valuesRouted = register(reg, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "values_routed_total",
			Help:      "Total number of publication values routed to inputs",
		},
		[]string{"node"},
	))
	c.messagesRouted = register(reg, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "messages_routed_total",
			Help:      "Total number of endpoint messages routed",
		},
		[]string{"node"},
	))
	c.messagesDrop = register(reg, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "messages_dropped_total",
			Help:      "Total number of messages dropped by filters or missing destinations",
		},
		[]string{"node", "reason"},
	))
	c.queries = register(reg, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "queries_total",
			Help:      "Total number of queries answered",
		},
		[]string{"mode"},
	))
	c.federates = register(reg, prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "federates",
			Help:      "Number of federates registered with a node",
		},
		[]string{"node"},
	))
	c.grantedTime = register(reg, prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "granted_time_seconds",
			Help:      "Most recent simulation time granted to a federate",
		},
		[]string{"federate"},
	))

	return c
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// Grant records a time grant to federate issued by node.
func (c *Collectors) Grant(node, federate string, granted float64, iterating bool) {
	if c == nil {
		return
	}
	c.timeGrants.WithLabelValues(node).Inc()
	if iterating {
		c.iterations.WithLabelValues(node).Inc()
	}
	c.grantedTime.WithLabelValues(federate).Set(granted)
}

// ValueRouted records one value delivered to an input.
func (c *Collectors) ValueRouted(node string) {
	if c == nil {
		return
	}
	c.valuesRouted.WithLabelValues(node).Inc()
}

// MessageRouted records one message delivered to an endpoint.
func (c *Collectors) MessageRouted(node string) {
	if c == nil {
		return
	}
	c.messagesRouted.WithLabelValues(node).Inc()
}

// MessageDropped records a message that was not delivered.
func (c *Collectors) MessageDropped(node, reason string) {
	if c == nil {
		return
	}
	c.messagesDrop.WithLabelValues(node, reason).Inc()
}

// Query records a query answered with the given sequencing mode.
func (c *Collectors) Query(mode string) {
	if c == nil {
		return
	}
	c.queries.WithLabelValues(mode).Inc()
}

// SetFederates records the number of federates known to node.
func (c *Collectors) SetFederates(node string, n int) {
	if c == nil {
		return
	}
	c.federates.WithLabelValues(node).Set(float64(n))
}
