package host

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/GoCodeAlone/atelier/catalog"
)

// Metrics exposes host observability through a dedicated Prometheus registry
// so the collectors never collide with another registry in the same process.
type Metrics struct {
	registry *prometheus.Registry

	descriptors         *prometheus.GaugeVec
	transitions         *prometheus.CounterVec
	registrations       prometheus.Counter
	sandboxLoadFailures prometheus.Counter
}

// NewMetrics creates and registers the host's collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		descriptors: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "atelier_descriptors",
			Help: "Registered descriptors by family.",
		}, []string{"family"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "atelier_activation_transitions_total",
			Help: "Activation state transitions by resulting state.",
		}, []string{"state"}),
		registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "atelier_registrations_total",
			Help: "Descriptor registrations accepted by the catalog.",
		}),
		sandboxLoadFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "atelier_sandbox_load_failures_total",
			Help: "User plugin code loads that ended in the error state.",
		}),
	}
	m.registry.MustRegister(m.descriptors, m.transitions, m.registrations, m.sandboxLoadFailures)
	return m
}

// Attach subscribes the collectors to catalog events. The returned function
// unsubscribes.
func (m *Metrics) Attach(cat *catalog.Catalog) func() {
	return cat.Subscribe(func(ev catalog.Event) {
		switch ev.Kind {
		case catalog.EventRegistered:
			m.descriptors.WithLabelValues(string(ev.Family)).Inc()
			m.registrations.Inc()
		case catalog.EventUnregistered:
			m.descriptors.WithLabelValues(string(ev.Family)).Dec()
		case catalog.EventActivationChange:
			m.transitions.WithLabelValues(string(ev.State)).Inc()
		}
	})
}

// SandboxLoadFailure records one failed user-plugin code load.
func (m *Metrics) SandboxLoadFailure() {
	m.sandboxLoadFailures.Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
