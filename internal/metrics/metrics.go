// Package metrics exposes corvus's dispatch counters, latency histogram,
// and session cache gauge to Prometheus, wrapping a dedicated
// prometheus.Registry per process rather than reaching for the global
// default registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oriys/corvus"
)

var defaultBuckets = []float64{0.1, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000}

// Metrics wraps the prometheus collectors for one corvus host process.
type Metrics struct {
	registry *prometheus.Registry

	dispatchTotal    *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec
	sessionsActive   *prometheus.GaugeVec
	endpointsUp      *prometheus.GaugeVec
}

// New builds a Metrics registry under namespace (e.g. "corvus"), with its
// own prometheus.Registry rather than the global default — so a process
// embedding more than one corvus host can expose each on its own
// /metrics handler without collector name collisions.
func New(namespace string) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: registry,
		dispatchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_total",
			Help:      "Total number of dispatched operations, by contract/operation/outcome.",
		}, []string{"contract", "operation", "outcome"}),
		dispatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_duration_ms",
			Help:      "Dispatch latency in milliseconds, by contract/operation.",
			Buckets:   defaultBuckets,
		}, []string{"contract", "operation"}),
		sessionsActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of sessions currently cached, by contract.",
		}, []string{"contract"}),
		endpointsUp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "endpoint_up",
			Help:      "1 while an endpoint's Run loop is active, 0 once it has returned.",
		}, []string{"endpoint"}),
	}
	registry.MustRegister(m.dispatchTotal, m.dispatchDuration, m.sessionsActive, m.endpointsUp)
	return m
}

// ObserveDispatch records one completed dispatch. failed selects the
// "error" outcome label instead of "ok".
func (m *Metrics) ObserveDispatch(contract, operation string, failed bool, elapsed time.Duration) {
	outcome := "ok"
	if failed {
		outcome = "error"
	}
	m.dispatchTotal.WithLabelValues(contract, operation, outcome).Inc()
	m.dispatchDuration.WithLabelValues(contract, operation).Observe(float64(elapsed.Microseconds()) / 1000)
}

// SetSessionsActive records the current session cache size for contract.
func (m *Metrics) SetSessionsActive(contract string, count int) {
	m.sessionsActive.WithLabelValues(contract).Set(float64(count))
}

// SetEndpointUp records whether endpoint's Run loop is currently active.
func (m *Metrics) SetEndpointUp(endpoint string, up bool) {
	v := 0.0
	if up {
		v = 1.0
	}
	m.endpointsUp.WithLabelValues(endpoint).Set(v)
}

// Handler returns the http.Handler a corvus host mounts at /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Observe implements corvus.DispatchObserver, so a *Metrics can be set
// directly as a Dispatcher's Observer.
func (m *Metrics) Observe(contract, operation string, failed bool, kind corvus.Kind, message string, elapsed time.Duration) {
	m.ObserveDispatch(contract, operation, failed, elapsed)
}
