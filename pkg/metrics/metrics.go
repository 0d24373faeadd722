// Package metrics exposes acceptor and handshake activity as Prometheus
// collectors. A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Handshake outcome label values.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeTimedOut  = "timed_out"
)

// Metrics holds the collectors of one acceptor.
type Metrics struct {
	HandshakesTotal    *prometheus.CounterVec
	HandshakesInFlight prometheus.Gauge
	HandshakeDuration  prometheus.Histogram

	ConnectionsAccepted *prometheus.CounterVec
	ConnectionsActive   prometheus.Gauge
	ConnectionErrors    *prometheus.CounterVec
	AcceptErrors        prometheus.Counter
}

// New creates the collectors and registers them with reg. A nil reg
// leaves them unregistered, which is handy in tests.
func New(namespace string, reg prometheus.Registerer) (*Metrics, error) {
	if namespace == "" {
		namespace = "flexserve"
	}

	m := &Metrics{
		HandshakesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handshakes_total",
			Help:      "TLS handshakes by outcome",
		}, []string{"outcome"}),
		HandshakesInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "handshakes_in_flight",
			Help:      "TLS handshakes currently running",
		}),
		HandshakeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "handshake_duration_seconds",
			Help:      "Time from submission to handshake outcome",
			Buckets:   []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		ConnectionsAccepted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_accepted_total",
			Help:      "Connections handed to the protocol handler, by stream kind",
		}, []string{"kind"}),
		ConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Connections currently driven by the protocol handler",
		}),
		ConnectionErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connection_errors_total",
			Help:      "Per-connection failures reported to the error sink, by kind",
		}, []string{"kind"}),
		AcceptErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "accept_errors_total",
			Help:      "Failed raw accepts on the listening socket",
		}),
	}

	if reg != nil {
		for _, c := range m.collectors() {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}

	return m, nil
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.HandshakesTotal,
		m.HandshakesInFlight,
		m.HandshakeDuration,
		m.ConnectionsAccepted,
		m.ConnectionsActive,
		m.ConnectionErrors,
		m.AcceptErrors,
	}
}

// HandshakeStarted marks a handshake as in flight.
func (m *Metrics) HandshakeStarted() {
	if m == nil {
		return
	}
	m.HandshakesInFlight.Inc()
}

// HandshakeDone records the outcome of a handshake that was started.
func (m *Metrics) HandshakeDone(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.HandshakesInFlight.Dec()
	m.HandshakesTotal.WithLabelValues(outcome).Inc()
	m.HandshakeDuration.Observe(d.Seconds())
}

// ConnectionOpened records a connection handed to the handler.
func (m *Metrics) ConnectionOpened(kind string) {
	if m == nil {
		return
	}
	m.ConnectionsAccepted.WithLabelValues(kind).Inc()
	m.ConnectionsActive.Inc()
}

// ConnectionClosed records the end of a driven connection.
func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.ConnectionsActive.Dec()
}

// ConnectionError counts a failure reported to the error sink.
func (m *Metrics) ConnectionError(kind string) {
	if m == nil {
		return
	}
	m.ConnectionErrors.WithLabelValues(kind).Inc()
}

// AcceptError counts a failed raw accept.
func (m *Metrics) AcceptError() {
	if m == nil {
		return
	}
	m.AcceptErrors.Inc()
}
