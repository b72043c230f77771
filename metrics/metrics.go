package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dispatch"

// Metrics groups the gateway and realtime instruments. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	rateLimited  prometheus.Counter
	unauthorized prometheus.Counter
	connections  prometheus.Gauge
	inbound      *prometheus.CounterVec
	delivered    *prometheus.CounterVec
	dropped      *prometheus.CounterVec
}

// New registers every instrument on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by admission control.",
		}),
		unauthorized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "unauthorized_total",
			Help:      "Requests rejected for a missing or invalid credential.",
		}),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "connections",
			Help:      "Currently registered persistent connections.",
		}),
		inbound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "inbound_events_total",
			Help:      "Inbound realtime events by kind.",
		}, []string{"kind"}),
		delivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "deliveries_total",
			Help:      "Events handed to recipient connections by outbound name.",
		}, []string{"event"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "dropped_total",
			Help:      "Frames dropped because a connection buffer was full.",
		}, []string{"direction"}),
	}

	m.registry.MustRegister(
		m.rateLimited,
		m.unauthorized,
		m.connections,
		m.inbound,
		m.delivered,
		m.dropped,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler exposes the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RateLimited() {
	if m != nil {
		m.rateLimited.Inc()
	}
}

func (m *Metrics) Unauthorized() {
	if m != nil {
		m.unauthorized.Inc()
	}
}

func (m *Metrics) ConnectionOpened() {
	if m != nil {
		m.connections.Inc()
	}
}

func (m *Metrics) ConnectionClosed() {
	if m != nil {
		m.connections.Dec()
	}
}

func (m *Metrics) Inbound(kind string) {
	if m != nil {
		m.inbound.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) Delivered(event string, n int) {
	if m != nil && n > 0 {
		m.delivered.WithLabelValues(event).Add(float64(n))
	}
}

func (m *Metrics) Dropped(direction string) {
	if m != nil {
		m.dropped.WithLabelValues(direction).Inc()
	}
}
