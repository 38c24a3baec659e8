// ABOUTME: Prometheus collectors for the relay: persistence, broadcast fan-out and HTTP traffic
// ABOUTME: Collectors live on a private registry so several relays can coexist in one process

package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Ingress sources for MessagesPersisted.
const (
	SourceHTTP      = "http"
	SourceWebSocket = "websocket"
)

// Metrics holds the relay's collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	MessagesPersisted   *prometheus.CounterVec
	PersistErrors       prometheus.Counter
	BroadcastDeliveries prometheus.Counter
	BroadcastPruned     prometheus.Counter
	ConnectionsActive   prometheus.Gauge
	HTTPRequests        *prometheus.CounterVec
}

// New creates the collectors on a fresh registry, together with the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		MessagesPersisted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentchat_messages_persisted_total",
				Help: "Total messages written to the chat log",
			},
			[]string{"source"},
		),
		PersistErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "agentchat_persist_errors_total",
				Help: "Total failed chat log writes",
			},
		),
		BroadcastDeliveries: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "agentchat_broadcast_deliveries_total",
				Help: "Total messages delivered to connected participants",
			},
		),
		BroadcastPruned: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "agentchat_broadcast_pruned_total",
				Help: "Total connections removed after a failed delivery",
			},
		),
		ConnectionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "agentchat_connections_active",
				Help: "Currently open WebSocket connections",
			},
		),
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentchat_http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"path", "status"},
		),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Persisted records a successful write from source.
func (m *Metrics) Persisted(source string) {
	if m == nil {
		return
	}
	m.MessagesPersisted.WithLabelValues(source).Inc()
}

// PersistFailed records a failed write.
func (m *Metrics) PersistFailed() {
	if m == nil {
		return
	}
	m.PersistErrors.Inc()
}

// Broadcast records the outcome of one fan-out.
func (m *Metrics) Broadcast(delivered, pruned int) {
	if m == nil {
		return
	}
	m.BroadcastDeliveries.Add(float64(delivered))
	m.BroadcastPruned.Add(float64(pruned))
}

// ConnectionOpened increments the open connection gauge.
func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.ConnectionsActive.Inc()
}

// ConnectionClosed decrements the open connection gauge.
func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.ConnectionsActive.Dec()
}

// Request records one HTTP request.
func (m *Metrics) Request(path string, status int) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(path, strconv.Itoa(status)).Inc()
}
