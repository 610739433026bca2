package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns its registry so several servers (and tests) can coexist.
type Metrics struct {
	registry *prometheus.Registry

	requests      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	wsConnections prometheus.Gauge
	messages      *prometheus.CounterVec
	payments      *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "speakly_http_requests_total",
			Help: "HTTP requests by endpoint group, action and status.",
		}, []string{"group", "action", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "speakly_http_request_duration_seconds",
			Help:    "HTTP request latency by endpoint group.",
			Buckets: prometheus.DefBuckets,
		}, []string{"group"}),
		wsConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "speakly_ws_connections",
			Help: "Open websocket event connections.",
		}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "speakly_messages_sent_total",
			Help: "Messages stored, by message type.",
		}, []string{"type"}),
		payments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "speakly_payments_total",
			Help: "Payment gateway outcomes.",
		}, []string{"outcome"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests, m.duration, m.wsConnections, m.messages, m.payments,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveRequest(group, action string, status int, elapsed time.Duration) {
	m.requests.WithLabelValues(group, action, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(group).Observe(elapsed.Seconds())
}

func (m *Metrics) WSConnected()    { m.wsConnections.Inc() }
func (m *Metrics) WSDisconnected() { m.wsConnections.Dec() }

func (m *Metrics) MessageSent(messageType string) {
	m.messages.WithLabelValues(messageType).Inc()
}

func (m *Metrics) Payment(outcome string) {
	m.payments.WithLabelValues(outcome).Inc()
}
