// Package metrics exposes Prometheus instrumentation for the bridge.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the bridge's collectors on a private registry.
type Metrics struct {
	registry      *prometheus.Registry
	handler       http.Handler
	ticks         *prometheus.CounterVec
	announcements *prometheus.CounterVec
	relayed       *prometheus.CounterVec
	webhooks      *prometheus.CounterVec
	bridged       *prometheus.CounterVec
	deleted       prometheus.Counter
}

// New registers the collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mcbridge_countdown_ticks_total",
			Help: "Countdown scheduler evaluations by resulting state",
		}, []string{"state"}),
		announcements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mcbridge_announcements_total",
			Help: "Countdown messages posted",
		}, []string{"kind"}),
		relayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mcbridge_github_relayed_total",
			Help: "GitHub activity messages posted, by source",
		}, []string{"source"}),
		webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mcbridge_webhook_requests_total",
			Help: "Inbound webhook requests by endpoint and result",
		}, []string{"endpoint", "result"}),
		bridged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mcbridge_chat_bridged_total",
			Help: "Chat messages mirrored between Discord and Minecraft",
		}, []string{"direction"}),
		deleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mcbridge_cleanup_deleted_total",
			Help: "Messages removed by the cleanup sweeper",
		}),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ticks, m.announcements, m.relayed, m.webhooks, m.bridged, m.deleted,
	)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return m.handler
}

// Tick counts one scheduler evaluation.
func (m *Metrics) Tick(state string) {
	if m == nil {
		return
	}
	m.ticks.WithLabelValues(state).Inc()
}

// Announcement counts a posted countdown message.
func (m *Metrics) Announcement(kind string) {
	if m == nil {
		return
	}
	m.announcements.WithLabelValues(kind).Inc()
}

// Relayed counts GitHub messages posted.
func (m *Metrics) Relayed(source string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.relayed.WithLabelValues(source).Add(float64(n))
}

// Webhook counts an inbound webhook request.
func (m *Metrics) Webhook(endpoint, result string) {
	if m == nil {
		return
	}
	m.webhooks.WithLabelValues(endpoint, result).Inc()
}

// Bridged counts a mirrored chat line.
func (m *Metrics) Bridged(direction string) {
	if m == nil {
		return
	}
	m.bridged.WithLabelValues(direction).Inc()
}

// Deleted counts messages removed by cleanup.
func (m *Metrics) Deleted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.deleted.Add(float64(n))
}
