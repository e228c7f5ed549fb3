// Package metrics exports session manager counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "blecentral"

// Collector implements central.Observer on top of Prometheus metrics.
type Collector struct {
	registry *prometheus.Registry

	decisions    *prometheus.CounterVec
	active       prometheus.Gauge
	terminations *prometheus.CounterVec
	messages     prometheus.Counter
	messageBytes prometheus.Counter
	scans        *prometheus.CounterVec
	scanning     prometheus.Gauge
}

// New registers the collector's metrics on a fresh registry.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admission_decisions_total",
			Help:      "Advertisements evaluated, by admission decision.",
		}, []string{"decision"}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Sessions holding a connection slot.",
		}),
		terminations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_terminations_total",
			Help:      "Sessions torn down, by reason.",
		}, []string{"reason"}),
		messages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Application messages relayed to listeners.",
		}),
		messageBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "message_bytes_received_total",
			Help:      "Payload bytes of relayed application messages.",
		}),
		scans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scan_toggles_total",
			Help:      "Scanner start and stop requests.",
		}, []string{"action"}),
		scanning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scanning",
			Help:      "1 while the scanner is on.",
		}),
	}

	c.registry.MustRegister(
		c.decisions, c.active, c.terminations,
		c.messages, c.messageBytes, c.scans, c.scanning,
	)
	return c
}

// Registry returns the registry holding the collector's metrics.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the metrics in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// AdmissionDecided implements central.Observer.
func (c *Collector) AdmissionDecided(decision string, _ bool) {
	c.decisions.WithLabelValues(decision).Inc()
}

// SessionOpened implements central.Observer.
func (c *Collector) SessionOpened() {
	c.active.Inc()
}

// SessionClosed implements central.Observer.
func (c *Collector) SessionClosed(reason string) {
	c.active.Dec()
	c.terminations.WithLabelValues(reason).Inc()
}

// MessageReceived implements central.Observer.
func (c *Collector) MessageReceived(n int) {
	c.messages.Inc()
	c.messageBytes.Add(float64(n))
}

// ScanToggled implements central.Observer.
func (c *Collector) ScanToggled(scanning bool) {
	if scanning {
		c.scans.WithLabelValues("start").Inc()
		c.scanning.Set(1)
		return
	}
	c.scans.WithLabelValues("stop").Inc()
	c.scanning.Set(0)
}
