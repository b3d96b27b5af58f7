// Package metrics exposes Prometheus counters for the reminder engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flashblaze/drinky-bot/internal/alarm"
)

const namespace = "drinky"

// Metrics owns a private registry so tests can create independent instances.
type Metrics struct {
	reg *prometheus.Registry

	alarmEvents  *prometheus.CounterVec
	intakeML     prometheus.Counter
	intakeLogs   prometheus.Counter
	wakeDelivery *prometheus.CounterVec
}

// New registers all collectors, including Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		alarmEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alarm_events_total",
			Help:      "Alarm state machine events by kind.",
		}, []string{"kind"}),
		intakeML: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intake_ml_total",
			Help:      "Total logged intake in ml.",
		}),
		intakeLogs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intake_logs_total",
			Help:      "Number of intake rows logged.",
		}),
		wakeDelivery: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wake_deliveries_total",
			Help:      "Wake timer deliveries by outcome.",
		}, []string{"outcome"}),
	}
	m.reg.MustRegister(
		m.alarmEvents, m.intakeML, m.intakeLogs, m.wakeDelivery,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Observe implements alarm.Observer.
func (m *Metrics) Observe(e alarm.Event) {
	m.alarmEvents.WithLabelValues(string(e.Kind)).Inc()
}

// IntakeLogged records one intake row.
func (m *Metrics) IntakeLogged(amountML int) {
	m.intakeLogs.Inc()
	m.intakeML.Add(float64(amountML))
}

// WakeDelivered records the outcome of one wake delivery ("ok", "stale", "error").
func (m *Metrics) WakeDelivered(outcome string) {
	m.wakeDelivery.WithLabelValues(outcome).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
