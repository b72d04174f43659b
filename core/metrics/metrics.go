// Package metrics exposes the bot counters in Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/infohelper/euwork-bot/core/telegram/state"
)

const namespace = "euworkbot"

// Update outcomes recorded at the ingress.
const (
	UpdateAdmitted  = "admitted"
	UpdateDuplicate = "duplicate"
	UpdateMalformed = "malformed"
	UpdateIgnored   = "ignored"
	UpdateForbidden = "forbidden"
)

// Metrics owns a private registry so tests can create as many instances as they need.
// All methods are safe on a nil receiver.
type Metrics struct {
	reg *prometheus.Registry

	updates      *prometheus.CounterVec
	tasks        *prometheus.CounterVec
	taskDuration *prometheus.HistogramVec
	steps        *prometheus.CounterVec
	generations  *prometheus.CounterVec
	sends        *prometheus.CounterVec
	handlers     *prometheus.HistogramVec
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updates_total",
			Help:      "Inbound Telegram updates by ingress outcome.",
		}, []string{"outcome"}),
		tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_total",
			Help:      "Background tasks by action and final status.",
		}, []string{"action", "status"}),
		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Time spent in background tasks.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"action"}),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intake_steps_total",
			Help:      "Profile stage transitions.",
		}, []string{"from", "to"}),
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "Reply generations by status.",
		}, []string{"status"}),
		sends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sends_total",
			Help:      "Outbound sendMessage calls by status.",
		}, []string{"status"}),
		handlers: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "handler_duration_seconds",
			Help:      "Update handler latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"handler", "status"}),
	}
	m.reg.MustRegister(
		m.updates, m.tasks, m.taskDuration, m.steps, m.generations, m.sends, m.handlers,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Update counts one inbound update.
func (m *Metrics) Update(outcome string) {
	if m == nil {
		return
	}
	m.updates.WithLabelValues(outcome).Inc()
}

// TaskFinished records a background task outcome.
func (m *Metrics) TaskFinished(action, status string, took time.Duration) {
	if m == nil {
		return
	}
	m.tasks.WithLabelValues(action, status).Inc()
	m.taskDuration.WithLabelValues(action).Observe(took.Seconds())
}

// StepTaken records a profile stage transition.
func (m *Metrics) StepTaken(from, to state.Stage) {
	if m == nil {
		return
	}
	m.steps.WithLabelValues(string(from), string(to)).Inc()
}

// Generated records a reply generation status.
func (m *Metrics) Generated(status string) {
	if m == nil {
		return
	}
	m.generations.WithLabelValues(status).Inc()
}

// Sent records an outbound message status.
func (m *Metrics) Sent(status string) {
	if m == nil {
		return
	}
	m.sends.WithLabelValues(status).Inc()
}

// ObserveHandler records handler latency.
func (m *Metrics) ObserveHandler(handler, status string, took time.Duration) {
	if m == nil {
		return
	}
	m.handlers.WithLabelValues(handler, status).Observe(took.Seconds())
}
