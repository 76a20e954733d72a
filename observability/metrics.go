// Package observability provides Prometheus metrics and OpenTelemetry
// tracing for webhook ingress and integration tasks.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcomes recorded for received webhook events.
const (
	OutcomeDispatched = "dispatched"
	OutcomeFiltered   = "filtered"
	OutcomeDuplicate  = "duplicate"
	OutcomeInvalid    = "invalid"
	OutcomeFailed     = "failed"
)

// Metrics holds metric instruments. A nil *Metrics records nothing.
type Metrics struct {
	EventsReceivedTotal *prometheus.CounterVec
	IngressRejected     *prometheus.CounterVec
	TasksTotal          *prometheus.CounterVec
	TaskRetriesTotal    prometheus.Counter
	TaskLatency         prometheus.Histogram
	DLQSize             prometheus.Gauge
	Registrations       prometheus.Gauge
}

// NewMetrics creates the instruments and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EventsReceivedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vercel_events_received_total",
			Help: "Verified webhook events by type and outcome.",
		}, []string{"type", "outcome"}),
		IngressRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vercel_ingress_rejected_total",
			Help: "Webhook requests rejected before parsing.",
		}, []string{"reason"}),
		TasksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vercel_tasks_total",
			Help: "Integration tasks by final status.",
		}, []string{"status"}),
		TaskRetriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vercel_task_retries_total",
			Help: "Task attempts that were retried.",
		}),
		TaskLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "vercel_task_latency_seconds",
			Help:    "Wall time of a task including retries.",
			Buckets: prometheus.DefBuckets,
		}),
		DLQSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vercel_dlq_size",
			Help: "Entries currently in the dead letter queue.",
		}),
		Registrations: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vercel_registrations",
			Help: "Active webhook registrations.",
		}),
	}

	reg.MustRegister(
		m.EventsReceivedTotal,
		m.IngressRejected,
		m.TasksTotal,
		m.TaskRetriesTotal,
		m.TaskLatency,
		m.DLQSize,
		m.Registrations,
	)
	return m
}

// RecordEvent counts a verified event with its outcome.
func (m *Metrics) RecordEvent(eventType, outcome string) {
	if m == nil {
		return
	}
	if eventType == "" {
		eventType = "unknown"
	}
	m.EventsReceivedTotal.WithLabelValues(eventType, outcome).Inc()
}

// RecordRejected counts a request rejected before parsing.
func (m *Metrics) RecordRejected(reason string) {
	if m == nil {
		return
	}
	m.IngressRejected.WithLabelValues(reason).Inc()
}

// RecordTask records a finished task with its status and latency.
func (m *Metrics) RecordTask(status string, latencySeconds float64) {
	if m == nil {
		return
	}
	m.TasksTotal.WithLabelValues(status).Inc()
	m.TaskLatency.Observe(latencySeconds)
}

// RecordRetry counts one retried task attempt.
func (m *Metrics) RecordRetry() {
	if m == nil {
		return
	}
	m.TaskRetriesTotal.Inc()
}

// AddDLQ moves the DLQ size gauge by delta.
func (m *Metrics) AddDLQ(delta float64) {
	if m == nil {
		return
	}
	m.DLQSize.Add(delta)
}

// AddRegistrations moves the registrations gauge by delta.
func (m *Metrics) AddRegistrations(delta float64) {
	if m == nil {
		return
	}
	m.Registrations.Add(delta)
}
