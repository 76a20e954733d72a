package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewMetrics_Registers(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	if m.EventsReceivedTotal == nil {
		t.Fatal("EventsReceivedTotal should not be nil")
	}
	if m.TasksTotal == nil {
		t.Fatal("TasksTotal should not be nil")
	}
	if m.TaskLatency == nil {
		t.Fatal("TaskLatency should not be nil")
	}
	if m.DLQSize == nil {
		t.Fatal("DLQSize should not be nil")
	}
	if m.Registrations == nil {
		t.Fatal("Registrations should not be nil")
	}
}

func TestRecordEvent(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordEvent("deployment.ready", OutcomeDispatched)
	m.RecordEvent("deployment.ready", OutcomeDispatched)
	m.RecordEvent("deployment.ready", OutcomeFiltered)
	m.RecordEvent("", OutcomeInvalid)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	found := false
	for _, f := range families {
		if f.GetName() == "vercel_events_received_total" {
			found = true
			metrics := f.GetMetric()
			if len(metrics) != 3 { // dispatched + filtered + unknown/invalid
				t.Fatalf("expected 3 label combinations, got %d", len(metrics))
			}
		}
	}
	if !found {
		t.Fatal("vercel_events_received_total metric not found")
	}
}

func TestRecordTask(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordTask("succeeded", 0.1)
	m.RecordTask("succeeded", 0.2)
	m.RecordRetry()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	for _, f := range families {
		switch f.GetName() {
		case "vercel_tasks_total":
			if val := f.GetMetric()[0].GetCounter().GetValue(); val != 2 {
				t.Fatalf("expected count 2, got %f", val)
			}
		case "vercel_task_latency_seconds":
			if n := f.GetMetric()[0].GetHistogram().GetSampleCount(); n != 2 {
				t.Fatalf("expected 2 samples, got %d", n)
			}
		case "vercel_task_retries_total":
			if val := f.GetMetric()[0].GetCounter().GetValue(); val != 1 {
				t.Fatalf("expected 1 retry, got %f", val)
			}
		}
	}
}

func TestGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.AddDLQ(3)
	m.AddDLQ(-1)
	m.AddRegistrations(4)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	gauges := map[string]float64{
		"vercel_dlq_size":      2,
		"vercel_registrations": 4,
	}

	for _, f := range families {
		expected, ok := gauges[f.GetName()]
		if !ok {
			continue
		}
		val := f.GetMetric()[0].GetGauge().GetValue()
		if val != expected {
			t.Fatalf("%s: expected %f, got %f", f.GetName(), expected, val)
		}
		delete(gauges, f.GetName())
	}

	if len(gauges) > 0 {
		t.Fatalf("metrics not found: %v", gauges)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordEvent("x", OutcomeFailed)
	m.RecordRejected("signature")
	m.RecordTask("failed", 1)
	m.RecordRetry()
	m.AddDLQ(1)
	m.AddRegistrations(1)
}
