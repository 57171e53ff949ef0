package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestDialogMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewDialogMetrics(reg)
	m.ObserveInvocation("identify_patient", "ok")
	m.ObserveToolLatency("identify_patient", 0.5)
	m.ObserveBooking("confirmed")
}

func TestDialogMetricsNilSafe(t *testing.T) {
	var m *DialogMetrics
	m.ObserveInvocation("tool", "ok")
	m.ObserveToolLatency("tool", 0.1)
	m.ObserveBooking("conflict")
}
