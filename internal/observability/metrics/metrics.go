package metrics

import "github.com/prometheus/client_golang/prometheus"

// DialogMetrics exposes counters/histograms for tool invocation handling.
type DialogMetrics struct {
	invocationsTotal *prometheus.CounterVec
	toolLatency      *prometheus.HistogramVec
	bookingsTotal    *prometheus.CounterVec
}

func NewDialogMetrics(reg prometheus.Registerer) *DialogMetrics {
	m := &DialogMetrics{
		invocationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "frontdesk",
			Subsystem: "dialog",
			Name:      "tool_invocations_total",
			Help:      "Total voice tool invocations",
		}, []string{"tool", "status"}),
		toolLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "frontdesk",
			Subsystem: "dialog",
			Name:      "tool_latency_seconds",
			Help:      "Latency of tool invocation handling",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool"}),
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "frontdesk",
			Subsystem: "dialog",
			Name:      "bookings_total",
			Help:      "Booking attempts by outcome",
		}, []string{"outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.invocationsTotal, m.toolLatency, m.bookingsTotal)
	return m
}

func (m *DialogMetrics) ObserveInvocation(tool, status string) {
	if m == nil {
		return
	}
	m.invocationsTotal.WithLabelValues(tool, status).Inc()
}

func (m *DialogMetrics) ObserveToolLatency(tool string, seconds float64) {
	if m == nil {
		return
	}
	m.toolLatency.WithLabelValues(tool).Observe(seconds)
}

func (m *DialogMetrics) ObserveBooking(outcome string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(outcome).Inc()
}
