package metrics

import "github.com/prometheus/client_golang/prometheus"

// SchedulingMetrics exposes counters/histograms for the booking flows.
type SchedulingMetrics struct {
	reservationsTotal *prometheus.CounterVec
	transitionsTotal  *prometheus.CounterVec
	reserveLatency    *prometheus.HistogramVec
}

func NewSchedulingMetrics(reg prometheus.Registerer) *SchedulingMetrics {
	m := &SchedulingMetrics{
		reservationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "schedule",
			Name:      "reservations_total",
			Help:      "Reservation attempts by period and outcome",
		}, []string{"period", "outcome"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "schedule",
			Name:      "transitions_total",
			Help:      "Booking lifecycle transitions by action and outcome",
		}, []string{"action", "outcome"}),
		reserveLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "schedule",
			Name:      "reserve_latency_seconds",
			Help:      "Latency of the reservation critical section",
			Buckets:   prometheus.DefBuckets,
		}, []string{"period"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.reservationsTotal, m.transitionsTotal, m.reserveLatency)
	return m
}

func (m *SchedulingMetrics) ObserveReservation(period, outcome string) {
	if m == nil {
		return
	}
	m.reservationsTotal.WithLabelValues(period, outcome).Inc()
}

func (m *SchedulingMetrics) ObserveTransition(action, outcome string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(action, outcome).Inc()
}

func (m *SchedulingMetrics) ObserveReserveLatency(period string, seconds float64) {
	if m == nil {
		return
	}
	m.reserveLatency.WithLabelValues(period).Observe(seconds)
}
