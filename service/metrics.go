package service

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the service's prometheus collectors.
type Metrics struct {
	Transitions *prometheus.CounterVec
	Materials   prometheus.Gauge
	FeesSettled prometheus.Counter
}

// NewMetrics builds the collectors and registers them with reg when it is non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "matreg",
				Subsystem: "registry",
				Name:      "transitions_total",
				Help:      "Mutating registry calls by operation and outcome.",
			},
			[]string{"op", "outcome"},
		),
		Materials: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "matreg",
			Subsystem: "registry",
			Name:      "materials",
			Help:      "Materials ever registered.",
		}),
		FeesSettled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "matreg",
			Subsystem: "settlement",
			Name:      "fees_settled_total",
			Help:      "Sum of registration fees settled, in minor units.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Transitions, m.Materials, m.FeesSettled)
	}
	return m
}
