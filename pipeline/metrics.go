package pipeline

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the pipeline's collectors.
type Metrics struct {
	resolutions *prometheus.CounterVec
}

// NewMetrics creates and registers the pipeline collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "swapintent",
			Subsystem: "pipeline",
			Name:      "resolutions_total",
			Help:      "Route resolutions by outcome (applied, stale, error).",
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.resolutions)
	return m
}
