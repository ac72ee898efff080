package route

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the resolver's collectors.
type Metrics struct {
	resolveDuration *prometheus.HistogramVec
	resolutions     *prometheus.CounterVec
}

// NewMetrics creates and registers the resolver collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		resolveDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "swapintent",
			Subsystem: "route",
			Name:      "resolve_duration_seconds",
			Help:      "Time spent quoting one router version.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"version"}),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "swapintent",
			Subsystem: "route",
			Name:      "resolutions_total",
			Help:      "Quotes per router version by outcome (trade, no_route, error).",
		}, []string{"version", "outcome"}),
	}
	reg.MustRegister(m.resolveDuration, m.resolutions)
	return m
}
