package executor

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the executor's collectors.
type Metrics struct {
	attempts       *prometheus.CounterVec
	receiptLatency prometheus.Histogram
}

// NewMetrics creates and registers the executor collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "swapintent",
			Subsystem: "executor",
			Name:      "attempts_total",
			Help:      "Swap attempts by outcome (settled, failed, refused).",
		}, []string{"outcome"}),
		receiptLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "swapintent",
			Subsystem: "executor",
			Name:      "receipt_latency_seconds",
			Help:      "Time from transaction submission to its receipt.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
	}
	reg.MustRegister(m.attempts, m.receiptLatency)
	return m
}
