package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// promMetrics are the Prometheus counters exposed on /metrics. Redis keeps
// the dashboard counters with TTLs; Prometheus keeps the scrape-friendly
// view.
type promMetrics struct {
	publishes *prometheus.CounterVec
	failures  *prometheus.CounterVec
}

func newPromMetrics(reg prometheus.Registerer) *promMetrics {
	factory := promauto.With(reg)
	return &promMetrics{
		publishes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "publisher",
			Name:      "jobs_total",
			Help:      "Publish jobs reaching a terminal state, by platform and outcome.",
		}, []string{"platform", "outcome"}),
		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "publisher",
			Name:      "job_failures_total",
			Help:      "Failed publish jobs by platform and error kind.",
		}, []string{"platform", "kind"}),
	}
}
