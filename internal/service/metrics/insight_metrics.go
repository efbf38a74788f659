package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	InsightLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fincast",
			Subsystem: "insight",
			Name:      "latency_seconds",
			Help:      "Latency of text generation calls",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		},
		[]string{"version", "cached"},
	)

	InsightErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fincast",
			Subsystem: "insight",
			Name:      "errors_total",
			Help:      "Failed insight generations by version",
		},
		[]string{"version"},
	)

	ChartRenders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fincast",
			Subsystem: "chart",
			Name:      "renders_total",
			Help:      "Charts rendered by kind and cache outcome",
		},
		[]string{"kind", "cache"},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(InsightLatency, InsightErrors, ChartRenders)
	})
}
