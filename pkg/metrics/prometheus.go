package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"FinCast/internal/domain/models"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	runsTotal   *prometheus.CounterVec
	runDuration *prometheus.HistogramVec
	steps       *prometheus.CounterVec
	failedSteps *prometheus.CounterVec
	lastR2      *prometheus.GaugeVec
	errorsTotal *prometheus.CounterVec
	latency     *prometheus.HistogramVec
}

// New creates a recorder registered on the default registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the collectors on reg. Collectors already
// registered there are reused.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	return &Recorder{
		runsTotal: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fincast_runs_total",
				Help: "Pipeline runs by version and status",
			},
			[]string{"version", "status"},
		)),
		runDuration: register(reg, prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fincast_run_duration_seconds",
				Help:    "Wall time of a pipeline run",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"version"},
		)),
		steps: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fincast_forecast_steps_total",
				Help: "Walk-forward steps executed",
			},
			[]string{"version"},
		)),
		failedSteps: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fincast_forecast_failed_steps_total",
				Help: "Walk-forward steps whose fit failed",
			},
			[]string{"version"},
		)),
		lastR2: register(reg, prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fincast_last_r2",
				Help: "In-sample R2 of the last successful step",
			},
			[]string{"version"},
		)),
		errorsTotal: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fincast_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		)),
		latency: register(reg, prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fincast_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		)),
	}
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

func (r *Recorder) RecordRun(version string, status models.RunStatus, seconds float64) {
	r.runsTotal.WithLabelValues(version, string(status)).Inc()
	r.runDuration.WithLabelValues(version).Observe(seconds)
}

func (r *Recorder) RecordSteps(version string, total, failed int) {
	r.steps.WithLabelValues(version).Add(float64(total))
	r.failedSteps.WithLabelValues(version).Add(float64(failed))
}

func (r *Recorder) RecordLastR2(version string, r2 float64) {
	r.lastR2.WithLabelValues(version).Set(r2)
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// Nop discards everything; used by the CLI and tests.
type Nop struct{}

func (Nop) RecordRun(string, models.RunStatus, float64) {}
func (Nop) RecordSteps(string, int, int)                {}
func (Nop) RecordLastR2(string, float64)                {}
func (Nop) RecordError(string)                          {}
func (Nop) RecordLatency(string, float64)               {}
