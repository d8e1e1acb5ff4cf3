package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	jobsProcessed *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	cacheLookups  *prometheus.CounterVec
	runsEvaluated prometheus.Counter
	latency       *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		jobsProcessed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trendduel_warmup_jobs_total",
				Help: "Total number of warmup jobs processed by terminal status",
			},
			[]string{"status"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trendduel_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		cacheLookups: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trendduel_forecast_cache_lookups_total",
				Help: "Forecast cache lookups by outcome",
			},
			[]string{"outcome"},
		),
		runsEvaluated: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "trendduel_forecast_runs_evaluated_total",
				Help: "Total number of forecast runs evaluated",
			},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "trendduel_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordJobProcessed records a warmup job reaching a terminal status.
func (r *Recorder) RecordJobProcessed(status string) {
	r.jobsProcessed.WithLabelValues(status).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordCacheLookup records a forecast cache lookup outcome (hit, stale, miss).
func (r *Recorder) RecordCacheLookup(outcome string) {
	r.cacheLookups.WithLabelValues(outcome).Inc()
}

// RecordRunEvaluated records one evaluated forecast run.
func (r *Recorder) RecordRunEvaluated() {
	r.runsEvaluated.Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
