package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	executions       *prometheus.CounterVec
	errorsTotal      *prometheus.CounterVec
	confidence       *prometheus.GaugeVec
	bridgeSize       prometheus.Gauge
	pipelineDuration prometheus.Histogram
	limiterWait      *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		executions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "macropulse_engine_executions_total",
				Help: "Engine execution attempts by outcome",
			},
			[]string{"engine", "status"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "macropulse_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		confidence: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "macropulse_engine_confidence",
				Help: "Last reported engine confidence (0-100)",
			},
			[]string{"engine"},
		),
		bridgeSize: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "macropulse_bridge_cache_entries",
				Help: "Current number of bridged data cache entries",
			},
		),
		pipelineDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "macropulse_pipeline_duration_seconds",
				Help:    "Duration of full pipeline runs in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		limiterWait: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "macropulse_limiter_wait_seconds",
				Help:    "Time spent waiting for rate limiter tokens",
				Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 15},
			},
			[]string{"api"},
		),
	}
}

// RecordExecution records one engine execution attempt.
func (r *Recorder) RecordExecution(engineID, status string) {
	r.executions.WithLabelValues(engineID, status).Inc()
}

// RecordConfidence records the engine's last reported confidence.
func (r *Recorder) RecordConfidence(engineID string, confidence float64) {
	r.confidence.WithLabelValues(engineID).Set(confidence)
}

// RecordPipelineDuration records a full pipeline run duration.
func (r *Recorder) RecordPipelineDuration(seconds float64) {
	r.pipelineDuration.Observe(seconds)
}

// RecordBridgeSize records the bridge cache entry count.
func (r *Recorder) RecordBridgeSize(n int) {
	r.bridgeSize.Set(float64(n))
}

// RecordLimiterWait records time spent blocked on the limiter.
func (r *Recorder) RecordLimiterWait(api string, seconds float64) {
	r.limiterWait.WithLabelValues(api).Observe(seconds)
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}
