package telemetry

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"snowdensity/internal/artifact"
)

// PrometheusRecorder exposes:
//   - snowdensity_artifact_fetch_seconds{source,outcome}: histogram of populate time
//   - snowdensity_prediction_rows_total{model}: rows predicted
//   - snowdensity_prediction_seconds{model,outcome}: histogram of call duration
//   - snowdensity_http_request_seconds{method,route,status}: histogram of request time
type PrometheusRecorder struct {
	ArtifactFetchSeconds *prometheus.HistogramVec
	PredictionRowsTotal  *prometheus.CounterVec
	PredictionSeconds    *prometheus.HistogramVec
	RequestSeconds       *prometheus.HistogramVec
}

var _ Recorder = (*PrometheusRecorder)(nil)

// NewPrometheusRecorder registers the metrics with reg.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	f := promauto.With(reg)
	return &PrometheusRecorder{
		ArtifactFetchSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "snowdensity_artifact_fetch_seconds",
			Help:    "Time spent acquiring the learned model artifact",
			Buckets: []float64{.01, .05, .1, .5, 1, 5, 15, 30, 60, 120},
		}, []string{"source", "outcome"}),

		PredictionRowsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "snowdensity_prediction_rows_total",
			Help: "Rows evaluated by successful prediction calls",
		}, []string{"model"}),

		PredictionSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "snowdensity_prediction_seconds",
			Help:    "Duration of prediction calls",
			Buckets: prometheus.DefBuckets,
		}, []string{"model", "outcome"}),

		RequestSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "snowdensity_http_request_seconds",
			Help:    "Duration of HTTP requests by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

// RecordArtifactFetch observes one populate attempt.
func (m *PrometheusRecorder) RecordArtifactFetch(_ context.Context, _ string, source string, outcome artifact.Outcome, elapsed time.Duration) {
	m.ArtifactFetchSeconds.WithLabelValues(source, string(outcome)).Observe(elapsed.Seconds())
}

// RecordPrediction observes one prediction call.
func (m *PrometheusRecorder) RecordPrediction(_ context.Context, model string, rows int, outcome PredictionOutcome, elapsed time.Duration) {
	if outcome == PredictionOK {
		m.PredictionRowsTotal.WithLabelValues(model).Add(float64(rows))
	}
	m.PredictionSeconds.WithLabelValues(model, string(outcome)).Observe(elapsed.Seconds())
}

// RecordRequest observes one HTTP request.
func (m *PrometheusRecorder) RecordRequest(method, endpoint, status string, duration time.Duration) {
	m.RequestSeconds.WithLabelValues(method, endpoint, status).Observe(duration.Seconds())
}
