// Package telemetry emits artifact and prediction metrics to CloudWatch or
// Prometheus. Recording never fails the operation being measured.
package telemetry

import (
	"context"
	"time"

	"snowdensity/internal/artifact"
)

// PredictionOutcome labels a prediction call.
type PredictionOutcome string

const (
	PredictionOK     PredictionOutcome = "ok"
	PredictionFailed PredictionOutcome = "failed"
)

// Recorder receives every metric the service emits.
type Recorder interface {
	artifact.Recorder
	RecordPrediction(ctx context.Context, model string, rows int, outcome PredictionOutcome, elapsed time.Duration)
	// RecordRequest observes one HTTP request. endpoint is the route
	// pattern, not the raw path.
	RecordRequest(method, endpoint, status string, duration time.Duration)
}

// Nop discards all metrics.
type Nop struct{}

var _ Recorder = Nop{}

func (Nop) RecordArtifactFetch(context.Context, string, string, artifact.Outcome, time.Duration) {}

func (Nop) RecordPrediction(context.Context, string, int, PredictionOutcome, time.Duration) {}

func (Nop) RecordRequest(string, string, string, time.Duration) {}
