package telemetry

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"snowdensity/internal/artifact"
	"snowdensity/internal/types"
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchRecorder publishes metrics under types.MetricNamespace.
//
// Metrics emitted:
//   - ArtifactFetch: Dims {Artifact, Source, Outcome}, milliseconds
//   - PredictionRows: Dims {Model}, count of rows in successful calls
//   - PredictionFailed: Dims {Model}, count of failed calls
//   - APILatency and APIRequestCount: Dims {Endpoint, Status}
type CloudWatchRecorder struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger
}

var _ Recorder = (*CloudWatchRecorder)(nil)

// NewCloudWatchRecorder creates a CloudWatchRecorder. An empty namespace
// means types.MetricNamespace.
func NewCloudWatchRecorder(client CloudWatchClient, namespace string, logger *slog.Logger) *CloudWatchRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	return &CloudWatchRecorder{
		client:    client,
		namespace: namespace,
		logger:    logger,
	}
}

func dim(name, value string) cwtypes.Dimension {
	return cwtypes.Dimension{Name: aws.String(name), Value: aws.String(value)}
}

func (m *CloudWatchRecorder) put(ctx context.Context, data ...cwtypes.MetricDatum) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: data,
	}
	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.Error("failed to record metric",
			"error", err.Error(),
			"metric", aws.ToString(data[0].MetricName),
		)
	}
}

// RecordArtifactFetch emits an ArtifactFetch datum.
func (m *CloudWatchRecorder) RecordArtifactFetch(ctx context.Context, artifactKey, source string, outcome artifact.Outcome, elapsed time.Duration) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricArtifactFetch),
		Value:      aws.Float64(float64(elapsed.Milliseconds())),
		Unit:       cwtypes.StandardUnitMilliseconds,
		Dimensions: []cwtypes.Dimension{
			dim(types.DimArtifact, artifactKey),
			dim(types.DimSource, source),
			dim(types.DimOutcome, string(outcome)),
		},
	})
}

// RecordPrediction emits PredictionRows for successful calls and
// PredictionFailed otherwise.
func (m *CloudWatchRecorder) RecordPrediction(ctx context.Context, model string, rows int, outcome PredictionOutcome, _ time.Duration) {
	if outcome == PredictionFailed {
		m.put(ctx, cwtypes.MetricDatum{
			MetricName: aws.String(types.MetricPredictionFailed),
			Value:      aws.Float64(1),
			Unit:       cwtypes.StandardUnitCount,
			Dimensions: []cwtypes.Dimension{dim(types.DimModel, model)},
		})
		return
	}
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricPredictionRows),
		Value:      aws.Float64(float64(rows)),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: []cwtypes.Dimension{dim(types.DimModel, model)},
	})
}

// RecordRequest emits APILatency and APIRequestCount in one call, bounded by
// a short deadline of its own.
func (m *CloudWatchRecorder) RecordRequest(_, endpoint, status string, duration time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	dims := []cwtypes.Dimension{dim(types.DimEndpoint, endpoint), dim(types.DimStatus, status)}
	m.put(ctx,
		cwtypes.MetricDatum{
			MetricName: aws.String(types.MetricAPILatency),
			Value:      aws.Float64(float64(duration.Milliseconds())),
			Unit:       cwtypes.StandardUnitMilliseconds,
			Dimensions: dims,
		},
		cwtypes.MetricDatum{
			MetricName: aws.String(types.MetricAPIRequestCount),
			Value:      aws.Float64(1),
			Unit:       cwtypes.StandardUnitCount,
			Dimensions: dims,
		},
	)
}
