package types

// Telemetry metric names.
// CloudWatch and Prometheus recorders MUST use these constants.
const (
	// Metric Names
	MetricArtifactFetch    = "ArtifactFetch"
	MetricPredictionRows   = "PredictionRows"
	MetricPredictionFailed = "PredictionFailed"
	MetricAPILatency       = "APILatency"
	MetricAPIRequestCount  = "APIRequestCount"

	// Dimension Keys
	DimSource   = "Source"
	DimOutcome  = "Outcome"
	DimArtifact = "Artifact"
	DimModel    = "Model"
	DimEndpoint = "Endpoint"
	DimStatus   = "Status"

	// Metric Namespace
	MetricNamespace = "SnowDensity"
)
