// Package config defines the process configuration of the snow density
// service. Configuration is loaded once at startup (or Lambda cold start) and
// is immutable thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> AWS SSM Parameter Store (Lowest)
//
// A missing required value or an invalid format fails startup.
package config

import (
	"time"

	"snowdensity/internal/artifact"
	"snowdensity/internal/external"
	"snowdensity/internal/types"
)

// SecretString is an alias for types.SecretString so configuration secrets
// stay redacted in logs.
type SecretString = types.SecretString

// Config is the top-level configuration. Components receive only the section
// they need.
type Config struct {
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"OTEL_SERVICE_NAME" default:"snowdensity"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Server        ServerConfig
	Artifact      ArtifactConfig
	AWS           AWSConfig
	Observability ObservabilityConfig

	// Injected via ldflags, not Env.
	Build BuildInfo
}

// ServerConfig holds HTTP serving limits.
type ServerConfig struct {
	Port           string        `envconfig:"PORT" default:"8080"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`
	// MaxRows bounds the rows accepted in one prediction request.
	MaxRows       int    `envconfig:"MAX_BATCH_ROWS" default:"100000" validate:"gt=0"`
	DefaultOutput string `envconfig:"DEFAULT_OUTPUT" default:"series" validate:"oneof=series table"`
}

// ArtifactConfig pins the learned-model artifact and controls its local
// cache. The learned model is not served when Enabled is false.
type ArtifactConfig struct {
	Enabled  bool   `envconfig:"LEARNED_MODEL_ENABLED" default:"true"`
	ID       string `envconfig:"ARTIFACT_ID" default:"snow-density"`
	Version  string `envconfig:"ARTIFACT_VERSION"`
	Location string `envconfig:"ARTIFACT_LOCATION"`
	SHA256   string `envconfig:"ARTIFACT_SHA256"`
	Size     int64  `envconfig:"ARTIFACT_SIZE"`

	CacheDir     string        `envconfig:"ARTIFACT_CACHE_DIR" default:"/tmp/snowdensity"`
	FetchTimeout time.Duration `envconfig:"ARTIFACT_FETCH_TIMEOUT" default:"2m" validate:"gt=0"`
	// AuthToken is sent as a bearer token to HTTP artifact locations.
	AuthToken SecretString `envconfig:"ARTIFACT_AUTH_TOKEN"`
	Retry     external.RetryPolicy
}

// Check validates the pinned descriptor when the learned model is enabled.
func (c ArtifactConfig) Check() error {
	if !c.Enabled {
		return nil
	}
	return c.Descriptor().Validate()
}

// Descriptor returns the artifact descriptor the configuration pins.
func (c ArtifactConfig) Descriptor() artifact.Descriptor {
	return artifact.Descriptor{
		ID:       c.ID,
		Version:  c.Version,
		Location: c.Location,
		SHA256:   c.SHA256,
		Size:     c.Size,
	}
}

// AWSConfig holds regional configuration shared by the S3, SSM and
// CloudWatch clients.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1"`

	// LocalStack Support (Empty in Prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// ObservabilityConfig selects where prediction and fetch metrics go.
type ObservabilityConfig struct {
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"SnowDensity"`
	MetricsBackend  string `envconfig:"METRICS_BACKEND" default:"prometheus" validate:"oneof=prometheus cloudwatch none"`
}

// BuildInfo holds build-time metadata injected via ldflags.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures.
type ConfigErrorType string

const (
	ErrMissingEnv    ConfigErrorType = "MISSING_ENV"
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	ErrValidation    ConfigErrorType = "VALIDATION_FAILED"
	ErrParsing       ConfigErrorType = "PARSING_FAILED"
)
