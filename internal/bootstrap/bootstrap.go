// Package bootstrap wires configuration into the runtime dependencies shared
// by the density API, the Lambda function and the artifact tools.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"snowdensity/internal/api"
	"snowdensity/internal/artifact"
	"snowdensity/internal/config"
	"snowdensity/internal/density"
	"snowdensity/internal/external"
	"snowdensity/internal/telemetry"
)

// httpTimeout bounds a single artifact HTTP exchange. Retries and the cache
// fetch timeout bound the whole download.
const httpTimeout = 5 * time.Minute

// Runtime holds the wired dependencies.
type Runtime struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics telemetry.Recorder
	// MetricsHandler serves the Prometheus registry; nil for other backends.
	MetricsHandler http.Handler
	// Cache is nil when the learned model is disabled.
	Cache   *artifact.Cache
	Service *api.Service
}

// LoadConfig resolves secrets from SSM outside local environments and
// loads the configuration.
func LoadConfig() (*config.Config, error) {
	var provider config.SecretProvider
	if os.Getenv("APP_ENV") != "local" {
		provider = config.NewSSMProvider(os.Getenv("AWS_REGION"), os.Getenv("AWS_ENDPOINT_URL"))
	}
	return config.LoadConfig(provider)
}

// NewLogger returns a JSON logger at the configured level.
func NewLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

// New builds every runtime dependency from cfg.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Runtime, error) {
	rt := &Runtime{Config: cfg, Logger: logger}

	awsCfg, err := LoadAWS(ctx, cfg.AWS)
	if err != nil {
		return nil, err
	}

	switch cfg.Observability.MetricsBackend {
	case "prometheus":
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		rt.Metrics = telemetry.NewPrometheusRecorder(reg)
		rt.MetricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	case "cloudwatch":
		rt.Metrics = telemetry.NewCloudWatchRecorder(cloudwatch.NewFromConfig(awsCfg),
			cfg.Observability.MetricNamespace, logger)
	default:
		rt.Metrics = telemetry.Nop{}
	}

	if cfg.Artifact.Enabled {
		rt.Cache, err = NewCache(cfg, awsCfg, rt.Metrics, logger)
		if err != nil {
			return nil, err
		}
	}

	shape, err := density.ParseOutputShape(cfg.Server.DefaultOutput)
	if err != nil {
		return nil, fmt.Errorf("default output: %w", err)
	}
	rt.Service = api.NewService(api.ServiceConfig{
		Cache:         rt.Cache,
		MaxRows:       cfg.Server.MaxRows,
		DefaultOutput: shape,
		Metrics:       rt.Metrics,
		Logger:        logger,
	})
	return rt, nil
}

// NewCache builds the artifact cache with a source for every supported
// location scheme.
func NewCache(cfg *config.Config, awsCfg aws.Config, rec artifact.Recorder, logger *slog.Logger) (*artifact.Cache, error) {
	userAgent := fmt.Sprintf("%s/%s", cfg.Service, cfg.Build.Version)
	httpClient := external.NewBaseClient(&http.Client{Timeout: httpTimeout}, "artifact-http", cfg.Artifact.Retry, userAgent)

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.AWS.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
			o.UsePathStyle = true
		}
	})

	cache, err := artifact.NewCache(artifact.CacheConfig{
		Descriptor: cfg.Artifact.Descriptor(),
		Source: artifact.Router{
			artifact.SchemeFile: artifact.FileSource{},
			artifact.SchemeHTTP: artifact.NewHTTPSource(httpClient, cfg.Artifact.AuthToken),
			artifact.SchemeS3:   artifact.NewS3Source(s3Client),
		},
		Dir:          cfg.Artifact.CacheDir,
		FetchTimeout: cfg.Artifact.FetchTimeout,
		Recorder:     rec,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating artifact cache: %w", err)
	}
	return cache, nil
}

// LoadAWS loads the shared AWS SDK configuration.
func LoadAWS(ctx context.Context, cfg config.AWSConfig) (aws.Config, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading AWS SDK config: %w", err)
	}
	return awsCfg, nil
}
