// Package api exposes the prediction engine to the HTTP and Lambda
// surfaces: it decodes the shared request envelope into a frame and column
// bindings, runs the requested model and records prediction metrics.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"snowdensity/internal/artifact"
	"snowdensity/internal/dataset"
	"snowdensity/internal/density"
	"snowdensity/internal/schema"
	"snowdensity/internal/swe"
	"snowdensity/internal/telemetry"
	"snowdensity/internal/types"
)

// PredictionRecorder receives one observation per prediction call.
type PredictionRecorder interface {
	RecordPrediction(ctx context.Context, model string, rows int, outcome telemetry.PredictionOutcome, elapsed time.Duration)
}

// PredictRequest is the envelope accepted by POST /v1/density/{model} and by
// the Lambda function.
type PredictRequest struct {
	Rows            []map[string]any `json:"rows"`
	Columns         schema.Bindings  `json:"columns"`
	Output          string           `json:"output,omitempty"`
	SWE             bool             `json:"swe,omitempty"`
	SkipInvalidRows bool             `json:"skip_invalid_rows,omitempty"`
}

// PredictResponse carries the model's result. Result encodes as a series or
// a table depending on Output.
type PredictResponse struct {
	Model   string          `json:"model"`
	Output  string          `json:"output"`
	Rows    int             `json:"rows"`
	Result  density.Result  `json:"result"`
	Summary density.Summary `json:"summary"`
}

// HillRequest is the envelope accepted by POST /v1/swe/hill.
type HillRequest struct {
	Rows    []map[string]any `json:"rows"`
	Columns schema.Bindings  `json:"columns"`
}

// HillResponse lists SWE in millimetres, one value per row.
type HillResponse struct {
	Rows  int       `json:"rows"`
	SWEMM []float64 `json:"swe_mm"`
}

// RequirementInfo describes one role a model consumes.
type RequirementInfo struct {
	Role     schema.Role `json:"role"`
	Kind     string      `json:"kind"`
	Optional bool        `json:"optional,omitempty"`
	Unit     bool        `json:"unit_required,omitempty"`
}

// ModelInfo describes one servable model.
type ModelInfo struct {
	Name         string            `json:"name"`
	Available    bool              `json:"available"`
	Requirements []RequirementInfo `json:"requirements"`
}

// ArtifactStatus reports the learned model's artifact cache.
type ArtifactStatus struct {
	Descriptor artifact.Descriptor `json:"descriptor"`
	State      string              `json:"state"`
	Path       string              `json:"path"`
	LastError  string              `json:"last_error,omitempty"`
}

// ServiceConfig configures a Service.
type ServiceConfig struct {
	// Cache backs the learned model. nil disables it.
	Cache *artifact.Cache
	// MaxRows bounds one request. Zero means unbounded.
	MaxRows       int
	DefaultOutput density.OutputShape
	Metrics       PredictionRecorder
	Logger        *slog.Logger
}

// Service runs prediction requests. It is safe for concurrent use.
type Service struct {
	cache         *artifact.Cache
	maxRows       int
	defaultOutput density.OutputShape
	metrics       PredictionRecorder
	logger        *slog.Logger
}

// NewService builds a Service from cfg.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Metrics == nil {
		cfg.Metrics = telemetry.Nop{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{
		cache:         cfg.Cache,
		maxRows:       cfg.MaxRows,
		defaultOutput: cfg.DefaultOutput,
		metrics:       cfg.Metrics,
		logger:        cfg.Logger,
	}
}

func (s *Service) checkRows(n int) error {
	if s.maxRows > 0 && n > s.maxRows {
		return types.NewAppErrorWithDetails(types.ErrCodeValidationBatchSize,
			fmt.Sprintf("request has %d rows, the maximum is %d", n, s.maxRows), nil,
			map[string]any{"rows": n, "max_rows": s.maxRows})
	}
	return nil
}

func (s *Service) outputShape(raw string) (density.OutputShape, error) {
	if raw == "" {
		return s.defaultOutput, nil
	}
	shape, err := density.ParseOutputShape(raw)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeValidationInvalidOutput,
			fmt.Sprintf("output must be series or table, got %q", raw), err)
	}
	return shape, nil
}

// Predict runs the named density model over req.
func (s *Service) Predict(ctx context.Context, model string, req PredictRequest) (*PredictResponse, error) {
	if err := s.checkRows(len(req.Rows)); err != nil {
		return nil, err
	}
	shape, err := s.outputShape(req.Output)
	if err != nil {
		return nil, err
	}
	logger := types.LoggerFromContext(ctx, s.logger).With("model", model)
	m, err := density.New(model, s.cache, density.Options{Output: shape, Logger: logger})
	if err != nil {
		return nil, err
	}

	var opts []density.PredictOption
	if req.SWE {
		opts = append(opts, density.WithSWE())
	}
	if req.SkipInvalidRows {
		opts = append(opts, density.SkipInvalidRows())
	}

	start := time.Now()
	res, err := m.PredictBindings(ctx, dataset.FromRecords(req.Rows), req.Columns, opts...)
	outcome := telemetry.PredictionOK
	if err != nil {
		outcome = telemetry.PredictionFailed
	}
	s.metrics.RecordPrediction(ctx, model, len(req.Rows), outcome, time.Since(start))
	if err != nil {
		logger.WarnContext(ctx, "prediction failed", "rows", len(req.Rows), "error", err)
		return nil, err
	}

	if skipped := len(res.RowErrors()); skipped > 0 {
		logger.InfoContext(ctx, "prediction skipped invalid rows", "rows", res.Len(), "skipped", skipped)
	}
	return &PredictResponse{
		Model:   model,
		Output:  shape.String(),
		Rows:    res.Len(),
		Result:  res,
		Summary: res.Summary(),
	}, nil
}

// Hill runs the Hill et al. regression over req.
func (s *Service) Hill(ctx context.Context, req HillRequest) (*HillResponse, error) {
	if err := s.checkRows(len(req.Rows)); err != nil {
		return nil, err
	}
	start := time.Now()
	out, err := swe.PredictHill(ctx, dataset.FromRecords(req.Rows), req.Columns)
	outcome := telemetry.PredictionOK
	if err != nil {
		outcome = telemetry.PredictionFailed
	}
	s.metrics.RecordPrediction(ctx, swe.HillModelName, len(req.Rows), outcome, time.Since(start))
	if err != nil {
		return nil, err
	}
	return &HillResponse{Rows: len(out), SWEMM: out}, nil
}

// Models lists every density model and the Hill regression with the roles
// each consumes. The learned model is unavailable without a cache.
func (s *Service) Models() []ModelInfo {
	out := make([]ModelInfo, 0, len(density.Names)+1)
	for _, name := range density.Names {
		info := ModelInfo{Name: name, Available: true}
		m, err := density.New(name, s.cache, density.Options{Logger: s.logger})
		if err != nil {
			info.Available = false
			// Requirements do not depend on the cache.
			m = density.NewLearned(nil, density.Options{Logger: s.logger})
		}
		info.Requirements = describe(m.Requirements())
		out = append(out, info)
	}
	return append(out, ModelInfo{
		Name:         swe.HillModelName,
		Available:    true,
		Requirements: describe(swe.HillRequirements),
	})
}

func describe(reqs []schema.Requirement) []RequirementInfo {
	out := make([]RequirementInfo, len(reqs))
	for i, r := range reqs {
		out[i] = RequirementInfo{Role: r.Role, Kind: r.Kind.String(), Optional: r.Optional, Unit: r.Unit}
	}
	return out
}

func (s *Service) requireCache() error {
	if s.cache == nil {
		return types.NewAppError(types.ErrCodeValidationUnknownModel, "the learned model is not configured", nil)
	}
	return nil
}

// Artifact reports the artifact cache state.
func (s *Service) Artifact() (*ArtifactStatus, error) {
	if err := s.requireCache(); err != nil {
		return nil, err
	}
	st := &ArtifactStatus{
		Descriptor: s.cache.Descriptor(),
		State:      s.cache.State().String(),
		Path:       s.cache.Path(),
	}
	if err := s.cache.LastError(); err != nil {
		st.LastError = err.Error()
	}
	return st, nil
}

// Warm loads the artifact so the first learned prediction does not pay for
// the fetch.
func (s *Service) Warm(ctx context.Context) error {
	if err := s.requireCache(); err != nil {
		return err
	}
	_, err := s.cache.Load(ctx)
	return err
}

// ClearArtifact drops the cached artifact; the next learned prediction
// fetches it again.
func (s *Service) ClearArtifact(ctx context.Context) error {
	if err := s.requireCache(); err != nil {
		return err
	}
	if err := s.cache.Clear(); err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "clearing artifact cache failed", err)
	}
	types.LoggerFromContext(ctx, s.logger).InfoContext(ctx, "artifact cache cleared on request",
		"artifact_id", s.cache.Descriptor().Key())
	return nil
}

// CheckArtifact fails while the cache is in FetchFailed. It backs the
// artifact health probe.
func (s *Service) CheckArtifact(context.Context) error {
	if s.cache == nil {
		return nil
	}
	if err := s.cache.LastError(); err != nil {
		return fmt.Errorf("artifact %s unavailable: %w", s.cache.Descriptor().Key(), err)
	}
	return nil
}
