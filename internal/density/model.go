// Package density predicts bulk snow density (kg/m³) and optionally SWE from
// tabular observations.
//
// Every model runs the same pipeline: the caller's column bindings are
// validated against the model's requirements, features are derived for every
// row, the model's estimator is acquired (which for the learned model may
// fetch its artifact), and each row is evaluated. A call fails on the first
// invalid row unless SkipInvalidRows is given. Densities are returned as
// computed; implausible values are never clamped.
package density

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"snowdensity/internal/dataset"
	"snowdensity/internal/features"
	"snowdensity/internal/schema"
)

// Model names.
const (
	NameJonas    = "jonas"
	NamePistochi = "pistochi"
	NameSturm    = "sturm"
	NameLearned  = "learned"
)

// Estimator maps one row's derived features to a density in kg/m³.
type Estimator func(features.Observation) (float64, error)

// Model is the capability shared by every density model.
type Model interface {
	Name() string
	// Requirements lists the roles the model consumes.
	Requirements() []schema.Requirement
	// PredictBindings runs the pipeline with explicit role bindings.
	PredictBindings(ctx context.Context, frame *dataset.Frame, b schema.Bindings, opts ...PredictOption) (Result, error)
}

// OutputShape selects the container a model instance returns.
type OutputShape int

const (
	// OutputSeries returns *Series.
	OutputSeries OutputShape = iota
	// OutputTable returns *Table.
	OutputTable
)

func (s OutputShape) String() string {
	if s == OutputTable {
		return "table"
	}
	return "series"
}

// ParseOutputShape accepts "series" or "table". An empty string is series.
func ParseOutputShape(s string) (OutputShape, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "series":
		return OutputSeries, nil
	case "table":
		return OutputTable, nil
	}
	return 0, fmt.Errorf("unknown output shape %q", s)
}

// Options configure a model instance for its whole life.
type Options struct {
	Output OutputShape
	Logger *slog.Logger
}

type predictConfig struct {
	swe     bool
	skipBad bool
}

// PredictOption adjusts a single Predict call.
type PredictOption func(*predictConfig)

// WithSWE adds snow water equivalent in millimetres (density × depth) to the
// result. Models that do not otherwise read depth then require a snow_depth
// binding.
func WithSWE() PredictOption {
	return func(c *predictConfig) { c.swe = true }
}

// SkipInvalidRows records row failures on the result and yields NaN for those
// rows instead of failing the call.
func SkipInvalidRows() PredictOption {
	return func(c *predictConfig) { c.skipBad = true }
}

// variant is the per-model part of the pipeline.
type variant struct {
	name  string
	reqs  []schema.Requirement
	days  features.DayConvention
	vocab features.Vocabulary
	// estimator is acquired once per call, after every row has been derived.
	estimator func(ctx context.Context) (Estimator, error)
}

type engine struct {
	variant
	output OutputShape
	logger *slog.Logger
}

func newEngine(v variant, opts Options) *engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &engine{variant: v, output: opts.Output, logger: logger}
}

func (e *engine) Name() string { return e.name }

func (e *engine) Requirements() []schema.Requirement {
	return append([]schema.Requirement(nil), e.reqs...)
}

// Output reports the configured shape.
func (e *engine) Output() OutputShape { return e.output }
