package density

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"time"

	"snowdensity/internal/dataset"
	"snowdensity/internal/features"
	"snowdensity/internal/schema"
	"snowdensity/internal/swe"
	"snowdensity/internal/types"
)

var depthForSWE = schema.Requirement{Role: schema.RoleSnowDepth, Kind: schema.Numeric, Unit: true}

func (e *engine) requirementsFor(cfg predictConfig) []schema.Requirement {
	reqs := e.Requirements()
	if !cfg.swe {
		return reqs
	}
	for _, r := range reqs {
		if r.Role == schema.RoleSnowDepth {
			return reqs
		}
	}
	return append(reqs, depthForSWE)
}

// PredictBindings validates, derives and evaluates every row of frame.
func (e *engine) PredictBindings(ctx context.Context, frame *dataset.Frame, b schema.Bindings, opts ...PredictOption) (Result, error) {
	var cfg predictConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	start := time.Now()
	logger := types.LoggerFromContext(ctx, e.logger).With("model", e.name)
	reqs := e.requirementsFor(cfg)

	if err := schema.Validate(e.name, frame, b, reqs); err != nil {
		logger.WarnContext(ctx, "schema validation failed", "error", err)
		return nil, err
	}

	if err := e.checkOutputColumns(frame, cfg); err != nil {
		return nil, err
	}
	u, err := parseUnits(b)
	if err != nil {
		return nil, err
	}

	n := frame.Len()
	if n == 0 {
		v := values{density: []float64{}}
		if cfg.swe {
			v.swe = []float64{}
		}
		return assemble(e.output, frame, v)
	}

	obs := make([]features.Observation, n)
	bad := make([]bool, n)
	var rowErrs []*RowError
	for i := 0; i < n; i++ {
		o, role, err := e.deriveRow(frame, i, b, reqs, u)
		if err != nil {
			rowErr := newRowError(i+1, string(role), err)
			if !cfg.skipBad {
				logger.WarnContext(ctx, "feature derivation failed", "row", i+1, "error", err)
				return nil, rowErr
			}
			rowErrs = append(rowErrs, rowErr)
			bad[i] = true
			continue
		}
		obs[i] = o
	}

	est, err := e.estimator(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "acquiring estimator failed", "error", err)
		return nil, err
	}

	v := values{density: make([]float64, n)}
	if cfg.swe {
		v.swe = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		if bad[i] {
			v.density[i] = math.NaN()
			if cfg.swe {
				v.swe[i] = math.NaN()
			}
			continue
		}
		d, err := est(obs[i])
		if err != nil {
			rowErr := newRowError(i+1, "", err)
			if !cfg.skipBad {
				logger.WarnContext(ctx, "row evaluation failed", "row", i+1, "error", err)
				return nil, rowErr
			}
			rowErrs = append(rowErrs, rowErr)
			d = math.NaN()
		}
		v.density[i] = d
		if cfg.swe {
			v.swe[i] = swe.FromDensity(d, obs[i].DepthM)
		}
	}
	v.errs = sortRowErrors(rowErrs)

	logger.DebugContext(ctx, "prediction complete",
		"rows", n,
		"skipped", len(rowErrs),
		"elapsed", time.Since(start),
	)
	return assemble(e.output, frame, v)
}

func sortRowErrors(errs []*RowError) []*RowError {
	slices.SortStableFunc(errs, func(a, b *RowError) int { return cmp.Compare(a.Row, b.Row) })
	return errs
}

// checkOutputColumns refuses table output that would overwrite a column the
// caller passed in.
func (e *engine) checkOutputColumns(frame *dataset.Frame, cfg predictConfig) error {
	if e.output != OutputTable {
		return nil
	}
	out := []string{ColumnDensity}
	if cfg.swe {
		out = append(out, ColumnSWE)
	}
	for _, col := range out {
		if frame.HasColumn(col) {
			return types.NewAppErrorWithDetails(types.ErrCodeSchemaColumnConflict,
				fmt.Sprintf("input column %q would be overwritten by %s output", col, e.name), nil,
				map[string]any{"column": col, "model": e.name})
		}
	}
	return nil
}
