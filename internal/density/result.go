package density

import (
	"encoding/json"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"snowdensity/internal/dataset"
)

// Output column names appended to a Table.
const (
	ColumnDensity = "snow_density"
	ColumnSWE     = "swe_mm"
)

// Result is the outcome of a prediction: one density per input row in input
// order. Its concrete type is *Series or *Table, fixed by the model's
// OutputShape.
type Result interface {
	Len() int
	// Densities returns the densities in kg/m³. Skipped rows are NaN.
	Densities() []float64
	// SWE returns SWE in millimetres of water, or nil if not requested.
	SWE() []float64
	// RowErrors lists the rows skipped under SkipInvalidRows.
	RowErrors() []*RowError
	Summary() Summary
}

// values holds the columns shared by both shapes.
type values struct {
	density []float64
	swe     []float64
	errs    []*RowError
}

func (v *values) Len() int               { return len(v.density) }
func (v *values) Densities() []float64   { return append([]float64(nil), v.density...) }
func (v *values) RowErrors() []*RowError { return append([]*RowError(nil), v.errs...) }
func (v *values) Summary() Summary       { return summarize(v.density) }
func (v *values) SWE() []float64 {
	if v.swe == nil {
		return nil
	}
	return append([]float64(nil), v.swe...)
}

// Series is the plain-sequence result shape.
type Series struct {
	values
}

// MarshalJSON encodes NaN entries as null.
func (s *Series) MarshalJSON() ([]byte, error) {
	out := struct {
		Density   []*float64  `json:"density"`
		SWE       []*float64  `json:"swe_mm,omitempty"`
		RowErrors []*RowError `json:"row_errors,omitempty"`
	}{
		Density:   nullable(s.density),
		RowErrors: s.errs,
	}
	if s.swe != nil {
		out.SWE = nullable(s.swe)
	}
	return json.Marshal(out)
}

// Table is the tabular result shape: a copy of the input frame with the
// density column, and the SWE column when requested, appended.
type Table struct {
	values
	frame *dataset.Frame
}

// Frame returns the output frame.
func (t *Table) Frame() *dataset.Frame { return t.frame.Copy() }

// MarshalJSON encodes the frame with NaN cells as null.
func (t *Table) MarshalJSON() ([]byte, error) {
	records := t.frame.Records()
	for _, rec := range records {
		for k, v := range rec {
			if f, ok := v.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
				rec[k] = nil
			}
		}
	}
	return json.Marshal(struct {
		Columns   []string         `json:"columns"`
		Rows      []map[string]any `json:"rows"`
		RowErrors []*RowError      `json:"row_errors,omitempty"`
	}{
		Columns:   t.frame.Columns(),
		Rows:      records,
		RowErrors: t.errs,
	})
}

func nullable(xs []float64) []*float64 {
	out := make([]*float64, len(xs))
	for i := range xs {
		if !math.IsNaN(xs[i]) && !math.IsInf(xs[i], 0) {
			out[i] = &xs[i]
		}
	}
	return out
}

func anySlice(xs []float64) []any {
	out := make([]any, len(xs))
	for i, x := range xs {
		out[i] = x
	}
	return out
}

func assemble(shape OutputShape, frame *dataset.Frame, v values) (Result, error) {
	if v.density == nil {
		v.density = []float64{}
	}
	if shape == OutputSeries {
		return &Series{values: v}, nil
	}
	out, err := frame.Copy().WithColumn(ColumnDensity, anySlice(v.density))
	if err != nil {
		return nil, fmt.Errorf("assembling table: %w", err)
	}
	if v.swe != nil {
		if out, err = out.WithColumn(ColumnSWE, anySlice(v.swe)); err != nil {
			return nil, fmt.Errorf("assembling table: %w", err)
		}
	}
	return &Table{values: v, frame: out}, nil
}

// Summary describes the finite densities of a result.
type Summary struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

func summarize(xs []float64) Summary {
	finiteVals := make([]float64, 0, len(xs))
	for _, x := range xs {
		if !math.IsNaN(x) && !math.IsInf(x, 0) {
			finiteVals = append(finiteVals, x)
		}
	}
	s := Summary{Count: len(finiteVals)}
	switch len(finiteVals) {
	case 0:
		return s
	case 1:
		s.Mean = finiteVals[0]
	default:
		s.Mean, s.StdDev = stat.MeanStdDev(finiteVals, nil)
	}
	s.Min = floats.Min(finiteVals)
	s.Max = floats.Max(finiteVals)
	return s
}
