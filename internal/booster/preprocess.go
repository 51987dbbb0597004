package booster

import (
	"fmt"
	"math"
	"strings"
)

// Scaler standardizes numeric features as (x - mean) / scale.
type Scaler struct {
	Features []string  `json:"features"`
	Mean     []float64 `json:"mean"`
	Scale    []float64 `json:"scale"`
}

// Preprocessor turns raw row values into the vector the trees were fit on.
// Categorical features are replaced by their target encoding; numeric
// features listed in the scaler are standardized; anything else passes
// through unchanged.
type Preprocessor struct {
	// TargetEncoding maps feature name to lower-cased label to encoded value.
	TargetEncoding map[string]map[string]float64 `json:"target_encoding"`
	Scaler         Scaler                        `json:"scaler"`
}

// Validate checks the preprocessor against the feature order it will be
// applied to.
func (p *Preprocessor) Validate(order []string) error {
	n := len(p.Scaler.Features)
	if len(p.Scaler.Mean) != n || len(p.Scaler.Scale) != n {
		return fmt.Errorf("scaler has %d features, %d means and %d scales", n, len(p.Scaler.Mean), len(p.Scaler.Scale))
	}
	known := make(map[string]bool, len(order))
	for _, f := range order {
		known[f] = true
	}
	for i, f := range p.Scaler.Features {
		if !known[f] {
			return fmt.Errorf("scaler feature %q is not a model feature", f)
		}
		if p.Scaler.Scale[i] == 0 || math.IsNaN(p.Scaler.Scale[i]) {
			return fmt.Errorf("scaler feature %q has scale %v", f, p.Scaler.Scale[i])
		}
	}
	for f, enc := range p.TargetEncoding {
		if !known[f] {
			return fmt.Errorf("encoded feature %q is not a model feature", f)
		}
		if len(enc) == 0 {
			return fmt.Errorf("encoded feature %q has no categories", f)
		}
	}
	return nil
}

// Transform maps values, aligned with names, to model inputs. Values of
// encoded features must be strings; all others must be float64.
func (p *Preprocessor) Transform(names []string, values []any) ([]float64, error) {
	if len(names) != len(values) {
		return nil, fmt.Errorf("%d feature names for %d values", len(names), len(values))
	}
	out := make([]float64, len(values))
	for i, name := range names {
		if enc, ok := p.TargetEncoding[name]; ok {
			label, isString := values[i].(string)
			if !isString {
				return nil, fmt.Errorf("feature %q expects a label, got %T", name, values[i])
			}
			v, known := enc[strings.ToLower(label)]
			if !known {
				return nil, fmt.Errorf("feature %q has no encoding for %q", name, label)
			}
			out[i] = v
			continue
		}
		v, isFloat := values[i].(float64)
		if !isFloat {
			return nil, fmt.Errorf("feature %q expects a number, got %T", name, values[i])
		}
		out[i] = v
	}
	for j, name := range p.Scaler.Features {
		for i, n := range names {
			if n == name {
				out[i] = (out[i] - p.Scaler.Mean[j]) / p.Scaler.Scale[j]
			}
		}
	}
	return out, nil
}
