package booster

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Two stumps over two features:
//
//	tree 0: x0 < 0.5 ? 10 : 20 (missing goes left)
//	tree 1: x1 < 100 ? -1 : 3  (missing goes right)
const twoStumps = `{
  "learner": {
    "learner_model_param": {"base_score": "[2.5E2]", "num_feature": "2"},
    "objective": {"name": "reg:squarederror"},
    "gradient_booster": {
      "name": "gbtree",
      "model": {
        "trees": [
          {"left_children": [1, -1, -1], "right_children": [2, -1, -1],
           "split_indices": [0, 0, 0], "split_conditions": [0.5, 10, 20],
           "default_left": [1, 0, 0]},
          {"left_children": [1, -1, -1], "right_children": [2, -1, -1],
           "split_indices": [1, 0, 0], "split_conditions": [100, -1, 3],
           "default_left": [false, false, false]}
        ]
      }
    }
  }
}`

func TestEnsemblePredict(t *testing.T) {
	e, err := Parse([]byte(twoStumps))
	require.NoError(t, err)
	assert.Equal(t, 2, e.NumTrees())
	assert.Equal(t, 250.0, e.BaseScore)

	tests := []struct {
		x    []float64
		want float64
	}{
		{[]float64{0, 0}, 250 + 10 - 1},
		{[]float64{1, 0}, 250 + 20 - 1},
		{[]float64{0.5, 100}, 250 + 20 + 3},
		{[]float64{math.NaN(), math.NaN()}, 250 + 10 + 3},
	}
	for _, tt := range tests {
		got, err := e.Predict(tt.x)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%v", tt.x)
	}

	_, err = e.Predict([]float64{1})
	assert.Error(t, err)
}

// XGBoost writes float32 split conditions with nine significant digits; an
// input equal to the cut value must still go right.
const float32Cut = `{
  "learner": {
    "learner_model_param": {"base_score": "0", "num_feature": "1"},
    "objective": {"name": "reg:squarederror"},
    "gradient_booster": {
      "name": "gbtree",
      "model": {
        "trees": [
          {"left_children": [1, -1, -1], "right_children": [2, -1, -1],
           "split_indices": [0, 0, 0], "split_conditions": [0.100000001, 1, 2],
           "default_left": [0, 0, 0]}
        ]
      }
    }
  }
}`

func TestEnsembleSplitsAtFloat32Precision(t *testing.T) {
	e, err := Parse([]byte(float32Cut))
	require.NoError(t, err)

	tests := []struct {
		x    float64
		want float64
	}{
		{0.1, 2},
		{0.0999, 1},
		{0.2, 2},
	}
	for _, tt := range tests {
		got, err := e.Predict([]float64{tt.x})
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "x=%v", tt.x)
	}
}

func TestParseRejectsMalformedModels(t *testing.T) {
	tests := map[string]string{
		"not json":      `{"learner":`,
		"no learner":    `{"version": [2, 0, 0]}`,
		"dart booster":  `{"learner":{"gradient_booster":{"name":"dart"},"objective":{"name":"reg:squarederror"}}}`,
		"classifier":    `{"learner":{"gradient_booster":{"name":"gbtree"},"objective":{"name":"binary:logistic"}}}`,
		"no trees":      `{"learner":{"learner_model_param":{"base_score":"0","num_feature":"1"},"gradient_booster":{"name":"gbtree","model":{"trees":[]}},"objective":{"name":"reg:squarederror"}}}`,
		"bad split idx": `{"learner":{"learner_model_param":{"base_score":"0","num_feature":"1"},"gradient_booster":{"name":"gbtree","model":{"trees":[{"left_children":[1,-1,-1],"right_children":[2,-1,-1],"split_indices":[4,0,0],"split_conditions":[1,2,3],"default_left":[0,0,0]}]}},"objective":{"name":"reg:squarederror"}}}`,
		"ragged tree":   `{"learner":{"learner_model_param":{"base_score":"0","num_feature":"1"},"gradient_booster":{"name":"gbtree","model":{"trees":[{"left_children":[1,-1,-1],"right_children":[2,-1],"split_indices":[0,0,0],"split_conditions":[1,2,3],"default_left":[0,0,0]}]}},"objective":{"name":"reg:squarederror"}}}`,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidModel)
		})
	}
}

func TestPreprocessorTransform(t *testing.T) {
	p := &Preprocessor{
		TargetEncoding: map[string]map[string]float64{
			"snow_class": {"alpine": 310, "taiga": 220},
		},
		Scaler: Scaler{
			Features: []string{"snow_depth", "doy"},
			Mean:     []float64{1, 100},
			Scale:    []float64{0.5, 50},
		},
	}
	names := []string{"snow_class", "snow_depth", "doy"}
	require.NoError(t, p.Validate(names))

	out, err := p.Transform(names, []any{"Taiga", 2.0, 150.0})
	require.NoError(t, err)
	assert.Equal(t, []float64{220, 2, 1}, out)

	_, err = p.Transform(names, []any{"maritime", 2.0, 150.0})
	assert.Error(t, err)
	_, err = p.Transform(names, []any{"alpine", "2", 150.0})
	assert.Error(t, err)

	bad := *p
	bad.Scaler.Scale = []float64{0, 1}
	assert.Error(t, bad.Validate(names))
	assert.Error(t, p.Validate([]string{"snow_class"}))
}
