// Package booster evaluates gradient boosted regression trees saved in the
// XGBoost JSON model format, and applies the feature preprocessing the trees
// were trained against.
package booster

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrInvalidModel is wrapped by every error Parse returns.
var ErrInvalidModel = errors.New("invalid booster model")

// Objectives whose prediction is the raw margin.
var identityObjectives = map[string]bool{
	"reg:squarederror":     true,
	"reg:linear":           true,
	"reg:absoluteerror":    true,
	"reg:pseudohubererror": true,
	"reg:quantileerror":    true,
}

type tree struct {
	left        []int
	right       []int
	feature     []int
	threshold   []float32
	defaultLeft []bool
}

// Ensemble is a parsed gbtree model.
type Ensemble struct {
	BaseScore  float64
	NumFeature int
	Objective  string
	trees      []tree
}

// NumTrees returns the number of trees in the ensemble.
func (e *Ensemble) NumTrees() int { return len(e.trees) }

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidModel, fmt.Sprintf(format, args...))
}

// Parse reads an XGBoost JSON model (Booster.save_model with a .json suffix).
func Parse(data []byte) (*Ensemble, error) {
	if !gjson.ValidBytes(data) {
		return nil, invalid("not valid JSON")
	}
	learner := gjson.GetBytes(data, "learner")
	if !learner.Exists() {
		return nil, invalid("missing learner")
	}

	if name := learner.Get("gradient_booster.name").String(); name != "gbtree" {
		return nil, invalid("unsupported gradient booster %q", name)
	}
	objective := learner.Get("objective.name").String()
	if !identityObjectives[objective] {
		return nil, invalid("unsupported objective %q", objective)
	}

	params := learner.Get("learner_model_param")
	base, err := parseBaseScore(params.Get("base_score").String())
	if err != nil {
		return nil, err
	}
	numFeature, err := strconv.Atoi(params.Get("num_feature").String())
	if err != nil || numFeature <= 0 {
		return nil, invalid("num_feature %q", params.Get("num_feature").String())
	}

	rawTrees := learner.Get("gradient_booster.model.trees").Array()
	if len(rawTrees) == 0 {
		return nil, invalid("model has no trees")
	}
	e := &Ensemble{
		BaseScore:  base,
		NumFeature: numFeature,
		Objective:  objective,
		trees:      make([]tree, 0, len(rawTrees)),
	}
	for i, rt := range rawTrees {
		t, err := parseTree(rt, numFeature)
		if err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
		e.trees = append(e.trees, t)
	}
	return e, nil
}

// parseBaseScore accepts both "5E-1" and the bracketed "[5E-1]" form written
// by XGBoost 2.x.
func parseBaseScore(s string) (float64, error) {
	s = strings.TrimSpace(strings.Trim(strings.TrimSpace(s), "[]"))
	if i := strings.IndexByte(s, ','); i >= 0 {
		return 0, invalid("multi-target base_score %q", s)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, invalid("base_score %q", s)
	}
	return v, nil
}

func ints(r gjson.Result) []int {
	arr := r.Array()
	out := make([]int, len(arr))
	for i, v := range arr {
		out[i] = int(v.Int())
	}
	return out
}

func parseTree(r gjson.Result, numFeature int) (tree, error) {
	t := tree{
		left:    ints(r.Get("left_children")),
		right:   ints(r.Get("right_children")),
		feature: ints(r.Get("split_indices")),
	}
	for _, v := range r.Get("split_conditions").Array() {
		t.threshold = append(t.threshold, float32(v.Float()))
	}
	for _, v := range r.Get("default_left").Array() {
		t.defaultLeft = append(t.defaultLeft, v.Bool())
	}

	n := len(t.left)
	if n == 0 {
		return t, invalid("empty tree")
	}
	if len(t.right) != n || len(t.feature) != n || len(t.threshold) != n || len(t.defaultLeft) != n {
		return t, invalid("node arrays disagree in length")
	}
	for i := 0; i < n; i++ {
		if t.left[i] == -1 {
			continue
		}
		if t.left[i] <= i || t.left[i] >= n || t.right[i] <= i || t.right[i] >= n {
			return t, invalid("node %d has out-of-range children", i)
		}
		if t.feature[i] < 0 || t.feature[i] >= numFeature {
			return t, invalid("node %d splits on feature %d of %d", i, t.feature[i], numFeature)
		}
	}
	return t, nil
}

// leaf walks the tree for x and returns the leaf value. NaN inputs follow the
// node's default direction. Splits compare in float32, the precision the
// model was trained and serialized at.
func (t *tree) leaf(x []float64) float64 {
	i := 0
	for t.left[i] != -1 {
		v := x[t.feature[i]]
		switch {
		case math.IsNaN(v):
			if t.defaultLeft[i] {
				i = t.left[i]
			} else {
				i = t.right[i]
			}
		case float32(v) < t.threshold[i]:
			i = t.left[i]
		default:
			i = t.right[i]
		}
	}
	return float64(t.threshold[i])
}

// Predict returns the model output for one feature vector.
func (e *Ensemble) Predict(x []float64) (float64, error) {
	if len(x) != e.NumFeature {
		return 0, fmt.Errorf("booster expects %d features, got %d", e.NumFeature, len(x))
	}
	sum := e.BaseScore
	for i := range e.trees {
		sum += e.trees[i].leaf(x)
	}
	return sum, nil
}
