package density

import (
	"context"
	"math"

	"snowdensity/internal/dataset"
	"snowdensity/internal/features"
	"snowdensity/internal/schema"
	"snowdensity/internal/types"
)

// Sturm implements the Sturm et al. (2010) class-based regression.
type Sturm struct{ *engine }

// NewSturm returns the Sturm model.
func NewSturm(opts Options) *Sturm {
	return &Sturm{newEngine(variant{
		name: NameSturm,
		reqs: []schema.Requirement{
			{Role: schema.RoleDate, Kind: schema.DateLike},
			{Role: schema.RoleSnowClass, Kind: schema.Categorical},
			{Role: schema.RoleSnowDepth, Kind: schema.Numeric, Unit: true},
		},
		days:      features.SturmDays,
		vocab:     features.SturmVocabulary,
		estimator: constant(sturmDensity),
	}, opts)}
}

// Predict runs the model with typed column bindings.
func (m *Sturm) Predict(ctx context.Context, frame *dataset.Frame, cols SturmColumns, opts ...PredictOption) (Result, error) {
	b, err := bindingsOf(m.name, cols)
	if err != nil {
		return nil, err
	}
	return m.PredictBindings(ctx, frame, b, opts...)
}

func sturmDensity(o features.Observation) (float64, error) {
	p, ok := sturmParams[o.Class]
	if !ok {
		return 0, types.NewAppError(types.ErrCodeFeatureUnknownSnowClass,
			"no Sturm parameters for snow class "+o.Class.String(), nil)
	}
	rho := (p.RhoMax-p.Rho0)*(1-math.Exp(-p.K1*o.DepthCM()-p.K2*float64(o.Day))) + p.Rho0
	return rho * 1000, nil
}

// constant adapts a pure estimator to the per-call acquisition step.
func constant(est Estimator) func(context.Context) (Estimator, error) {
	return func(context.Context) (Estimator, error) { return est, nil }
}
