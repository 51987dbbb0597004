package density

import (
	"context"
	"time"

	"snowdensity/internal/dataset"
	"snowdensity/internal/features"
	"snowdensity/internal/schema"
)

// Pistochi implements the Pistocchi (2016) linear day-of-season model.
type Pistochi struct{ *engine }

// NewPistochi returns the Pistochi model. Its day feature counts from
// November 1.
func NewPistochi(opts Options) *Pistochi {
	return &Pistochi{newEngine(variant{
		name: NamePistochi,
		reqs: []schema.Requirement{
			{Role: schema.RoleDate, Kind: schema.DateLike},
		},
		days:      features.WaterYearDays(time.November),
		estimator: constant(pistochiDensity),
	}, opts)}
}

// Predict runs the model with typed column bindings.
func (m *Pistochi) Predict(ctx context.Context, frame *dataset.Frame, cols PistochiColumns, opts ...PredictOption) (Result, error) {
	b, err := bindingsOf(m.name, cols)
	if err != nil {
		return nil, err
	}
	return m.PredictBindings(ctx, frame, b, opts...)
}

func pistochiDensity(o features.Observation) (float64, error) {
	return float64(pistochiBase + o.Day + pistochiOffset), nil
}
