package density

import (
	"context"
	"fmt"
	"time"

	"snowdensity/internal/dataset"
	"snowdensity/internal/features"
	"snowdensity/internal/schema"
	"snowdensity/internal/types"
)

// Jonas implements the Jonas et al. (2009) month and elevation regression.
type Jonas struct{ *engine }

// NewJonas returns the Jonas model.
func NewJonas(opts Options) *Jonas {
	return &Jonas{newEngine(variant{
		name: NameJonas,
		reqs: []schema.Requirement{
			{Role: schema.RoleSnowDepth, Kind: schema.Numeric, Unit: true},
			{Role: schema.RoleMonth, Kind: schema.MonthLike},
			{Role: schema.RoleElevation, Kind: schema.Numeric},
		},
		estimator: constant(jonasDensity),
	}, opts)}
}

// Predict runs the model with typed column bindings.
func (m *Jonas) Predict(ctx context.Context, frame *dataset.Frame, cols JonasColumns, opts ...PredictOption) (Result, error) {
	b, err := bindingsOf(m.name, cols)
	if err != nil {
		return nil, err
	}
	return m.PredictBindings(ctx, frame, b, opts...)
}

// JonasCoefficientsFor returns the fitted coefficients for a month and band.
// ok is false for cells the regression was not calibrated on.
func JonasCoefficientsFor(month time.Month, band ElevationBand) (JonasCoefficients, bool) {
	c, ok := jonasParams[jonasKey{month: month, band: band}]
	return c, ok
}

func jonasDensity(o features.Observation) (float64, error) {
	band := BandFor(o.ElevationM)
	c, ok := JonasCoefficientsFor(o.Month, band)
	if !ok {
		return 0, types.NewAppErrorWithDetails(types.ErrCodeRowOutOfCalibration,
			fmt.Sprintf("no Jonas coefficients for %s at %s", o.Month, band), nil,
			map[string]any{"month": o.Month.String(), "elevation_band": band.String()})
	}
	return c.A*o.DepthM + c.B, nil
}
