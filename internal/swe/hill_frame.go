package swe

import (
	"context"
	"fmt"
	"strings"
	"time"

	"snowdensity/internal/dataset"
	"snowdensity/internal/features"
	"snowdensity/internal/schema"
	"snowdensity/internal/types"
)

// HillModelName identifies the Hill regression in errors and metrics.
const HillModelName = "hill"

// HillRequirements lists the inputs of PredictHill. The date is read as a
// water-year day from October 1.
var HillRequirements = []schema.Requirement{
	{Role: schema.RoleSnowDepth, Kind: schema.Numeric, Unit: true},
	{Role: schema.RoleWinterPrecip, Kind: schema.Numeric, Unit: true},
	{Role: schema.RoleTempDiff, Kind: schema.Numeric},
	{Role: schema.RoleDate, Kind: schema.DateLike},
}

var hillDays = features.WaterYearDays(time.October)

// PredictHill evaluates the Hill regression for every row of frame and
// returns SWE in millimetres. The first failing row aborts the call with a
// row_invalid error naming it.
func PredictHill(_ context.Context, frame *dataset.Frame, b schema.Bindings) ([]float64, error) {
	if err := schema.Validate(HillModelName, frame, b, HillRequirements); err != nil {
		return nil, err
	}
	depthUnit, err := features.ParseLengthUnit(b[schema.RoleSnowDepth].Unit)
	if err != nil {
		return nil, err
	}
	precipUnit, err := features.ParseLengthUnit(b[schema.RoleWinterPrecip].Unit)
	if err != nil {
		return nil, err
	}
	if u := strings.TrimSpace(b[schema.RoleTempDiff].Unit); u != "" && !strings.EqualFold(u, "C") {
		return nil, types.NewAppError(types.ErrCodeFeatureInvalidUnit,
			fmt.Sprintf("temperature difference must be in C, got %q", u), nil)
	}

	out := make([]float64, frame.Len())
	for i := range out {
		in, err := hillRow(frame, i, b, depthUnit, precipUnit)
		if err == nil {
			out[i], err = Hill(in)
		}
		if err != nil {
			return nil, types.NewAppErrorWithDetails(types.ErrCodeRowInvalid,
				fmt.Sprintf("row %d: %v", i+1, err), err, map[string]any{"row": i + 1})
		}
	}
	return out, nil
}

func hillRow(frame *dataset.Frame, i int, b schema.Bindings, depthUnit, precipUnit features.LengthUnit) (HillInput, error) {
	var in HillInput
	depth, ok := features.Float(frame.Value(i, b[schema.RoleSnowDepth].Name))
	if !ok {
		return in, types.NewAppError(types.ErrCodeFeatureInvalidValue, "snow depth is not a number", nil)
	}
	precip, ok := features.Float(frame.Value(i, b[schema.RoleWinterPrecip].Name))
	if !ok {
		return in, types.NewAppError(types.ErrCodeFeatureInvalidValue, "winter precipitation is not a number", nil)
	}
	td, ok := features.Float(frame.Value(i, b[schema.RoleTempDiff].Name))
	if !ok {
		return in, types.NewAppError(types.ErrCodeFeatureInvalidValue, "temperature difference is not a number", nil)
	}
	day, err := hillDays.Day(frame.Value(i, b[schema.RoleDate].Name))
	if err != nil {
		return in, err
	}
	in.DepthMM = features.Convert(depth, depthUnit, features.Millimetres)
	in.WinterPrecipMM = features.Convert(precip, precipUnit, features.Millimetres)
	in.TempDiffC = td
	in.Day = day
	return in, nil
}
