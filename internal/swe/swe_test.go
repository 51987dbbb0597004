package swe

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snowdensity/internal/dataset"
	"snowdensity/internal/schema"
	"snowdensity/internal/types"
)

func TestFromDensity(t *testing.T) {
	assert.Equal(t, 426.0, FromDensity(284, 1.5))
	assert.Equal(t, 0.0, FromDensity(300, 0))
	assert.True(t, math.IsNaN(FromDensity(math.NaN(), 1)))
}

func TestHillAtPeakAveragesComponents(t *testing.T) {
	in := HillInput{DepthMM: 1500, WinterPrecipMM: 300, TempDiffC: 25, Day: HillPeakDay}
	acc, abl := HillComponents(in)

	got, err := Hill(in)
	require.NoError(t, err)
	assert.InDelta(t, (acc+abl)/2, got, 1e-9)
	assert.Greater(t, got, 0.0)
}

func TestHillWeighting(t *testing.T) {
	early := HillInput{DepthMM: 1000, WinterPrecipMM: 250, TempDiffC: 20, Day: 30}
	acc, abl := HillComponents(early)
	got, err := Hill(early)
	require.NoError(t, err)
	assert.Less(t, math.Abs(got-acc), math.Abs(got-abl), "early season leans on the accumulation fit")

	late := early
	late.Day = 330
	acc, abl = HillComponents(late)
	got, err = Hill(late)
	require.NoError(t, err)
	assert.Less(t, math.Abs(got-abl), math.Abs(got-acc), "late season leans on the ablation fit")
}

func TestHillRejectsNonPositiveInputs(t *testing.T) {
	for _, in := range []HillInput{
		{DepthMM: 0, WinterPrecipMM: 250, TempDiffC: 20, Day: 30},
		{DepthMM: 1000, WinterPrecipMM: -1, TempDiffC: 20, Day: 30},
		{DepthMM: 1000, WinterPrecipMM: 250, TempDiffC: 0, Day: 30},
		{DepthMM: 1000, WinterPrecipMM: 250, TempDiffC: 20, Day: 0},
	} {
		_, err := Hill(in)
		assert.Equal(t, types.ErrCodeFeatureInvalidValue, types.CodeOf(err), "%+v", in)
	}
}

func TestPredictHill(t *testing.T) {
	frame := dataset.FromRecords([]map[string]any{
		{"hs": 100.0, "ppt": 25.0, "td": 20.0, "date": "2021-01-01"},
		{"hs": 100.0, "ppt": 25.0, "td": 20.0, "date": 93},
	})
	b := schema.Bindings{
		schema.RoleSnowDepth:    {Name: "hs", Unit: "cm"},
		schema.RoleWinterPrecip: {Name: "ppt", Unit: "cm"},
		schema.RoleTempDiff:     {Name: "td"},
		schema.RoleDate:         {Name: "date"},
	}

	got, err := PredictHill(context.Background(), frame, b)
	require.NoError(t, err)
	require.Len(t, got, 2)

	want, err := Hill(HillInput{DepthMM: 1000, WinterPrecipMM: 250, TempDiffC: 20, Day: 93})
	require.NoError(t, err)
	assert.InDelta(t, want, got[0], 1e-6)
	assert.Equal(t, got[0], got[1])
}

func TestPredictHillErrors(t *testing.T) {
	frame := dataset.FromRecords([]map[string]any{
		{"hs": 1.0, "ppt": 250.0, "td": 20.0, "date": "2021-01-01"},
		{"hs": 1.0, "ppt": 250.0, "td": -3.0, "date": "2021-01-01"},
	})
	b := schema.Bindings{
		schema.RoleSnowDepth:    {Name: "hs", Unit: "m"},
		schema.RoleWinterPrecip: {Name: "ppt", Unit: "mm"},
		schema.RoleTempDiff:     {Name: "td"},
		schema.RoleDate:         {Name: "date"},
	}

	_, err := PredictHill(context.Background(), frame, b)
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeRowInvalid, types.CodeOf(err))
	assert.True(t, types.IsFeatureError(err))
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 2, appErr.Details["row"])

	b[schema.RoleTempDiff] = schema.Column{Name: "td", Unit: "F"}
	_, err = PredictHill(context.Background(), frame, b)
	assert.Equal(t, types.ErrCodeFeatureInvalidUnit, types.CodeOf(err))

	delete(b, schema.RoleWinterPrecip)
	_, err = PredictHill(context.Background(), frame, b)
	assert.True(t, types.IsSchemaError(err))
}
