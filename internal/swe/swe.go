// Package swe converts snowpack observations to snow water equivalent (SWE).
// All results are millimetres of water.
package swe

import (
	"fmt"
	"math"

	"snowdensity/internal/types"
)

// FromDensity returns the water equivalent of a snowpack of the given bulk
// density (kg/m³) and depth (m). One kilogram of water per square metre is one
// millimetre.
func FromDensity(densityKgM3, depthM float64) float64 {
	return densityKgM3 * depthM
}

// HillInput holds the predictors of the Hill et al. (2019) regression.
type HillInput struct {
	// DepthMM is snow depth in millimetres.
	DepthMM float64
	// WinterPrecipMM is mean winter (Dec-Feb) precipitation in millimetres.
	WinterPrecipMM float64
	// TempDiffC is the difference between mean warmest- and coldest-month
	// temperatures in degrees Celsius.
	TempDiffC float64
	// Day is the water-year day counted from October 1.
	Day int
}

// Hill et al. (2019) coefficients.
const (
	hillA, hillA1, hillA2, hillA3, hillA4 = 0.0533, 0.9480, 0.1701, -0.1314, 0.2922
	hillB, hillB1, hillB2, hillB3, hillB4 = 0.0481, 1.0395, 0.1699, -0.0461, 0.1804

	// HillPeakDay is the water-year day of peak SWE.
	HillPeakDay = 180
)

// HillComponents returns the accumulation- and ablation-season SWE estimates.
func HillComponents(in HillInput) (acc, abl float64) {
	h, p, td, doy := in.DepthMM, in.WinterPrecipMM, in.TempDiffC, float64(in.Day)
	acc = hillA * math.Pow(h, hillA1) * math.Pow(p, hillA2) * math.Pow(td, hillA3) * math.Pow(doy, hillA4)
	abl = hillB * math.Pow(h, hillB1) * math.Pow(p, hillB2) * math.Pow(td, hillB3) * math.Pow(doy, hillB4)
	return acc, abl
}

// Hill blends the two seasonal estimates with a tanh weight centred on
// HillPeakDay. Inputs that make either estimate non-finite are rejected.
func Hill(in HillInput) (float64, error) {
	if in.DepthMM <= 0 || in.WinterPrecipMM <= 0 || in.TempDiffC <= 0 || in.Day < 1 {
		return 0, types.NewAppErrorWithDetails(types.ErrCodeFeatureInvalidValue,
			fmt.Sprintf("hill inputs must be positive: depth=%v mm pptwt=%v mm td=%v C day=%d",
				in.DepthMM, in.WinterPrecipMM, in.TempDiffC, in.Day), nil,
			map[string]any{"value": fmt.Sprint(in)})
	}
	acc, abl := HillComponents(in)
	if math.IsNaN(acc) || math.IsInf(acc, 0) || math.IsNaN(abl) || math.IsInf(abl, 0) {
		return 0, types.NewAppError(types.ErrCodeFeatureInvalidValue, "hill estimate is not finite", nil)
	}
	w := math.Tanh(0.01 * float64(in.Day-HillPeakDay))
	return acc*0.5*(1-w) + abl*0.5*(1+w), nil
}
