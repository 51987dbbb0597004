package density

import (
	"time"

	"snowdensity/internal/features"
)

// SturmParams are the per-class coefficients of the Sturm et al. (2010)
// regression. Densities are in g/cm³.
type SturmParams struct {
	RhoMax, Rho0, K1, K2 float64
}

// sturmParams is Table 4 of Sturm et al. (2010).
var sturmParams = map[features.SnowClass]SturmParams{
	features.Alpine:   {RhoMax: 0.5975, Rho0: 0.2237, K1: 0.0012, K2: 0.0038},
	features.Maritime: {RhoMax: 0.5979, Rho0: 0.2578, K1: 0.0010, K2: 0.0038},
	features.Prairie:  {RhoMax: 0.5940, Rho0: 0.2332, K1: 0.0016, K2: 0.0031},
	features.Tundra:   {RhoMax: 0.3630, Rho0: 0.2425, K1: 0.0029, K2: 0.0049},
	features.Taiga:    {RhoMax: 0.2170, Rho0: 0.2170, K1: 0.0000, K2: 0.0000},
}

// ElevationBand is one of the three elevation classes of Jonas et al. (2009).
type ElevationBand int

const (
	BandLow  ElevationBand = iota // below 1400 m
	BandMid                       // 1400 m up to 2000 m
	BandHigh                      // 2000 m and above
)

// BandFor classifies an elevation in metres.
func BandFor(elevationM float64) ElevationBand {
	switch {
	case elevationM >= 2000:
		return BandHigh
	case elevationM >= 1400:
		return BandMid
	}
	return BandLow
}

func (b ElevationBand) String() string {
	switch b {
	case BandHigh:
		return ">=2000m"
	case BandMid:
		return "[1400,2000)m"
	}
	return "<1400m"
}

// JonasCoefficients give density in kg/m³ as A*h + B with h in metres.
type JonasCoefficients struct {
	A, B float64
}

type jonasKey struct {
	month time.Month
	band  ElevationBand
}

// jonasParams is Table 3 of Jonas et al. (2009). Summer cells without enough
// observations to fit are absent.
var jonasParams = map[jonasKey]JonasCoefficients{
	{time.January, BandHigh}: {A: 52, B: 206},
	{time.January, BandMid}:  {A: 47, B: 208},
	{time.January, BandLow}:  {A: 31, B: 235},

	{time.February, BandHigh}: {A: 46, B: 217},
	{time.February, BandMid}:  {A: 52, B: 218},
	{time.February, BandLow}:  {A: 9, B: 279},

	{time.March, BandHigh}: {A: 26, B: 272},
	{time.March, BandMid}:  {A: 31, B: 281},
	{time.March, BandLow}:  {A: 3, B: 333},

	{time.April, BandHigh}: {A: 9, B: 331},
	{time.April, BandMid}:  {A: 15, B: 354},
	{time.April, BandLow}:  {A: 25, B: 347},

	{time.May, BandHigh}: {A: 21, B: 378},
	{time.May, BandMid}:  {A: 29, B: 409},
	{time.May, BandLow}:  {A: 19, B: 413},

	{time.June, BandHigh}: {A: 8, B: 452},
	{time.July, BandHigh}: {A: 15, B: 470},

	{time.November, BandHigh}: {A: 47, B: 206},
	{time.November, BandMid}:  {A: 35, B: 183},
	{time.November, BandLow}:  {A: 37, B: 149},

	{time.December, BandHigh}: {A: 52, B: 203},
	{time.December, BandMid}:  {A: 47, B: 190},
	{time.December, BandLow}:  {A: 26, B: 201},
}

// pistochiOffset is added to the November-origin water-year day, and
// pistochiBase is the density at that origin, both in kg/m³.
const (
	pistochiBase   = 200
	pistochiOffset = 61
)
