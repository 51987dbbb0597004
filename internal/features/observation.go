package features

import "time"

// Observation holds the normalized inputs of one row. Fields a model does not
// consume are left at their zero value.
type Observation struct {
	// DepthM is snow depth in metres.
	DepthM float64
	// Month is the calendar month of the observation.
	Month time.Month
	// ElevationM is site elevation in metres.
	ElevationM float64
	// Class is the snow-classification code.
	Class SnowClass
	// TAvgC, TMinC and TMaxC are air temperatures in degrees Celsius.
	TAvgC, TMinC, TMaxC float64
	// Day is the model-specific day number (calendar, water-year or Sturm).
	Day int
}

// DepthCM returns snow depth in centimetres.
func (o Observation) DepthCM() float64 {
	return Centimetres.FromMetres(o.DepthM)
}
