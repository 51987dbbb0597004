package features

import (
	"strings"

	"snowdensity/internal/types"
)

// LengthUnit is the declared unit of a depth column.
type LengthUnit string

const (
	Metres      LengthUnit = "m"
	Centimetres LengthUnit = "cm"
	Millimetres LengthUnit = "mm"
	Inches      LengthUnit = "in"
	Feet        LengthUnit = "ft"
)

var metresPer = map[LengthUnit]float64{
	Metres:      1,
	Centimetres: 0.01,
	Millimetres: 0.001,
	Inches:      0.0254,
	Feet:        0.3048,
}

var lengthAliases = map[string]LengthUnit{
	"m": Metres, "meter": Metres, "meters": Metres, "metre": Metres, "metres": Metres,
	"cm": Centimetres, "centimeter": Centimetres, "centimeters": Centimetres, "centimetre": Centimetres, "centimetres": Centimetres,
	"mm": Millimetres, "millimeter": Millimetres, "millimeters": Millimetres, "millimetre": Millimetres, "millimetres": Millimetres,
	"in": Inches, "inch": Inches, "inches": Inches,
	"ft": Feet, "foot": Feet, "feet": Feet,
}

// ParseLengthUnit resolves a unit symbol or name.
func ParseLengthUnit(s string) (LengthUnit, error) {
	if u, ok := lengthAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return u, nil
	}
	return "", featureError(types.ErrCodeFeatureInvalidUnit, s,
		"unknown length unit %q (valid: m, cm, mm, in, ft)", s)
}

// ToMetres converts v from u to metres.
func (u LengthUnit) ToMetres(v float64) float64 {
	return v * metresPer[u]
}

// FromMetres converts v metres into u.
func (u LengthUnit) FromMetres(v float64) float64 {
	return v / metresPer[u]
}

// Convert converts v between two length units.
func Convert(v float64, from, to LengthUnit) float64 {
	return to.FromMetres(from.ToMetres(v))
}

// InchesTo converts inches into the target unit.
func InchesTo(v float64, to LengthUnit) float64 {
	return Convert(v, Inches, to)
}

// FeetToMetres converts feet to metres.
func FeetToMetres(v float64) float64 {
	return Feet.ToMetres(v)
}

// TemperatureUnit is the declared unit of a temperature column.
type TemperatureUnit string

const (
	Celsius    TemperatureUnit = "C"
	Fahrenheit TemperatureUnit = "F"
)

// ParseTemperatureUnit resolves a temperature unit. An empty string means
// Celsius.
func ParseTemperatureUnit(s string) (TemperatureUnit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "c", "degc", "celsius":
		return Celsius, nil
	case "f", "degf", "fahrenheit":
		return Fahrenheit, nil
	}
	return "", featureError(types.ErrCodeFeatureInvalidUnit, s,
		"unknown temperature unit %q (valid: C, F)", s)
}

// ToCelsius converts v from u to degrees Celsius.
func (u TemperatureUnit) ToCelsius(v float64) float64 {
	if u == Fahrenheit {
		return FahrenheitToCelsius(v)
	}
	return v
}

// FromCelsius converts v in degrees Celsius to u.
func (u TemperatureUnit) FromCelsius(v float64) float64 {
	if u == Fahrenheit {
		return v*9/5 + 32
	}
	return v
}

// FahrenheitToCelsius converts degrees Fahrenheit to degrees Celsius.
func FahrenheitToCelsius(f float64) float64 {
	return (f - 32) * 5 / 9
}
