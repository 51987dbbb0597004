// Package features derives model inputs from raw observation values: calendar
// and seasonal day numbers from dates, snow-classification codes from labels,
// month numbers from month names, and deterministic unit conversions.
//
// Every failure is returned as a *types.AppError in the feature_ family so the
// caller can tell a malformed value apart from a missing column.
//
// Day-of-year convention: all day numbers are computed on the proleptic
// Gregorian calendar in UTC and are leap-aware. DayOfYear returns 1..365 in
// common years and 1..366 in leap years; December 31 of a leap year is 366.
// Nothing is clamped or wrapped.
package features
