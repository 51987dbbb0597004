package features

import (
	"strings"
	"time"

	"snowdensity/internal/types"
)

// dateLayouts are tried in order by ParseDate.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006/01/02",
	"01/02/2006",
	"2006-01-02 15:04:05Z07:00",
}

// ParseDate converts a time value or date string into a UTC time.
// Timezone-aware inputs are converted to UTC; naive inputs are read as UTC.
func ParseDate(v any) (time.Time, error) {
	switch x := v.(type) {
	case time.Time:
		return x.UTC(), nil
	case *time.Time:
		if x != nil {
			return x.UTC(), nil
		}
	case string:
		s := strings.TrimSpace(x)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), nil
			}
		}
		return time.Time{}, featureError(types.ErrCodeFeatureInvalidDate, v,
			"cannot parse %q as a date", s)
	}
	return time.Time{}, featureError(types.ErrCodeFeatureInvalidDate, v,
		"unsupported date value of type %T", v)
}

// midnight truncates t to the start of its UTC day.
func midnight(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// daysBetween returns the whole number of days from ref to t, both truncated
// to UTC midnight.
func daysBetween(ref, t time.Time) int {
	return int(midnight(t).Sub(midnight(ref)).Hours() / 24)
}

// DayOfYear returns the leap-aware calendar day of t: January 1 is 1 and
// December 31 is 365, or 366 in a leap year.
func DayOfYear(t time.Time) int {
	return t.UTC().YearDay()
}

// WaterYearDay returns the 1-based day of t within the water year starting on
// the first day of origin. With origin October, October 1 is day 1 and
// September 30 is day 365 (366 when the water year spans February 29).
func WaterYearDay(t time.Time, origin time.Month) int {
	t = t.UTC()
	year := t.Year()
	if t.Month() < origin {
		year--
	}
	start := time.Date(year, origin, 1, 0, 0, 0, 0, time.UTC)
	return daysBetween(start, t) + 1
}

// Sturm season bounds. Day numbers run from -92 (October 1) to 181 (June 30),
// or 182 in a leap year; there is no day zero.
const (
	SturmMinDay = -92
	SturmMaxDay = 182
)

// SturmDay returns the day number used by the Sturm et al. (2010) regression:
// January 1 is 1 and days before it count back from -1 (December 31) to -92
// (October 1). Dates from July through September fall outside the calibrated
// season and are rejected.
func SturmDay(t time.Time) (int, error) {
	t = t.UTC()
	if t.Month() >= time.July && t.Month() < time.October {
		return 0, featureError(types.ErrCodeFeatureOutOfSeason, t.Format("2006-01-02"),
			"date %s is outside the October-June season", t.Format("2006-01-02"))
	}
	year := t.Year()
	if t.Month() >= time.October {
		year++
	}
	day := daysBetween(time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC), t)
	if day >= 0 {
		day++
	}
	return day, nil
}

// DayConvention selects how a date-like value becomes a day number.
type DayConvention struct {
	// Name is used in error messages.
	Name string
	// FromDate converts a parsed date.
	FromDate func(time.Time) (int, error)
	// Min and Max bound day numbers supplied directly as integers.
	Min, Max int
}

// CalendarDays is the plain calendar day-of-year convention: leap-aware,
// Jan 1 = 1 and Dec 31 = 365 or 366, never clamped or wrapped. None of the
// density models reads days this way; each uses WaterYearDays or SturmDays.
// It is the reference for the calendar definition of day of year and for
// callers that need to turn their own day columns into numbers.
var CalendarDays = DayConvention{
	Name:     "calendar",
	FromDate: func(t time.Time) (int, error) { return DayOfYear(t), nil },
	Min:      1,
	Max:      366,
}

// WaterYearDays returns the convention counting from the first of origin.
func WaterYearDays(origin time.Month) DayConvention {
	return DayConvention{
		Name:     "water-year(" + origin.String() + ")",
		FromDate: func(t time.Time) (int, error) { return WaterYearDay(t, origin), nil },
		Min:      1,
		Max:      366,
	}
}

// SturmDays is the Sturm et al. (2010) season convention.
var SturmDays = DayConvention{
	Name:     "sturm",
	FromDate: SturmDay,
	Min:      SturmMinDay,
	Max:      SturmMaxDay,
}

// Day derives a day number from a date-like value. Whole numbers are taken as
// day numbers already expressed in this convention and must fall within
// [Min, Max]; numeric strings count as numbers. Anything else is parsed as a
// date.
func (c DayConvention) Day(v any) (int, error) {
	if _, isTime := v.(time.Time); !isTime {
		if f, ok := Float(v); ok {
			day, whole := Whole(f)
			if !whole {
				return 0, featureError(types.ErrCodeFeatureDayOutOfRange, v,
					"day number must be a whole number, got %v", f)
			}
			if day < c.Min || day > c.Max {
				return 0, featureError(types.ErrCodeFeatureDayOutOfRange, v,
					"%s day must be between %d and %d, got %d", c.Name, c.Min, c.Max, day)
			}
			if c.Min < 0 && day == 0 {
				return 0, featureError(types.ErrCodeFeatureDayOutOfRange, v,
					"%s day numbering has no day 0", c.Name)
			}
			return day, nil
		}
	}
	t, err := ParseDate(v)
	if err != nil {
		return 0, err
	}
	return c.FromDate(t)
}
