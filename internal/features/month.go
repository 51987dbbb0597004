package features

import (
	"strings"
	"time"

	"snowdensity/internal/types"
)

var monthNames = map[string]time.Month{}

func init() {
	for m := time.January; m <= time.December; m++ {
		full := strings.ToLower(m.String())
		monthNames[full] = m
		monthNames[full[:3]] = m
	}
	monthNames["sept"] = time.September
}

// ParseMonth resolves a month from a number (1-12), an English month name or
// three-letter abbreviation, or a date.
func ParseMonth(v any) (time.Month, error) {
	switch x := v.(type) {
	case time.Time:
		return x.UTC().Month(), nil
	case string:
		s := strings.ToLower(strings.TrimSpace(x))
		if m, ok := monthNames[s]; ok {
			return m, nil
		}
		if _, numeric := Float(s); numeric {
			break
		}
		t, err := ParseDate(x)
		if err != nil {
			return 0, featureError(types.ErrCodeFeatureInvalidMonth, v,
				"cannot interpret %q as a month", x)
		}
		return t.Month(), nil
	}
	n, ok := Whole(v)
	if !ok {
		return 0, featureError(types.ErrCodeFeatureInvalidMonth, v,
			"cannot interpret %v as a month", v)
	}
	if n < 1 || n > 12 {
		return 0, featureError(types.ErrCodeFeatureInvalidMonth, v,
			"month must be between 1 and 12, got %d", n)
	}
	return time.Month(n), nil
}

// IsMonthLike reports whether v could hold a month.
func IsMonthLike(v any) bool {
	return IsDateLike(v)
}
