package features

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// IsNull reports whether v should be treated as a missing value: nil, NaN,
// blank strings and nil pointers.
func IsNull(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case float64:
		return math.IsNaN(x)
	case float32:
		return math.IsNaN(float64(x))
	case string:
		return strings.TrimSpace(x) == ""
	case json.Number:
		return strings.TrimSpace(string(x)) == ""
	case *float64:
		return x == nil || math.IsNaN(*x)
	case *string:
		return x == nil || strings.TrimSpace(*x) == ""
	case *time.Time:
		return x == nil
	}
	return false
}

// Float coerces a numeric value (any Go number, json.Number or numeric string)
// to float64.
func Float(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	case *float64:
		if x == nil {
			return 0, false
		}
		return *x, true
	}
	return 0, false
}

// Whole coerces v to an integer, rejecting values with a fractional part.
func Whole(v any) (int, bool) {
	f, ok := Float(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

// IsNumeric reports whether v can be coerced by Float.
func IsNumeric(v any) bool {
	_, ok := Float(v)
	return ok
}

// IsDateLike reports whether v could hold a date: a time value, a non-blank
// string, or a whole day number. Whether a string actually parses is decided
// by ParseDate at derivation time.
func IsDateLike(v any) bool {
	switch x := v.(type) {
	case time.Time, *time.Time:
		return true
	case string:
		return strings.TrimSpace(x) != ""
	}
	_, ok := Whole(v)
	return ok
}

// IsCategorical reports whether v is a textual label.
func IsCategorical(v any) bool {
	switch v.(type) {
	case string, *string:
		return true
	}
	return false
}
