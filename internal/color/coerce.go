// Package color provides coercion, scale normalization and color space
// conversion for loosely typed sensor readings.
package color

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// unitSuffix lists the characters stripped from the end of string readings.
const unitSuffix = "°% \t\r\n"

// CoerceFloat converts a raw reading to a float64.
// It accepts nil, booleans, all numeric kinds, json.Number and strings.
// Strings are trimmed and trailing degree/percent runs are removed.
// The second return value is false when the input cannot be read as a number.
func CoerceFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case nil:
		return 0, false
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	case float64:
		return finite(v)
	case float32:
		return finite(float64(v))
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case json.Number:
		return parseNumber(string(v))
	case string:
		return parseNumber(v)
	case fmt.Stringer:
		return parseNumber(v.String())
	default:
		return parseNumber(fmt.Sprint(v))
	}
}

func parseNumber(s string) (float64, bool) {
	s = strings.TrimRight(strings.TrimSpace(s), unitSuffix)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return finite(f)
}

// NaN cannot be clamped meaningfully, so it is treated as unreadable.
func finite(f float64) (float64, bool) {
	if math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// Clamp limits x to [lo, hi].
func Clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}

// hasSymbol reports whether a string reading carries the given unit symbol.
func hasSymbol(raw any, symbol string) bool {
	s, ok := raw.(string)
	return ok && strings.Contains(s, symbol)
}
