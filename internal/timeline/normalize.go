package timeline

import (
	"encoding/json"
	"math"
	"strconv"
)

// Unit is a hint about the denomination of a raw timestamp value.
type Unit int

const (
	// UnitUnknown applies the magnitude heuristic: values above 1000 are
	// treated as milliseconds. Providers mix units, so this is the default.
	UnitUnknown Unit = iota
	UnitSeconds
	UnitMilliseconds
)

// msThreshold is the magnitude above which an unknown-unit value is assumed
// to be milliseconds. A genuine >1000s timestamp would misclassify; kept for
// compatibility with upstream ASR and caption conventions. Replace with
// explicit unit tags if providers ever normalize their reporting.
const msThreshold = 1000

// NormalizeSeconds converts a raw timestamp to seconds rounded to 3 decimal
// places. Pure function, never fails.
func NormalizeSeconds(v float64, hint Unit) float64 {
	switch hint {
	case UnitMilliseconds:
		return Round3(v / 1000)
	case UnitSeconds:
		return Round3(v)
	default:
		if v > msThreshold {
			return Round3(v / 1000)
		}
		return Round3(v)
	}
}

// Number coerces a loosely-typed JSON value into a float64. Handles the
// shapes seen in provider and LLM output: numbers, json.Number, numeric
// strings, and integers. Returns false for anything else (including nil).
func Number(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// Round3 rounds to 3 decimal places (internal segment precision).
func Round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// Round2 rounds to 2 decimal places (output clip precision).
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
