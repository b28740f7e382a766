package timeline

import (
	"encoding/json"
	"testing"
)

func TestNormalizeSeconds_MagnitudeHeuristic(t *testing.T) {
	// Values above 1000 are assumed to be milliseconds.
	if got := NormalizeSeconds(1500, UnitUnknown); got != 1.5 {
		t.Errorf("1500 unknown: expected 1.5, got %v", got)
	}
	if got := NormalizeSeconds(999.9, UnitUnknown); got != 999.9 {
		t.Errorf("999.9 unknown: expected 999.9, got %v", got)
	}
	// Exactly at the threshold stays seconds.
	if got := NormalizeSeconds(1000, UnitUnknown); got != 1000 {
		t.Errorf("1000 unknown: expected 1000, got %v", got)
	}
}

func TestNormalizeSeconds_ExplicitHints(t *testing.T) {
	if got := NormalizeSeconds(1500, UnitMilliseconds); got != 1.5 {
		t.Errorf("ms hint: expected 1.5, got %v", got)
	}
	// A seconds hint bypasses the heuristic even above the threshold.
	if got := NormalizeSeconds(1500, UnitSeconds); got != 1500 {
		t.Errorf("s hint: expected 1500, got %v", got)
	}
	if got := NormalizeSeconds(42.1239, UnitSeconds); got != 42.124 {
		t.Errorf("rounding: expected 42.124, got %v", got)
	}
}

func TestNormalizeSeconds_Idempotent(t *testing.T) {
	// Normalizing an already-normalized timestamp is a no-op.
	for _, v := range []float64{0, 0.001, 1.5, 3.0, 999.999} {
		once := NormalizeSeconds(v, UnitUnknown)
		twice := NormalizeSeconds(once, UnitUnknown)
		if once != twice {
			t.Errorf("normalize(%v) not idempotent: %v != %v", v, once, twice)
		}
	}
}

func TestNumber_Coercion(t *testing.T) {
	cases := []struct {
		in   any
		want float64
		ok   bool
	}{
		{12.5, 12.5, true},
		{7, 7, true},
		{int64(9), 9, true},
		{"3.25", 3.25, true},
		{json.Number("1500"), 1500, true},
		{"not a number", 0, false},
		{nil, 0, false},
		{[]string{"x"}, 0, false},
	}
	for _, c := range cases {
		got, ok := Number(c.in)
		if ok != c.ok || got != c.want {
			t.Errorf("Number(%#v) = (%v, %v), expected (%v, %v)", c.in, got, ok, c.want, c.ok)
		}
	}
}
