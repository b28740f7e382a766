package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoJSONArray reports that no well-formed JSON array could be located in
// the model output.
var ErrNoJSONArray = errors.New("no JSON array found in model output")

// ExtractJSONArray locates the first well-formed JSON array in model output.
// Handles prose wrapping, markdown code fences, and truncated output (the
// array is closed at the last complete element). The result is valid JSON.
func ExtractJSONArray(s string) (string, error) {
	t := strings.TrimSpace(s)
	if t == "" {
		return "", ErrNoJSONArray
	}

	// Strip markdown code fences.
	if strings.HasPrefix(t, "```") {
		if i := strings.Index(t, "\n"); i >= 0 {
			t = t[i+1:]
		}
		if j := strings.LastIndex(t, "```"); j >= 0 {
			t = t[:j]
		}
		t = strings.TrimSpace(t)
	}

	start := strings.Index(t, "[")
	if start < 0 {
		return "", ErrNoJSONArray
	}

	end, lastComplete := matchArray(t, start)
	if end >= 0 {
		candidate := t[start : end+1]
		if json.Valid([]byte(candidate)) {
			return candidate, nil
		}
		return "", fmt.Errorf("%w: array at offset %d is malformed", ErrNoJSONArray, start)
	}

	// Truncated mid-stream: salvage the complete leading elements.
	if lastComplete > start {
		candidate := t[start:lastComplete+1] + "]"
		if json.Valid([]byte(candidate)) {
			return candidate, nil
		}
	}
	if salvage := t[start:] + "]"; json.Valid([]byte(salvage)) {
		return salvage, nil
	}

	return "", fmt.Errorf("%w: array at offset %d is truncated beyond repair", ErrNoJSONArray, start)
}

// matchArray walks the array opening at start, respecting strings and
// escapes. Returns the index of the matching ']' (or -1 if input ends
// first) and the index of the last byte that closed a complete top-level
// element.
func matchArray(s string, start int) (end, lastComplete int) {
	depth := 0
	inString := false
	escaped := false
	lastComplete = -1

	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '[', '{':
			depth++
		case ']', '}':
			depth--
			if depth == 0 && c == ']' {
				return i, lastComplete
			}
			if depth == 1 {
				lastComplete = i
			}
		}
	}
	return -1, lastComplete
}
