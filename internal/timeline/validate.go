package timeline

import "fmt"

// RawSegment is a segment as received from a transcript source, before any
// validation. Start and End are loosely typed because providers disagree on
// shape (number vs string) and unit (seconds vs milliseconds).
type RawSegment struct {
	ID         string
	Text       string
	Start      any
	End        any
	Confidence *float64
	Speaker    string
	Words      []RawWord
}

// RawWord is an unvalidated word-level timestamp.
type RawWord struct {
	Text  string
	Start any
	End   any
}

// Diagnostic records a correction applied during validation. Corrections are
// observability data, not failures: no segment issue fails a transcription.
type Diagnostic struct {
	Kind    string `json:"kind"` // "clamped", "repaired", "missing-field"
	Index   int    `json:"index"`
	Field   string `json:"field"`
	Detail  string `json:"detail,omitempty"`
}

const (
	DiagClamped      = "clamped"
	DiagRepaired     = "repaired"
	DiagMissingField = "missing-field"
)

// ValidateSegments normalizes and repairs raw segments in order. The result
// always has the same length as the input: invalid segments are repaired in
// place, never dropped, so positional indices stay stable for word
// correlation and display.
//
// mediaDuration, when > 0, is the known duration of the containing media;
// segment ends beyond it are clamped. hint selects timestamp unit handling.
func ValidateSegments(raw []RawSegment, mediaDuration float64, hint Unit) ([]Segment, []Diagnostic) {
	segments := make([]Segment, len(raw))
	var diags []Diagnostic
	seen := make(map[string]bool, len(raw))

	for i, rs := range raw {
		start, end, d := normalizeBounds(i, rs.Start, rs.End, hint)
		diags = append(diags, d...)

		// Clamp to known media duration. If clamping inverts the segment,
		// keep it as a zero-duration marker so indices downstream stay valid.
		if mediaDuration > 0 && end > mediaDuration {
			end = Round3(mediaDuration)
			diags = append(diags, Diagnostic{Kind: DiagClamped, Index: i, Field: "end",
				Detail: fmt.Sprintf("end clamped to media duration %.3f", mediaDuration)})
			if end <= start {
				start = end
			}
		}

		id := rs.ID
		if id == "" || seen[id] {
			id = fmt.Sprintf("segment-%d", i)
		}
		seen[id] = true

		segments[i] = Segment{
			ID:         id,
			Text:       rs.Text,
			Start:      start,
			End:        end,
			Duration:   Round3(end - start),
			Confidence: rs.Confidence,
			Speaker:    rs.Speaker,
			Words:      validateWords(rs.Words, hint),
		}
	}

	return segments, diags
}

// normalizeBounds applies §4.1 semantics to one start/end pair:
// missing or non-numeric start becomes 0, missing end becomes start+1,
// and an inverted range is repaired with a one-second floor.
func normalizeBounds(idx int, rawStart, rawEnd any, hint Unit) (float64, float64, []Diagnostic) {
	var diags []Diagnostic

	start := 0.0
	if v, ok := Number(rawStart); ok {
		start = NormalizeSeconds(v, hint)
	} else {
		diags = append(diags, Diagnostic{Kind: DiagMissingField, Index: idx, Field: "start"})
	}
	if start < 0 {
		start = 0
		diags = append(diags, Diagnostic{Kind: DiagRepaired, Index: idx, Field: "start", Detail: "negative start reset to 0"})
	}

	end := start + 1
	if v, ok := Number(rawEnd); ok {
		end = NormalizeSeconds(v, hint)
	} else {
		diags = append(diags, Diagnostic{Kind: DiagMissingField, Index: idx, Field: "end"})
	}

	if end <= start {
		end = start + 1
		diags = append(diags, Diagnostic{Kind: DiagRepaired, Index: idx, Field: "end", Detail: "end <= start, floored to start+1"})
	}

	return start, end, diags
}

// validateWords normalizes word timestamps without repair diagnostics; words
// are advisory sub-segment data and malformed entries are simply dropped.
func validateWords(raw []RawWord, hint Unit) []WordSpan {
	if len(raw) == 0 {
		return nil
	}
	words := make([]WordSpan, 0, len(raw))
	for _, rw := range raw {
		ws, okS := Number(rw.Start)
		we, okE := Number(rw.End)
		if !okS || !okE || rw.Text == "" {
			continue
		}
		start := NormalizeSeconds(ws, hint)
		end := NormalizeSeconds(we, hint)
		if end <= start {
			continue
		}
		words = append(words, WordSpan{Text: rw.Text, Start: start, End: end})
	}
	return words
}
