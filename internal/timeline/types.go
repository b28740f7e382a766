package timeline

// WordSpan is a single timestamped word within a segment.
type WordSpan struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Segment is a validated, time-bounded span of transcript text.
// All times are seconds rounded to 3 decimal places.
type Segment struct {
	ID         string     `json:"id"`
	Text       string     `json:"text"`
	Start      float64    `json:"start"`
	End        float64    `json:"end"`
	Duration   float64    `json:"duration"`
	Confidence *float64   `json:"confidence,omitempty"`
	Speaker    string     `json:"speaker,omitempty"`
	Words      []WordSpan `json:"words,omitempty"`
}

// Transcript is the assembled result of one transcription run:
// the full ordered segment list plus derived text and duration.
type Transcript struct {
	Text     string    `json:"text"`
	Language string    `json:"language"`
	Duration float64   `json:"duration"`
	Segments []Segment `json:"segments"`
}

// ClipCandidate is a proposed extraction range before scheduling.
// Produced by the LLM boundary or manual selection; every field is
// untrusted and revalidated by Schedule.
type ClipCandidate struct {
	SourceID string  `json:"sourceId"`
	Start    float64 `json:"startTime"`
	End      float64 `json:"endTime"`
	Text     string  `json:"transcriptText"`
	Notes    string  `json:"notes,omitempty"`
}

// ScheduledClip is a candidate after padding, clamping and gap resolution.
// Times are seconds rounded to 2 decimal places (consumer-facing timecodes).
type ScheduledClip struct {
	SourceID string  `json:"sourceId"`
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
	Duration float64 `json:"duration"`
	Text     string  `json:"text"`
	Seq      int     `json:"seq"`
}

// Extraction is one cut instruction of a render plan.
type Extraction struct {
	SourceID string
	Locator  string
	Start    float64
	End      float64
	Seq      int
}

// RenderPlan is the ordered extraction list handed to the media tool.
// Concatenation order is the slice order.
type RenderPlan struct {
	Extractions []Extraction
}
