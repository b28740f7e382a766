package timeline

import (
	"errors"
	"strings"
)

// ErrEmptyTranscript signals that a transcript source produced no segments.
// The surrounding workflow treats this as a processing failure; the
// assembler itself just reports the condition.
var ErrEmptyTranscript = errors.New("transcript has no segments")

// Assemble builds one Transcript from validated segments.
//
// Segment order is the producer's order and is never re-sorted: multi-speaker
// sources may interleave segments intentionally. Full text is the segment
// texts joined with single spaces. Total duration is the larger of the
// source-reported duration and the maximum segment end.
func Assemble(segments []Segment, reportedDuration float64, language string) (*Transcript, error) {
	if language == "" {
		language = "en"
	}
	if len(segments) == 0 {
		return &Transcript{Language: language, Segments: []Segment{}}, ErrEmptyTranscript
	}

	var parts []string
	maxEnd := 0.0
	for _, s := range segments {
		if t := strings.TrimSpace(s.Text); t != "" {
			parts = append(parts, t)
		}
		if s.End > maxEnd {
			maxEnd = s.End
		}
	}

	duration := maxEnd
	if reportedDuration > duration {
		duration = Round3(reportedDuration)
	}

	return &Transcript{
		Text:     strings.Join(parts, " "),
		Language: language,
		Duration: duration,
		Segments: segments,
	}, nil
}
