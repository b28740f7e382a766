package transcribe

import (
	"testing"
)

func TestWhisperRawSegments_WordAttribution(t *testing.T) {
	resp := whisperResponse{
		Segments: []whisperSegment{
			{Text: "first segment", Start: 0, End: 2.0},
			{Text: "second segment", Start: 2.0, End: 4.0},
		},
		Words: []whisperWord{
			{Word: "first", Start: 0.1, End: 0.6},
			{Word: "segment", Start: 0.7, End: 1.4},
			{Word: "second", Start: 2.1, End: 2.6},
			{Word: "segment", Start: 2.7, End: 3.4},
		},
	}

	segs := whisperRawSegments(resp)
	if len(segs) != 2 {
		t.Fatalf("segments = %d, want 2", len(segs))
	}
	if len(segs[0].Words) != 2 {
		t.Errorf("segment 0 words = %d, want 2", len(segs[0].Words))
	}
	if len(segs[1].Words) != 2 {
		t.Errorf("segment 1 words = %d, want 2", len(segs[1].Words))
	}
	if segs[1].Words[0].Text != "second" {
		t.Errorf("segment 1 first word = %q, want \"second\"", segs[1].Words[0].Text)
	}
}

func TestWhisperRawSegments_BoundaryWordNearestSegment(t *testing.T) {
	// A word falling in a gap between segments lands in the nearest one
	// rather than being dropped.
	resp := whisperResponse{
		Segments: []whisperSegment{
			{Text: "alpha", Start: 0, End: 1.0},
			{Text: "beta", Start: 5.0, End: 6.0},
		},
		Words: []whisperWord{
			{Word: "stray", Start: 4.6, End: 4.9},
		},
	}

	segs := whisperRawSegments(resp)
	if len(segs[1].Words) != 1 {
		t.Fatalf("stray word not attributed to nearest segment: %+v", segs)
	}
	if len(segs[0].Words) != 0 {
		t.Errorf("segment 0 should have no words, got %d", len(segs[0].Words))
	}
}

func TestServiceError_Message(t *testing.T) {
	err := &ServiceError{Provider: "whisper", Category: CategoryQuota, Status: 402, Message: "payment required"}
	want := "whisper: quota (status 402): payment required"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
