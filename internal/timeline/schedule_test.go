package timeline

import "testing"

func durations(ids ...string) map[string]float64 {
	m := make(map[string]float64, len(ids))
	for _, id := range ids {
		m[id] = 0 // known source, unknown length
	}
	return m
}

func TestSchedule_EarlyStartKeepsOriginalValue(t *testing.T) {
	// start 1.0 is within the padding distance, so it stays unpadded;
	// end gets +2.0 and the result already satisfies the minimum duration.
	cands := []ClipCandidate{{SourceID: "v1", Start: 1.0, End: 2.0, Text: "intro"}}

	res := Schedule(cands, durations("v1"), DefaultSchedulerConfig())

	if len(res.Clips) != 1 {
		t.Fatalf("expected 1 clip, got %d", len(res.Clips))
	}
	c := res.Clips[0]
	if c.Start != 1.0 || c.End != 4.0 {
		t.Errorf("expected {1.0, 4.0}, got {%v, %v}", c.Start, c.End)
	}
}

func TestSchedule_PaddingAppliedBothSides(t *testing.T) {
	cands := []ClipCandidate{{SourceID: "v1", Start: 10.0, End: 11.0, Text: "mid"}}

	res := Schedule(cands, durations("v1"), DefaultSchedulerConfig())

	c := res.Clips[0]
	if c.Start != 8.0 || c.End != 13.0 || c.Duration != 5.0 {
		t.Errorf("expected {8.0, 13.0, 5.0}, got {%v, %v, %v}", c.Start, c.End, c.Duration)
	}
}

func TestSchedule_GapResolutionSameSource(t *testing.T) {
	cands := []ClipCandidate{
		{SourceID: "v1", Start: 10.0, End: 11.0, Text: "first"},
		{SourceID: "v1", Start: 13.2, End: 14.2, Text: "second"},
	}

	res := Schedule(cands, durations("v1"), DefaultSchedulerConfig())

	if len(res.Clips) != 2 {
		t.Fatalf("expected 2 clips, got %d (rejected: %v)", len(res.Clips), res.Rejected)
	}
	// First schedules to {8.0, 13.0}; second pads to {11.2, 16.2}, then
	// shifts forward to 13.0 + 0.5.
	second := res.Clips[1]
	if second.Start != 13.5 || second.End != 16.2 {
		t.Errorf("expected {13.5, 16.2}, got {%v, %v}", second.Start, second.End)
	}
}

func TestSchedule_UnresolvableOverlapDropped(t *testing.T) {
	cands := []ClipCandidate{
		{SourceID: "v1", Start: 10.0, End: 40.0, Text: "long"},
		{SourceID: "v1", Start: 12.0, End: 13.0, Text: "inside the first"},
	}

	res := Schedule(cands, durations("v1"), DefaultSchedulerConfig())

	if len(res.Clips) != 1 {
		t.Fatalf("expected 1 clip, got %d", len(res.Clips))
	}
	if len(res.Rejected) != 1 {
		t.Fatalf("expected 1 rejection, got %d", len(res.Rejected))
	}
	r := res.Rejected[0]
	if r.Index != 1 || r.SourceID != "v1" {
		t.Errorf("unexpected rejection %+v", r)
	}
}

func TestSchedule_UnknownSourceRejected(t *testing.T) {
	cands := []ClipCandidate{
		{SourceID: "ghost", Start: 1.0, End: 5.0, Text: "nope"},
		{SourceID: "v1", Start: 10.0, End: 15.0, Text: "fine"},
	}

	res := Schedule(cands, durations("v1"), DefaultSchedulerConfig())

	if len(res.Clips) != 1 || res.Clips[0].SourceID != "v1" {
		t.Fatalf("expected only v1 clip, got %+v", res.Clips)
	}
	if len(res.Rejected) != 1 || res.Rejected[0].Reason != "unknown media source" {
		t.Errorf("expected unknown source rejection, got %+v", res.Rejected)
	}
}

func TestSchedule_DurationBounds(t *testing.T) {
	cfg := DefaultSchedulerConfig()
	cands := []ClipCandidate{
		{SourceID: "v1", Start: 100.0, End: 100.2, Text: "tiny"},
		{SourceID: "v1", Start: 200.0, End: 290.0, Text: "huge"},
	}

	res := Schedule(cands, durations("v1"), cfg)

	if len(res.Clips) != 2 {
		t.Fatalf("expected 2 clips, got %d", len(res.Clips))
	}
	for _, c := range res.Clips {
		if c.Duration < cfg.MinDuration || c.Duration > cfg.MaxDuration {
			t.Errorf("clip %q duration %v outside [%v, %v]", c.Text, c.Duration, cfg.MinDuration, cfg.MaxDuration)
		}
	}
	if res.Clips[1].End != 258.0 {
		t.Errorf("expected huge clip truncated to 258.0, got %v", res.Clips[1].End)
	}
}

func TestSchedule_ClampToMediaDuration(t *testing.T) {
	d := map[string]float64{"v1": 20.0}
	cands := []ClipCandidate{{SourceID: "v1", Start: 17.0, End: 19.5, Text: "tail"}}

	res := Schedule(cands, d, DefaultSchedulerConfig())

	c := res.Clips[0]
	if c.End != 20.0 {
		t.Errorf("expected end clamped to 20.0, got %v", c.End)
	}
	if c.Start != 15.0 {
		t.Errorf("expected padded start 15.0, got %v", c.Start)
	}
}

func TestSchedule_MonotonicPerSource(t *testing.T) {
	cfg := DefaultSchedulerConfig()
	cands := []ClipCandidate{
		{SourceID: "a", Start: 5.0, End: 9.0, Text: "a1"},
		{SourceID: "b", Start: 5.0, End: 9.0, Text: "b1"},
		{SourceID: "a", Start: 11.5, End: 15.0, Text: "a2"},
		{SourceID: "a", Start: 20.0, End: 25.0, Text: "a3"},
		{SourceID: "b", Start: 30.0, End: 35.0, Text: "b2"},
	}

	res := Schedule(cands, durations("a", "b"), cfg)

	prev := make(map[string]float64)
	for _, c := range res.Clips {
		if p, ok := prev[c.SourceID]; ok {
			if c.Start < p+cfg.MinGap {
				t.Errorf("clip %q start %v violates gap after %v", c.Text, c.Start, p)
			}
		}
		prev[c.SourceID] = c.End
	}
}

func TestSchedule_NarrativeOrderIsSubsequence(t *testing.T) {
	cands := []ClipCandidate{
		{SourceID: "a", Start: 10.0, End: 20.0, Text: "one"},
		{SourceID: "missing", Start: 0.0, End: 5.0, Text: "dropped"},
		{SourceID: "b", Start: 10.0, End: 20.0, Text: "two"},
		{SourceID: "a", Start: 11.0, End: 12.0, Text: "also dropped"},
		{SourceID: "a", Start: 40.0, End: 50.0, Text: "three"},
	}

	res := Schedule(cands, durations("a", "b"), DefaultSchedulerConfig())

	var texts []string
	for _, c := range res.Clips {
		texts = append(texts, c.Text)
	}
	want := []string{"one", "two", "three"}
	if len(texts) != len(want) {
		t.Fatalf("expected %v, got %v", want, texts)
	}
	for i := range want {
		if texts[i] != want[i] {
			t.Errorf("position %d: expected %q, got %q", i, want[i], texts[i])
		}
	}
	// Sequence positions compact after rejections.
	for i, c := range res.Clips {
		if c.Seq != i {
			t.Errorf("clip %d has seq %d", i, c.Seq)
		}
	}
}

func TestSchedule_DifferentSourcesNeverConflict(t *testing.T) {
	// Back-to-back ranges from different sources are left untouched even
	// when the first ends exactly where the second starts.
	cands := []ClipCandidate{
		{SourceID: "a", Start: 10.0, End: 11.0, Text: "a"},
		{SourceID: "b", Start: 13.0, End: 14.0, Text: "b"},
	}

	res := Schedule(cands, durations("a", "b"), DefaultSchedulerConfig())

	if len(res.Clips) != 2 {
		t.Fatalf("expected 2 clips, got %d", len(res.Clips))
	}
	// a schedules to {8, 13}; b pads to {11, 16} and keeps it, no shift.
	b := res.Clips[1]
	if b.Start != 11.0 || b.End != 16.0 {
		t.Errorf("expected {11.0, 16.0}, got {%v, %v}", b.Start, b.End)
	}
}

func TestSchedule_OutputPrecisionIsTwoDecimals(t *testing.T) {
	cands := []ClipCandidate{{SourceID: "v1", Start: 10.1234, End: 14.5678, Text: "x"}}

	res := Schedule(cands, durations("v1"), DefaultSchedulerConfig())

	c := res.Clips[0]
	if c.Start != 8.12 || c.End != 16.57 {
		t.Errorf("expected {8.12, 16.57}, got {%v, %v}", c.Start, c.End)
	}
}
