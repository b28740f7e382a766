package timeline

import (
	"errors"
	"testing"
)

func TestBuildRenderPlan_OrderMatchesSequence(t *testing.T) {
	clips := []ScheduledClip{
		{SourceID: "a", Start: 1.0, End: 4.0, Seq: 0},
		{SourceID: "b", Start: 8.0, End: 13.0, Seq: 1},
		{SourceID: "a", Start: 20.0, End: 25.0, Seq: 2},
	}
	locators := map[string]string{"a": "media/a.mp4", "b": "media/b.mp4"}

	plan, err := BuildRenderPlan(clips, func(id string) (string, bool) {
		l, ok := locators[id]
		return l, ok
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(plan.Extractions) != 3 {
		t.Fatalf("expected 3 extractions, got %d", len(plan.Extractions))
	}
	for i, ex := range plan.Extractions {
		if ex.Seq != i {
			t.Errorf("extraction %d: seq %d", i, ex.Seq)
		}
		if ex.Locator != locators[ex.SourceID] {
			t.Errorf("extraction %d: locator %q", i, ex.Locator)
		}
	}
}

func TestBuildRenderPlan_UnresolvedSourceIsFatal(t *testing.T) {
	clips := []ScheduledClip{
		{SourceID: "a", Start: 1.0, End: 4.0, Seq: 0},
		{SourceID: "gone", Start: 5.0, End: 9.0, Seq: 1},
	}

	_, err := BuildRenderPlan(clips, func(id string) (string, bool) {
		if id == "a" {
			return "media/a.mp4", true
		}
		return "", false
	})

	var unresolved *UnresolvedSourceError
	if !errors.As(err, &unresolved) {
		t.Fatalf("expected UnresolvedSourceError, got %v", err)
	}
	if unresolved.SourceID != "gone" {
		t.Errorf("expected source id gone, got %q", unresolved.SourceID)
	}
}
