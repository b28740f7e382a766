package timeline

import "fmt"

// UnresolvedSourceError indicates a scheduled clip references a media source
// that cannot be located at render time. This is fatal to the whole plan: a
// source vanishing between scheduling and rendering is a consistency bug,
// not recoverable input.
type UnresolvedSourceError struct {
	SourceID string
}

func (e *UnresolvedSourceError) Error() string {
	return fmt.Sprintf("render plan references unresolved media source %q", e.SourceID)
}

// BuildRenderPlan turns the final clip timeline into extraction instructions.
// resolve maps a source id to a storage locator; returning false aborts the
// plan with UnresolvedSourceError. Extraction order is clip sequence order
// and governs concatenation.
func BuildRenderPlan(clips []ScheduledClip, resolve func(sourceID string) (string, bool)) (*RenderPlan, error) {
	plan := &RenderPlan{Extractions: make([]Extraction, 0, len(clips))}
	for _, c := range clips {
		locator, ok := resolve(c.SourceID)
		if !ok {
			return nil, &UnresolvedSourceError{SourceID: c.SourceID}
		}
		plan.Extractions = append(plan.Extractions, Extraction{
			SourceID: c.SourceID,
			Locator:  locator,
			Start:    c.Start,
			End:      c.End,
			Seq:      c.Seq,
		})
	}
	return plan, nil
}
