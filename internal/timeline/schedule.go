package timeline

import "fmt"

// SchedulerConfig bounds and pacing for clip scheduling. All values seconds.
type SchedulerConfig struct {
	MinDuration  float64
	MaxDuration  float64
	StartPadding float64
	EndPadding   float64
	MinGap       float64
}

// DefaultSchedulerConfig returns the stock pacing policy.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		MinDuration:  3.0,
		MaxDuration:  60.0,
		StartPadding: 2.0,
		EndPadding:   2.0,
		MinGap:       0.5,
	}
}

// Rejection reports one candidate that could not be scheduled.
type Rejection struct {
	Index    int    `json:"index"` // position in the input candidate list
	SourceID string `json:"sourceId"`
	Text     string `json:"text,omitempty"`
	Reason   string `json:"reason"`
}

// ScheduleResult is the outcome of scheduling one candidate batch. A batch
// with rejections still yields a usable (shorter) timeline; the scheduler
// never fails wholesale on bad candidates.
type ScheduleResult struct {
	Clips    []ScheduledClip `json:"clips"`
	Rejected []Rejection     `json:"rejected,omitempty"`
}

// Schedule turns untrusted clip candidates into a final, conflict-free
// timeline. Candidate order is narrative order and is preserved; rejections
// compact the sequence but never reorder it.
//
// durations maps source id to known media duration in seconds. A source
// missing from the map is unknown to the scheduler and its candidates are
// rejected. A zero duration means the source exists but its length is not
// yet known; clamping is skipped for it.
//
// Per candidate, in input order:
//  1. round start/end to 2 decimals
//  2. pad start by StartPadding only when start > StartPadding (a start at
//     or below the padding distance keeps its original value rather than
//     being clamped toward 0)
//  3. pad end by EndPadding unconditionally
//  4. clamp end to the source duration when known
//  5. enforce MinDuration (extend end, re-capped by source duration) and
//     MaxDuration (truncate end)
//  6. resolve against the previously accepted clip from the same source:
//     shift start forward to previous end + MinGap, rejecting the candidate
//     if the shift inverts it. Clips from different sources never conflict;
//     they are disjoint streams that get concatenated, not time-multiplexed.
func Schedule(candidates []ClipCandidate, durations map[string]float64, cfg SchedulerConfig) ScheduleResult {
	var result ScheduleResult
	// last accepted end per source, for gap resolution
	lastEnd := make(map[string]float64)

	for i, c := range candidates {
		mediaDur, known := durations[c.SourceID]
		if !known {
			result.Rejected = append(result.Rejected, Rejection{
				Index: i, SourceID: c.SourceID, Text: c.Text,
				Reason: "unknown media source",
			})
			continue
		}

		start := Round2(c.Start)
		end := Round2(c.End)
		if start < 0 {
			start = 0
		}

		if start > cfg.StartPadding {
			start = Round2(start - cfg.StartPadding)
		}
		end = Round2(end + cfg.EndPadding)
		if mediaDur > 0 && end > mediaDur {
			end = Round2(mediaDur)
		}

		if end-start < cfg.MinDuration {
			end = Round2(start + cfg.MinDuration)
			if mediaDur > 0 && end > mediaDur {
				end = Round2(mediaDur)
			}
		}
		if end-start > cfg.MaxDuration {
			end = Round2(start + cfg.MaxDuration)
		}

		if prev, ok := lastEnd[c.SourceID]; ok && start < prev+cfg.MinGap {
			start = Round2(prev + cfg.MinGap)
			if start >= end {
				result.Rejected = append(result.Rejected, Rejection{
					Index: i, SourceID: c.SourceID, Text: c.Text,
					Reason: fmt.Sprintf("overlaps previous clip ending at %.2f", prev),
				})
				continue
			}
		}

		lastEnd[c.SourceID] = end
		result.Clips = append(result.Clips, ScheduledClip{
			SourceID: c.SourceID,
			Start:    start,
			End:      end,
			Duration: Round2(end - start),
			Text:     c.Text,
			Seq:      len(result.Clips),
		})
	}

	return result
}
