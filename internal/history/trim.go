// Package history keeps a rolling transcript inside a fixed character budget.
//
// The budget is measured with schema.Message.Size. The preset prefix is always
// kept; from the rolling tail, the newest messages that fit are kept, except
// that a kept tail never starts with an assistant reply whose user prompt was
// dropped.
package history

import "github.com/duetvoice/duet/internal/schema"

// Result is what Trim hands back to the caller.
type Result struct {
	// Transcript is the history to use for the next turn. It is a fresh
	// value and never aliases the inputs.
	Transcript schema.Transcript
	// Trimmed is false when rolling already fit and was returned as is.
	Trimmed bool
	// PresetOverBudget reports that the preset alone is larger than the
	// budget. The preset is kept regardless.
	PresetOverBudget bool
	// Dropped is the number of rolling messages that did not survive.
	Dropped int
}

// Trim fits rolling plus the pending user message into budget. pending is
// only measured; it is never part of the returned transcript. Neither preset
// nor rolling is modified.
func Trim(preset, rolling schema.Transcript, pending schema.Message, budget int) Result {
	pendingSize := pending.Size()
	if rolling.TotalSize()+pendingSize <= budget {
		return Result{Transcript: rolling.Clone()}
	}

	presetSize := preset.TotalSize()
	res := Result{
		Trimmed:          true,
		PresetOverBudget: presetSize > budget,
	}

	candidate := preset.Clone()
	base := presetSize + pendingSize

	// Walk back from the newest message until one no longer fits.
	target := -1
	running := base
	for i := rolling.Len() - 1; i >= 0; i-- {
		size := rolling.At(i).Size()
		if running+size > budget {
			target = i
			break
		}
		running += size
	}

	if target >= 0 {
		backfill(&candidate, rolling, target+1, true, base, budget)
	} else {
		// Nothing overflowed on the way back. Past the fast path that only
		// happens for an empty rolling transcript.
		backfill(&candidate, rolling, 0, false, base, budget)
	}

	res.Transcript = candidate
	if n := rolling.Len() - candidate.Len(); n > 0 {
		res.Dropped = n
	}
	return res
}

// backfill appends rolling[start:] to candidate in order while the total stays
// within budget, stopping at the first message that does not fit. base is the
// size already committed (preset plus pending). With skipAssistant set, an
// assistant message at start is passed over.
func backfill(candidate *schema.Transcript, rolling schema.Transcript, start int, skipAssistant bool, base, budget int) {
	appended := 0
	for i := start; i < rolling.Len(); i++ {
		m := rolling.At(i)
		if skipAssistant && i == start && m.Role == schema.RoleAssistant {
			continue
		}
		if base+appended+m.Size() > budget {
			return
		}
		candidate.Add(m)
		appended += m.Size()
	}
}
