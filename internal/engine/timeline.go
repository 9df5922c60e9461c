package engine

import (
	"time"

	"github.com/sbutler/safer-illinois-app/internal/history"
	"github.com/sbutler/safer-illinois-app/internal/rules"
)

// Step records one history entry's contribution to a timeline.
type Step struct {
	Entry   *history.Entry
	Index   int
	Status  *rules.Status
	Applied bool
}

// Timeline is the displayed status after replaying a history.
type Timeline struct {
	// Status is the displayed status; nil when neither the defaults nor any
	// entry produced one.
	Status *rules.Status
	// Anchor is the entry that produced Status, nil for the defaults.
	Anchor       *history.Entry
	NextStepDate *time.Time
	Messages     Messages
	Steps        []Step
}

// Build replays entries (any order) from oldest to newest, starting from the
// rule set defaults, and returns the status that ends up displayed. Entries
// dated in the future and unverified manual tests are skipped. A status
// coded "unchanged" keeps the displayed code and priority but adopts the
// rest of the new status.
func Build(entries []*history.Entry, ctx *Context, f DateFormatter) Timeline {
	ordered := make([]*history.Entry, 0, len(entries))
	for _, e := range entries {
		if e != nil {
			ordered = append(ordered, e)
		}
	}
	history.SortNewestFirst(ordered)

	now := ctx.now()
	loc := ctx.location()
	tl := Timeline{Status: Defaults(ctx)}

	for i := len(ordered) - 1; i >= 0; i-- {
		e := ordered[i]
		if e.Date.After(now) || !e.CanUpdateStatus() {
			continue
		}
		next := Resolve(ordered, i, ctx)
		if next == nil {
			continue
		}
		candidate := next
		if next.Code == rules.StatusUnchanged && tl.Status != nil {
			merged := *next
			merged.Code = tl.Status.Code
			merged.Priority = tl.Status.Priority
			candidate = &merged
		}
		step := Step{Entry: e, Index: i, Status: candidate}
		if CanUpdateStatus(tl.Status, candidate) {
			tl.Status = candidate
			tl.Anchor = e
			step.Applied = true
		}
		tl.Steps = append(tl.Steps, step)
	}

	if tl.Anchor != nil && ctx != nil {
		if d, ok := NextStepDate(tl.Status, tl.Anchor.DateMidnightLocal(loc), ctx.Rules); ok {
			tl.NextStepDate = &d
		}
	}
	tl.Messages = ExpandMessages(tl.Status, tl.NextStepDate, now, loc, f)
	return tl
}

// At resolves the status of the single entry at index of entries, which must
// already be sorted newest first. It reports false when index is out of range.
func At(entries []*history.Entry, index int, ctx *Context, f DateFormatter) (Timeline, bool) {
	if index < 0 || index >= len(entries) || entries[index] == nil {
		return Timeline{}, false
	}
	anchor := entries[index]
	tl := Timeline{Status: Resolve(entries, index, ctx), Anchor: anchor}
	loc := ctx.location()
	if ctx != nil {
		if d, ok := NextStepDate(tl.Status, anchor.DateMidnightLocal(loc), ctx.Rules); ok {
			tl.NextStepDate = &d
		}
	}
	tl.Messages = ExpandMessages(tl.Status, tl.NextStepDate, ctx.now(), loc, f)
	return tl, true
}
