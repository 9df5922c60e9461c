package history

import (
	"sort"
	"time"
)

// IsTest reports whether the entry is a lab test or a manual test.
func (e *Entry) IsTest() bool {
	switch e.Kind {
	case KindTest, KindManualTestUnverified, KindManualTestVerified:
		return true
	}
	return false
}

// IsManualTest reports whether the entry was entered by the user.
func (e *Entry) IsManualTest() bool {
	return e.Kind == KindManualTestUnverified || e.Kind == KindManualTestVerified
}

// IsVerifiedTest reports whether the entry is a lab test or a verified manual test.
func (e *Entry) IsVerifiedTest() bool {
	return e.Kind == KindTest || e.Kind == KindManualTestVerified
}

// CanUpdateStatus reports whether the entry may move the user's status.
// Unverified manual tests stay in history but never affect status.
func (e *Entry) CanUpdateStatus() bool {
	return !e.IsTest() || e.IsVerifiedTest()
}

func (e *Entry) IsSymptoms() bool     { return e.Kind == KindSymptoms }
func (e *Entry) IsContactTrace() bool { return e.Kind == KindContactTrace }
func (e *Entry) IsAction() bool       { return e.Kind == KindAction }

// DateMidnightLocal returns the entry's calendar date in loc, at midnight.
func (e *Entry) DateMidnightLocal(loc *time.Location) time.Time {
	return MidnightIn(e.Date, loc)
}

// MatchEvent reports whether ev has already been ingested as this entry.
// Tests compare date, provider, provider id, test type and result; actions
// compare date, action type and text.
func (e *Entry) MatchEvent(ev *Event) bool {
	if ev == nil {
		return false
	}
	switch {
	case ev.IsTest():
		p, ok := e.Test()
		return e.IsTest() && ok &&
			e.Date.Equal(ev.Date) &&
			p.Provider == ev.Provider &&
			p.ProviderID == ev.ProviderID &&
			p.TestType == ev.TestType &&
			p.TestResult == ev.TestResult
	case ev.IsAction():
		p, ok := e.Action()
		return e.IsAction() && ok &&
			e.Date.Equal(ev.Date) &&
			p.ActionType == ev.ActionType &&
			p.ActionText == ev.ActionText
	}
	return false
}

// MidnightIn truncates t to midnight of its calendar date in loc. A nil loc
// means UTC.
func MidnightIn(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	y, m, d := local.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// DayDifference returns the number of calendar days from "from" to "to",
// using each value's own calendar date. It is immune to DST-shortened days.
func DayDifference(from, to time.Time) int {
	fy, fm, fd := from.Date()
	ty, tm, td := to.Date()
	a := time.Date(fy, fm, fd, 0, 0, 0, 0, time.UTC).Unix()
	b := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC).Unix()
	return int((b - a) / 86400)
}

// SortNewestFirst orders entries by date, newest first. Entries with the same
// date keep their relative order.
func SortNewestFirst(entries []*Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Date.After(entries[j].Date)
	})
}

// MostRecentTest returns the first verified test dated at or before now.
func MostRecentTest(entries []*Entry, now time.Time) *Entry {
	for _, e := range entries {
		if e.IsVerifiedTest() && !e.Date.After(now) {
			return e
		}
	}
	return nil
}

// MostRecentContactTrace returns the first contact-trace entry whose local
// date falls in [minDate, maxDate). Nil bounds are open.
func MostRecentContactTrace(entries []*Entry, minDate, maxDate *time.Time, loc *time.Location) *Entry {
	var lo, hi time.Time
	if minDate != nil {
		lo = MidnightIn(*minDate, loc)
	}
	if maxDate != nil {
		hi = MidnightIn(*maxDate, loc)
	}
	for _, e := range entries {
		if !e.IsContactTrace() {
			continue
		}
		day := e.DateMidnightLocal(loc)
		if minDate != nil && day.Before(lo) {
			continue
		}
		if maxDate != nil && !day.Before(hi) {
			continue
		}
		return e
	}
	return nil
}

// PastEntries returns the entries dated at or before now, preserving order.
func PastEntries(entries []*Entry, now time.Time) []*Entry {
	out := make([]*Entry, 0, len(entries))
	for _, e := range entries {
		if !e.Date.After(now) {
			out = append(out, e)
		}
	}
	return out
}

// ContainsEvent reports whether any entry already represents ev.
func ContainsEvent(entries []*Entry, ev *Event) bool {
	for _, e := range entries {
		if e.MatchEvent(ev) {
			return true
		}
	}
	return false
}
