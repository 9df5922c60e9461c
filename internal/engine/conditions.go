package engine

import (
	"strings"

	"github.com/sbutler/safer-illinois-app/internal/history"
	"github.com/sbutler/safer-illinois-app/internal/interval"
	"github.com/sbutler/safer-illinois-app/internal/rules"
)

// ConditionHandler decides which branch of a conditional status applies.
type ConditionHandler interface {
	Check(f *Frame, p rules.Params) bool
}

// Frame is the position being evaluated: a newest-first history and the
// index of the anchor entry in it. Index -1 means there is no anchor, as
// when the rule set defaults are evaluated.
type Frame struct {
	Context *Context
	History []*history.Entry
	Index   int
}

// Anchor returns the entry under evaluation.
func (f *Frame) Anchor() (*history.Entry, bool) {
	if f == nil || f.Index < 0 || f.Index >= len(f.History) {
		return nil, false
	}
	e := f.History[f.Index]
	return e, e != nil
}

func (f *Frame) constants() interval.Constants {
	if f.Context == nil || f.Context.Rules == nil {
		return nil
	}
	return f.Context.Rules
}

var conditionHandlers = map[rules.Condition]ConditionHandler{
	rules.CondRequireTest:     requireTestHandler{},
	rules.CondRequireSymptoms: requireSymptomsHandler{},
	rules.CondTimeout:         timeoutHandler{},
	rules.CondTestUser:        testUserHandler{},
	rules.CondTestInterval:    testIntervalHandler{},
}

func getConditionHandler(c rules.Condition) (ConditionHandler, bool) {
	h, ok := conditionHandlers[rules.Condition(strings.ToLower(string(c)))]
	return h, ok
}

// scan reports whether some entry other than the anchor, restricted by the
// interval's scope, satisfies qualify and lies at a day offset from the
// anchor that the interval matches. When nothing qualifies and the interval
// is marked current, today's offset is checked instead so an open window
// does not fail early.
func scan(f *Frame, iv interval.Interval, qualify func(*history.Entry) bool) bool {
	anchor, ok := f.Anchor()
	if !ok || iv == nil {
		return false
	}
	c := f.constants()
	loc := f.Context.location()
	anchorDay := anchor.DateMidnightLocal(loc)
	scope, _ := iv.Scope(c)

	for i, e := range f.History {
		if i == f.Index || e == nil {
			continue
		}
		if scope == interval.ScopeFuture && i >= f.Index {
			continue
		}
		if scope == interval.ScopePast && i <= f.Index {
			continue
		}
		if !qualify(e) {
			continue
		}
		diff := history.DayDifference(anchorDay, e.DateMidnightLocal(loc))
		if iv.Match(&diff, c) {
			return true
		}
	}

	if current, ok := iv.Current(c); ok && current {
		diff := history.DayDifference(anchorDay, f.Context.today())
		return iv.Match(&diff, c)
	}
	return false
}

type requireTestHandler struct{}

func (requireTestHandler) Check(f *Frame, p rules.Params) bool {
	return scan(f, p.Interval, func(e *history.Entry) bool {
		if !e.IsVerifiedTest() {
			return false
		}
		if len(p.Categories) == 0 {
			return true
		}
		payload, ok := e.Test()
		if !ok || f.Context == nil || f.Context.Rules == nil {
			return false
		}
		result, ok := f.Context.Rules.Tests.Match(payload)
		return ok && containsFold(p.Categories, result.Category)
	})
}

type requireSymptomsHandler struct{}

func (requireSymptomsHandler) Check(f *Frame, p rules.Params) bool {
	return scan(f, p.Interval, (*history.Entry).IsSymptoms)
}

// timeoutHandler fails while today is still inside the window measured from
// the anchor, and succeeds once it has elapsed.
type timeoutHandler struct{}

func (timeoutHandler) Check(f *Frame, p rules.Params) bool {
	anchor, ok := f.Anchor()
	if !ok || p.Interval == nil {
		return true
	}
	loc := f.Context.location()
	diff := history.DayDifference(anchor.DateMidnightLocal(loc), f.Context.today())
	return !p.Interval.Match(&diff, f.constants())
}

type testUserHandler struct{}

func (testUserHandler) Check(f *Frame, p rules.Params) bool {
	var id Identity
	if f.Context != nil {
		id = f.Context.Identity
	}
	if len(p.Roles) > 0 && !containsFold(p.Roles, id.Role) {
		return false
	}
	if len(p.StudentLevels) > 0 && !containsFold(p.StudentLevels, id.StudentLevel) {
		return false
	}
	return true
}

type testIntervalHandler struct{}

func (testIntervalHandler) Check(f *Frame, p rules.Params) bool {
	return p.Interval != nil && p.Interval.Valid(f.constants())
}

func containsFold(values []string, s string) bool {
	if s == "" {
		return false
	}
	for _, v := range values {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
