package rules

import (
	"strings"

	"github.com/sbutler/safer-illinois-app/internal/history"
	"github.com/sbutler/safer-illinois-app/internal/interval"
)

// TestResultRule maps one test result to a category and a status.
type TestResultRule struct {
	Result   string
	Category string
	Status   StatusNode
}

// TestRule groups the result rules of one test type.
type TestRule struct {
	TestType string
	Results  []TestResultRule
}

// TestRules is the ordered test catalog; the first match wins.
type TestRules struct {
	Rules []TestRule
}

// Match returns the first result rule under the first test type matching p.
// Test type and result compare case-insensitively.
func (t *TestRules) Match(p *history.TestPayload) (*TestResultRule, bool) {
	if t == nil || p == nil {
		return nil, false
	}
	for i := range t.Rules {
		rule := &t.Rules[i]
		if !strings.EqualFold(rule.TestType, p.TestType) {
			continue
		}
		for j := range rule.Results {
			if strings.EqualFold(rule.Results[j].Result, p.TestResult) {
				return &rule.Results[j], true
			}
		}
		return nil, false
	}
	return nil, false
}

// SymptomGroup names a set of symptom ids.
type SymptomGroup struct {
	Name    string
	Members []string
}

// SymptomRule matches when, for every referenced group, the number of
// reported symptoms in that group satisfies the count interval.
type SymptomRule struct {
	Counts map[string]interval.Interval
	Status StatusNode
}

// SymptomRules is the ordered symptom catalog; the first match wins.
type SymptomRules struct {
	Groups []SymptomGroup
	Rules  []SymptomRule
}

// Group returns the named group.
func (s *SymptomRules) Group(name string) (*SymptomGroup, bool) {
	for i := range s.Groups {
		if s.Groups[i].Name == name {
			return &s.Groups[i], true
		}
	}
	return nil, false
}

// Match returns the first rule fully satisfied by the reported symptoms.
func (s *SymptomRules) Match(p *history.SymptomsPayload, c interval.Constants) (*SymptomRule, bool) {
	if s == nil || p == nil {
		return nil, false
	}
	counts := make(map[string]int, len(s.Groups))
	for _, g := range s.Groups {
		members := make(map[string]struct{}, len(g.Members))
		for _, m := range g.Members {
			members[m] = struct{}{}
		}
		n := 0
		for _, id := range p.Symptoms {
			if _, ok := members[id]; ok {
				n++
			}
		}
		counts[g.Name] = n
	}

	for i := range s.Rules {
		rule := &s.Rules[i]
		matched := true
		for group, iv := range rule.Counts {
			n, ok := counts[group]
			if !ok || iv == nil || !iv.Match(&n, c) {
				matched = false
				break
			}
		}
		if matched {
			return rule, true
		}
	}
	return nil, false
}

// ContactTraceRule matches an exposure duration in minutes.
type ContactTraceRule struct {
	Duration interval.Interval
	Status   StatusNode
}

// ContactTraceRules is the ordered exposure catalog; the first match wins.
type ContactTraceRules struct {
	Rules []ContactTraceRule
}

// Match returns the first rule whose duration interval holds for p.
func (ct *ContactTraceRules) Match(p *history.ContactTracePayload, c interval.Constants) (*ContactTraceRule, bool) {
	if ct == nil || p == nil {
		return nil, false
	}
	minutes := p.DurationMinutes()
	for i := range ct.Rules {
		rule := &ct.Rules[i]
		if rule.Duration != nil && rule.Duration.Match(&minutes, c) {
			return rule, true
		}
	}
	return nil, false
}

// ActionRule matches an action type.
type ActionRule struct {
	Type   string
	Status StatusNode
}

// ActionRules is the ordered action catalog; the first match wins.
type ActionRules struct {
	Rules []ActionRule
}

// Match returns the first rule whose type equals the action type, ignoring case.
func (a *ActionRules) Match(p *history.ActionPayload) (*ActionRule, bool) {
	if a == nil || p == nil {
		return nil, false
	}
	for i := range a.Rules {
		if strings.EqualFold(a.Rules[i].Type, p.ActionType) {
			return &a.Rules[i], true
		}
	}
	return nil, false
}
