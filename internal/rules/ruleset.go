// Package rules models the server-delivered health rule document: the test,
// symptom, contact-trace and action catalogs, the default status, the named
// status table and the constants table used for interval indirection.
//
// Parsing is lenient. Malformed nodes become "absent" and degrade to no
// status at evaluation time; only a document that is not a JSON object is
// rejected.
package rules

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sbutler/safer-illinois-app/internal/interval"
)

// ErrInvalidDocument is returned when the rule document is not a JSON object.
var ErrInvalidDocument = errors.New("invalid rule document")

// RuleSet is a parsed rule document. It is read-only after Parse and safe
// for concurrent evaluation.
type RuleSet struct {
	Tests        TestRules
	Symptoms     SymptomRules
	ContactTrace ContactTraceRules
	Actions      ActionRules
	Defaults     StatusNode

	statuses    []StatusNode
	statusIndex map[string]int
	constants   *interval.Table
}

// Constant implements interval.Constants.
func (rs *RuleSet) Constant(name string) (interval.Interval, bool) {
	if rs == nil {
		return nil, false
	}
	return rs.constants.Constant(name)
}

// NamedStatus looks up an entry of the status table.
func (rs *RuleSet) NamedStatus(name string) (StatusNode, bool) {
	if rs == nil {
		return nil, false
	}
	idx, ok := rs.statusIndex[name]
	if !ok {
		return nil, false
	}
	node := rs.statuses[idx]
	return node, node != nil
}

// StatusCount returns the number of named statuses.
func (rs *RuleSet) StatusCount() int {
	if rs == nil {
		return 0
	}
	return len(rs.statuses)
}

// ConstantCount returns the number of usable constants.
func (rs *RuleSet) ConstantCount() int {
	if rs == nil {
		return 0
	}
	return rs.constants.Len()
}

// Parse decodes a rule document.
func Parse(data []byte) (*RuleSet, error) {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: document must be a JSON object", ErrInvalidDocument)
	}
	return FromMap(doc), nil
}

// FromMap builds a rule set from an already decoded document.
func FromMap(doc map[string]any) *RuleSet {
	rs := &RuleSet{
		Tests:        parseTestRules(asMap(doc["tests"])),
		Symptoms:     parseSymptomRules(asMap(doc["symptoms"])),
		ContactTrace: parseContactTraceRules(asMap(doc["contact_trace"])),
		Actions:      parseActionRules(asMap(doc["actions"])),
		Defaults:     ParseStatusNode(asMap(doc["defaults"])["status"]),
		statusIndex:  make(map[string]int),
		constants:    interval.NewTable(asMap(doc["constants"])),
	}
	for name, raw := range asMap(doc["statuses"]) {
		rs.statusIndex[name] = len(rs.statuses)
		rs.statuses = append(rs.statuses, ParseStatusNode(raw))
	}
	return rs
}
