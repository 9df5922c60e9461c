// Package interval resolves the integer values and day windows used by health
// rules. An interval is a literal integer, a named reference into the rule
// document's constants table, or a bounded range carrying a scan scope and an
// "is current" flag.
//
// All operations are total: an unresolvable reference or a malformed bound
// makes the operation report false/absent instead of failing.
package interval

import (
	"encoding/json"
	"math"
)

// Scope tells a history scan which side of the anchor entry to look at.
type Scope int

const (
	ScopePast     Scope = -1
	ScopeUnscoped Scope = 0
	ScopeFuture   Scope = 1
)

// String returns the JSON spelling of the scope.
func (s Scope) String() string {
	switch s {
	case ScopePast:
		return "past"
	case ScopeFuture:
		return "future"
	default:
		return "unscoped"
	}
}

// Constants resolves named intervals. *Table and the rule set implement it.
type Constants interface {
	Constant(name string) (Interval, bool)
}

// Interval is the closed set of interval variants: Literal, *Range and Reference.
type Interval interface {
	// Match reports whether value satisfies the interval. A nil value never
	// matches.
	Match(value *int, c Constants) bool
	// Value returns the integer the interval stands for, if it has one.
	Value(c Constants) (int, bool)
	// Valid reports whether the interval and all its bounds resolve.
	Valid(c Constants) bool
	// Scope returns the scan scope carried by a range.
	Scope(c Constants) (Scope, bool)
	// Current returns the "is current" flag carried by a range.
	Current(c Constants) (bool, bool)

	isInterval()
}

// Literal is a plain integer.
type Literal int

func (l Literal) Match(value *int, _ Constants) bool {
	return value != nil && *value == int(l)
}

func (l Literal) Value(Constants) (int, bool)  { return int(l), true }
func (Literal) Valid(Constants) bool           { return true }
func (Literal) Scope(Constants) (Scope, bool)  { return ScopeUnscoped, false }
func (Literal) Current(Constants) (bool, bool) { return false, false }
func (Literal) isInterval()                    {}

// Range is a closed window [Min, Max]; either bound may be nil (unbounded).
type Range struct {
	Min Interval
	Max Interval

	scope    Scope
	hasScope bool

	current    bool
	hasCurrent bool
}

// NewRange builds a range without scope or current flag.
func NewRange(min, max Interval) *Range {
	return &Range{Min: min, Max: max}
}

// WithScope returns a copy of r carrying scope.
func (r *Range) WithScope(scope Scope) *Range {
	cp := *r
	cp.scope, cp.hasScope = scope, true
	return &cp
}

// WithCurrent returns a copy of r carrying the current flag.
func (r *Range) WithCurrent(current bool) *Range {
	cp := *r
	cp.current, cp.hasCurrent = current, true
	return &cp
}

func (r *Range) Match(value *int, c Constants) bool {
	if value == nil {
		return false
	}
	if r.Min != nil {
		min, ok := r.Min.Value(c)
		if !ok || *value < min {
			return false
		}
	}
	if r.Max != nil {
		max, ok := r.Max.Value(c)
		if !ok || max < *value {
			return false
		}
	}
	return true
}

func (*Range) Value(Constants) (int, bool) { return 0, false }

func (r *Range) Valid(c Constants) bool {
	return (r.Min == nil || r.Min.Valid(c)) && (r.Max == nil || r.Max.Valid(c))
}

func (r *Range) Scope(Constants) (Scope, bool)  { return r.scope, r.hasScope }
func (r *Range) Current(Constants) (bool, bool) { return r.current, r.hasCurrent }
func (*Range) isInterval()                      {}

// Reference names an entry of the constants table. Every operation delegates
// to the referenced interval; an unknown name resolves to nothing.
type Reference string

func (ref Reference) resolve(c Constants) (Interval, bool) {
	if c == nil {
		return nil, false
	}
	target, ok := c.Constant(string(ref))
	if !ok || target == nil {
		return nil, false
	}
	return target, true
}

func (ref Reference) Match(value *int, c Constants) bool {
	target, ok := ref.resolve(c)
	return ok && target.Match(value, c)
}

func (ref Reference) Value(c Constants) (int, bool) {
	if target, ok := ref.resolve(c); ok {
		return target.Value(c)
	}
	return 0, false
}

func (ref Reference) Valid(c Constants) bool {
	target, ok := ref.resolve(c)
	return ok && target.Valid(c)
}

func (ref Reference) Scope(c Constants) (Scope, bool) {
	if target, ok := ref.resolve(c); ok {
		return target.Scope(c)
	}
	return ScopeUnscoped, false
}

func (ref Reference) Current(c Constants) (bool, bool) {
	if target, ok := ref.resolve(c); ok {
		return target.Current(c)
	}
	return false, false
}

func (Reference) isInterval() {}

// Parse converts a decoded JSON value into an interval: numbers become
// literals, strings become references and objects become ranges. Anything
// else (including non-integral numbers) yields nil.
func Parse(raw any) Interval {
	switch v := raw.(type) {
	case string:
		if v == "" {
			return nil
		}
		return Reference(v)
	case map[string]any:
		return parseRange(v)
	default:
		if n, ok := toInt(raw); ok {
			return Literal(n)
		}
		return nil
	}
}

// ParseJSON decodes data and parses it as an interval.
func ParseJSON(data []byte) Interval {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	return Parse(raw)
}

func parseRange(m map[string]any) *Range {
	r := &Range{}
	if raw, ok := m["min"]; ok && raw != nil {
		r.Min = Parse(raw)
	}
	if raw, ok := m["max"]; ok && raw != nil {
		r.Max = Parse(raw)
	}
	r.scope, r.hasScope = ParseScope(m["scope"])
	if b, ok := m["current"].(bool); ok {
		r.current, r.hasCurrent = b, true
	}
	return r
}

// ParseScope decodes a raw scope: "future" or any positive number is the
// future, "past" or any negative number is the past, anything else is absent.
func ParseScope(raw any) (Scope, bool) {
	if s, ok := raw.(string); ok {
		switch s {
		case "future":
			return ScopeFuture, true
		case "past":
			return ScopePast, true
		}
		return ScopeUnscoped, false
	}
	if f, ok := toFloat(raw); ok {
		switch {
		case f > 0:
			return ScopeFuture, true
		case f < 0:
			return ScopePast, true
		}
	}
	return ScopeUnscoped, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func toInt(v any) (int, bool) {
	f, ok := toFloat(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}
