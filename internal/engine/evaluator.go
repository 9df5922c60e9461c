package engine

import (
	"github.com/sbutler/safer-illinois-app/internal/history"
	"github.com/sbutler/safer-illinois-app/internal/rules"
)

// Eval reduces node to a leaf status for the entry at index. Conditionals are
// decided by their handler and the chosen branch is evaluated in turn; named
// references are looked up in the rule set. Unknown references, unknown
// conditions, reference cycles and chains of more than 64 named references
// yield nil.
func Eval(node rules.StatusNode, ctx *Context, entries []*history.Entry, index int) *rules.Status {
	ev := &evaluator{
		frame:    Frame{Context: ctx, History: entries, Index: index},
		visiting: make(map[rules.StatusRef]struct{}),
	}
	return ev.eval(node)
}

type evaluator struct {
	frame    Frame
	depth    int
	visiting map[rules.StatusRef]struct{}
}

func (ev *evaluator) eval(node rules.StatusNode) *rules.Status {
	if node == nil {
		return nil
	}

	switch n := node.(type) {
	case *rules.Status:
		return n
	case rules.StatusRef:
		if _, seen := ev.visiting[n]; seen {
			ev.frame.Context.logger().Warn().Str("status", string(n)).Msg("status reference cycle")
			return nil
		}
		if ev.depth >= maxDepth {
			ev.frame.Context.logger().Warn().Str("status", string(n)).Int("depth", ev.depth).Msg("status reference chain too long")
			return nil
		}
		ev.depth++
		defer func() { ev.depth-- }()
		if ev.frame.Context == nil {
			return nil
		}
		target, ok := ev.frame.Context.Rules.NamedStatus(string(n))
		if !ok {
			return nil
		}
		ev.visiting[n] = struct{}{}
		defer delete(ev.visiting, n)
		return ev.eval(target)
	case *rules.ConditionalStatus:
		handler, ok := getConditionHandler(n.Condition)
		if !ok {
			ev.frame.Context.logger().Warn().
				Str("condition", string(n.Condition)).
				Interface("params", n.Params.Raw).
				Msg("unknown status condition")
			return nil
		}
		if handler.Check(&ev.frame, n.Params) {
			return ev.eval(n.Success)
		}
		return ev.eval(n.Fail)
	default:
		return nil
	}
}

// Resolve finds the catalog rule for the entry at index and evaluates its
// status. Entries without a payload or without a matching rule yield nil.
func Resolve(entries []*history.Entry, index int, ctx *Context) *rules.Status {
	if ctx == nil || ctx.Rules == nil || index < 0 || index >= len(entries) || entries[index] == nil {
		return nil
	}
	node := ruleStatus(entries[index], ctx.Rules)
	if node == nil {
		return nil
	}
	return Eval(node, ctx, entries, index)
}

// Defaults evaluates the rule set's default status without an anchor entry.
func Defaults(ctx *Context) *rules.Status {
	if ctx == nil || ctx.Rules == nil {
		return nil
	}
	return Eval(ctx.Rules.Defaults, ctx, nil, -1)
}

func ruleStatus(e *history.Entry, rs *rules.RuleSet) rules.StatusNode {
	switch {
	case e.IsTest():
		if p, ok := e.Test(); ok {
			if rule, ok := rs.Tests.Match(p); ok {
				return rule.Status
			}
		}
	case e.IsSymptoms():
		if p, ok := e.Symptoms(); ok {
			if rule, ok := rs.Symptoms.Match(p, rs); ok {
				return rule.Status
			}
		}
	case e.IsContactTrace():
		if p, ok := e.ContactTrace(); ok {
			if rule, ok := rs.ContactTrace.Match(p, rs); ok {
				return rule.Status
			}
		}
	case e.IsAction():
		if p, ok := e.Action(); ok {
			if rule, ok := rs.Actions.Match(p); ok {
				return rule.Status
			}
		}
	}
	return nil
}
