package rules

import (
	"encoding/json"
	"math"

	"github.com/sbutler/safer-illinois-app/internal/interval"
)

// ParseStatusNode classifies a raw status: a string is a reference, an object
// with a "condition" key is conditional, any other object is a leaf.
func ParseStatusNode(raw any) StatusNode {
	switch v := raw.(type) {
	case string:
		if v == "" {
			return nil
		}
		return StatusRef(v)
	case map[string]any:
		if cond, ok := v["condition"]; ok {
			return parseConditional(cond, v)
		}
		return parseStatus(v)
	default:
		return nil
	}
}

func parseStatus(m map[string]any) *Status {
	s := &Status{
		Code:                     HealthStatus(asString(m["health_status"])),
		NextStepTemplate:         asString(m["next_step"]),
		NextStepHTMLTemplate:     asString(m["next_step_html"]),
		EventExplanationTemplate: asString(m["event_explanation"]),
		ReasonTemplate:           asString(m["reason"]),
		WarningTemplate:          asString(m["warning"]),
	}
	if p, ok := asInt(m["priority"]); ok {
		s.Priority = &p
	}
	if raw, ok := m["next_step_interval"]; ok && raw != nil {
		s.NextStepInterval = interval.Parse(raw)
	}
	return s
}

func parseConditional(cond any, m map[string]any) *ConditionalStatus {
	name, _ := cond.(string)
	params := asMap(m["params"])
	return &ConditionalStatus{
		Condition: Condition(name),
		Params:    parseParams(params),
		Success:   ParseStatusNode(m["success"]),
		Fail:      ParseStatusNode(m["fail"]),
	}
}

func parseParams(raw map[string]any) Params {
	p := Params{Raw: raw}
	if iv, ok := raw["interval"]; ok && iv != nil {
		p.Interval = interval.Parse(iv)
	}
	p.Categories = asStrings(raw["category"])
	p.Roles = asStrings(raw["role"])
	p.StudentLevels = asStrings(raw["student_level"])
	return p
}

func parseTestRules(m map[string]any) TestRules {
	var out TestRules
	for _, raw := range asSlice(m["rules"]) {
		rm := asMap(raw)
		if rm == nil {
			continue
		}
		rule := TestRule{TestType: asString(rm["test_type"])}
		for _, rawResult := range asSlice(rm["results"]) {
			res := asMap(rawResult)
			if res == nil {
				continue
			}
			rule.Results = append(rule.Results, TestResultRule{
				Result:   asString(res["result"]),
				Category: asString(res["category"]),
				Status:   ParseStatusNode(res["status"]),
			})
		}
		out.Rules = append(out.Rules, rule)
	}
	return out
}

func parseSymptomRules(m map[string]any) SymptomRules {
	var out SymptomRules
	for _, raw := range asSlice(m["groups"]) {
		gm := asMap(raw)
		if gm == nil {
			continue
		}
		group := SymptomGroup{Name: asString(gm["name"])}
		for _, member := range asSlice(gm["symptoms"]) {
			switch v := member.(type) {
			case string:
				group.Members = append(group.Members, v)
			case map[string]any:
				if id := asString(v["id"]); id != "" {
					group.Members = append(group.Members, id)
				}
			}
		}
		out.Groups = append(out.Groups, group)
	}
	for _, raw := range asSlice(m["rules"]) {
		rm := asMap(raw)
		if rm == nil {
			continue
		}
		rule := SymptomRule{
			Counts: make(map[string]interval.Interval),
			Status: ParseStatusNode(rm["status"]),
		}
		for group, iv := range asMap(rm["counts"]) {
			rule.Counts[group] = interval.Parse(iv)
		}
		out.Rules = append(out.Rules, rule)
	}
	return out
}

func parseContactTraceRules(m map[string]any) ContactTraceRules {
	var out ContactTraceRules
	for _, raw := range asSlice(m["rules"]) {
		rm := asMap(raw)
		if rm == nil {
			continue
		}
		out.Rules = append(out.Rules, ContactTraceRule{
			Duration: interval.Parse(rm["duration"]),
			Status:   ParseStatusNode(rm["status"]),
		})
	}
	return out
}

func parseActionRules(m map[string]any) ActionRules {
	var out ActionRules
	for _, raw := range asSlice(m["rules"]) {
		rm := asMap(raw)
		if rm == nil {
			continue
		}
		out.Rules = append(out.Rules, ActionRule{
			Type:   asString(rm["type"]),
			Status: ParseStatusNode(rm["status"]),
		})
	}
	return out
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func asSlice(v any) []any {
	s, _ := v.([]any)
	return s
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

// asStrings accepts a single string or a list of strings.
func asStrings(v any) []string {
	switch values := v.(type) {
	case string:
		return []string{values}
	case []string:
		return values
	case []any:
		out := make([]string, 0, len(values))
		for _, item := range values {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func asInt(v any) (int, bool) {
	var f float64
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		f = n
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	default:
		return 0, false
	}
	if f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}
