package rules

import (
	"errors"
	"testing"

	"github.com/sbutler/safer-illinois-app/internal/history"
	"github.com/sbutler/safer-illinois-app/internal/interval"
)

const sampleDocument = `{
  "tests": {"rules": [
    {"test_type": "PCR", "results": [
      {"result": "positive", "category": "A", "status": {"health_status": "red", "priority": 10, "next_step_interval": "quarantine"}},
      {"result": "negative", "category": "B", "status": "negative-pcr"}
    ]},
    {"test_type": "pcr", "results": [
      {"result": "inconclusive", "category": "C", "status": {"health_status": "orange"}}
    ]},
    {"test_type": "Antibody", "results": [
      {"result": "positive", "category": "D", "status": {"health_status": "yellow", "priority": 1}}
    ]}
  ]},
  "symptoms": {
    "groups": [
      {"name": "gr1", "symptoms": ["fever", "cough", {"id": "chills", "name": "Chills"}]},
      {"name": "gr2", "symptoms": ["fatigue"]}
    ],
    "rules": [
      {"counts": {"gr1": {"min": 3}}, "status": {"health_status": "yellow", "priority": 1}},
      {"counts": {"gr1": {"min": 1}, "gr2": {"min": 1}}, "status": {"health_status": "orange"}},
      {"counts": {"gr1": 0, "gr2": 0}, "status": {"health_status": "green"}},
      {"counts": {"nosuch": {"max": 2}}, "status": {"health_status": "red"}}
    ]
  },
  "contact_trace": {"rules": [
    {"duration": {"min": "exposure_minutes"}, "status": {"health_status": "orange", "priority": 5}},
    {"duration": {"max": 14}, "status": {"health_status": "unchanged"}}
  ]},
  "actions": {"rules": [
    {"type": "quarantine-on", "status": {"health_status": "orange", "priority": 20}},
    {"type": "quarantine-off", "status": {"health_status": "green", "priority": -1}}
  ]},
  "defaults": {"status": {"health_status": "orange", "priority": 0, "next_step": "Get tested"}},
  "statuses": {
    "negative-pcr": {"condition": "timeout", "params": {"interval": {"min": 0, "max": 4}},
                      "success": "tested-green", "fail": {"health_status": "green", "priority": 1}},
    "tested-green": {"health_status": "green", "priority": 1},
    "gated": {"condition": "test-user", "params": {"role": ["Student", "Employee"], "student_level": "undergraduate"},
              "success": "tested-green", "fail": null}
  },
  "constants": {"exposure_minutes": 15, "quarantine": 14}
}`

func mustParse(t *testing.T) *RuleSet {
	t.Helper()
	rs, err := Parse([]byte(sampleDocument))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return rs
}

func TestParse_RejectsNonObjects(t *testing.T) {
	for _, doc := range []string{``, `[]`, `null`, `"rules"`, `{"tests":`} {
		if _, err := Parse([]byte(doc)); !errors.Is(err, ErrInvalidDocument) {
			t.Fatalf("Parse(%q) error = %v, want ErrInvalidDocument", doc, err)
		}
	}
}

func TestParse_EmptyObjectIsUsable(t *testing.T) {
	rs, err := Parse([]byte(`{}`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if rs.Defaults != nil || rs.StatusCount() != 0 || rs.ConstantCount() != 0 {
		t.Fatalf("empty document should produce an empty rule set")
	}
	if _, ok := rs.Tests.Match(&history.TestPayload{TestType: "PCR", TestResult: "positive"}); ok {
		t.Fatalf("empty catalog matched a test")
	}
}

func TestParse_StatusNodeVariants(t *testing.T) {
	rs := mustParse(t)

	if _, ok := rs.Defaults.(*Status); !ok {
		t.Fatalf("defaults should be a leaf, got %T", rs.Defaults)
	}
	node, ok := rs.NamedStatus("negative-pcr")
	if !ok {
		t.Fatalf("negative-pcr missing")
	}
	cond, ok := node.(*ConditionalStatus)
	if !ok {
		t.Fatalf("negative-pcr should be conditional, got %T", node)
	}
	if cond.Condition != CondTimeout {
		t.Fatalf("Condition = %q, want timeout", cond.Condition)
	}
	if ref, ok := cond.Success.(StatusRef); !ok || ref != "tested-green" {
		t.Fatalf("Success = %#v, want StatusRef(tested-green)", cond.Success)
	}
	if _, ok := cond.Params.Interval.(*interval.Range); !ok {
		t.Fatalf("params interval should be a range, got %T", cond.Params.Interval)
	}

	gated, _ := rs.NamedStatus("gated")
	gc := gated.(*ConditionalStatus)
	if len(gc.Params.Roles) != 2 || len(gc.Params.StudentLevels) != 1 {
		t.Fatalf("test-user params = %#v", gc.Params)
	}
	if gc.Fail != nil {
		t.Fatalf("null fail branch should parse as absent")
	}
	if _, ok := rs.NamedStatus("unknown"); ok {
		t.Fatalf("unknown named status resolved")
	}
}

func TestParse_LeafFields(t *testing.T) {
	rs := mustParse(t)
	res, ok := rs.Tests.Match(&history.TestPayload{TestType: "PCR", TestResult: "positive"})
	if !ok {
		t.Fatalf("PCR positive did not match")
	}
	s := res.Status.(*Status)
	if s.Code != StatusRed || s.PriorityValue() != 10 {
		t.Fatalf("status = %s/%d, want red/10", s.Code, s.PriorityValue())
	}
	if v, ok := s.NextStepInterval.Value(rs); !ok || v != 14 {
		t.Fatalf("next step interval = %d, %v, want 14 via constant", v, ok)
	}
	if (&Status{}).PriorityValue() != 0 {
		t.Fatalf("undefined priority should read as 0")
	}
}

func TestTestRules_Match(t *testing.T) {
	rs := mustParse(t)
	tests := []struct {
		name         string
		testType     string
		result       string
		wantCategory string
		wantOK       bool
	}{
		{name: "exact", testType: "PCR", result: "negative", wantCategory: "B", wantOK: true},
		{name: "case insensitive", testType: "pcr", result: "POSITIVE", wantCategory: "A", wantOK: true},
		{name: "first type wins", testType: "PCR", result: "inconclusive", wantOK: false},
		{name: "other type", testType: "antibody", result: "positive", wantCategory: "D", wantOK: true},
		{name: "unknown type", testType: "rapid", result: "positive", wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := rs.Tests.Match(&history.TestPayload{TestType: tt.testType, TestResult: tt.result})
			if ok != tt.wantOK {
				t.Fatalf("Match() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got.Category != tt.wantCategory {
				t.Fatalf("Category = %q, want %q", got.Category, tt.wantCategory)
			}
		})
	}
}

func TestSymptomRules_Match(t *testing.T) {
	rs := mustParse(t)
	if g, ok := rs.Symptoms.Group("gr1"); !ok || len(g.Members) != 3 {
		t.Fatalf("gr1 should have 3 members including object form")
	}
	tests := []struct {
		name     string
		symptoms []string
		want     HealthStatus
		wantOK   bool
	}{
		{name: "three in gr1", symptoms: []string{"fever", "cough", "chills"}, want: StatusYellow, wantOK: true},
		{name: "one in each", symptoms: []string{"cough", "fatigue"}, want: StatusOrange, wantOK: true},
		{name: "none", symptoms: nil, want: StatusGreen, wantOK: true},
		{name: "only gr2", symptoms: []string{"fatigue"}, wantOK: false},
		{name: "unknown ids ignored", symptoms: []string{"sneeze"}, want: StatusGreen, wantOK: true},
		{name: "undeclared group never matches", symptoms: []string{"fatigue", "sneeze"}, wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := rs.Symptoms.Match(&history.SymptomsPayload{Symptoms: tt.symptoms}, rs)
			if ok != tt.wantOK {
				t.Fatalf("Match() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got.Status.(*Status).Code != tt.want {
				t.Fatalf("status = %s, want %s", got.Status.(*Status).Code, tt.want)
			}
		})
	}
}

func TestContactTraceRules_Match(t *testing.T) {
	rs := mustParse(t)
	tests := []struct {
		ms     int64
		want   HealthStatus
		wantOK bool
	}{
		{ms: 20 * 60000, want: StatusOrange, wantOK: true},
		{ms: 14*60000 + 31000, want: StatusOrange, wantOK: true},
		{ms: 10 * 60000, want: StatusUnchanged, wantOK: true},
	}
	for _, tt := range tests {
		got, ok := rs.ContactTrace.Match(&history.ContactTracePayload{DurationMillis: tt.ms}, rs)
		if ok != tt.wantOK {
			t.Fatalf("Match(%d) ok = %v, want %v", tt.ms, ok, tt.wantOK)
		}
		if ok && got.Status.(*Status).Code != tt.want {
			t.Fatalf("Match(%d) = %s, want %s", tt.ms, got.Status.(*Status).Code, tt.want)
		}
	}
}

func TestActionRules_Match(t *testing.T) {
	rs := mustParse(t)
	got, ok := rs.Actions.Match(&history.ActionPayload{ActionType: "Quarantine-Off"})
	if !ok || got.Status.(*Status).PriorityValue() != -1 {
		t.Fatalf("Match() = %#v, %v", got, ok)
	}
	if _, ok := rs.Actions.Match(&history.ActionPayload{ActionType: "release"}); ok {
		t.Fatalf("unknown action matched")
	}
	if _, ok := rs.Actions.Match(nil); ok {
		t.Fatalf("nil payload matched")
	}
}

func TestParseStatusNode_Malformed(t *testing.T) {
	for _, raw := range []any{nil, float64(3), true, []any{}, ""} {
		if node := ParseStatusNode(raw); node != nil {
			t.Fatalf("ParseStatusNode(%#v) = %#v, want nil", raw, node)
		}
	}
}
