package rules

import "github.com/sbutler/safer-illinois-app/internal/interval"

// HealthStatus is the closed set of status codes a rule can produce.
type HealthStatus string

const (
	StatusRed       HealthStatus = "red"
	StatusOrange    HealthStatus = "orange"
	StatusYellow    HealthStatus = "yellow"
	StatusGreen     HealthStatus = "green"
	StatusUnchanged HealthStatus = "unchanged"
)

// Condition names the check performed by a conditional status.
type Condition string

// Supported conditions. The vocabulary is closed.
const (
	CondRequireTest     Condition = "require-test"
	CondRequireSymptoms Condition = "require-symptoms"
	CondTimeout         Condition = "timeout"
	CondTestUser        Condition = "test-user"
	CondTestInterval    Condition = "test-interval"
)

// StatusNode is the closed union of status shapes found in a rule document:
// *Status (leaf), StatusRef (named reference) and *ConditionalStatus.
// The variant is decided once, when the document is parsed.
type StatusNode interface {
	statusNode()
}

// Status is a leaf status. Templates may contain the next step date macro.
type Status struct {
	Code                     HealthStatus
	Priority                 *int
	NextStepTemplate         string
	NextStepHTMLTemplate     string
	NextStepInterval         interval.Interval
	EventExplanationTemplate string
	ReasonTemplate           string
	WarningTemplate          string
}

// PriorityValue returns the priority, treating an undefined one as 0.
func (s *Status) PriorityValue() int {
	if s == nil || s.Priority == nil {
		return 0
	}
	return *s.Priority
}

// StatusRef names an entry of the rule set's status table.
type StatusRef string

// ConditionalStatus selects Success or Fail depending on its condition.
type ConditionalStatus struct {
	Condition Condition
	Params    Params
	Success   StatusNode
	Fail      StatusNode
}

// Params is the pre-parsed parameter bag of a conditional status.
type Params struct {
	// Interval is the day window (require-*, timeout) or the gate (test-interval).
	Interval interval.Interval
	// Categories filters require-test candidates; empty means any category.
	Categories []string
	// Roles and StudentLevels are matched by test-user; empty means "not supplied".
	Roles         []string
	StudentLevels []string
	// Raw keeps the original parameters for diagnostics.
	Raw map[string]any
}

func (*Status) statusNode()            {}
func (StatusRef) statusNode()          {}
func (*ConditionalStatus) statusNode() {}
