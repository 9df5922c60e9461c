package engine

import (
	"time"

	"github.com/sbutler/safer-illinois-app/internal/interval"
	"github.com/sbutler/safer-illinois-app/internal/rules"
)

// Weight ranks a status code by severity. Unknown codes and "unchanged" weigh 0.
func Weight(code rules.HealthStatus) int {
	switch code {
	case rules.StatusRed:
		return 4
	case rules.StatusOrange:
		return 3
	case rules.StatusYellow:
		return 2
	case rules.StatusGreen:
		return 1
	default:
		return 0
	}
}

// CanUpdateStatus reports whether next may replace the displayed status.
// A less severe status always applies. Otherwise next applies when its
// priority is negative or at least the current priority.
func CanUpdateStatus(current, next *rules.Status) bool {
	if next == nil {
		return false
	}
	if current == nil {
		return true
	}
	if Weight(next.Code) < Weight(current.Code) {
		return true
	}
	np := next.PriorityValue()
	return np < 0 || current.PriorityValue() <= np
}

// NextStepDate returns anchor shifted by the status's next step interval in
// days. The result is undefined when either is missing.
func NextStepDate(s *rules.Status, anchor time.Time, c interval.Constants) (time.Time, bool) {
	if s == nil || s.NextStepInterval == nil || anchor.IsZero() {
		return time.Time{}, false
	}
	days, ok := s.NextStepInterval.Value(c)
	if !ok {
		return time.Time{}, false
	}
	return anchor.AddDate(0, 0, days), true
}
