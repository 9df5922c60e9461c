package engine

import (
	"strings"
	"time"

	"github.com/sbutler/safer-illinois-app/internal/history"
	"github.com/sbutler/safer-illinois-app/internal/rules"
)

// NextStepDateMacro is replaced by the formatted next step date in status
// message templates.
const NextStepDateMacro = "{next_step_date}"

// DateFormatter renders the next step date for a presentation layer.
type DateFormatter interface {
	Today() string
	Tomorrow() string
	Format(t time.Time) string
}

// EnglishDates is the default DateFormatter.
type EnglishDates struct{}

func (EnglishDates) Today() string             { return "today" }
func (EnglishDates) Tomorrow() string          { return "tomorrow" }
func (EnglishDates) Format(t time.Time) string { return t.Format("Monday, January 2") }

// FormatDate renders date relative to now in loc: "today", "tomorrow" or a
// calendar date. A nil date renders as the empty string.
func FormatDate(date *time.Time, now time.Time, loc *time.Location, f DateFormatter) string {
	if date == nil {
		return ""
	}
	if f == nil {
		f = EnglishDates{}
	}
	if loc == nil {
		loc = time.Local
	}
	switch history.DayDifference(history.MidnightIn(now, loc), history.MidnightIn(*date, loc)) {
	case 0:
		return f.Today()
	case 1:
		return f.Tomorrow()
	}
	return f.Format(date.In(loc))
}

// ExpandTemplate substitutes the next step date macro in tmpl.
func ExpandTemplate(tmpl string, date *time.Time, now time.Time, loc *time.Location, f DateFormatter) string {
	if !strings.Contains(tmpl, NextStepDateMacro) {
		return tmpl
	}
	return strings.ReplaceAll(tmpl, NextStepDateMacro, FormatDate(date, now, loc, f))
}

// Messages holds the expanded message templates of a status.
type Messages struct {
	NextStep         string `json:"next_step,omitempty" yaml:"next_step,omitempty"`
	NextStepHTML     string `json:"next_step_html,omitempty" yaml:"next_step_html,omitempty"`
	EventExplanation string `json:"event_explanation,omitempty" yaml:"event_explanation,omitempty"`
	Reason           string `json:"reason,omitempty" yaml:"reason,omitempty"`
	Warning          string `json:"warning,omitempty" yaml:"warning,omitempty"`
}

// ExpandMessages expands every template of s.
func ExpandMessages(s *rules.Status, date *time.Time, now time.Time, loc *time.Location, f DateFormatter) Messages {
	if s == nil {
		return Messages{}
	}
	expand := func(tmpl string) string { return ExpandTemplate(tmpl, date, now, loc, f) }
	return Messages{
		NextStep:         expand(s.NextStepTemplate),
		NextStepHTML:     expand(s.NextStepHTMLTemplate),
		EventExplanation: expand(s.EventExplanationTemplate),
		Reason:           expand(s.ReasonTemplate),
		Warning:          expand(s.WarningTemplate),
	}
}
