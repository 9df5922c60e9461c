package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"github.com/sbutler/safer-illinois-app/internal/codec"
	"github.com/sbutler/safer-illinois-app/internal/engine"
	"github.com/sbutler/safer-illinois-app/internal/store"
)

// OutputFormat specifies the output format for CLI commands
type OutputFormat string

const (
	FormatTable OutputFormat = "table"
	FormatJSON  OutputFormat = "json"
	FormatYAML  OutputFormat = "yaml"
)

// TimelineView is the printable form of an evaluated timeline.
type TimelineView struct {
	HealthStatus string          `json:"health_status" yaml:"health_status"`
	Priority     *int            `json:"priority,omitempty" yaml:"priority,omitempty"`
	NextStepDate string          `json:"next_step_date,omitempty" yaml:"next_step_date,omitempty"`
	Messages     engine.Messages `json:"messages" yaml:"messages"`
	Steps        []StepView      `json:"steps,omitempty" yaml:"steps,omitempty"`
}

// StepView is one replayed history entry.
type StepView struct {
	Date         string `json:"date" yaml:"date"`
	Type         string `json:"type" yaml:"type"`
	HealthStatus string `json:"health_status" yaml:"health_status"`
	Priority     int    `json:"priority" yaml:"priority"`
	Applied      bool   `json:"applied" yaml:"applied"`
}

// NewTimelineView flattens tl for printing.
func NewTimelineView(tl engine.Timeline) TimelineView {
	v := TimelineView{Messages: tl.Messages}
	if tl.Status != nil {
		v.HealthStatus = string(tl.Status.Code)
		v.Priority = tl.Status.Priority
	}
	if tl.NextStepDate != nil {
		v.NextStepDate = codec.FormatDate(*tl.NextStepDate)
	}
	for _, s := range tl.Steps {
		sv := StepView{
			Date:    codec.FormatDate(s.Entry.Date),
			Type:    string(s.Entry.Kind),
			Applied: s.Applied,
		}
		if s.Status != nil {
			sv.HealthStatus = string(s.Status.Code)
			sv.Priority = s.Status.PriorityValue()
		}
		v.Steps = append(v.Steps, sv)
	}
	return v
}

// PrintTimeline outputs an evaluated timeline in the specified format
func PrintTimeline(w io.Writer, tl engine.Timeline, format OutputFormat) error {
	v := NewTimelineView(tl)
	switch format {
	case FormatJSON:
		return printJSON(w, v)
	case FormatYAML:
		return printYAML(w, v)
	case FormatTable:
		return printTimelineTable(w, v)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// PrintVersions outputs stored rule document versions in the specified format
func PrintVersions(w io.Writer, docs []store.Document, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(w, map[string][]store.Document{"versions": docs})
	case FormatYAML:
		type row struct {
			Version   int64  `yaml:"version"`
			ETag      string `yaml:"etag"`
			UpdatedAt string `yaml:"updated_at"`
		}
		rows := make([]row, 0, len(docs))
		for _, d := range docs {
			rows = append(rows, row{d.Version, d.ETag, codec.FormatDate(d.UpdatedAt)})
		}
		return printYAML(w, rows)
	case FormatTable:
		table := tablewriter.NewWriter(w)
		table.Header("Version", "ETag", "Updated At")
		for _, d := range docs {
			if err := table.Append(strconv.FormatInt(d.Version, 10), d.ETag, d.UpdatedAt.Format("2006-01-02 15:04")); err != nil {
				return err
			}
		}
		return table.Render()
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func printJSON(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func printYAML(w io.Writer, data any) error {
	encoder := yaml.NewEncoder(w)
	defer encoder.Close()
	encoder.SetIndent(2)
	return encoder.Encode(data)
}

func printTimelineTable(w io.Writer, v TimelineView) error {
	table := tablewriter.NewWriter(w)
	table.Header("Date", "Type", "Status", "Priority", "Applied")
	for _, s := range v.Steps {
		applied := ""
		if s.Applied {
			applied = "yes"
		}
		if err := table.Append(s.Date, s.Type, s.HealthStatus, strconv.Itoa(s.Priority), applied); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}

	status := v.HealthStatus
	if status == "" {
		status = "none"
	}
	if _, err := fmt.Fprintf(w, "\nStatus: %s\n", status); err != nil {
		return err
	}
	if v.NextStepDate != "" {
		fmt.Fprintf(w, "Next step date: %s\n", v.NextStepDate)
	}
	if v.Messages.NextStep != "" {
		fmt.Fprintf(w, "Next step: %s\n", v.Messages.NextStep)
	}
	if v.Messages.Reason != "" {
		fmt.Fprintf(w, "Reason: %s\n", v.Messages.Reason)
	}
	return nil
}

// PrintStatus outputs a single evaluated status in the specified format
func PrintStatus(w io.Writer, s *codec.StatusBlob, format OutputFormat) error {
	v := TimelineView{HealthStatus: "none"}
	if s != nil {
		v = TimelineView{
			HealthStatus: s.HealthStatus,
			Priority:     s.Priority,
			Messages: engine.Messages{
				NextStep:         s.NextStep,
				NextStepHTML:     s.NextStepHTML,
				EventExplanation: s.EventExplanation,
				Reason:           s.Reason,
				Warning:          s.Warning,
			},
		}
		if !s.NextStepDate.IsZero() {
			v.NextStepDate = codec.FormatDate(s.NextStepDate.Time)
		}
	}
	switch format {
	case FormatJSON:
		return printJSON(w, v)
	case FormatYAML:
		return printYAML(w, v)
	case FormatTable:
		return printTimelineTable(w, v)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}
