package types

import (
	"strings"
	"time"
)

// Epic is a project-management record tracked as a Jira issue. Key, Summary
// and Status are always present; everything else is optional and nil until a
// spreadsheet row or a Jira response provides it. Records are only ever
// mutated in place by new data, never deleted.
type Epic struct {
	Key     string `json:"key"`
	Summary string `json:"summary"`
	Status  string `json:"status"`

	Components  string `json:"components,omitempty"`
	FixVersions string `json:"fix_versions,omitempty"`

	PlannedStartDate *time.Time `json:"planned_start_date,omitempty"`
	PlannedEndDate   *time.Time `json:"planned_end_date,omitempty"`
	StartDate        *time.Time `json:"start_date,omitempty"`
	DueDate          *time.Time `json:"due_date,omitempty"`
	EndDate          *time.Time `json:"end_date,omitempty"`

	FirstFixVersion string `json:"first_fix_version,omitempty"`
	Cycle           string `json:"cycle,omitempty"`

	PlannedDays   *float64 `json:"planned_days,omitempty"`
	ExecutedDays  *float64 `json:"executed_days,omitempty"`
	DevsPlanned   *float64 `json:"devs_planned,omitempty"`
	DevsUsed      *float64 `json:"devs_used,omitempty"`
	WorstEstimate *float64 `json:"worst_estimate,omitempty"`
	BestEstimate  *float64 `json:"best_estimate,omitempty"`

	DaysInProgress *int `json:"days_in_progress,omitempty"`

	Assignee string `json:"assignee,omitempty"`
	Labels   string `json:"labels,omitempty"`
}

// Matches reports whether this epic corresponds to the given key and summary.
func (e *Epic) Matches(key, summary string) bool {
	return e.Key == key && e.Summary == summary
}

// UpdateFromJira merges fields from a Jira issue response into the epic.
// The response is ignored when its key/summary do not match this record.
// startDateField is the custom field id holding the actual start date.
func (e *Epic) UpdateFromJira(issue map[string]any, startDateField string) bool {
	fields, _ := issue["fields"].(map[string]any)
	key, _ := issue["key"].(string)
	summary, _ := fields["summary"].(string)
	if !e.Matches(key, summary) {
		return false
	}

	if status, ok := fields["status"].(map[string]any); ok {
		if name, ok := status["name"].(string); ok && name != "" {
			e.Status = name
		}
	}
	if assignee, ok := fields["assignee"].(map[string]any); ok {
		if name, ok := assignee["displayName"].(string); ok && name != "" {
			e.Assignee = name
		}
	}
	if labels, ok := fields["labels"].([]any); ok {
		parts := make([]string, 0, len(labels))
		for _, l := range labels {
			if s, ok := l.(string); ok {
				parts = append(parts, s)
			}
		}
		e.Labels = strings.Join(parts, ", ")
	}
	if d := parseJiraDate(fields[startDateField]); d != nil {
		e.StartDate = d
	}
	if d := parseJiraDate(fields["duedate"]); d != nil {
		e.DueDate = d
	}
	return true
}

// WorkdayCounter counts working days in an inclusive date range.
type WorkdayCounter interface {
	WorkdaysInRange(start, end time.Time) int
}

// RefreshDaysInProgress recomputes the working days the epic has spent in
// progress. An epic without a start date is left alone; a completed epic
// counts up to its end date, an open one up to now.
func (e *Epic) RefreshDaysInProgress(c WorkdayCounter, now time.Time) {
	if e.StartDate == nil {
		return
	}
	until := now
	if e.EndDate != nil {
		until = *e.EndDate
	}
	d := c.WorkdaysInRange(*e.StartDate, until)
	e.DaysInProgress = &d
}

func parseJiraDate(v any) *time.Time {
	s, ok := v.(string)
	if !ok || s == "" {
		return nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339, "2006-01-02T15:04:05.000-0700"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
