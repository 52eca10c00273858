package engine

import (
	"fmt"
	"time"
)

// QueryBuilder assembles the JQL filters the service runs. The tracker's
// query language is an opaque collaborator; keeping construction here keeps
// project/field names out of the orchestration logic.
type QueryBuilder struct {
	Project    string
	SquadField string
}

// MissingDates selects completed epics of a team lacking a start or end date.
func (q QueryBuilder) MissingDates(team string) string {
	return fmt.Sprintf(
		"project = '%s' AND type = Epic AND status = Done AND '%s' = '%s' AND ('Start date' is EMPTY OR 'End date' is EMPTY)",
		q.Project, q.SquadField, team)
}

// CompletedSince selects a team's epics resolved on or after the given date.
func (q QueryBuilder) CompletedSince(team string, since time.Time) string {
	return fmt.Sprintf(
		"project = '%s' AND type = Epic AND '%s' = '%s' AND statusCategory = Done AND resolved >= %s",
		q.Project, q.SquadField, team, since.Format("2006-01-02"))
}

// OpenByType selects a team's open issues of a type, optionally narrowed to
// a fix version.
func (q QueryBuilder) OpenByType(team, issueType, fixVersion string) string {
	jql := fmt.Sprintf(
		"project = '%s' AND type = '%s' AND '%s' = '%s' AND statusCategory != Done",
		q.Project, issueType, q.SquadField, team)
	if fixVersion != "" {
		jql += fmt.Sprintf(" AND fixVersion = '%s'", fixVersion)
	}
	return jql
}
