package engine

import (
	"context"
	"time"
)

// jiraTimestamp is the changelog created-at format.
const jiraTimestamp = "2006-01-02T15:04:05.000-0700"

// BackfillReport summarizes a date-backfill run.
type BackfillReport struct {
	Scanned int
	Updated int
	Partial int
	Failed  []BulkFailure
}

// BackfillDates finds completed epics of a team missing a start or end date
// and fills them from changelog history. An epic whose history yields only
// one of the two markers still gets a partial update with the other field
// sent as null; an epic yielding neither is left alone. A failed update is
// reported with its issue key and does not stop the run.
func (s *Service) BackfillDates(ctx context.Context, team string) (*BackfillReport, error) {
	jql := s.queries.MissingDates(team)
	s.log.Info().Str("team", team).Msg("fetching completed epics with missing dates")
	epics, err := s.FetchIssues(ctx, jql, "key,summary", true)
	if err != nil {
		return nil, err
	}

	report := &BackfillReport{}
	if len(epics) == 0 {
		s.log.Info().Str("team", team).Msg("no completed epics with missing dates found")
		return report, nil
	}

	for _, epic := range epics {
		report.Scanned++
		start, end := s.scanChangelog(epic.Changelog)
		if start == nil && end == nil {
			continue
		}
		if start == nil || end == nil {
			report.Partial++
		}
		s.log.Info().Str("issue", epic.Key).
			Interface("start", start).Interface("end", end).
			Msg("updating epic with dates found in changelog")
		if err := s.updateEpicDates(ctx, epic.Key, start, end); err != nil {
			report.Failed = append(report.Failed, BulkFailure{Summary: epic.Key, Reason: err.Error()})
			continue
		}
		report.Updated++
	}
	return report, nil
}

// scanChangelog walks the history chronologically looking for two marker
// events: entry into the in-progress status (start) and the transition out
// of it into done (end). The first occurrence of each wins and the scan
// stops as soon as both are found.
func (s *Service) scanChangelog(cl Changelog) (start, end *time.Time) {
	for _, history := range cl.Histories {
		for _, item := range history.Items {
			if item.Field != "status" {
				continue
			}
			if start == nil && item.ToString == s.cfg.InProgressStatus {
				if t := parseTimestamp(history.Created); t != nil {
					start = t
				}
			}
			if end == nil && item.FromString == s.cfg.InProgressStatus && item.ToString == s.cfg.DoneStatus {
				if t := parseTimestamp(history.Created); t != nil {
					end = t
				}
			}
			if start != nil && end != nil {
				return start, end
			}
		}
	}
	return start, end
}

// updateEpicDates pushes the discovered dates to the tracker. A missing
// marker is sent as null so the tracker clears nothing by accident.
func (s *Service) updateEpicDates(ctx context.Context, issueKey string, start, end *time.Time) error {
	fields := map[string]any{
		s.cfg.StartDateField: isoDate(start),
		s.cfg.EndDateField:   isoDate(end),
	}
	return s.UpdateIssueFields(ctx, issueKey, fields)
}

func isoDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format("2006-01-02")
}

func parseTimestamp(s string) *time.Time {
	t, err := time.Parse(jiraTimestamp, s)
	if err != nil {
		return nil
	}
	return &t
}
