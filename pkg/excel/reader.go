package excel

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"github.com/dfcarvalho/jira-epic-helper/pkg/types"
)

// columnSetters maps spreadsheet column headers to epic fields. A cell of
// "-" or blank leaves the field unset.
var columnSetters = map[string]func(*types.Epic, string){
	"Key":     func(e *types.Epic, v string) { e.Key = v },
	"Summary": func(e *types.Epic, v string) { e.Summary = v },
	"Status":  func(e *types.Epic, v string) { e.Status = v },

	"Components":   func(e *types.Epic, v string) { e.Components = v },
	"Fix versions": func(e *types.Epic, v string) { e.FixVersions = v },

	"Planned Start Date": func(e *types.Epic, v string) { e.PlannedStartDate = parseDate(v) },
	"Planned End Date":   func(e *types.Epic, v string) { e.PlannedEndDate = parseDate(v) },
	"Start date":         func(e *types.Epic, v string) { e.StartDate = parseDate(v) },
	"Due date":           func(e *types.Epic, v string) { e.DueDate = parseDate(v) },
	"End date":           func(e *types.Epic, v string) { e.EndDate = parseDate(v) },

	"First Fix Version": func(e *types.Epic, v string) { e.FirstFixVersion = v },
	"Cycle":             func(e *types.Epic, v string) { e.Cycle = v },

	"Planned (Days)":  func(e *types.Epic, v string) { e.PlannedDays = parseNumber(v) },
	"Executed (Days)": func(e *types.Epic, v string) { e.ExecutedDays = parseNumber(v) },
	"Devs Planned":    func(e *types.Epic, v string) { e.DevsPlanned = parseNumber(v) },
	"Devs Used":       func(e *types.Epic, v string) { e.DevsUsed = parseNumber(v) },
	"Worst Estimate":  func(e *types.Epic, v string) { e.WorstEstimate = parseNumber(v) },
	"Best Estimate":   func(e *types.Epic, v string) { e.BestEstimate = parseNumber(v) },

	"Days in Progress": func(e *types.Epic, v string) { e.DaysInProgress = parseInt(v) },

	"Assignee": func(e *types.Epic, v string) { e.Assignee = v },
	"Labels":   func(e *types.Epic, v string) { e.Labels = v },
}

// ReadEpics loads epic records from an .xlsx sheet. The first row is the
// header; columns are matched by name and unknown columns are ignored. Rows
// without a Key are skipped. An empty sheet name means the first sheet.
func ReadEpics(path, sheet string, log zerolog.Logger) ([]types.Epic, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("excel: open %s: %w", path, err)
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("excel: read sheet %q: %w", sheet, err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("excel: sheet %q has no data rows", sheet)
	}

	header := rows[0]
	setters := make([]func(*types.Epic, string), len(header))
	for i, name := range header {
		setters[i] = columnSetters[strings.TrimSpace(name)]
	}

	epics := make([]types.Epic, 0, len(rows)-1)
	for _, row := range rows[1:] {
		var e types.Epic
		for i, cell := range row {
			if i >= len(setters) || setters[i] == nil {
				continue
			}
			cell = strings.TrimSpace(cell)
			if cell == "" || cell == "-" {
				continue
			}
			setters[i](&e, cell)
		}
		if e.Key == "" {
			continue
		}
		epics = append(epics, e)
	}
	log.Info().Str("path", path).Str("sheet", sheet).Int("epics", len(epics)).Msg("spreadsheet loaded")
	return epics, nil
}

var dateLayouts = []string{"2006-01-02", "02/01/2006", "01-02-06", "2006-01-02 15:04:05"}

func parseDate(v string) *time.Time {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return &t
		}
	}
	return nil
}

func parseNumber(v string) *float64 {
	f, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", "."), 64)
	if err != nil {
		return nil
	}
	return &f
}

func parseInt(v string) *int {
	n, err := strconv.Atoi(v)
	if err != nil {
		if f := parseNumber(v); f != nil {
			i := int(*f)
			return &i
		}
		return nil
	}
	return &n
}
