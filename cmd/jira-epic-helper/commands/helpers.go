package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/dfcarvalho/jira-epic-helper/pkg/cache"
	"github.com/dfcarvalho/jira-epic-helper/pkg/engine"
	"github.com/dfcarvalho/jira-epic-helper/pkg/jira"
	"github.com/dfcarvalho/jira-epic-helper/pkg/logger"
	"github.com/dfcarvalho/jira-epic-helper/pkg/types"
)

// newService wires the logger, tracker client and cache store into an engine
// service from the resolved configuration.
func newService() (*engine.Service, error) {
	log := logger.New(viper.GetString("env"))

	client, err := jira.NewClient(jira.Options{
		BaseURL: viper.GetString("jira_url"),
		Email:   viper.GetString("email"),
		Token:   viper.GetString("api_token"),
		Timeout: 30 * time.Second,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create jira client: %w", err)
	}

	store, err := cache.New(viper.GetString("cache_dir"), log)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}

	cfg := engine.Config{
		Project:          viper.GetString("project"),
		SquadField:       viper.GetString("squad_field"),
		SquadCustomField: viper.GetString("squad_custom_field"),
		StartDateField:   viper.GetString("start_date_field"),
		EndDateField:     viper.GetString("end_date_field"),
		InProgressStatus: viper.GetString("in_progress_status"),
		DoneStatus:       viper.GetString("done_status"),
	}
	return engine.NewService(client, store, cfg, log), nil
}

// mergeTracker merges tracker responses into the matching spreadsheet
// records and recomputes their days-in-progress figure. Returns how many
// records picked up tracker state.
func mergeTracker(epics []types.Epic, issues []engine.Issue, startDateField string, counter types.WorkdayCounter, now time.Time) int {
	merged := 0
	for i := range epics {
		for _, issue := range issues {
			raw := map[string]any{"key": issue.Key, "fields": issue.Fields}
			if epics[i].UpdateFromJira(raw, startDateField) {
				epics[i].RefreshDaysInProgress(counter, now)
				merged++
				break
			}
		}
	}
	return merged
}

// loadSpecFile decodes a declarative spec file into out, accepting JSON or
// YAML by extension.
func loadSpecFile(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, out); err != nil {
			return fmt.Errorf("invalid YAML: %w", err)
		}
	default:
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("invalid JSON: %w", err)
		}
	}
	return nil
}
