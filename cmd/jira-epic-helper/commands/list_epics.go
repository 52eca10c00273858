package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dfcarvalho/jira-epic-helper/pkg/engine"
	"github.com/dfcarvalho/jira-epic-helper/pkg/excel"
	"github.com/dfcarvalho/jira-epic-helper/pkg/forecast"
	"github.com/dfcarvalho/jira-epic-helper/pkg/logger"
)

func init() {
	rootCmd.AddCommand(listEpicsCmd)
	listEpicsCmd.Flags().String("team-name", "", "Name of the team (Squad) to filter issues")
	listEpicsCmd.Flags().Bool("completed", false, "List recently completed epics instead of open issues")
	listEpicsCmd.Flags().Int("since-days", 90, "With --completed, how many days back to look")
	listEpicsCmd.Flags().String("issue-type", "Epic", "Issue type to list when not using --completed")
	listEpicsCmd.Flags().String("fix-version", "", "Narrow open issues to a fix version")
	listEpicsCmd.Flags().String("excel-path", "", "Merge tracker state into this epic spreadsheet before printing")
	listEpicsCmd.Flags().String("sheet", "", "Sheet name (default: first sheet)")
}

var listEpicsCmd = &cobra.Command{
	Use:   "list-epics",
	Short: "List a team's epics straight from the tracker",
	Long: `List a team's issues from the tracker: open issues of a type, optionally
narrowed to a fix version, or epics completed within a recent window. When an
epic spreadsheet is given, the tracker state (status, assignee, labels,
dates) is merged into the matching records and the days-in-progress figure is
recomputed over the working-day calendar.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		team, _ := cmd.Flags().GetString("team-name")
		if team == "" {
			return usageErr("--team-name is required")
		}

		svc, err := newService()
		if err != nil {
			return err
		}

		ctx := context.Background()
		var issues []engine.Issue
		if completed, _ := cmd.Flags().GetBool("completed"); completed {
			sinceDays, _ := cmd.Flags().GetInt("since-days")
			issues, err = svc.FetchCompletedEpics(ctx, team, sinceDays)
		} else {
			issueType, _ := cmd.Flags().GetString("issue-type")
			fixVersion, _ := cmd.Flags().GetString("fix-version")
			issues, err = svc.FetchOpenIssues(ctx, team, issueType, fixVersion)
		}
		if err != nil {
			return err
		}

		if excelPath, _ := cmd.Flags().GetString("excel-path"); excelPath != "" {
			log := logger.New(viper.GetString("env"))
			sheet, _ := cmd.Flags().GetString("sheet")
			epics, err := excel.ReadEpics(excelPath, sheet, log)
			if err != nil {
				return err
			}
			calendar, err := forecast.ForRegion(viper.GetString("region"))
			if err != nil {
				return err
			}
			merged := mergeTracker(epics, issues, viper.GetString("start_date_field"), calendar, time.Now())
			fmt.Printf("Merged tracker state into %d of %d spreadsheet records\n", merged, len(epics))
			for _, e := range epics {
				line := fmt.Sprintf("%s  %-14s %s", e.Key, e.Status, e.Summary)
				if e.DaysInProgress != nil {
					line += fmt.Sprintf("  (%d working days in progress)", *e.DaysInProgress)
				}
				fmt.Println(line)
			}
			return nil
		}

		for _, issue := range issues {
			summary, _ := issue.Fields["summary"].(string)
			status := ""
			if st, ok := issue.Fields["status"].(map[string]any); ok {
				status, _ = st["name"].(string)
			}
			fmt.Printf("%s  %-14s %s\n", issue.Key, status, summary)
		}
		fmt.Printf("%d issue(s)\n", len(issues))
		return nil
	},
}
