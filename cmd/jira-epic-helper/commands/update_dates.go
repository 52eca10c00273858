package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(updateDatesCmd)
	updateDatesCmd.Flags().String("team-name", "", "Name of the team (Squad) to filter epics")
}

var updateDatesCmd = &cobra.Command{
	Use:   "update-dates",
	Short: "Update the start and end dates for completed epics with missing values",
	Long: `Scan completed epics of a team whose start or end date is missing,
recover the dates from the issues' changelog history, and push them back to
the tracker. An epic yielding only one of the two dates still gets a partial
update.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		team, _ := cmd.Flags().GetString("team-name")
		if team == "" {
			return usageErr("--team-name is required")
		}

		svc, err := newService()
		if err != nil {
			return err
		}

		report, err := svc.BackfillDates(context.Background(), team)
		if err != nil {
			return err
		}
		fmt.Printf("Scanned %d epics, updated %d (%d partial)\n", report.Scanned, report.Updated, report.Partial)
		for _, f := range report.Failed {
			fmt.Printf("  failed: %s: %s\n", f.Summary, f.Reason)
		}
		if len(report.Failed) > 0 {
			return fmt.Errorf("%d epic update(s) failed", len(report.Failed))
		}
		return nil
	},
}
