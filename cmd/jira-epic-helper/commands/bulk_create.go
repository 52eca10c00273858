package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dfcarvalho/jira-epic-helper/pkg/types"
)

func init() {
	rootCmd.AddCommand(bulkCreateCmd)
	bulkCreateCmd.Flags().String("json-path", "", "Path to the bulk spec file (JSON or YAML)")
}

var bulkCreateCmd = &cobra.Command{
	Use:   "bulk-create",
	Short: "Create a batch of issues as one bulk request",
	Long: `Create multiple Jira issues from a JSON or YAML spec. Field schemas are
fetched at most once per distinct issue type in the batch, and all items are
submitted together as a single bulk request. Items that fail validation are
reported individually without aborting the rest of the batch.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("json-path")
		if path == "" {
			return usageErr("--json-path is required")
		}

		var spec types.BulkSpec
		if err := loadSpecFile(path, &spec); err != nil {
			return err
		}

		svc, err := newService()
		if err != nil {
			return err
		}

		report, err := svc.CreateBulk(context.Background(), spec)
		if report != nil {
			fmt.Println(report)
			for _, key := range report.Created {
				fmt.Printf("  created: %s\n", key)
			}
			for _, f := range report.Failed {
				fmt.Printf("  failed: %s: %s\n", f.Summary, f.Reason)
			}
		}
		if err != nil {
			return err
		}
		if len(report.Failed) > 0 {
			return fmt.Errorf("%d issue(s) failed validation", len(report.Failed))
		}
		return nil
	},
}
