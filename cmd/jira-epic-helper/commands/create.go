package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dfcarvalho/jira-epic-helper/pkg/types"
)

func init() {
	rootCmd.AddCommand(createCmd)
	createCmd.Flags().String("json-path", "", "Path to the issue spec file (JSON or YAML)")
}

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a single issue from a declarative spec file",
	Long: `Create one Jira issue from a JSON or YAML spec containing project_key,
issuetype, summary, description and any other field keys valid for the issue
type. The payload is built and validated against the issue type's field
schema before submission.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("json-path")
		if path == "" {
			return usageErr("--json-path is required")
		}

		var spec types.IssueSpec
		if err := loadSpecFile(path, &spec); err != nil {
			return err
		}

		svc, err := newService()
		if err != nil {
			return err
		}

		key, err := svc.CreateIssue(context.Background(), spec)
		if err != nil {
			return err
		}
		fmt.Printf("Issue created with key: %s\n", key)
		return nil
	},
}
