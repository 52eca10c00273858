package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dfcarvalho/jira-epic-helper/pkg/types"
)

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().String("json-path", "", "The spec file to validate")
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a create or bulk-create spec file without remote calls",
	Long: `Validate an issue spec file for structural correctness: required keys,
non-empty issue lists, and duplicate summaries. Schema-level validation
(allowed values, required tracker fields) happens at creation time, since it
needs the remote field metadata.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("json-path")
		if path == "" {
			return usageErr("--json-path is required")
		}

		var spec types.BulkSpec
		if err := loadSpecFile(path, &spec); err != nil {
			return err
		}

		var errs []string
		if len(spec.Issues) > 0 {
			errs = validateBulkSpec(spec)
		} else {
			var single types.IssueSpec
			if err := loadSpecFile(path, &single); err != nil {
				return err
			}
			errs = validateIssueSpec(single)
		}

		if len(errs) > 0 {
			fmt.Fprintf(os.Stderr, "Validation failed with %d error(s):\n", len(errs))
			for i, e := range errs {
				fmt.Fprintf(os.Stderr, "  %d. %s\n", i+1, e)
			}
			return fmt.Errorf("spec file %s is invalid", path)
		}

		fmt.Println("Spec is valid.")
		return nil
	},
}

func validateIssueSpec(spec types.IssueSpec) []string {
	var errs []string
	if spec.ProjectKey() == "" {
		errs = append(errs, "project_key is required")
	}
	if spec.IssueType() == "" {
		errs = append(errs, "issuetype is required")
	}
	if summary, _ := spec["summary"].(string); summary == "" {
		errs = append(errs, "summary is required")
	}
	return errs
}

func validateBulkSpec(spec types.BulkSpec) []string {
	var errs []string
	if spec.ProjectKey == "" {
		errs = append(errs, "project_key is required")
	}
	if spec.IssueType == "" {
		// acceptable only when every item carries its own type
		for i, item := range spec.Issues {
			if item.IssueType == "" {
				errs = append(errs, fmt.Sprintf("issues[%d]: no issuetype (neither top-level nor per-item)", i))
			}
		}
	}

	summaries := make(map[string]bool)
	for i, item := range spec.Issues {
		if item.Summary == "" {
			errs = append(errs, fmt.Sprintf("issues[%d]: summary is required", i))
			continue
		}
		if summaries[item.Summary] {
			errs = append(errs, fmt.Sprintf("issues[%d]: duplicate summary %q", i, item.Summary))
		}
		summaries[item.Summary] = true
	}
	return errs
}
