package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// ErrUsage marks an invalid-argument failure; Execute maps it to exit code 2.
var ErrUsage = errors.New("invalid arguments")

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "jira-epic-helper",
		Short: "A CLI toolkit to sync Jira epics, bulk-create issues and forecast delivery",
		Long: `jira-epic-helper manages Jira epics: it backfills missing start/end
dates from changelog history, creates single or bulk issues from declarative
JSON/YAML specifications, and runs a Monte Carlo forecast of delivery
timelines from historical throughput.`,
		Run: func(cmd *cobra.Command, args []string) {
			// Default action when no subcommand is specified
			cmd.Help()
		},
	}
)

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main(). Exit codes: 0 on success,
// 1 on a reported operational failure, 2 on invalid arguments.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, ErrUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func usageErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUsage, fmt.Sprintf(format, args...))
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.SilenceUsage = true
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	})

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.jira-epic-helper.yaml)")
	rootCmd.PersistentFlags().String("jira-url", "", "Jira base URL (e.g. https://example.atlassian.net)")
	rootCmd.PersistentFlags().String("email", "", "Jira account email")
	rootCmd.PersistentFlags().String("api-token", "", "Jira API token")
	rootCmd.PersistentFlags().String("cache-dir", "", "directory for cached tracker responses")

	// Bind flags to viper
	viper.BindPFlag("jira_url", rootCmd.PersistentFlags().Lookup("jira-url"))
	viper.BindPFlag("email", rootCmd.PersistentFlags().Lookup("email"))
	viper.BindPFlag("api_token", rootCmd.PersistentFlags().Lookup("api-token"))
	viper.BindPFlag("cache_dir", rootCmd.PersistentFlags().Lookup("cache-dir"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			os.Exit(1)
		}

		// Search config in home directory with name ".jira-epic-helper" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".jira-epic-helper")

		viper.SetDefault("cache_dir", filepath.Join(home, ".jira-epic-helper", "cache"))
	}

	viper.SetDefault("env", "dev")
	viper.SetDefault("project", "")
	viper.SetDefault("squad_field", "Squad[Dropdown]")
	viper.SetDefault("squad_custom_field", "customfield_10265")
	viper.SetDefault("start_date_field", "customfield_10015")
	viper.SetDefault("end_date_field", "customfield_10233")
	viper.SetDefault("in_progress_status", "7 PI Started")
	viper.SetDefault("done_status", "Done")
	viper.SetDefault("region", "BR")

	// Read in environment variables that match
	viper.SetEnvPrefix("JIRA_EPIC_HELPER")
	viper.AutomaticEnv()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
