package commands

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/exp/rand"

	"github.com/dfcarvalho/jira-epic-helper/pkg/excel"
	"github.com/dfcarvalho/jira-epic-helper/pkg/forecast"
	"github.com/dfcarvalho/jira-epic-helper/pkg/logger"
	"github.com/dfcarvalho/jira-epic-helper/pkg/report"
)

func init() {
	rootCmd.AddCommand(forecastCmd)
	forecastCmd.Flags().String("excel-path", "", "Path to the epic spreadsheet (.xlsx)")
	forecastCmd.Flags().String("sheet", "", "Sheet name (default: first sheet)")
	forecastCmd.Flags().String("cycle", "", "Planning cycle (first fix version) to forecast")
	forecastCmd.Flags().String("start", "", "Cycle start date (YYYY-MM-DD)")
	forecastCmd.Flags().String("end", "", "Cycle end date (YYYY-MM-DD)")
	forecastCmd.Flags().Int("developers", 0, "Total developers available in the cycle")
	forecastCmd.Flags().Int("days-out", 0, "Developer-days out of the team during the cycle")
	forecastCmd.Flags().Int("simulations", forecast.DefaultSimulations, "Number of Monte Carlo trials")
	forecastCmd.Flags().String("report-dir", "", "Write a JSON report of the result to this directory")
	forecastCmd.Flags().Bool("csv", false, "With --report-dir, also write the result as CSV")
}

// forecastCSVRow flattens a forecast result into one CSV record.
func forecastCSVRow(cycle string, r *forecast.Result) (header, row []string) {
	header = []string{"cycle", "items", "working_days", "capacity",
		"probability_on_time", "avg_overdue_days", "p50", "p85", "p95", "simulations"}
	row = []string{
		cycle,
		strconv.Itoa(r.Items),
		strconv.Itoa(r.WorkingDays),
		strconv.FormatFloat(r.Capacity, 'f', 2, 64),
		strconv.FormatFloat(r.ProbabilityOnTime, 'f', 4, 64),
		strconv.FormatFloat(r.AvgOverdueDays, 'f', 2, 64),
		strconv.FormatFloat(r.P50, 'f', 2, 64),
		strconv.FormatFloat(r.P85, 'f', 2, 64),
		strconv.FormatFloat(r.P95, 'f', 2, 64),
		strconv.Itoa(r.Simulations),
	}
	return header, row
}

var forecastCmd = &cobra.Command{
	Use:   "forecast",
	Short: "Run a Monte Carlo forecast of delivery for a planning cycle",
	Long: `Run a Monte Carlo simulation over the epics of a planning cycle. Per-item
durations come from PERT three-point estimates (or the planned duration when
no estimates exist), adjusted by historical execution statistics and
developer-allocation variance, then sampled against the team's working-day
capacity between the cycle dates.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		excelPath, _ := cmd.Flags().GetString("excel-path")
		cycle, _ := cmd.Flags().GetString("cycle")
		startStr, _ := cmd.Flags().GetString("start")
		endStr, _ := cmd.Flags().GetString("end")
		developers, _ := cmd.Flags().GetInt("developers")
		if excelPath == "" || cycle == "" || startStr == "" || endStr == "" {
			return usageErr("--excel-path, --cycle, --start and --end are required")
		}

		start, err := time.Parse("2006-01-02", startStr)
		if err != nil {
			return usageErr("invalid --start date %q", startStr)
		}
		end, err := time.Parse("2006-01-02", endStr)
		if err != nil {
			return usageErr("invalid --end date %q", endStr)
		}

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

		daysOut, _ := cmd.Flags().GetInt("days-out")
		simulations, _ := cmd.Flags().GetInt("simulations")
		params := forecast.Params{
			PlanningCycle:   cycle,
			CycleStart:      start,
			CycleEnd:        end,
			TotalDevelopers: developers,
			DaysOutOfTeam:   daysOut,
			Simulations:     simulations,
		}
		rng := rand.New(rand.NewSource(uint64(time.Now().UnixNano())))
		result, err := forecast.Simulate(epics, params, calendar, rng)
		if err != nil {
			return err
		}

		fmt.Printf("Planning cycle %q: %d items, %d working days, capacity %.0f developer-days\n",
			cycle, result.Items, result.WorkingDays, result.Capacity)
		fmt.Printf("P50: %.2f  P85: %.2f  P95: %.2f developer-days\n", result.P50, result.P85, result.P95)
		fmt.Printf("Probability of completing on time: %.2f%%\n", result.ProbabilityOnTime*100)
		if result.AvgOverdueDays > 0 {
			fmt.Printf("Average overdue developer-days if missed: %.2f\n", result.AvgOverdueDays)
		} else {
			fmt.Println("All simulations completed within the deadline.")
		}

		if dir, _ := cmd.Flags().GetString("report-dir"); dir != "" {
			w, err := report.NewWriter(dir, log)
			if err != nil {
				return err
			}
			stamp := time.Now().Format("20060102_150405")
			path, err := w.WriteJSON(fmt.Sprintf("forecast_%s_%s.json", cycle, stamp), result)
			if err != nil {
				return err
			}
			fmt.Printf("Report written to %s\n", path)

			if csvOut, _ := cmd.Flags().GetBool("csv"); csvOut {
				header, row := forecastCSVRow(cycle, result)
				path, err := w.WriteCSV(fmt.Sprintf("forecast_%s_%s.csv", cycle, stamp), header, [][]string{row})
				if err != nil {
					return err
				}
				fmt.Printf("Report written to %s\n", path)
			}
		}
		return nil
	},
}
