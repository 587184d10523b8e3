package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/reportcopilot/cmd/reportcopilot/commands"
	"github.com/teranos/reportcopilot/errors"
	"github.com/teranos/reportcopilot/logger"
)

var rootCmd = &cobra.Command{
	Use:   "reportcopilot",
	Short: "Report Copilot - multi-step report generation",
	Long: `Report Copilot - turn lab manuals, notes and CSV data into structured reports.

Each report runs a fixed pipeline: research, data analysis, writing with a
structural repair pass, optional review and figure suggestions, and a
rule-based quality gate with one automatic fix.

Available commands:
  run       - Generate a report now and wait for it
  submit    - Queue a report for the pulse daemon
  pulse     - Run the background job workers
  jobs      - List, inspect, cancel, retry and edit report jobs
  templates - Show the available document templates
  quality   - Check a report file against a template
  cleanup   - Remove old job artifacts
  usage     - Show generation usage and budget status
  am        - Manage configuration ("I am")
  db        - Show database statistics

Examples:
  reportcopilot run --template lab_report --manual manual.txt --csv data.csv
  reportcopilot submit --template study_guide --manual notes.txt
  reportcopilot pulse start
  reportcopilot jobs ls --status failed`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A missing .env is normal
		_ = godotenv.Load()

		verbosity, _ := cmd.Flags().GetCount("verbose")
		jsonLogs, _ := cmd.Flags().GetBool("json-logs")
		if err := logger.Initialize(jsonLogs, verbosity); err != nil {
			return errors.Wrap(err, "failed to initialize logger")
		}
		logger.Logger.Debugw("Logger initialized", "level", logger.LevelName(verbosity))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Cleanup()
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv)")
	rootCmd.PersistentFlags().Bool("json-logs", false, "Write logs as JSON to stderr")

	rootCmd.AddCommand(commands.RunCmd)
	rootCmd.AddCommand(commands.SubmitCmd)
	rootCmd.AddCommand(commands.PulseCmd)
	rootCmd.AddCommand(commands.JobsCmd)
	rootCmd.AddCommand(commands.TemplatesCmd)
	rootCmd.AddCommand(commands.QualityCmd)
	rootCmd.AddCommand(commands.CleanupCmd)
	rootCmd.AddCommand(commands.UsageCmd)
	rootCmd.AddCommand(commands.AmCmd)
	rootCmd.AddCommand(commands.DbCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		pterm.Error.Println(err.Error())
		for _, hint := range errors.GetAllHints(err) {
			pterm.Info.Println(hint)
		}
		os.Exit(1)
	}
}
