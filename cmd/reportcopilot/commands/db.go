package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/teranos/reportcopilot/db"
	"github.com/teranos/reportcopilot/errors"
	"github.com/teranos/reportcopilot/pulse/async"
)

// DbCmd represents the db (database) command
var DbCmd = &cobra.Command{
	Use:   "db",
	Short: glyphDB + " Inspect the reportcopilot database",
	Long: glyphDB + ` db - Inspect the reportcopilot database

Examples:
  reportcopilot db stats          # Show job counts, usage rows and migrations`,
}

var dbStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show database statistics",
	RunE:  runDbStats,
}

func init() {
	DbCmd.AddCommand(dbStatsCmd)
}

func runDbStats(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	counts := map[async.JobStatus]int{}
	rows, err := a.db.Query(`SELECT status, COUNT(*) FROM report_jobs GROUP BY status`)
	if err != nil {
		return errors.Wrap(err, "failed to count jobs")
	}
	defer rows.Close()
	total := 0
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return errors.Wrap(err, "failed to scan job count")
		}
		counts[async.JobStatus(status)] = n
		total += n
	}
	if err := rows.Err(); err != nil {
		return errors.Wrap(err, "failed to count jobs")
	}

	var usageRows int
	if err := a.db.QueryRow(`SELECT COUNT(*) FROM ai_model_usage`).Scan(&usageRows); err != nil {
		return errors.Wrap(err, "failed to count usage rows")
	}

	versions, err := db.AppliedVersions(a.db)
	if err != nil {
		return err
	}

	fmt.Printf("%s Database Statistics\n", glyphDB)
	fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")
	fmt.Printf("Database Path:   %s\n", a.cfg.GetDatabasePath())
	fmt.Printf("Total Jobs:      %d\n", total)
	for _, s := range []async.JobStatus{
		async.JobStatusQueued, async.JobStatusRunning, async.JobStatusDone,
		async.JobStatusFailed, async.JobStatusCanceled,
	} {
		fmt.Printf("  %-13s  %d\n", s+":", counts[s])
	}
	fmt.Printf("LLM Usage Rows:  %d\n", usageRows)
	fmt.Printf("Migrations:      %s\n", strings.Join(versions, ", "))
	return nil
}
