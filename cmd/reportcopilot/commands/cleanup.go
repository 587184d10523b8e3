package commands

import (
	"fmt"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/reportcopilot/errors"
	"github.com/teranos/reportcopilot/logger"
	"github.com/teranos/reportcopilot/report/artifact"
)

// CleanupCmd removes old job artifacts and finished job rows
var CleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: glyphDoc + " Delete job artifacts older than a maximum age",
	Long: glyphDoc + ` Delete job directories under jobs.output_dir that have not been modified
within the maximum age, along with finished jobs created before the cutoff.
Queued and running jobs are never deleted.

Examples:
  reportcopilot cleanup --dry-run
  reportcopilot cleanup --max-age 72h`,
	RunE: runCleanup,
}

func init() {
	CleanupCmd.Flags().Duration("max-age", 0, "Maximum artifact age (default: jobs.cleanup_max_age_hours)")
	CleanupCmd.Flags().Bool("dry-run", false, "Report what would be deleted without deleting")
	CleanupCmd.Flags().Bool("json", false, "Print the result as JSON")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	maxAge := time.Duration(a.cfg.Jobs.CleanupMaxAgeHours) * time.Hour
	if cmd.Flags().Changed("max-age") {
		maxAge, _ = cmd.Flags().GetDuration("max-age")
	}
	if maxAge <= 0 {
		return errors.NewInvalidRequestError("max age must be positive")
	}
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	now := time.Now()
	res := artifact.Cleanup(artifact.CleanupOptions{
		Roots:  []string{a.artifacts.Root()},
		MaxAge: maxAge,
		DryRun: dryRun,
		Now:    func() time.Time { return now },
		Log:    logger.ComponentLogger("cleanup"),
	})

	rows := 0
	if !dryRun {
		if rows, err = a.store.DeleteFinishedBefore(now.Add(-maxAge)); err != nil {
			return err
		}
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return printJSON(struct {
			*artifact.CleanupResult
			DeletedJobs int `json:"deleted_jobs"`
		}{res, rows})
	}

	verb := "Deleted"
	if dryRun {
		verb = "Would delete"
	}
	pterm.Info.Printfln("Scanned %d job directories older than %v", res.Scanned, maxAge)
	pterm.Success.Printfln("%s %d directories, freeing %s", verb, res.Deleted, formatBytes(res.FreedBytes))
	for _, p := range res.DeletedPaths {
		pterm.Printfln("  %s", p)
	}
	if !dryRun {
		pterm.Success.Printfln("Deleted %d finished job rows", rows)
	}
	return nil
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
