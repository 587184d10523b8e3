package commands

import (
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/reportcopilot/errors"
	"github.com/teranos/reportcopilot/logger"
	"github.com/teranos/reportcopilot/pulse/async"
	"github.com/teranos/reportcopilot/pulse/budget"
)

// PulseCmd groups the background job daemon commands
var PulseCmd = &cobra.Command{
	Use:   "pulse",
	Short: glyphPulse + " Run the background report workers",
	Long: glyphPulse + ` Pulse daemon - background report generation.

The daemon claims queued jobs oldest first and runs one pipeline per job.
Jobs left running by a crashed daemon are requeued at startup. On Ctrl+C the
job in flight is returned to the queue and picked up on the next start.

Example:
  reportcopilot pulse start              # Start daemon in foreground
  reportcopilot pulse start --workers 3  # Start with 3 concurrent workers`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// PulseStartCmd starts the worker pool
var PulseStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the pulse daemon",
	RunE:  runPulseStart,
}

func init() {
	PulseStartCmd.Flags().Int("workers", 0, "Number of concurrent workers (default: jobs.workers)")
	PulseStartCmd.Flags().Duration("poll", 0, "Idle poll interval (default: jobs.poll_interval_seconds)")
	PulseCmd.AddCommand(PulseStartCmd)
}

func runPulseStart(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	poolCfg := async.WorkerPoolConfig{
		Workers:      a.cfg.Jobs.Workers,
		PollInterval: time.Duration(a.cfg.Jobs.PollIntervalSeconds) * time.Second,
	}
	if cmd.Flags().Changed("workers") {
		poolCfg.Workers, _ = cmd.Flags().GetInt("workers")
	}
	if cmd.Flags().Changed("poll") {
		poolCfg.PollInterval, _ = cmd.Flags().GetDuration("poll")
	}
	if poolCfg.Workers <= 0 {
		return errors.WithHint(errors.New("background workers are disabled"),
			"set jobs.workers in am.toml or pass --workers")
	}

	runner, err := a.runner()
	if err != nil {
		return err
	}
	pool := async.NewWorkerPool(a.store, runner, poolCfg, logger.Logger)

	limits := budget.NewTracker(a.db, a.cfg.Budget).Limits()
	pterm.Info.Printfln("%s Pulse daemon starting", glyphPulse)
	pterm.Printfln("  Workers: %d", pool.Workers())
	pterm.Printfln("  Poll interval: %v", poolCfg.PollInterval)
	pterm.Printfln("  Backend: %s", a.cfg.EffectiveProvider())
	pterm.Printfln("  Daily budget: %s", formatLimit(limits.DailyUSD))
	pterm.Printfln("  Monthly budget: %s", formatLimit(limits.MonthlyUSD))
	pterm.Printfln("  Output: %s", a.artifacts.Root())
	pterm.Println()
	pterm.Info.Printfln("%s Press Ctrl+C to stop", glyphPulse)

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	if err := pool.Run(ctx); err != nil {
		return err
	}
	pterm.Info.Printfln("%s Pulse daemon stopped", glyphPulse)
	return nil
}
