package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/reportcopilot/errors"
	"github.com/teranos/reportcopilot/logger"
	"github.com/teranos/reportcopilot/pulse/async"
)

// RunCmd generates a report in the foreground
var RunCmd = &cobra.Command{
	Use:   "run",
	Short: glyphDoc + " Generate a report and wait for it",
	Long: glyphDoc + ` Generate a report in the foreground.

The job is recorded like a queued one, so it shows up in 'jobs ls' and can be
edited, fixed or retried afterwards. Ctrl+C cancels it at the next step.

Examples:
  reportcopilot run --template lab_report --manual manual.txt --csv data.csv --goal "Measure g"
  reportcopilot run -t study_guide -m notes.txt
  cat notes.txt | reportcopilot run -t study_guide -m -`,
	RunE: runRun,
}

func init() {
	addRequestFlags(RunCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	req, err := requestFromFlags(cmd, a.templates, a.cfg.Pipeline.IncludeReview)
	if err != nil {
		return err
	}
	runner, err := a.runner()
	if err != nil {
		return err
	}

	queued, err := a.queue.Enqueue(req)
	if err != nil {
		return err
	}
	job, err := a.store.Claim(queued.ID)
	if err != nil {
		return err
	}
	if job == nil {
		return errors.WithHintf(errors.Newf("job %s was picked up by a pulse worker", queued.ID),
			"follow it with 'reportcopilot jobs show %s'", queued.ID)
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	spinner, _ := pterm.DefaultSpinner.Start(fmt.Sprintf("Generating %s report...", job.Template))
	done := make(chan struct{})
	go followProgress(a.store, job.ID, spinner, done)

	err = runner.Execute(ctx, job)
	close(done)
	if err != nil {
		spinner.Fail("Job could not be recorded")
		return err
	}
	spinner.Stop()

	final, err := a.store.GetJob(job.ID)
	if err != nil {
		return err
	}
	// Interrupted: the runner handed the job back to the queue, cancel it instead
	if final.Status == async.JobStatusQueued {
		if _, err := a.queue.Cancel(job.ID); err != nil {
			return err
		}
		if final, err = a.store.GetJob(job.ID); err != nil {
			return err
		}
	}
	logger.Logger.Infow("Run finished", logger.FieldJobID, final.ID, logger.FieldStatus, final.Status)

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return printJSON(final)
	}
	printJobResult(a, final)
	if final.Status == async.JobStatusFailed {
		return errors.Newf("job %s failed", final.ID)
	}
	return nil
}

// followProgress mirrors the stored stage on the spinner until done is closed
func followProgress(store *async.Store, id string, spinner *pterm.SpinnerPrinter, done <-chan struct{}) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			job, err := store.GetJob(id)
			if err != nil {
				continue
			}
			spinner.UpdateText(fmt.Sprintf("%s: %s (%d%%)", job.Template, job.Stage, job.ProgressPct))
		}
	}
}

// signalContext returns a context canceled on Ctrl+C or SIGTERM
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
