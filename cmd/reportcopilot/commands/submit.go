package commands

import (
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/reportcopilot/logger"
	"github.com/teranos/reportcopilot/pulse/budget"
)

// SubmitCmd queues a report for the pulse daemon
var SubmitCmd = &cobra.Command{
	Use:   "submit",
	Short: glyphPulse + " Queue a report for background generation",
	Long: glyphPulse + ` Queue a report job for the pulse daemon.

Submissions are limited per client (rate_limit.max_requests per
rate_limit.window_seconds) and refused while the configured daily or monthly
budget would be exceeded.

Examples:
  reportcopilot submit -t lab_report -m manual.txt --csv data.csv -g "Measure g"
  reportcopilot submit -t study_guide -m notes.txt --client lab-3
  reportcopilot jobs show <job-id>    # follow progress`,
	RunE: runSubmit,
}

func init() {
	addRequestFlags(SubmitCmd)
	SubmitCmd.Flags().String("client", "", "Client identity for rate limiting (default: current OS user)")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	req, err := requestFromFlags(cmd, a.templates, a.cfg.Pipeline.IncludeReview)
	if err != nil {
		return err
	}
	req.ClientID, _ = cmd.Flags().GetString("client")
	if req.ClientID == "" {
		req.ClientID = currentUser()
	}

	if err := checkRateLimit(a, req.ClientID); err != nil {
		return err
	}

	tracker := budget.NewTracker(a.db, a.cfg.Budget)
	if err := tracker.CheckBudget(tracker.EstimateJobCost(1)); err != nil {
		return err
	}

	job, err := a.queue.Enqueue(req)
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return printJSON(job)
	}
	pterm.Success.Printfln("Queued job %s (%s)", job.ID, job.Template)
	pterm.Info.Printfln("Follow it with: reportcopilot jobs show %s", job.ID)
	return nil
}

// checkRateLimit applies the per-client window. Each CLI invocation is its
// own process, so the limiter is seeded with the client's recent submissions.
func checkRateLimit(a *app, clientID string) error {
	rl := a.cfg.RateLimit
	if !rl.Enabled {
		return nil
	}
	window := time.Duration(rl.WindowSeconds) * time.Second
	limiter := budget.NewKeyedLimiter(rl.MaxRequests, window)

	recent, err := a.store.SubmittedSince(clientID, time.Now().Add(-window))
	if err != nil {
		return err
	}
	limiter.Seed(clientID, recent)

	if err := limiter.Allow(clientID); err != nil {
		return err
	}
	calls, remaining := limiter.Stats(clientID)
	logger.Logger.Debugw("Rate limit checked", logger.FieldClientID, clientID, "calls_in_window", calls, "remaining", remaining)
	return nil
}
