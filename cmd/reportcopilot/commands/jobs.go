package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/reportcopilot/ai/tracker"
	"github.com/teranos/reportcopilot/errors"
	"github.com/teranos/reportcopilot/internal/util"
	"github.com/teranos/reportcopilot/pulse/async"
)

// JobsCmd groups the job inspection and editing commands
var JobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: glyphPulse + " Inspect, cancel, retry and edit report jobs",
	Long: glyphPulse + ` Inspect and manage report jobs.

Finished jobs keep their report under jobs.output_dir and can be edited by
hand, passed through the quality fix, or have a single section regenerated.

Examples:
  reportcopilot jobs ls --status failed
  reportcopilot jobs show <job-id>
  reportcopilot jobs cancel <job-id>
  reportcopilot jobs retry <job-id>
  reportcopilot jobs draft <job-id> > report.md
  reportcopilot jobs edit <job-id> --file report.md
  reportcopilot jobs fix <job-id>
  reportcopilot jobs regen <job-id> Discussion -i "mention the outlier at t=2"`,
}

var jobsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List recent jobs, newest first",
	RunE:  runJobsLs,
}

var jobsShowCmd = &cobra.Command{
	Use:   "show <job-id>",
	Short: "Show one job with its usage and quality",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsShow,
}

var jobsCancelCmd = &cobra.Command{
	Use:   "cancel <job-id>",
	Short: "Cancel a queued job or stop a running one",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsCancel,
}

var jobsRetryCmd = &cobra.Command{
	Use:   "retry <job-id>",
	Short: "Queue a failed or canceled job again",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsRetry,
}

var jobsDraftCmd = &cobra.Command{
	Use:   "draft <job-id>",
	Short: "Print the stored report of a job",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsDraft,
}

var jobsEditCmd = &cobra.Command{
	Use:   "edit <job-id>",
	Short: "Replace the report of a finished job",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsEdit,
}

var jobsFixCmd = &cobra.Command{
	Use:   "fix <job-id>",
	Short: "Rewrite a finished report that fails the quality gate",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsFix,
}

var jobsRegenCmd = &cobra.Command{
	Use:   "regen <job-id> <section>",
	Short: "Regenerate one section of a finished report",
	Args:  cobra.ExactArgs(2),
	RunE:  runJobsRegen,
}

func init() {
	jobsLsCmd.Flags().String("status", "", "Filter by status (queued, running, done, failed, canceled)")
	jobsLsCmd.Flags().Int("limit", 20, "Maximum number of jobs to list")
	jobsLsCmd.Flags().Bool("json", false, "Print jobs as JSON")

	jobsShowCmd.Flags().Bool("json", false, "Print the job as JSON")
	jobsCancelCmd.Flags().Bool("json", false, "Print the result as JSON")
	jobsRetryCmd.Flags().Bool("json", false, "Print the new job as JSON")
	jobsDraftCmd.Flags().Bool("json", false, "Print the draft with its sections as JSON")

	jobsEditCmd.Flags().StringP("file", "f", "", "File with the edited report ('-' reads stdin)")
	_ = jobsEditCmd.MarkFlagRequired("file")

	jobsFixCmd.Flags().Bool("json", false, "Print the fix result as JSON")
	jobsRegenCmd.Flags().StringP("instructions", "i", "", "Extra instructions for the rewritten section")

	JobsCmd.AddCommand(jobsLsCmd)
	JobsCmd.AddCommand(jobsShowCmd)
	JobsCmd.AddCommand(jobsCancelCmd)
	JobsCmd.AddCommand(jobsRetryCmd)
	JobsCmd.AddCommand(jobsDraftCmd)
	JobsCmd.AddCommand(jobsEditCmd)
	JobsCmd.AddCommand(jobsFixCmd)
	JobsCmd.AddCommand(jobsRegenCmd)
}

func runJobsLs(cmd *cobra.Command, args []string) error {
	statusFlag, _ := cmd.Flags().GetString("status")
	limit, _ := cmd.Flags().GetInt("limit")

	var status *async.JobStatus
	if statusFlag != "" {
		if !async.IsValidStatus(statusFlag) {
			return errors.NewInvalidRequestError("unknown status %q", statusFlag)
		}
		status = util.Ptr(async.JobStatus(statusFlag))
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	jobs, err := a.store.ListJobs(status, limit)
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return printJSON(jobs)
	}
	if len(jobs) == 0 {
		pterm.Info.Println("No jobs")
		return nil
	}

	data := pterm.TableData{{"ID", "Template", "Status", "Stage", "Progress", "Created", "Error"}}
	for _, job := range jobs {
		data = append(data, []string{
			job.ID,
			job.Template,
			string(job.Status),
			job.Stage,
			fmt.Sprintf("%d%%", job.ProgressPct),
			age(job.CreatedAt),
			truncate(job.Error, 40),
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func runJobsShow(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	job, err := a.store.GetJob(args[0])
	if err != nil {
		return err
	}
	usage, err := tracker.NewUsageTracker(a.db, 0).GetJobUsage(job.ID)
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return printJSON(struct {
			*async.Job
			Usage *tracker.JobUsage `json:"usage"`
		}{job, usage})
	}

	pterm.DefaultSection.Printfln("%s Job %s", glyphPulse, job.ID)
	pterm.Printfln("Template:  %s", job.Template)
	pterm.Printfln("Status:    %s", job.Status)
	pterm.Printfln("Stage:     %s (%d%%)", job.Stage, job.ProgressPct)
	if job.ClientID != "" {
		pterm.Printfln("Client:    %s", job.ClientID)
	}
	if job.RetryOf != "" {
		pterm.Printfln("Retry of:  %s", job.RetryOf)
	}
	pterm.Printfln("Created:   %s", age(job.CreatedAt))
	if job.StartedAt != nil {
		pterm.Printfln("Started:   %s", age(*job.StartedAt))
	}
	if job.CompletedAt != nil {
		pterm.Printfln("Completed: %s", age(*job.CompletedAt))
	}
	if job.CancellationRequested && !job.Status.IsTerminal() {
		pterm.Printfln("Cancel:    requested")
	}
	if job.Error != "" {
		pterm.Printfln("Error:     %s", job.Error)
	}
	pterm.Printfln("LLM calls: %d (%d failed), %d tokens, $%.4f",
		usage.Calls, usage.Failures, usage.TotalTokens, usage.TotalCost)
	if len(usage.ByStep) > 0 {
		steps := make([]string, 0, len(usage.ByStep))
		for step, n := range usage.ByStep {
			steps = append(steps, fmt.Sprintf("%s=%d", step, n))
		}
		sort.Strings(steps)
		pterm.Printfln("By step:   %s", strings.Join(steps, ", "))
	}
	pterm.Println()

	if job.Status.IsTerminal() {
		printJobResult(a, job)
	}
	return nil
}

func runJobsCancel(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.queue.Cancel(args[0])
	if err != nil {
		return err
	}
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return printJSON(res)
	}
	pterm.Info.Printfln("%s: %s (status %s)", res.JobID, res.Message, res.Status)
	return nil
}

func runJobsRetry(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	job, err := a.queue.Retry(args[0])
	if err != nil {
		return err
	}
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return printJSON(job)
	}
	pterm.Success.Printfln("Queued job %s as a retry of %s", job.ID, job.RetryOf)
	return nil
}

func runJobsDraft(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	draft, err := a.editor().Draft(args[0])
	if err != nil {
		return err
	}
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return printJSON(draft)
	}
	fmt.Fprint(cmd.OutOrStdout(), draft.ReportText)
	if !strings.HasSuffix(draft.ReportText, "\n") {
		fmt.Fprintln(cmd.OutOrStdout())
	}
	return nil
}

func runJobsEdit(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("file")
	text, err := readInput(cmd, path)
	if err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.editor().SaveDraft(args[0], text); err != nil {
		return err
	}
	pterm.Success.Printfln("Saved report for job %s", args[0])

	dir, err := a.artifacts.Dir(args[0])
	if err != nil {
		return err
	}
	if rec, err := dir.LoadRecord(); err == nil && rec.Result != nil {
		printQuality(rec.Result.Quality)
	}
	return nil
}

func runJobsFix(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	runner, err := a.runner()
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	spinner, _ := pterm.DefaultSpinner.Start("Checking report quality...")
	res, err := runner.FixQuality(ctx, args[0])
	if err != nil {
		spinner.Fail("Quality fix failed")
		return err
	}
	spinner.Stop()

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return printJSON(res)
	}
	if res.Rewritten {
		pterm.Success.Printfln("Report of job %s rewritten", args[0])
	} else {
		pterm.Info.Printfln("Report of job %s left unchanged", args[0])
	}
	printQuality(res.Quality)
	return nil
}

func runJobsRegen(cmd *cobra.Command, args []string) error {
	instructions, _ := cmd.Flags().GetString("instructions")

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	runner, err := a.runner()
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	spinner, _ := pterm.DefaultSpinner.Start(fmt.Sprintf("Regenerating %s...", args[1]))
	body, err := runner.RegenerateSection(ctx, args[0], args[1], instructions)
	if err != nil {
		spinner.Fail("Section was not regenerated")
		return err
	}
	spinner.Success(fmt.Sprintf("Regenerated %s", args[1]))
	pterm.Println(body)
	return nil
}
