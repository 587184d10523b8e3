package commands

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/pterm/pterm"

	"github.com/teranos/reportcopilot/errors"
	"github.com/teranos/reportcopilot/pulse/async"
	"github.com/teranos/reportcopilot/report/quality"
)

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal JSON")
	}
	fmt.Println(string(data))
	return nil
}

// printJobResult prints the outcome of a finished job and, when recorded, its quality report
func printJobResult(a *app, job *async.Job) {
	switch job.Status {
	case async.JobStatusDone:
		pterm.Success.Printfln("Job %s done", job.ID)
	case async.JobStatusCanceled:
		pterm.Warning.Printfln("Job %s canceled: %s", job.ID, job.Error)
	case async.JobStatusFailed:
		pterm.Error.Printfln("Job %s failed: %s", job.ID, job.Error)
	default:
		pterm.Info.Printfln("Job %s is %s (%s, %d%%)", job.ID, job.Status, job.Stage, job.ProgressPct)
		return
	}

	dir, err := a.artifacts.Dir(job.ID)
	if err != nil {
		return
	}
	pterm.Info.Printfln("Artifacts: %s", dir.Path)

	rec, err := dir.LoadRecord()
	if err != nil || rec.Result == nil {
		return
	}
	printQuality(rec.Result.Quality)
}

func printQuality(report quality.Report) {
	if report.OK {
		pterm.Success.Println("Quality gate passed")
		return
	}
	pterm.Warning.Printfln("Quality gate found %d issue(s)", len(report.Issues))
	for _, issue := range report.Issues {
		pterm.Printfln("  - [%s] %s: %s", issue.Kind, issue.Section, issue.Detail)
	}
}

// age renders how long ago t was, for tables
func age(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return t.Local().Format("2006-01-02 15:04")
	}
}

// truncate shortens a string to maxLen characters
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
