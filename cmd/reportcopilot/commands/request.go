package commands

import (
	"io"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/teranos/reportcopilot/errors"
	"github.com/teranos/reportcopilot/pulse/async"
	"github.com/teranos/reportcopilot/report/template"
)

// addRequestFlags registers the submission flags shared by run and submit
func addRequestFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("template", "t", "", "Document template key (default: pipeline.default_template)")
	cmd.Flags().StringP("manual", "m", "", "File with the manual or notes text ('-' reads stdin)")
	cmd.Flags().String("manual-text", "", "Manual or notes text given inline")
	cmd.Flags().StringP("goal", "g", "", "What the report should achieve")
	cmd.Flags().String("csv", "", "CSV data file")
	cmd.Flags().StringP("extra", "e", "", "Extra instructions for the writer")
	cmd.Flags().Bool("review", false, "Run the reviewer step (default: pipeline.include_review where the template allows it)")
	cmd.Flags().Bool("json", false, "Print the job as JSON")
}

// requestFromFlags builds a job request. includeReview is the configured
// default, applied only when the template accepts reviews and --review was not given.
func requestFromFlags(cmd *cobra.Command, templates *template.Registry, includeReview bool) (async.Request, error) {
	var req async.Request

	key, _ := cmd.Flags().GetString("template")
	cfg, err := templates.Resolve(key)
	if err != nil {
		return req, errors.WithHint(err, "run 'reportcopilot templates ls' for the available keys")
	}
	req.Template = cfg.Key

	manualPath, _ := cmd.Flags().GetString("manual")
	manualText, _ := cmd.Flags().GetString("manual-text")
	if manualPath != "" && manualText != "" {
		return req, errors.NewInvalidRequestError("use either --manual or --manual-text, not both")
	}
	req.ManualText = manualText
	if manualPath != "" {
		text, err := readInput(cmd, manualPath)
		if err != nil {
			return req, err
		}
		req.ManualText = text
	}

	req.Goal, _ = cmd.Flags().GetString("goal")
	req.ExtraInstructions, _ = cmd.Flags().GetString("extra")

	if csvPath, _ := cmd.Flags().GetString("csv"); strings.TrimSpace(csvPath) != "" {
		// Workers may run from another directory
		abs, err := filepath.Abs(csvPath)
		if err != nil {
			return req, errors.Wrapf(err, "failed to resolve %s", csvPath)
		}
		req.CSVPath = abs
	}

	if cmd.Flags().Changed("review") {
		req.IncludeReview, _ = cmd.Flags().GetBool("review")
	} else {
		req.IncludeReview = includeReview && cfg.Form.AllowReview
	}
	return req, nil
}

// readInput reads a file, or stdin when path is "-"
func readInput(cmd *cobra.Command, path string) (string, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", errors.Wrapf(err, "failed to read %s", path)
	}
	return string(data), nil
}

// currentUser names the submitting client when --client is not given
func currentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	if name := os.Getenv("USER"); name != "" {
		return name
	}
	return "local"
}
