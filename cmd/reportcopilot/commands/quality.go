package commands

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/reportcopilot/errors"
	"github.com/teranos/reportcopilot/report/quality"
	"github.com/teranos/reportcopilot/report/template"
)

// QualityCmd runs the quality gate over report files
var QualityCmd = &cobra.Command{
	Use:   "quality",
	Short: glyphDoc + " Check a report against a template's quality rules",
}

var qualityCheckCmd = &cobra.Command{
	Use:   "check <file>",
	Short: "Evaluate a report file ('-' reads stdin)",
	Long: `Evaluate a report against the required headers, minimum section lengths and
required terms of a template. Without --template the template is inferred from
the headers found in the report. Exits non-zero when the gate fails.`,
	Args: cobra.ExactArgs(1),
	RunE: runQualityCheck,
}

func init() {
	qualityCheckCmd.Flags().StringP("template", "t", "", "Template key (default: inferred from the report)")
	qualityCheckCmd.Flags().Bool("json", false, "Print the quality report as JSON")
	QualityCmd.AddCommand(qualityCheckCmd)
}

func runQualityCheck(cmd *cobra.Command, args []string) error {
	text, err := readInput(cmd, args[0])
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	reg, err := loadTemplates(cfg)
	if err != nil {
		return err
	}

	var t *template.Config
	if key, _ := cmd.Flags().GetString("template"); key != "" {
		if t, err = reg.Get(key); err != nil {
			return errors.WithHint(err, "run 'reportcopilot templates ls' for the available keys")
		}
	} else {
		t = reg.InferFromReport(text)
	}

	report := quality.Evaluate(text, t)
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		if err := printJSON(report); err != nil {
			return err
		}
	} else {
		pterm.Info.Printfln("Template: %s", t.Key)
		printQuality(report)
	}
	if !report.OK {
		return errors.Newf("quality gate failed with %d issue(s)", len(report.Issues))
	}
	return nil
}
