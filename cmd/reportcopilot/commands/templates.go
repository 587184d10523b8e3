package commands

import (
	"fmt"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/teranos/reportcopilot/errors"
)

// TemplatesCmd lists the document templates
var TemplatesCmd = &cobra.Command{
	Use:   "templates",
	Short: glyphDoc + " List document templates",
	Long: glyphDoc + ` Document templates.

Built-in templates are always available. Extra templates are read from the
YAML or TOML file named by templates.path and may override a built-in key.

Examples:
  reportcopilot templates ls
  reportcopilot templates show lab_report`,
}

var templatesLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List template keys",
	RunE:  runTemplatesLs,
}

var templatesShowCmd = &cobra.Command{
	Use:   "show <key>",
	Short: "Show one template as YAML",
	Args:  cobra.ExactArgs(1),
	RunE:  runTemplatesShow,
}

func init() {
	templatesLsCmd.Flags().Bool("json", false, "Print templates as JSON")
	TemplatesCmd.AddCommand(templatesLsCmd)
	TemplatesCmd.AddCommand(templatesShowCmd)
}

func runTemplatesLs(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	reg, err := loadTemplates(cfg)
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		var out []interface{}
		for _, key := range reg.Keys() {
			t, _ := reg.Get(key)
			out = append(out, t)
		}
		return printJSON(out)
	}

	data := pterm.TableData{{"Key", "Name", "CSV", "Review", "Sections"}}
	for _, key := range reg.Keys() {
		t, err := reg.Get(key)
		if err != nil {
			return err
		}
		name := key
		if key == reg.Default() {
			name += " (default)"
		}
		data = append(data, []string{
			name,
			t.Name(),
			csvRule(t.Form.RequireCSV, t.Form.AllowCSV),
			fmt.Sprintf("%v", t.Form.AllowReview),
			truncate(strings.Join(t.WriterFormat, ", "), 60),
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func csvRule(required, allowed bool) string {
	switch {
	case required:
		return "required"
	case allowed:
		return "optional"
	default:
		return "no"
	}
}

func runTemplatesShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	reg, err := loadTemplates(cfg)
	if err != nil {
		return err
	}
	t, err := reg.Get(args[0])
	if err != nil {
		return errors.WithHint(err, "run 'reportcopilot templates ls' for the available keys")
	}

	data, err := yaml.Marshal(t)
	if err != nil {
		return errors.Wrap(err, "failed to marshal template to YAML")
	}
	fmt.Fprintf(cmd.OutOrStdout(), "# %s\n%s", t.Name(), data)
	return nil
}
