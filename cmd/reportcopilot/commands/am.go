package commands

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/teranos/reportcopilot/am"
	"github.com/teranos/reportcopilot/errors"
)

// AmCmd represents the am (configuration) command
var AmCmd = &cobra.Command{
	Use:   "am",
	Short: glyphAM + " Manage reportcopilot configuration",
	Long: glyphAM + ` am - Manage reportcopilot configuration ("I am")

Configuration sources (later overrides earlier):
1. Default values
2. System config (/etc/reportcopilot/am.toml)
3. User config (~/.reportcopilot/am.toml)
4. Project config (./am.toml, searched up the directory tree)
5. Environment variables (REPORTCOPILOT_* prefix, and a .env file)

Examples:
  reportcopilot am show                  # Show current configuration
  reportcopilot am show --format json    # Show configuration in JSON format
  reportcopilot am get llm.model         # Get specific config value
  reportcopilot am validate              # Validate current configuration
  reportcopilot am where                 # Show which files are read`,
}

var amShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runAmShow,
}

var amGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a specific configuration value",
	Long:  "Get a specific configuration value using dot notation (e.g., database.path, jobs.workers)",
	Args:  cobra.ExactArgs(1),
	RunE:  runAmGet,
}

var amValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate current configuration",
	RunE:  runAmValidate,
}

var amWhereCmd = &cobra.Command{
	Use:   "where",
	Short: "Show where configuration is loaded from",
	RunE:  runAmWhere,
}

var configFormat string

func init() {
	amShowCmd.Flags().StringVar(&configFormat, "format", "toml", "Output format: toml, json, yaml")

	AmCmd.AddCommand(amShowCmd)
	AmCmd.AddCommand(amGetCmd)
	AmCmd.AddCommand(amValidateCmd)
	AmCmd.AddCommand(amWhereCmd)
}

const redacted = "[redacted]"

func runAmShow(cmd *cobra.Command, args []string) error {
	loaded, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	cfg := *loaded
	if cfg.LLM.APIKey != "" {
		cfg.LLM.APIKey = redacted
	}

	switch configFormat {
	case "json":
		return printJSON(cfg)

	case "yaml":
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return errors.Wrap(err, "failed to marshal config to YAML")
		}
		fmt.Printf("# reportcopilot configuration\n%s", string(data))

	case "toml":
		data, err := toml.Marshal(cfg)
		if err != nil {
			return errors.Wrap(err, "failed to marshal config to TOML")
		}
		fmt.Printf("# reportcopilot configuration\n%s", string(data))

	default:
		return errors.NewInvalidRequestError("unsupported format: %s (supported: toml, json, yaml)", configFormat)
	}
	return nil
}

func runAmGet(cmd *cobra.Command, args []string) error {
	key := args[0]

	if !am.GetViper().IsSet(key) {
		return errors.NewNotFoundError("configuration key %q not found", key)
	}
	if key == "llm.api_key" {
		fmt.Println(redacted)
		return nil
	}
	fmt.Println(am.Get(key))
	return nil
}

func runAmValidate(cmd *cobra.Command, args []string) error {
	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "configuration validation failed")
	}
	if _, err := loadTemplates(cfg); err != nil {
		return errors.Wrap(err, "template configuration failed")
	}

	pterm.Success.Println("Configuration is valid")
	return nil
}

func runAmWhere(cmd *cobra.Command, args []string) error {
	fmt.Println("Configuration cascade (later overrides earlier):")
	for i, path := range am.ConfigFiles() {
		mark := "missing"
		if _, err := os.Stat(path); err == nil {
			mark = "loaded"
		}
		fmt.Printf("  %d. [%s] %s\n", i+1, mark, path)
	}
	fmt.Println("  then REPORTCOPILOT_* environment variables")
	return nil
}
