package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teranos/reportcopilot/version"
)

// VersionCmd prints build information
var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show reportcopilot version information",
	Long:  `Display version, build time, commit hash, and platform of the reportcopilot binary.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		info := version.Get()

		if short, _ := cmd.Flags().GetBool("short"); short {
			fmt.Fprintln(cmd.OutOrStdout(), info.Short())
			return nil
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(info)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, info.String())
		fmt.Fprintf(out, "Platform: %s\n", info.Platform)
		fmt.Fprintf(out, "Go: %s\n", info.GoVersion)
		return nil
	},
}

func init() {
	VersionCmd.Flags().BoolP("json", "j", false, "Output version info as JSON")
	VersionCmd.Flags().Bool("short", false, "Print only the short commit hash")
}
