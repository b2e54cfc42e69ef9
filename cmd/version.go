package cmd

import (
	"github.com/spf13/cobra"

	"github.com/conneroisu/plasmo-layout/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long: `Show version, commit and build information for plasmo-layout.

Examples:
  plasmo-layout version
  plasmo-layout version --format json`,
	Args: cobra.NoArgs,
	RunE: runVersion,
}

var versionFlags *StandardFlags

func init() {
	rootCmd.AddCommand(versionCmd)
	versionFlags = AddStandardFlags(versionCmd, "format")
}

func runVersion(cmd *cobra.Command, args []string) error {
	if err := versionFlags.ValidateFlags(); err != nil {
		return err
	}

	info := version.Get()
	switch versionFlags.Format {
	case "json":
		return writeJSON(cmd.OutOrStdout(), info)
	case "short":
		printf(cmd, "%s\n", info.Short())
	case "detailed":
		printf(cmd, "%s\n", info.Detailed())
	default:
		printf(cmd, "plasmo-layout %s\n", info.Version)
	}
	return nil
}
