package cmd

import (
	"github.com/spf13/cobra"

	"github.com/conneroisu/plasmo-layout/internal/build"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove generated HTML files",
	Long: `Delete every HTML file carrying the plasmo-layout generated marker under the
include directories and output_dir. Hand-written HTML is never touched.

Examples:
  plasmo-layout clean
  plasmo-layout clean --dry-run`,
	RunE: runClean,
}

var cleanFlags *StandardFlags

func init() {
	rootCmd.AddCommand(cleanCmd)
	cleanFlags = AddStandardFlags(cleanCmd, "dry-run", "output")
}

func runClean(cmd *cobra.Command, args []string) error {
	p, err := loadProject(cmd)
	if err != nil {
		return err
	}

	result, err := build.NewBuilder(p.cfg, p.fs, p.logger).Clean(commandContext(cmd), cleanFlags.DryRun)
	if err != nil {
		return err
	}

	if cleanFlags.JSON {
		return writeJSON(cmd.OutOrStdout(), result)
	}
	printf(cmd, "%s\n", renderCleanResult(p, result, cleanFlags.DryRun))
	return nil
}
