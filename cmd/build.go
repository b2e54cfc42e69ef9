package cmd

import (
	"github.com/spf13/cobra"

	"github.com/conneroisu/plasmo-layout/internal/build"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Generate HTML for every annotated component",
	Long: `Scan every file matched by include, resolve each component's layout and
write the rendered HTML next to it (or under output_dir).

A component that fails to render is reported in the summary; it does not stop
the rest of the build.

Examples:
  plasmo-layout build
  plasmo-layout build --root ./extension --verbose
  plasmo-layout build --json > build.json`,
	RunE: runBuild,
}

var buildFlags *StandardFlags

func init() {
	rootCmd.AddCommand(buildCmd)
	buildFlags = AddStandardFlags(buildCmd, "output")
}

func runBuild(cmd *cobra.Command, args []string) error {
	p, err := loadProject(cmd)
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	summary, err := build.NewBuilder(p.cfg, p.fs, p.logger).BuildProject(ctx)
	if err != nil {
		return err
	}

	if buildFlags.JSON {
		return writeJSON(cmd.OutOrStdout(), summary)
	}
	printf(cmd, "%s\n", renderBuildSummary(p, summary))
	return nil
}
