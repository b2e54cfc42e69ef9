package cmd

import (
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/conneroisu/plasmo-layout/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default .plasmo-layout.yml",
	Long: `Write a commented .plasmo-layout.yml with the default settings to the project
root. An existing file is kept unless --force is given.

Examples:
  plasmo-layout init
  plasmo-layout init --root ./extension --force`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

var initFlags *StandardFlags

func init() {
	rootCmd.AddCommand(initCmd)
	initFlags = AddStandardFlags(initCmd, "force")
}

func runInit(cmd *cobra.Command, args []string) error {
	root, err := filepath.Abs(rootDir)
	if err != nil {
		return err
	}

	path, err := config.WriteDefault(afero.NewOsFs(), root, initFlags.Force)
	if err != nil {
		return err
	}

	printf(cmd, "%s Created %s\n", successStyle.Render("✓"), path)
	printf(cmd, "Next: add // @layout('popup') to a component and run plasmo-layout build\n")
	return nil
}
