// Package cmd provides the plasmo-layout command-line interface.
//
// Configuration is read from, in order of precedence:
//
//  1. command-line flags (--root, --verbose, ...)
//  2. PLASMO_LAYOUT_<KEY> environment variables, including ones set in a .env
//     file at the project root
//  3. the file named by --config or PLASMO_LAYOUT_CONFIG_FILE
//  4. .plasmo-layout.yml in the project root
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/plasmo-layout/internal/artifact"
	"github.com/conneroisu/plasmo-layout/internal/config"
	"github.com/conneroisu/plasmo-layout/internal/errors"
	"github.com/conneroisu/plasmo-layout/internal/logging"
)

var (
	cfgFile   string
	rootDir   string
	logLevel  string
	verbose   bool
	configErr error
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "plasmo-layout",
	Short: "Generate HTML layouts for Plasmo extension components",
	Long: `plasmo-layout scans browser extension components for @layout annotations
and generates the HTML document each one is mounted into.

Annotate a component:
  // @layout('tabs.onboarding')

and the layout at layouts/tabs/onboarding.tsx (or .tmpl, or a custom engine's
extension) is rendered to an HTML file next to the component.

Quick Start:
  plasmo-layout init              Create .plasmo-layout.yml
  plasmo-layout build             Generate every layout once
  plasmo-layout watch             Build, then rebuild on change
  plasmo-layout clean             Remove generated files`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cfgFile, "config", "c", "", "config file (default is .plasmo-layout.yml, can also use PLASMO_LAYOUT_CONFIG_FILE env var)")
	flags.StringVarP(&rootDir, "root", "r", ".", "project root directory")
	flags.StringVarP(&logLevel, "log-level", "l", "info", "log level (debug, info, warn, error)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")

	AddFlagValidation(rootCmd.PersistentFlags(), "log-level", func(s string) error {
		_, err := logging.ParseLevel(s)
		return err
	})
	_ = viper.BindPFlag("verbose", flags.Lookup("verbose"))
}

// initConfig points viper at the configuration file and environment.
// A missing default file is fine; a missing explicit one is reported when
// a command loads the project.
func initConfig() {
	configErr = nil
	root := rootDir
	if root == "" {
		root = "."
	}

	// Existing environment variables win over .env entries.
	_ = godotenv.Load(filepath.Join(root, ".env"))

	explicit := cfgFile
	if explicit == "" {
		explicit = os.Getenv(config.EnvPrefix + "_CONFIG_FILE")
	}
	if explicit != "" {
		if !filepath.IsAbs(explicit) {
			explicit = filepath.Join(root, explicit)
		}
		viper.SetConfigFile(explicit)
	} else {
		viper.AddConfigPath(root)
		viper.SetConfigType("yaml")
		viper.SetConfigName(config.FileName)
	}

	viper.SetEnvPrefix(config.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound || explicit != "" {
			configErr = errors.WrapConfig(err, errors.ErrCodeConfigNotFound,
				"failed to read config file "+viper.ConfigFileUsed())
		}
	}
}

// project is the resolved state every command works from.
type project struct {
	cfg    *config.Config
	fs     afero.Fs
	logger logging.Logger
}

// loadProject resolves and validates the configuration and builds the
// logger for cmd.
func loadProject(cmd *cobra.Command) (*project, error) {
	if configErr != nil {
		return nil, configErr
	}

	cfg, err := config.Load(rootDir)
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Verbose = true
	}

	level, err := logging.ParseLevel(logLevel)
	if err != nil {
		return nil, err
	}
	if cfg.Verbose {
		level = logging.LevelDebug
	}
	logger := logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Output: cmd.ErrOrStderr(),
	})

	if used := viper.ConfigFileUsed(); used != "" {
		logger.Debug(commandContext(cmd), "Using config file", "path", used)
	}

	fs := afero.NewOsFs()
	if err := cfg.Validate(commandContext(cmd), fs, logger); err != nil {
		return nil, err
	}
	return &project{cfg: cfg, fs: fs, logger: logger}, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func relative(p *project, path string) string {
	return artifact.RelativePath(path, p.cfg.RootDir)
}

// printf writes to the command's standard output.
func printf(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}
