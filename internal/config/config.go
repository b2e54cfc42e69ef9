// Package config provides configuration management for plasmo-layout using
// Viper for loading from files, environment variables and command-line flags.
//
// The configuration system supports a YAML file (.plasmo-layout.yml),
// environment variable overrides with the PLASMO_LAYOUT_ prefix, defaults
// matching the conventions of Plasmo projects, and validation with
// actionable suggestions.
package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/conneroisu/plasmo-layout/internal/errors"
)

// FileName is the default configuration file name, without extension.
const FileName = ".plasmo-layout"

// EnvPrefix is the prefix for environment variable overrides.
const EnvPrefix = "PLASMO_LAYOUT"

// Engine identifiers.
const (
	EngineJSX      = "jsx"
	EngineTemplate = "template"
	EngineCustom   = "custom"
)

// ValidEngines lists the accepted values of the engine key.
var ValidEngines = []string{EngineJSX, EngineTemplate, EngineCustom}

type Config struct {
	Include           []string            `mapstructure:"include" yaml:"include"`
	Exclude           []string            `mapstructure:"exclude" yaml:"exclude"`
	LayoutsDir        string              `mapstructure:"layouts_dir" yaml:"layouts_dir"`
	Engine            string              `mapstructure:"engine" yaml:"engine"`
	ExtensionFallback map[string][]string `mapstructure:"extension_fallback" yaml:"extension_fallback"`
	CustomEngine      *CustomEngineConfig `mapstructure:"custom_engine" yaml:"custom_engine,omitempty"`
	OutputDir         string              `mapstructure:"output_dir" yaml:"output_dir,omitempty"`
	Verbose           bool                `mapstructure:"verbose" yaml:"verbose"`
	RenderTimeout     time.Duration       `mapstructure:"render_timeout" yaml:"render_timeout"`
	Watch             WatchConfig         `mapstructure:"watch" yaml:"watch"`
	JSX               JSXConfig           `mapstructure:"jsx" yaml:"jsx"`

	// Resolved by Load, never read from the file.
	RootDir            string `mapstructure:"-" yaml:"-"`
	LayoutsDirAbsolute string `mapstructure:"-" yaml:"-"`
	OutputDirAbsolute  string `mapstructure:"-" yaml:"-"`
}

// CustomEngineConfig points at a Go source file implementing a custom engine.
type CustomEngineConfig struct {
	Path    string                 `mapstructure:"path" yaml:"path"`
	Options map[string]interface{} `mapstructure:"options" yaml:"options,omitempty"`
}

type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`
}

type JSXConfig struct {
	Runtime string `mapstructure:"runtime" yaml:"runtime"`
}

// DefaultInclude and DefaultExclude mirror the conventional Plasmo layout.
var (
	DefaultInclude = []string{"src/**/*.{tsx,jsx}"}
	DefaultExclude = []string{
		"**/node_modules/**",
		"**/.git/**",
		"**/dist/**",
		"**/build/**",
		"**/*.test.{ts,tsx,js,jsx}",
		"**/*.spec.{ts,tsx,js,jsx}",
		"**/__tests__/**",
	}
)

// DefaultExtensionFallback returns the per-engine extension search order.
func DefaultExtensionFallback() map[string][]string {
	return map[string][]string{
		EngineJSX:      {".tsx", ".jsx", ".ts", ".js"},
		EngineTemplate: {".tmpl", ".gohtml"},
		EngineCustom:   {},
	}
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("include", DefaultInclude)
	v.SetDefault("exclude", DefaultExclude)
	v.SetDefault("layouts_dir", "layouts")
	v.SetDefault("engine", EngineJSX)
	for engine, exts := range DefaultExtensionFallback() {
		v.SetDefault("extension_fallback."+engine, exts)
	}
	v.SetDefault("verbose", false)
	v.SetDefault("render_timeout", time.Duration(0))
	v.SetDefault("watch.debounce", 100*time.Millisecond)
	v.SetDefault("jsx.runtime", "bun")
}

// Load resolves the configuration held by the global viper instance against
// rootDir.
func Load(rootDir string) (*Config, error) {
	return LoadFrom(viper.GetViper(), rootDir)
}

// LoadFrom resolves the configuration held by v against rootDir. Relative
// directories are made absolute and missing values fall back to defaults.
func LoadFrom(v *viper.Viper, rootDir string) (*Config, error) {
	SetDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.WrapConfig(err, errors.ErrCodeConfigInvalid, "failed to decode configuration")
	}

	// Handle slices set via environment variables as space separated strings
	if v.IsSet("include") && len(config.Include) == 0 {
		config.Include = v.GetStringSlice("include")
	}
	if v.IsSet("exclude") && len(config.Exclude) == 0 {
		config.Exclude = v.GetStringSlice("exclude")
	}

	defaults := DefaultExtensionFallback()
	if config.ExtensionFallback == nil {
		config.ExtensionFallback = defaults
	}
	for engine, exts := range defaults {
		if _, ok := config.ExtensionFallback[engine]; !ok {
			config.ExtensionFallback[engine] = exts
		}
	}

	config.Engine = strings.ToLower(strings.TrimSpace(config.Engine))

	if err := config.resolvePaths(rootDir); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) resolvePaths(rootDir string) error {
	if rootDir == "" {
		rootDir = "."
	}
	abs, err := filepath.Abs(rootDir)
	if err != nil {
		return errors.WrapConfig(err, errors.ErrCodeConfigInvalid, "failed to resolve root directory")
	}
	c.RootDir = abs
	c.LayoutsDirAbsolute = c.Abs(c.LayoutsDir)
	if c.OutputDir != "" {
		c.OutputDirAbsolute = c.Abs(c.OutputDir)
	}
	if c.CustomEngine != nil && c.CustomEngine.Path != "" {
		c.CustomEngine.Path = c.Abs(c.CustomEngine.Path)
	}
	return nil
}

// Abs resolves path against the root directory.
func (c *Config) Abs(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(c.RootDir, path)
}

// Extensions returns the configured fallback extensions for engine.
func (c *Config) Extensions(engine string) []string {
	return c.ExtensionFallback[engine]
}
