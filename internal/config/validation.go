package config

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/afero"

	"github.com/conneroisu/plasmo-layout/internal/errors"
	"github.com/conneroisu/plasmo-layout/internal/logging"
)

// ValidationError represents a configuration validation issue with suggestions
type ValidationError struct {
	Field       string
	Value       interface{}
	Message     string
	Suggestions []string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", ve.Field, ve.Message)
}

// ValidationResult holds the result of configuration validation
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// HasErrors returns true if there are any validation errors
func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors) > 0
}

// Err returns the validation errors as a single configuration error, or nil.
func (vr *ValidationResult) Err() error {
	if !vr.HasErrors() {
		return nil
	}
	msgs := make([]string, 0, len(vr.Errors))
	for _, e := range vr.Errors {
		msgs = append(msgs, fmt.Sprintf("%s: %s", e.Field, e.Message))
	}
	return errors.NewConfigError(errors.ErrCodeConfigInvalid, "invalid configuration: "+strings.Join(msgs, "; "))
}

// String returns a formatted string of all validation issues
func (vr *ValidationResult) String() string {
	var builder strings.Builder

	write := func(title string, issues []ValidationError) {
		if len(issues) == 0 {
			return
		}
		builder.WriteString(title + ":\n")
		for _, issue := range issues {
			builder.WriteString(fmt.Sprintf("  - %s: %s\n", issue.Field, issue.Message))
			for _, suggestion := range issue.Suggestions {
				builder.WriteString(fmt.Sprintf("      %s\n", suggestion))
			}
		}
	}

	write("Validation errors", vr.Errors)
	write("Validation warnings", vr.Warnings)

	return builder.String()
}

// ValidateWithDetails checks the configuration and collects every issue.
// A missing layouts directory is only a warning.
func (c *Config) ValidateWithDetails(fsys afero.Fs) *ValidationResult {
	result := &ValidationResult{}

	if len(c.Include) == 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:       "include",
			Message:     "at least one include pattern is required",
			Suggestions: []string{"Use 'src/**/*.{tsx,jsx}' for a standard Plasmo project"},
		})
	}

	if !slices.Contains(ValidEngines, c.Engine) {
		result.Errors = append(result.Errors, ValidationError{
			Field:       "engine",
			Value:       c.Engine,
			Message:     fmt.Sprintf("invalid engine %q, must be one of: %s", c.Engine, strings.Join(ValidEngines, ", ")),
			Suggestions: []string{"Use 'jsx' to render React layouts", "Use 'template' for Go html/template layouts"},
		})
	}

	if c.Engine == EngineCustom && (c.CustomEngine == nil || c.CustomEngine.Path == "") {
		result.Errors = append(result.Errors, ValidationError{
			Field:       "custom_engine.path",
			Message:     "custom_engine.path is required when using the custom engine",
			Suggestions: []string{"Point custom_engine.path at a Go file exporting Name, Extensions and Render"},
		})
	}

	for engine, exts := range c.ExtensionFallback {
		for _, ext := range exts {
			if !strings.HasPrefix(ext, ".") || len(ext) < 2 {
				result.Errors = append(result.Errors, ValidationError{
					Field:       "extension_fallback." + engine,
					Value:       ext,
					Message:     fmt.Sprintf("extension %q must start with a dot", ext),
					Suggestions: []string{fmt.Sprintf("Use '.%s'", strings.TrimPrefix(ext, "."))},
				})
			}
		}
	}

	if c.LayoutsDir == "" {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "layouts_dir",
			Message: "layouts directory cannot be empty",
		})
	}

	if c.RenderTimeout < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "render_timeout",
			Value:   c.RenderTimeout,
			Message: "render timeout cannot be negative",
		})
	}

	if c.Watch.Debounce < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "watch.debounce",
			Value:   c.Watch.Debounce,
			Message: "debounce cannot be negative",
		})
	}

	if c.Engine == EngineJSX && c.JSX.Runtime == "" {
		result.Errors = append(result.Errors, ValidationError{
			Field:       "jsx.runtime",
			Message:     "a JavaScript runtime is required for the jsx engine",
			Suggestions: []string{"Install bun and set jsx.runtime to 'bun'"},
		})
	}

	if fsys != nil && c.LayoutsDirAbsolute != "" {
		if ok, _ := afero.DirExists(fsys, c.LayoutsDirAbsolute); !ok {
			result.Warnings = append(result.Warnings, ValidationError{
				Field:       "layouts_dir",
				Value:       c.LayoutsDirAbsolute,
				Message:     "layouts directory does not exist",
				Suggestions: []string{"Create it or run 'plasmo-layout init'"},
			})
		}
	}

	return result
}

// Validate logs warnings and returns an error if the configuration is invalid.
func (c *Config) Validate(ctx context.Context, fsys afero.Fs, logger logging.Logger) error {
	result := c.ValidateWithDetails(fsys)
	if logger != nil {
		for _, w := range result.Warnings {
			logger.Warn(ctx, nil, w.Message, "field", w.Field, "value", w.Value)
		}
	}
	return result.Err()
}
