package config

import (
	"bytes"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/plasmo-layout/internal/errors"
)

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Include:           append([]string(nil), DefaultInclude...),
		Exclude:           append([]string(nil), DefaultExclude...),
		LayoutsDir:        "layouts",
		Engine:            EngineJSX,
		ExtensionFallback: DefaultExtensionFallback(),
		Watch:             WatchConfig{Debounce: 100 * time.Millisecond},
		JSX:               JSXConfig{Runtime: "bun"},
	}
}

var keyComments = map[string]string{
	"include":            "Glob patterns for files to scan for @layout declarations",
	"exclude":            "Glob patterns to exclude from scanning",
	"layouts_dir":        "Directory containing layout templates",
	"engine":             "Templating engine: jsx | template | custom",
	"extension_fallback": "Extensions tried per engine when resolving a layout",
	"verbose":            "Enable verbose logging",
	"render_timeout":     "Per-render timeout, 0 disables it",
	"watch":              "Quiet period before a file change is processed",
	"jsx":                "JavaScript runtime used to render JSX layouts",
}

// DefaultYAML renders the default configuration as a commented YAML document.
func DefaultYAML() ([]byte, error) {
	var doc yaml.Node
	if err := doc.Encode(Default()); err != nil {
		return nil, errors.NewInternalError(errors.ErrCodeInternalError, "failed to encode default configuration", err)
	}

	if doc.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(doc.Content); i += 2 {
			key := doc.Content[i]
			if comment, ok := keyComments[key.Value]; ok {
				key.HeadComment = comment
			}
		}
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return nil, errors.NewInternalError(errors.ErrCodeInternalError, "failed to encode default configuration", err)
	}
	if err := enc.Close(); err != nil {
		return nil, errors.NewInternalError(errors.ErrCodeInternalError, "failed to encode default configuration", err)
	}
	return buf.Bytes(), nil
}

// WriteDefault writes DefaultYAML to <rootDir>/.plasmo-layout.yml. An existing
// file is only replaced when force is set.
func WriteDefault(fsys afero.Fs, rootDir string, force bool) (string, error) {
	path := filepath.Join(rootDir, FileName+".yml")

	if exists, _ := afero.Exists(fsys, path); exists && !force {
		return path, errors.NewConfigError(errors.ErrCodeConfigInvalid, "config file already exists: "+path)
	}

	data, err := DefaultYAML()
	if err != nil {
		return path, err
	}
	if err := afero.WriteFile(fsys, path, data, 0o644); err != nil {
		return path, errors.WrapIO(err, errors.ErrCodeWriteFailed, "failed to write config file", path)
	}
	return path, nil
}
