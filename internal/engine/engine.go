// Package engine defines the rendering engine abstraction and the registry
// that owns engines for the lifetime of a build.
//
// Three engines ship with plasmo-layout:
//   - jsx renders React layouts through a JavaScript runtime
//   - template renders Go html/template layouts
//   - custom wraps a user supplied Go source file interpreted at startup
//
// Every engine returns a complete HTML document. Fragments are wrapped in a
// minimal document shell, complete documents are returned untouched.
package engine

import (
	"context"
	"path/filepath"
	"slices"
	"strings"
)

// Context keys always present in a render context.
const (
	ComponentPathKey = "componentPath"
	OutputPathKey    = "outputPath"
)

// Context is the free-form data passed to a render call.
type Context map[string]any

// NewContext creates a render context for a component.
func NewContext(componentPath, outputPath string) Context {
	return Context{
		ComponentPathKey: componentPath,
		OutputPathKey:    outputPath,
	}
}

// String returns the string value stored under key, or "".
func (c Context) String(key string) string {
	if v, ok := c[key].(string); ok {
		return v
	}
	return ""
}

// Engine renders a layout template into an HTML document.
type Engine interface {
	Name() string
	Extensions() []string
	CanHandle(path string) bool
	Render(ctx context.Context, templatePath string, data Context) (string, error)
}

// Initializer is implemented by engines that need setup before rendering.
type Initializer interface {
	Initialize(ctx context.Context) error
}

// Cleaner is implemented by engines holding resources that must be released.
type Cleaner interface {
	Cleanup(ctx context.Context) error
}

// Base provides name and extension matching for engine implementations.
type Base struct {
	name       string
	extensions []string
}

// NewBase creates a Base. Extensions are compared case-insensitively.
func NewBase(name string, extensions ...string) Base {
	exts := make([]string, len(extensions))
	for i, ext := range extensions {
		exts[i] = strings.ToLower(ext)
	}
	return Base{name: name, extensions: exts}
}

// Name returns the engine name.
func (b Base) Name() string { return b.name }

// Extensions returns a copy of the handled extensions.
func (b Base) Extensions() []string { return slices.Clone(b.extensions) }

// CanHandle reports whether path has one of the handled extensions.
func (b Base) CanHandle(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext != "" && slices.Contains(b.extensions, ext)
}
