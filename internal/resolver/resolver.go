// Package resolver maps dot-addressed layout names onto template files.
//
// `tabs.onboarding` resolves to <layoutsRoot>/tabs/onboarding plus the first
// extension, searched engine by engine, for which a regular file exists.
// The primary engine is searched first, the remaining engines follow in
// lexical order so resolution is deterministic.
package resolver

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/conneroisu/plasmo-layout/internal/errors"
)

// Resolution is a template file and the engine whose extension matched.
type Resolution struct {
	Path       string
	EngineType string
}

// Candidate is one path tried during resolution.
type Candidate struct {
	Path       string
	EngineType string
}

// Resolver is safe for concurrent use; it holds no mutable state.
type Resolver struct {
	fs          afero.Fs
	layoutsRoot string
	order       []string
	fallback    map[string][]string
}

// New creates a resolver searching layoutsRoot. fallback maps engine ids to
// their ordered extensions.
func New(fs afero.Fs, layoutsRoot, primary string, fallback map[string][]string) *Resolver {
	engines := make([]string, 0, len(fallback))
	for id := range fallback {
		if id != primary {
			engines = append(engines, id)
		}
	}
	sort.Strings(engines)

	order := engines
	if primary != "" {
		order = append([]string{primary}, engines...)
	}

	return &Resolver{
		fs:          fs,
		layoutsRoot: layoutsRoot,
		order:       order,
		fallback:    fallback,
	}
}

// EngineOrder returns the engine search order.
func (r *Resolver) EngineOrder() []string {
	return append([]string(nil), r.order...)
}

// Segments splits a layout path and rejects segments that are empty, "." or
// "..", or that contain a path separator.
func Segments(layoutPath string) ([]string, error) {
	segments := strings.Split(layoutPath, ".")
	for _, seg := range segments {
		if seg == "" || seg == ".." || strings.ContainsAny(seg, `/\`+"\x00") {
			return nil, errors.NewResolveError(errors.ErrCodeInvalidLayoutPath,
				fmt.Sprintf("invalid layout path: %q", layoutPath))
		}
	}
	return segments, nil
}

// Attempts returns every candidate Resolve would try, in order.
func (r *Resolver) Attempts(layoutPath string) ([]Candidate, error) {
	segments, err := Segments(layoutPath)
	if err != nil {
		return nil, err
	}
	base := filepath.Join(append([]string{r.layoutsRoot}, segments...)...)

	var candidates []Candidate
	for _, engine := range r.order {
		for _, ext := range r.fallback[engine] {
			candidates = append(candidates, Candidate{Path: base + ext, EngineType: engine})
		}
	}
	return candidates, nil
}

// Resolve returns the first existing candidate for layoutPath. A miss is a
// recoverable error wrapping ErrLayoutNotFound.
func (r *Resolver) Resolve(layoutPath string) (Resolution, error) {
	candidates, err := r.Attempts(layoutPath)
	if err != nil {
		return Resolution{}, err
	}

	for _, c := range candidates {
		info, err := r.fs.Stat(c.Path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		return Resolution{Path: c.Path, EngineType: c.EngineType}, nil
	}

	tried := make([]string, len(candidates))
	for i, c := range candidates {
		tried[i] = c.Path
	}
	return Resolution{}, errors.NewResolveError(errors.ErrCodeLayoutNotFound,
		fmt.Sprintf("layout not found: %s (tried %d candidates under %s)", layoutPath, len(candidates), r.layoutsRoot)).
		WithContext("layout", layoutPath).
		WithContext("tried", tried)
}
