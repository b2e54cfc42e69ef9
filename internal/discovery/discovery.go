// Package discovery finds component files matching the configured include
// and exclude globs. Globs support `**` and `{a,b}` alternation.
package discovery

import (
	"context"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"

	"github.com/conneroisu/plasmo-layout/internal/config"
	"github.com/conneroisu/plasmo-layout/internal/errors"
)

// Matcher evaluates include and exclude globs relative to a root directory.
type Matcher struct {
	root    string
	include []string
	exclude []string
}

// NewMatcher builds a matcher from the resolved configuration.
func NewMatcher(cfg *config.Config) *Matcher {
	return &Matcher{
		root:    cfg.RootDir,
		include: normalize(cfg.Include),
		exclude: normalize(cfg.Exclude),
	}
}

func normalize(patterns []string) []string {
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		p = filepath.ToSlash(strings.TrimSpace(p))
		p = strings.TrimPrefix(p, "./")
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// rel returns path relative to the root in slash form, or "" when path lies
// outside the root.
func (m *Matcher) rel(path string) string {
	if !filepath.IsAbs(path) {
		return filepath.ToSlash(filepath.Clean(path))
	}
	r, err := filepath.Rel(m.root, path)
	if err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return ""
	}
	return filepath.ToSlash(r)
}

func (m *Matcher) matchAny(patterns []string, path string) bool {
	rel := m.rel(path)
	abs := filepath.ToSlash(path)
	for _, p := range patterns {
		target := rel
		if strings.HasPrefix(p, "/") {
			target = abs
		}
		if target == "" {
			continue
		}
		if ok, _ := doublestar.Match(p, target); ok {
			return true
		}
	}
	return false
}

// Excluded reports whether path matches any exclude glob.
func (m *Matcher) Excluded(path string) bool {
	return m.matchAny(m.exclude, path)
}

// Included reports whether path matches an include glob and no exclude glob.
func (m *Matcher) Included(path string) bool {
	return m.matchAny(m.include, path) && !m.Excluded(path)
}

// WatchRoots returns the absolute static base directory of each include
// glob, without duplicates and without roots nested in another root.
func (m *Matcher) WatchRoots() []string {
	var roots []string
	for _, p := range m.include {
		roots = append(roots, m.base(p))
	}
	sort.Strings(roots)

	var out []string
	for _, r := range roots {
		if len(out) > 0 {
			last := out[len(out)-1]
			if r == last || strings.HasPrefix(r, last+string(filepath.Separator)) {
				continue
			}
		}
		out = append(out, r)
	}
	return out
}

func (m *Matcher) base(pattern string) string {
	base, _ := doublestar.SplitPattern(pattern)
	if base == "." || base == "" {
		return m.root
	}
	if strings.HasPrefix(base, "/") {
		return filepath.FromSlash(base)
	}
	return filepath.Join(m.root, filepath.FromSlash(base))
}

// ListMatchingFiles returns every file matched by the include globs and not
// excluded, as sorted absolute paths without duplicates.
func (m *Matcher) ListMatchingFiles(ctx context.Context, fsys afero.Fs) ([]string, error) {
	seen := make(map[string]struct{})

	for _, pattern := range m.include {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		base := m.base(pattern)
		if ok, _ := afero.DirExists(fsys, base); !ok {
			continue
		}
		_, rest := doublestar.SplitPattern(pattern)

		iofs := afero.NewIOFS(afero.NewBasePathFs(fsys, base))
		matches, err := doublestar.Glob(iofs, rest, doublestar.WithFilesOnly())
		if err != nil {
			return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, "invalid include pattern "+pattern+": "+err.Error())
		}

		for _, match := range matches {
			abs := filepath.Join(base, filepath.FromSlash(match))
			if m.Excluded(abs) {
				continue
			}
			seen[abs] = struct{}{}
		}
	}

	files := make([]string, 0, len(seen))
	for f := range seen {
		files = append(files, f)
	}
	sort.Strings(files)
	return files, nil
}

// ListMatchingFiles is a convenience wrapper around Matcher.ListMatchingFiles.
func ListMatchingFiles(ctx context.Context, fsys afero.Fs, cfg *config.Config) ([]string, error) {
	return NewMatcher(cfg).ListMatchingFiles(ctx, fsys)
}
