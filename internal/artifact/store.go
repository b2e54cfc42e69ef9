// Package artifact writes, recognizes and removes generated HTML files.
//
// Every file written by the Store carries a marker comment near the top. Only
// files carrying that marker are ever deleted, so hand-authored HTML living
// next to components is left alone by clean and watch.
package artifact

import (
	"context"
	"io"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/net/html"

	"github.com/conneroisu/plasmo-layout/internal/errors"
)

// Marker is the comment embedded in every generated artifact.
const Marker = "<!-- Generated by plasmo-layout. Do not edit manually. -->"

const markerText = "Generated by plasmo-layout."

// Store performs artifact I/O through an afero filesystem.
type Store struct {
	fs afero.Fs
}

// NewStore creates a store over fs.
func NewStore(fsys afero.Fs) *Store {
	return &Store{fs: fsys}
}

// Write stores document at path with the generated marker embedded.
// Missing parent directories are created.
func (s *Store) Write(_ context.Context, path, document string) error {
	if err := s.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.WrapIO(err, errors.ErrCodeWriteFailed, "failed to create output directory", path)
	}
	if err := afero.WriteFile(s.fs, path, []byte(WithMarker(document)), 0o644); err != nil {
		return errors.WrapIO(err, errors.ErrCodeWriteFailed, "failed to write artifact", path)
	}
	return nil
}

// WithMarker inserts the marker after a leading doctype, or as the first line
// when there is none. Documents whose head already carries the marker are
// unchanged; the marker text elsewhere in the body does not count.
func WithMarker(document string) string {
	if markedHead(strings.NewReader(document)) {
		return document
	}

	trimmed := strings.TrimLeft(document, " \t\r\n")
	if strings.HasPrefix(strings.ToLower(trimmed), "<!doctype") {
		if end := strings.IndexByte(trimmed, '>'); end >= 0 {
			return trimmed[:end+1] + "\n" + Marker + trimmed[end+1:]
		}
	}
	return Marker + "\n" + document
}

// IsGenerated reports whether path holds a generated artifact: a marker
// comment must appear before the first element.
func (s *Store) IsGenerated(path string) bool {
	f, err := s.fs.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	return markedHead(f)
}

// markedHead reports whether a marker comment precedes the first tag in r.
func markedHead(r io.Reader) bool {
	z := html.NewTokenizer(r)
	for {
		switch z.Next() {
		case html.ErrorToken:
			return false
		case html.CommentToken:
			if strings.Contains(string(z.Text()), markerText) {
				return true
			}
		case html.StartTagToken, html.SelfClosingTagToken, html.EndTagToken:
			return false
		}
	}
}

// Delete removes path if it is a generated artifact. It returns false,
// without error, for hand-authored or missing files.
func (s *Store) Delete(_ context.Context, path string) (bool, error) {
	if !s.IsGenerated(path) {
		return false, nil
	}
	if err := s.fs.Remove(path); err != nil {
		return false, errors.WrapIO(err, errors.ErrCodeDeleteFailed, "failed to delete artifact", path)
	}
	return true, nil
}

// FindGenerated walks roots and returns every generated .html file, sorted
// and without duplicates. Paths for which skip returns true are ignored;
// skipped directories are not descended into.
func (s *Store) FindGenerated(ctx context.Context, roots []string, skip func(path string) bool) ([]string, error) {
	seen := make(map[string]struct{})

	for _, root := range roots {
		if ok, _ := afero.DirExists(s.fs, root); !ok {
			continue
		}

		err := afero.Walk(s.fs, root, func(path string, info fs.FileInfo, err error) error {
			if err != nil {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if skip != nil && skip(path) {
				if info.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if info.IsDir() || !strings.EqualFold(filepath.Ext(path), ".html") {
				return nil
			}
			if s.IsGenerated(path) {
				seen[path] = struct{}{}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	found := make([]string, 0, len(seen))
	for p := range seen {
		found = append(found, p)
	}
	sort.Strings(found)
	return found, nil
}
