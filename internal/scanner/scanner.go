// Package scanner extracts layout declarations from component source files.
//
// Scanning runs in two tiers. The first tier matches `@layout('path')` line by
// line and works on any text, including annotations placed inside comments.
// The second tier parses the file as TSX with tree-sitter and looks for real
// decorator or statement syntax. It is only consulted when the first tier
// found nothing, so a file is never counted twice.
package scanner

import (
	"bytes"
	"context"

	"github.com/spf13/afero"

	"github.com/conneroisu/plasmo-layout/internal/errors"
	"github.com/conneroisu/plasmo-layout/internal/logging"
	"github.com/conneroisu/plasmo-layout/internal/types"
)

// TierResult is the outcome of one scanning tier. An empty result means the
// tier matched nothing and the next tier may be tried.
type TierResult struct {
	Declarations []types.LayoutDeclaration
}

// Empty reports whether the tier found no declarations.
func (r TierResult) Empty() bool {
	return len(r.Declarations) == 0
}

// Tier is a single scanning strategy.
type Tier interface {
	Name() string
	Scan(ctx context.Context, content []byte) TierResult
}

// Scanner finds layout declarations in component files.
type Scanner struct {
	fs     afero.Fs
	tiers  []Tier
	logger logging.Logger
}

// New creates a scanner reading through fs with the default tiers.
func New(fs afero.Fs, logger logging.Logger) *Scanner {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Scanner{
		fs:     fs,
		tiers:  []Tier{PatternTier{}, StructuralTier{}},
		logger: logger.WithComponent("scanner"),
	}
}

// ProbablyHasAnnotation is a cheap pre-filter run before a full scan.
func ProbablyHasAnnotation(content []byte) bool {
	return bytes.Contains(content, []byte("@layout(")) ||
		bytes.Contains(content, []byte("@layout ("))
}

// Scan returns the declarations in content in source order. Tiers are tried
// in order and the first non-empty result wins.
func (s *Scanner) Scan(ctx context.Context, content []byte) []types.LayoutDeclaration {
	for _, tier := range s.tiers {
		result := tier.Scan(ctx, content)
		if !result.Empty() {
			s.logger.Debug(ctx, "Layout declarations found",
				"tier", tier.Name(),
				"count", len(result.Declarations))
			return result.Declarations
		}
	}
	return nil
}

// ScanFile reads path and scans it. Files failing ProbablyHasAnnotation
// are not parsed. Read failures are returned as scan errors; unparsable
// content is never an error.
func (s *Scanner) ScanFile(ctx context.Context, path string) ([]types.LayoutDeclaration, error) {
	content, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return nil, errors.NewScanError(path, err)
	}
	if !ProbablyHasAnnotation(content) {
		return nil, nil
	}
	return s.Scan(ctx, content), nil
}
