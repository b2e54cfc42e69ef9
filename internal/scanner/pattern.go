package scanner

import (
	"bytes"
	"context"
	"regexp"

	"github.com/conneroisu/plasmo-layout/internal/types"
)

var layoutPattern = regexp.MustCompile(`@layout\s*\(\s*['"]([^'"]+)['"]\s*\)`)

// PatternTier matches annotations line by line. It accepts annotations in
// comments and does not need the file to parse.
type PatternTier struct{}

// Name implements Tier.
func (PatternTier) Name() string { return "pattern" }

// Scan implements Tier.
func (PatternTier) Scan(_ context.Context, content []byte) TierResult {
	var decls []types.LayoutDeclaration

	for i, line := range bytes.Split(content, []byte("\n")) {
		line = bytes.TrimSuffix(line, []byte("\r"))
		for _, m := range layoutPattern.FindAllSubmatchIndex(line, -1) {
			decls = append(decls, types.LayoutDeclaration{
				LayoutPath: string(line[m[2]:m[3]]),
				Line:       i + 1,
				Column:     m[0] + 1,
			})
		}
	}

	return TierResult{Declarations: decls}
}
