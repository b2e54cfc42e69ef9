package scanner

import (
	"context"
	"strconv"
	"strings"
	"unicode"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/typescript/tsx"

	"github.com/conneroisu/plasmo-layout/internal/types"
)

// StructuralTier parses content as TSX and accepts two shapes:
//
//	@layout('popup')        decorator with one string argument
//	layout('popup');        call used as a standalone statement
//
// tree-sitter recovers from syntax errors, so malformed files still yield
// whatever well-formed nodes exist. Any parser failure yields an empty result.
type StructuralTier struct{}

// Name implements Tier.
func (StructuralTier) Name() string { return "structural" }

// Scan implements Tier.
func (StructuralTier) Scan(ctx context.Context, content []byte) (result TierResult) {
	defer func() {
		if r := recover(); r != nil {
			result = TierResult{}
		}
	}()

	parser := sitter.NewParser()
	parser.SetLanguage(tsx.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil || tree == nil {
		return TierResult{}
	}

	var decls []types.LayoutDeclaration
	walk(tree.RootNode(), func(n *sitter.Node) {
		if decl, ok := declarationAt(n, content); ok {
			decls = append(decls, decl)
		}
	})

	return TierResult{Declarations: decls}
}

func walk(n *sitter.Node, visit func(*sitter.Node)) {
	if n == nil {
		return
	}
	visit(n)
	for i := 0; i < int(n.ChildCount()); i++ {
		walk(n.Child(i), visit)
	}
}

// declarationAt reports whether n is a `layout('x')` call in an accepted
// position. Decorators report the position of the `@`.
func declarationAt(n *sitter.Node, src []byte) (types.LayoutDeclaration, bool) {
	if n.Type() != "call_expression" {
		return types.LayoutDeclaration{}, false
	}

	parent := n.Parent()
	if parent == nil {
		return types.LayoutDeclaration{}, false
	}
	anchor := n
	switch parent.Type() {
	case "decorator":
		anchor = parent
	case "expression_statement":
	default:
		return types.LayoutDeclaration{}, false
	}

	fn := n.ChildByFieldName("function")
	if fn == nil || fn.Type() != "identifier" || fn.Content(src) != "layout" {
		return types.LayoutDeclaration{}, false
	}

	path, ok := singleStringArgument(n.ChildByFieldName("arguments"), src)
	if !ok {
		return types.LayoutDeclaration{}, false
	}

	pos := anchor.StartPoint()
	return types.LayoutDeclaration{
		LayoutPath: path,
		Line:       int(pos.Row) + 1,
		Column:     int(pos.Column) + 1,
	}, true
}

func singleStringArgument(args *sitter.Node, src []byte) (string, bool) {
	if args == nil || args.NamedChildCount() != 1 {
		return "", false
	}
	arg := args.NamedChild(0)
	if arg.Type() != "string" {
		return "", false
	}
	return stringValue(arg, src), true
}

// stringValue decodes a string literal node from its fragment and escape
// children. An empty literal has neither and decodes to "".
func stringValue(n *sitter.Node, src []byte) string {
	var b strings.Builder
	for i := 0; i < int(n.NamedChildCount()); i++ {
		part := n.NamedChild(i)
		if part.Type() == "escape_sequence" {
			b.WriteString(unescape(part.Content(src)))
			continue
		}
		b.WriteString(part.Content(src))
	}
	return b.String()
}

// unescape decodes one escape sequence, backslash included. Unknown escapes
// stand for the escaped character itself.
func unescape(seq string) string {
	if len(seq) < 2 || seq[0] != '\\' {
		return seq
	}
	body := seq[1:]
	switch body[0] {
	case 'n':
		return "\n"
	case 't':
		return "\t"
	case 'r':
		return "\r"
	case 'b':
		return "\b"
	case 'f':
		return "\f"
	case 'v':
		return "\v"
	case '0':
		if len(body) == 1 {
			return "\x00"
		}
	case '\n', '\r', 0xe2:
		// Line continuation.
		return ""
	case 'x':
		if r, ok := hexRune(body[1:]); ok {
			return string(r)
		}
	case 'u':
		hex := strings.TrimSuffix(strings.TrimPrefix(body[1:], "{"), "}")
		if r, ok := hexRune(hex); ok {
			return string(r)
		}
	}
	return body
}

func hexRune(hex string) (rune, bool) {
	if hex == "" {
		return 0, false
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil || v > unicode.MaxRune {
		return 0, false
	}
	return rune(v), true
}
