package artifact

import (
	"path/filepath"
	"strings"
)

const indexName = "index"

// SourceExtensions are the component file types that produce artifacts.
var SourceExtensions = []string{".tsx", ".jsx", ".ts", ".js"}

// IsComponentSource reports whether path has a component source extension.
func IsComponentSource(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range SourceExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// DeriveOutputPath maps a component source file to its HTML artifact.
//
//	/p/src/popup/index.tsx -> /p/src/popup/popup.html
//	/p/src/options.tsx     -> /p/src/options.html
//
// A non-empty outputDir replaces the directory but not the name rule.
func DeriveOutputPath(sourcePath, outputDir string) string {
	dir := filepath.Dir(sourcePath)
	base := filepath.Base(sourcePath)
	name := strings.TrimSuffix(base, filepath.Ext(base))

	if name == indexName {
		parent := filepath.Base(dir)
		if parent != "." && parent != string(filepath.Separator) && parent != "" {
			name = parent
		}
	}

	if outputDir != "" {
		dir = outputDir
	}
	return filepath.Join(dir, name+".html")
}

// RelativePath returns path relative to root for display. It falls back to
// the input when no relative form exists.
func RelativePath(path, root string) string {
	if root == "" {
		return path
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	return rel
}
