package engine

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"strings"

	"github.com/a-h/templ"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultTitle is used when no title can be derived from the context.
const DefaultTitle = "Plasmo Layout"

// IsCompleteDocument reports whether content already starts with a doctype
// or an <html> root element, ignoring case and surrounding whitespace.
func IsCompleteDocument(content string) bool {
	trimmed := strings.ToLower(strings.TrimSpace(content))
	return strings.HasPrefix(trimmed, "<!doctype") || strings.HasPrefix(trimmed, "<html")
}

// DocumentShell is the minimal page a fragment is rendered into.
func DocumentShell(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>`+templ.EscapeString(title)+`</title>
</head>
<body>
  <div id="root">`); err != nil {
			return err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, "</div>\n</body>\n</html>")
		return err
	})
}

// WrapDocument wraps content in the document shell.
func WrapDocument(content, title string) string {
	if title == "" {
		title = DefaultTitle
	}
	var buf bytes.Buffer
	// Writing to a bytes.Buffer cannot fail.
	_ = DocumentShell(title, templ.Raw(content)).Render(context.Background(), &buf)
	return buf.String()
}

// EnsureCompleteDocument returns content unchanged if it is already a
// complete document and wraps it otherwise. It is idempotent.
func EnsureCompleteDocument(content, title string) string {
	if IsCompleteDocument(content) {
		return content
	}
	return WrapDocument(content, title)
}

// TitleFor derives a page title from the output file name in data, e.g.
// ".../tab-onboarding.html" becomes "Tab Onboarding".
func TitleFor(data Context) string {
	out := data.String(OutputPathKey)
	if out == "" {
		return DefaultTitle
	}
	name := strings.TrimSuffix(filepath.Base(out), filepath.Ext(out))
	name = strings.NewReplacer("-", " ", "_", " ", ".", " ").Replace(name)
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultTitle
	}
	// Casers are stateful, so one is created per call.
	return cases.Title(language.English).String(name)
}
