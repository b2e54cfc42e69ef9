package engine

import (
	"bytes"
	"context"
	"html/template"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/conneroisu/plasmo-layout/internal/errors"
)

// TemplateEngine renders Go html/template layouts. The render context is the
// template data, so `{{ .componentPath }}` and `{{ .outputPath }}` are
// available along with the helpers in templateFuncs.
type TemplateEngine struct {
	Base
	fs afero.Fs
}

// NewTemplateEngine creates the template engine reading layouts from fs.
func NewTemplateEngine(fs afero.Fs) *TemplateEngine {
	return &TemplateEngine{
		Base: NewBase("template", ".tmpl", ".gohtml"),
		fs:   fs,
	}
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"title": func(s string) string { return cases.Title(language.English).String(s) },
		"base":  filepath.Base,
		"stem": func(p string) string {
			b := filepath.Base(p)
			return strings.TrimSuffix(b, filepath.Ext(b))
		},
	}
}

// Render parses and executes the template at templatePath.
func (e *TemplateEngine) Render(ctx context.Context, templatePath string, data Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	src, err := afero.ReadFile(e.fs, templatePath)
	if err != nil {
		return "", errors.NewRenderError(templatePath, err)
	}

	tmpl, err := template.New(filepath.Base(templatePath)).
		Funcs(templateFuncs()).
		Option("missingkey=zero").
		Parse(string(src))
	if err != nil {
		return "", errors.NewRenderError(templatePath, err)
	}

	if data == nil {
		data = Context{}
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, map[string]any(data)); err != nil {
		return "", errors.NewRenderError(templatePath, err)
	}

	return EnsureCompleteDocument(buf.String(), TitleFor(data)), nil
}
