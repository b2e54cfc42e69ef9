package engine

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"github.com/conneroisu/plasmo-layout/internal/errors"
	"github.com/conneroisu/plasmo-layout/internal/logging"
)

// JSXOptions configures the JSX engine.
type JSXOptions struct {
	// Runtime is the JavaScript runtime executable, "bun" by default.
	Runtime string
	// WorkDir is where the runtime resolves react and react-dom from.
	WorkDir string
	// Starter overrides how the runtime process is started.
	Starter RuntimeStarter
	Logger  logging.Logger
}

// JSXEngine renders React layouts to static markup. Layout files that are
// already plain HTML are returned without starting a runtime; everything
// else is rendered by a runtime process started on first use.
type JSXEngine struct {
	Base
	fs      afero.Fs
	opts    JSXOptions
	logger  logging.Logger
	mu      sync.Mutex
	runtime Runtime
}

// NewJSXEngine creates the jsx engine.
func NewJSXEngine(fs afero.Fs, opts JSXOptions) *JSXEngine {
	if opts.Runtime == "" {
		opts.Runtime = "bun"
	}
	if opts.Starter == nil {
		opts.Starter = func(ctx context.Context) (Runtime, error) {
			return StartBunRuntime(ctx, opts.Runtime, opts.WorkDir)
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &JSXEngine{
		Base:   NewBase("jsx", ".tsx", ".jsx", ".ts", ".js"),
		fs:     fs,
		opts:   opts,
		logger: logger.WithComponent("jsx_engine"),
	}
}

// Initialize checks that the runtime executable can be found. The process
// itself is only started when a layout actually needs it.
func (e *JSXEngine) Initialize(ctx context.Context) error {
	if _, err := exec.LookPath(e.opts.Runtime); err != nil {
		return errors.NewEngineError(errors.ErrCodeEngineInit,
			fmt.Sprintf("JavaScript runtime %q not found; install it to render JSX layouts", e.opts.Runtime), err)
	}
	return nil
}

// Cleanup stops the runtime process if one was started.
func (e *JSXEngine) Cleanup(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.runtime == nil {
		return nil
	}
	err := e.runtime.Close()
	e.runtime = nil
	e.logger.Debug(ctx, "Runtime stopped")
	return err
}

// Render renders the layout at templatePath with data as component props.
func (e *JSXEngine) Render(ctx context.Context, templatePath string, data Context) (string, error) {
	src, err := afero.ReadFile(e.fs, templatePath)
	if err != nil {
		return "", errors.NewRenderError(templatePath, err)
	}

	if IsStaticHTML(string(src)) {
		return EnsureCompleteDocument(string(src), TitleFor(data)), nil
	}

	rt, err := e.ensureRuntime(ctx)
	if err != nil {
		return "", errors.NewRenderError(templatePath, err)
	}

	html, err := rt.Render(ctx, templatePath, map[string]any(data))
	if err != nil {
		return "", errors.NewRenderError(templatePath, err)
	}
	return EnsureCompleteDocument(html, TitleFor(data)), nil
}

func (e *JSXEngine) ensureRuntime(ctx context.Context) (Runtime, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.runtime != nil {
		return e.runtime, nil
	}
	rt, err := e.opts.Starter(ctx)
	if err != nil {
		return nil, err
	}
	e.logger.Debug(ctx, "Runtime started", "runtime", e.opts.Runtime)
	e.runtime = rt
	return rt, nil
}

// IsStaticHTML reports whether a layout file is plain markup rather than a
// JavaScript module.
func IsStaticHTML(content string) bool {
	trimmed := strings.TrimSpace(content)
	lower := strings.ToLower(trimmed)
	if strings.HasPrefix(lower, "<!") || strings.HasPrefix(lower, "<html") {
		return true
	}
	return strings.HasPrefix(trimmed, "<") &&
		!strings.Contains(trimmed, "import ") &&
		!strings.Contains(trimmed, "export ")
}
