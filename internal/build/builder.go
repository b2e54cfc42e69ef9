// Package build turns annotated components into generated HTML documents.
//
// A Builder runs the scan, resolve, render and write steps for a batch of
// files (Build) or for a single file in watch mode (BuildOne). Per-component
// failures are recorded in the summary and never abort the batch; only a
// registry that cannot be constructed does.
package build

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/afero"

	"github.com/conneroisu/plasmo-layout/internal/artifact"
	"github.com/conneroisu/plasmo-layout/internal/config"
	"github.com/conneroisu/plasmo-layout/internal/discovery"
	"github.com/conneroisu/plasmo-layout/internal/engine"
	"github.com/conneroisu/plasmo-layout/internal/errors"
	"github.com/conneroisu/plasmo-layout/internal/logging"
	"github.com/conneroisu/plasmo-layout/internal/resolver"
	"github.com/conneroisu/plasmo-layout/internal/scanner"
	"github.com/conneroisu/plasmo-layout/internal/types"
)

// RegistryFactory creates the engine registry used for one build.
type RegistryFactory func(ctx context.Context) (*engine.Registry, error)

// Builder runs the layout pipeline against a resolved configuration.
type Builder struct {
	cfg         *config.Config
	fs          afero.Fs
	scanner     *scanner.Scanner
	store       *artifact.Store
	newRegistry RegistryFactory
	logger      logging.Logger
}

// Option customizes a Builder.
type Option func(*Builder)

// WithRegistryFactory replaces the default registry construction.
func WithRegistryFactory(factory RegistryFactory) Option {
	return func(b *Builder) {
		b.newRegistry = factory
	}
}

// NewBuilder creates a builder. By default registries are built with
// engine.NewRegistry from cfg.
func NewBuilder(cfg *config.Config, fs afero.Fs, logger logging.Logger, opts ...Option) *Builder {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	b := &Builder{
		cfg:     cfg,
		fs:      fs,
		scanner: scanner.New(fs, logger),
		store:   artifact.NewStore(fs),
		logger:  logger.WithComponent("builder"),
	}
	b.newRegistry = func(ctx context.Context) (*engine.Registry, error) {
		return engine.NewRegistry(ctx, cfg, fs, logger)
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// BuildProject discovers the configured component files and builds them.
func (b *Builder) BuildProject(ctx context.Context) (*types.BuildSummary, error) {
	files, err := discovery.ListMatchingFiles(ctx, b.fs, b.cfg)
	if err != nil {
		return nil, err
	}
	b.logger.Debug(ctx, "Discovered component files", "count", len(files))
	return b.Build(ctx, files)
}

// Build processes files in order. The registry is only constructed when at
// least one file declares a layout, and is cleaned up exactly once.
func (b *Builder) Build(ctx context.Context, files []string) (*types.BuildSummary, error) {
	perf := logging.StartOperation(b.logger, "build")
	start := time.Now()

	summary := &types.BuildSummary{
		TotalScanned: len(files),
		Results:      []types.ProcessingResult{},
	}

	var components []types.ProcessedComponent
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		component, ok, err := b.readComponent(ctx, file)
		if err != nil {
			b.logger.Warn(ctx, err, "Skipping unreadable file", "path", file)
			continue
		}
		if ok {
			components = append(components, component)
		}
	}
	summary.ComponentsWithLayouts = len(components)

	if len(components) == 0 {
		b.logger.Warn(ctx, nil, "No components with layout annotations found", "scanned", len(files))
		summary.Duration = time.Since(start)
		perf.End(ctx)
		return summary, nil
	}

	sess, err := b.open(ctx)
	if err != nil {
		return nil, err
	}
	defer sess.close(ctx)

	for _, component := range components {
		if err := ctx.Err(); err != nil {
			summary.Duration = time.Since(start)
			return summary, err
		}
		result := sess.process(ctx, component)
		summary.Add(result)
		b.report(ctx, result)
	}

	summary.Duration = time.Since(start)
	perf.End(ctx)
	b.logger.Info(ctx, "Build complete",
		"scanned", summary.TotalScanned,
		"with_layouts", summary.ComponentsWithLayouts,
		"generated", summary.SuccessCount,
		"failed", summary.FailureCount)
	return summary, nil
}

// BuildOne processes a single file with a fresh registry. It returns nil
// and no error when the file declares no layout.
func (b *Builder) BuildOne(ctx context.Context, path string) (*types.ProcessingResult, error) {
	component, ok, err := b.readComponent(ctx, path)
	if err != nil || !ok {
		return nil, err
	}

	sess, err := b.open(ctx)
	if err != nil {
		return nil, err
	}
	defer sess.close(ctx)

	result := sess.process(ctx, component)
	b.report(ctx, result)
	return &result, nil
}

// readComponent reads and scans one file. ok is false when the file has no
// layout declaration.
func (b *Builder) readComponent(ctx context.Context, path string) (types.ProcessedComponent, bool, error) {
	declarations, err := b.scanner.ScanFile(ctx, path)
	if err != nil {
		return types.ProcessedComponent{}, false, err
	}
	if len(declarations) == 0 {
		return types.ProcessedComponent{}, false, nil
	}
	if len(declarations) > 1 {
		b.logger.Debug(ctx, "Multiple layout declarations, using the first",
			"path", artifact.RelativePath(path, b.cfg.RootDir),
			"layout", declarations[0].LayoutPath,
			"ignored", len(declarations)-1)
	}
	return types.ProcessedComponent{
		SourcePath: path,
		OutputPath: artifact.DeriveOutputPath(path, b.cfg.OutputDirAbsolute),
		Layouts:    declarations,
	}, true, nil
}

func (b *Builder) report(ctx context.Context, result types.ProcessingResult) {
	if result.Success {
		b.logger.Info(ctx, "Generated",
			"output", artifact.RelativePath(result.Component.OutputPath, b.cfg.RootDir),
			"layout", result.Component.ResolvedLayoutPath,
			"duration_ms", result.DurationMs())
		return
	}
	b.logger.Error(ctx, nil, "Failed",
		"source", artifact.RelativePath(result.Component.SourcePath, b.cfg.RootDir),
		"reason", result.Error)
}

// session is one initialized registry plus the resolver built against it.
type session struct {
	builder  *Builder
	registry *engine.Registry
	resolver *resolver.Resolver
}

func (b *Builder) open(ctx context.Context) (*session, error) {
	registry, err := b.newRegistry(ctx)
	if err != nil {
		return nil, err
	}
	registry.InitializeAll(ctx)

	fallback := make(map[string][]string, len(b.cfg.ExtensionFallback))
	for id, exts := range b.cfg.ExtensionFallback {
		fallback[id] = exts
	}
	if custom, ok := registry.Get(config.EngineCustom); ok && len(fallback[config.EngineCustom]) == 0 {
		fallback[config.EngineCustom] = custom.Extensions()
	}

	return &session{
		builder:  b,
		registry: registry,
		resolver: resolver.New(b.fs, b.cfg.LayoutsDirAbsolute, b.cfg.Engine, fallback),
	}, nil
}

func (s *session) close(ctx context.Context) {
	s.registry.CleanupAll(ctx)
}

// process runs resolve, select, render and write for one component. Every
// failure becomes a failed result.
func (s *session) process(ctx context.Context, component types.ProcessedComponent) types.ProcessingResult {
	start := time.Now()
	fail := func(err error) types.ProcessingResult {
		return types.ProcessingResult{
			Component: component,
			Error:     errors.Reason(err),
			Duration:  time.Since(start),
		}
	}

	declaration, ok := component.PrimaryLayout()
	if !ok {
		return fail(fmt.Errorf("no layout declaration found"))
	}

	resolution, err := s.resolver.Resolve(declaration.LayoutPath)
	if err != nil {
		return fail(err)
	}
	component.ResolvedLayoutPath = resolution.Path
	component.EngineType = resolution.EngineType

	eng, ok := s.registry.Select(resolution.Path, resolution.EngineType)
	if !ok {
		return fail(errors.NewEngineError(errors.ErrCodeNoEngine,
			fmt.Sprintf("no engine available for: %s", resolution.Path), nil))
	}

	data := engine.NewContext(component.SourcePath, component.OutputPath)
	html, err := s.builder.render(ctx, eng, resolution.Path, data)
	if err != nil {
		return fail(err)
	}

	if err := s.builder.store.Write(ctx, component.OutputPath, html); err != nil {
		return fail(err)
	}

	return types.ProcessingResult{
		Component: component,
		Success:   true,
		HTML:      html,
		Duration:  time.Since(start),
	}
}

// render calls the engine, bounding it by render_timeout when one is set.
func (b *Builder) render(ctx context.Context, eng engine.Engine, templatePath string, data engine.Context) (string, error) {
	if b.cfg.RenderTimeout <= 0 {
		html, err := callEngine(ctx, eng, templatePath, data)
		return renderResult(html, err, templatePath)
	}

	ctx, cancel := context.WithTimeout(ctx, b.cfg.RenderTimeout)
	defer cancel()

	type outcome struct {
		html string
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		html, err := callEngine(ctx, eng, templatePath, data)
		done <- outcome{html, err}
	}()

	select {
	case o := <-done:
		if o.err == nil || ctx.Err() == nil {
			return renderResult(o.html, o.err, templatePath)
		}
	case <-ctx.Done():
	}

	if ctx.Err() == context.DeadlineExceeded {
		return "", &errors.LayoutError{
			Type:        errors.ErrorTypeRender,
			Code:        errors.ErrCodeRenderTimeout,
			Message:     fmt.Sprintf("render timed out after %s", b.cfg.RenderTimeout),
			FilePath:    templatePath,
			Recoverable: true,
		}
	}
	return "", ctx.Err()
}

// callEngine calls eng.Render, reporting a panic as an error so one broken
// engine fails only the component being rendered.
func callEngine(ctx context.Context, eng engine.Engine, templatePath string, data engine.Context) (html string, err error) {
	defer func() {
		if r := recover(); r != nil {
			html, err = "", fmt.Errorf("engine %s panicked: %v", eng.Name(), r)
		}
	}()
	return eng.Render(ctx, templatePath, data)
}

// renderResult attributes an engine failure to templatePath.
func renderResult(html string, err error, templatePath string) (string, error) {
	if err != nil {
		return "", errors.WrapRender(err, templatePath)
	}
	return html, nil
}
