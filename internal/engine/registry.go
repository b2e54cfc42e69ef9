package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/spf13/afero"

	"github.com/conneroisu/plasmo-layout/internal/config"
	"github.com/conneroisu/plasmo-layout/internal/errors"
	"github.com/conneroisu/plasmo-layout/internal/logging"
)

// Registry owns a set of engines keyed by unique name. Lookups by file follow
// registration order. Lifecycle transitions are serialized by a mutex so one
// registry may be shared by concurrent callers.
type Registry struct {
	mu          sync.RWMutex
	engines     []Engine
	byName      map[string]Engine
	initialized bool
	logger      logging.Logger
}

// NewEmptyRegistry creates a registry without engines.
func NewEmptyRegistry(logger logging.Logger) *Registry {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Registry{
		byName: make(map[string]Engine),
		logger: logger.WithComponent("engine_registry"),
	}
}

// NewRegistry creates a registry with the built-in engines and, when the
// configuration selects it, the custom engine. A custom engine that cannot
// be loaded is a configuration error.
func NewRegistry(ctx context.Context, cfg *config.Config, fs afero.Fs, logger logging.Logger) (*Registry, error) {
	r := NewEmptyRegistry(logger)

	builtins := []Engine{
		NewJSXEngine(fs, JSXOptions{
			Runtime: cfg.JSX.Runtime,
			WorkDir: cfg.RootDir,
			Logger:  logger,
		}),
		NewTemplateEngine(fs),
	}
	for _, e := range builtins {
		if err := r.Register(e); err != nil {
			return nil, err
		}
	}

	if cfg.Engine == config.EngineCustom {
		if cfg.CustomEngine == nil || cfg.CustomEngine.Path == "" {
			return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid,
				"custom engine selected but custom_engine.path is not set")
		}
		r.logger.Debug(ctx, "Loading custom engine", "path", cfg.CustomEngine.Path)
		custom, err := LoadCustomEngine(fs, cfg.CustomEngine.Path, cfg.CustomEngine.Options)
		if err != nil {
			return nil, err
		}
		if err := r.Register(custom); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// Register adds an engine. Names must be unique.
func (r *Registry) Register(e Engine) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[e.Name()]; exists {
		return errors.NewEngineError(errors.ErrCodeDuplicateEngine,
			fmt.Sprintf("engine %q is already registered", e.Name()), nil)
	}
	r.byName[e.Name()] = e
	r.engines = append(r.engines, e)
	return nil
}

// Get returns the engine registered under name.
func (r *Registry) Get(name string) (Engine, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byName[name]
	return e, ok
}

// All returns the engines in registration order.
func (r *Registry) All() []Engine {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Engine(nil), r.engines...)
}

// FindForFile returns the first engine, in registration order, that can
// handle path.
func (r *Registry) FindForFile(path string) (Engine, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.engines {
		if e.CanHandle(path) {
			return e, true
		}
	}
	return nil, false
}

// Select prefers the engine named preferred when it can handle path and
// falls back to FindForFile otherwise.
func (r *Registry) Select(path, preferred string) (Engine, bool) {
	if preferred != "" {
		if e, ok := r.Get(preferred); ok && e.CanHandle(path) {
			return e, true
		}
	}
	return r.FindForFile(path)
}

// Initialized reports whether InitializeAll has run since the last cleanup.
func (r *Registry) Initialized() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.initialized
}

// InitializeAll initializes every engine at most once per lifetime. A
// failing engine is logged and skipped so the others remain usable.
func (r *Registry) InitializeAll(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.initialized {
		return
	}
	for _, e := range r.engines {
		initializer, ok := e.(Initializer)
		if !ok {
			continue
		}
		if err := initializer.Initialize(ctx); err != nil {
			r.logger.Warn(ctx, err, "Failed to initialize engine", "engine", e.Name())
			continue
		}
		r.logger.Debug(ctx, "Engine initialized", "engine", e.Name())
	}
	r.initialized = true
}

// CleanupAll releases every engine's resources, logging failures, and
// allows the registry to be initialized again.
func (r *Registry) CleanupAll(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.engines {
		cleaner, ok := e.(Cleaner)
		if !ok {
			continue
		}
		if err := cleaner.Cleanup(ctx); err != nil {
			r.logger.Warn(ctx, err, "Failed to clean up engine", "engine", e.Name())
		}
	}
	r.initialized = false
}
