package engine

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/spf13/afero"
	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"github.com/conneroisu/plasmo-layout/internal/errors"
)

// Symbols a custom engine source file declares in package main.
const (
	customNameFunc       = "Name"
	customExtensionsFunc = "Extensions"
	customRenderFunc     = "Render"
	customInitFunc       = "Initialize"
	customCleanupFunc    = "Cleanup"
)

// CustomEngine adapts a Go source file interpreted with yaegi to Engine.
// The file must be package main and declare:
//
//	func Name() string
//	func Extensions() []string
//	func Render(templatePath string, data map[string]any) (string, error)
//
// and may declare:
//
//	func Initialize(options map[string]any) error
//	func Cleanup() error
//
// It is always registered as "custom"; Label returns the declared name.
type CustomEngine struct {
	Base
	label   string
	options map[string]any

	mu         sync.Mutex
	render     func(string, map[string]any) (string, error)
	initialize func(map[string]any) error
	cleanup    func() error
}

// LoadCustomEngine interprets the engine source at path. Missing or
// mistyped required functions produce an ErrEngineShape configuration error.
func LoadCustomEngine(fs afero.Fs, path string, options map[string]any) (*CustomEngine, error) {
	code, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errors.WrapConfig(err, errors.ErrCodeConfigNotFound,
			fmt.Sprintf("failed to read custom engine %s", path))
	}
	if strings.TrimSpace(string(code)) == "" {
		return nil, shapeError(path, "file is empty")
	}

	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, errors.NewInternalError(errors.ErrCodeInternalError, "failed to load interpreter symbols", err)
	}
	if _, err := i.Eval(string(code)); err != nil {
		return nil, errors.WrapConfig(err, errors.ErrCodeEngineShape,
			fmt.Sprintf("failed to interpret custom engine %s", path))
	}

	var nameFn func() string
	if err := lookup(i, customNameFunc, &nameFn, true); err != nil {
		return nil, shapeError(path, err.Error())
	}
	var extsFn func() []string
	if err := lookup(i, customExtensionsFunc, &extsFn, true); err != nil {
		return nil, shapeError(path, err.Error())
	}

	e := &CustomEngine{options: options}
	if err := lookup(i, customRenderFunc, &e.render, true); err != nil {
		return nil, shapeError(path, err.Error())
	}
	if err := lookup(i, customInitFunc, &e.initialize, false); err != nil {
		return nil, shapeError(path, err.Error())
	}
	if err := lookup(i, customCleanupFunc, &e.cleanup, false); err != nil {
		return nil, shapeError(path, err.Error())
	}

	e.label = nameFn()
	if e.label == "" {
		return nil, shapeError(path, "Name() returned an empty name")
	}
	exts := extsFn()
	if len(exts) == 0 {
		return nil, shapeError(path, "Extensions() returned no extensions")
	}
	for idx, ext := range exts {
		if !strings.HasPrefix(ext, ".") {
			exts[idx] = "." + ext
		}
	}
	e.Base = NewBase("custom", exts...)

	return e, nil
}

// lookup evaluates symbol and stores it in target, which must point to a
// func variable of the expected type.
func lookup(i *interp.Interpreter, symbol string, target any, required bool) error {
	v, err := i.Eval(symbol)
	if err != nil || !v.IsValid() {
		if required {
			return fmt.Errorf("missing required function %s", symbol)
		}
		return nil
	}

	dst := reflect.ValueOf(target).Elem()
	if v.Kind() != reflect.Func {
		return fmt.Errorf("%s is not a function", symbol)
	}
	if !v.Type().AssignableTo(dst.Type()) {
		return fmt.Errorf("%s must have type %s, got %s", symbol, dst.Type(), v.Type())
	}
	dst.Set(v)
	return nil
}

func shapeError(path, reason string) error {
	return errors.NewConfigError(errors.ErrCodeEngineShape,
		fmt.Sprintf("custom engine %s must export Name, Extensions and Render: %s", path, reason))
}

// Label returns the name the engine declared for itself.
func (e *CustomEngine) Label() string { return e.label }

// Initialize calls the engine's Initialize with the configured options.
func (e *CustomEngine) Initialize(context.Context) error {
	if e.initialize == nil {
		return nil
	}
	return e.call(func() error { return e.initialize(e.options) })
}

// Cleanup calls the engine's Cleanup.
func (e *CustomEngine) Cleanup(context.Context) error {
	if e.cleanup == nil {
		return nil
	}
	return e.call(e.cleanup)
}

// Render delegates to the interpreted Render and completes the document.
// Calls are serialized because the interpreter is not reentrant.
func (e *CustomEngine) Render(ctx context.Context, templatePath string, data Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var out string
	err := e.call(func() error {
		var err error
		out, err = e.render(templatePath, map[string]any(data))
		return err
	})
	if err != nil {
		return "", errors.NewRenderError(templatePath, err)
	}
	return EnsureCompleteDocument(out, TitleFor(data)), nil
}

// call runs fn under the engine lock. The interpreter re-raises panics from
// script code in the caller, so they are turned into errors here.
func (e *CustomEngine) call(fn func() error) (err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("custom engine %s panicked: %v", e.label, r)
		}
	}()
	return fn()
}
