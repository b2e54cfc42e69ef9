package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/plasmo-layout/internal/config"
	lerrors "github.com/conneroisu/plasmo-layout/internal/errors"
)

type fakeEngine struct {
	Base
	initErr    error
	initCalls  int
	cleanCalls int
}

func newFake(name string, exts ...string) *fakeEngine {
	return &fakeEngine{Base: NewBase(name, exts...)}
}

func (f *fakeEngine) Render(_ context.Context, path string, _ Context) (string, error) {
	return "<p>" + f.Name() + ":" + path + "</p>", nil
}

func (f *fakeEngine) Initialize(context.Context) error {
	f.initCalls++
	return f.initErr
}

func (f *fakeEngine) Cleanup(context.Context) error {
	f.cleanCalls++
	return nil
}

type plainEngine struct{ Base }

func (plainEngine) Render(context.Context, string, Context) (string, error) { return "", nil }

func TestRegistryRegisterAndLookup(t *testing.T) {
	r := NewEmptyRegistry(nil)
	a := newFake("a", ".x")
	b := newFake("b", ".X", ".y")

	require.NoError(t, r.Register(a))
	require.NoError(t, r.Register(b))

	err := r.Register(newFake("a", ".z"))
	require.Error(t, err)
	var le *lerrors.LayoutError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, lerrors.ErrCodeDuplicateEngine, le.Code)

	got, ok := r.Get("b")
	require.True(t, ok)
	assert.Same(t, b, got)

	_, ok = r.Get("missing")
	assert.False(t, ok)

	assert.Len(t, r.All(), 2)
}

func TestRegistryFindForFileUsesRegistrationOrder(t *testing.T) {
	r := NewEmptyRegistry(nil)
	a := newFake("a", ".x")
	b := newFake("b", ".X", ".y")
	require.NoError(t, r.Register(a))
	require.NoError(t, r.Register(b))

	e, ok := r.FindForFile("/p/layouts/popup.X")
	require.True(t, ok)
	assert.Equal(t, "a", e.Name(), "extension matching is case-insensitive and first registered wins")

	e, ok = r.FindForFile("/p/layouts/popup.y")
	require.True(t, ok)
	assert.Equal(t, "b", e.Name())

	_, ok = r.FindForFile("/p/layouts/popup")
	assert.False(t, ok)
}

func TestRegistrySelect(t *testing.T) {
	r := NewEmptyRegistry(nil)
	require.NoError(t, r.Register(newFake("a", ".x")))
	require.NoError(t, r.Register(newFake("b", ".x", ".y")))

	tests := []struct {
		name      string
		path      string
		preferred string
		expected  string
		found     bool
	}{
		{"preferred wins when it can handle", "/l/p.x", "b", "b", true},
		{"preferred ignored when it cannot handle", "/l/p.x", "c", "a", true},
		{"preferred mismatch falls back", "/l/p.y", "a", "b", true},
		{"no preference", "/l/p.x", "", "a", true},
		{"nothing handles", "/l/p.z", "a", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, ok := r.Select(tt.path, tt.preferred)
			assert.Equal(t, tt.found, ok)
			if tt.found {
				assert.Equal(t, tt.expected, e.Name())
			}
		})
	}
}

func TestRegistryLifecycle(t *testing.T) {
	ctx := context.Background()
	r := NewEmptyRegistry(nil)
	broken := newFake("broken", ".b")
	broken.initErr = errors.New("runtime missing")
	healthy := newFake("healthy", ".h")
	require.NoError(t, r.Register(broken))
	require.NoError(t, r.Register(healthy))
	require.NoError(t, r.Register(plainEngine{NewBase("plain", ".p")}))

	r.InitializeAll(ctx)
	r.InitializeAll(ctx)
	assert.True(t, r.Initialized())
	assert.Equal(t, 1, broken.initCalls)
	assert.Equal(t, 1, healthy.initCalls, "initialization runs once per lifetime")

	e, ok := r.FindForFile("/l/a.h")
	require.True(t, ok, "a broken engine does not take the others down")
	out, err := e.Render(ctx, "/l/a.h", nil)
	require.NoError(t, err)
	assert.Contains(t, out, "healthy")

	r.CleanupAll(ctx)
	assert.False(t, r.Initialized())
	assert.Equal(t, 1, healthy.cleanCalls)
	assert.Equal(t, 1, broken.cleanCalls)

	r.InitializeAll(ctx)
	assert.Equal(t, 2, healthy.initCalls, "cleanup allows reinitialization")
}

func TestNewRegistryBuiltins(t *testing.T) {
	cfg := config.Default()
	cfg.RootDir = "/p"

	r, err := NewRegistry(context.Background(), cfg, afero.NewMemMapFs(), nil)
	require.NoError(t, err)

	var names []string
	for _, e := range r.All() {
		names = append(names, e.Name())
	}
	assert.Equal(t, []string{"jsx", "template"}, names)
}

func TestNewRegistryCustomEngineErrors(t *testing.T) {
	fs := afero.NewMemMapFs()
	cfg := config.Default()
	cfg.RootDir = "/p"
	cfg.Engine = config.EngineCustom

	_, err := NewRegistry(context.Background(), cfg, fs, nil)
	require.Error(t, err)
	assert.True(t, lerrors.IsConfigError(err))

	cfg.CustomEngine = &config.CustomEngineConfig{Path: "/p/engine.go"}
	require.NoError(t, afero.WriteFile(fs, "/p/engine.go", []byte("package main\n\nfunc Name() string { return \"x\" }\n"), 0o644))
	_, err = NewRegistry(context.Background(), cfg, fs, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, lerrors.ErrEngineShape))
	assert.False(t, lerrors.IsRecoverable(err))
}
