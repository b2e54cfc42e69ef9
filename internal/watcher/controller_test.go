package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/plasmo-layout/internal/artifact"
	"github.com/conneroisu/plasmo-layout/internal/config"
	"github.com/conneroisu/plasmo-layout/internal/types"
)

type fakeBuilder struct {
	mu      sync.Mutex
	calls   []string
	entered chan string
	release chan struct{}
	result  func(path string) (*types.ProcessingResult, error)
}

func (f *fakeBuilder) BuildOne(_ context.Context, path string) (*types.ProcessingResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, path)
	f.mu.Unlock()

	if f.entered != nil {
		f.entered <- path
	}
	if f.release != nil {
		<-f.release
	}
	if f.result != nil {
		return f.result(path)
	}
	return &types.ProcessingResult{
		Component: types.ProcessedComponent{SourcePath: path, OutputPath: artifact.DeriveOutputPath(path, "")},
		Success:   true,
	}, nil
}

func (f *fakeBuilder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type recorder struct {
	mu        sync.Mutex
	started   []string
	completed []string
	messages  []string
	deleted   []string
	layouts   []string
	errs      []error
}

func (r *recorder) callbacks() Callbacks {
	return Callbacks{
		OnProcessStart: func(path string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.started = append(r.started, path)
		},
		OnProcessComplete: func(path string, ok bool, msg string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			if ok {
				r.completed = append(r.completed, path)
			} else {
				r.messages = append(r.messages, msg)
			}
		},
		OnDelete: func(path string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.deleted = append(r.deleted, path)
		},
		OnLayoutChange: func(path string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.layouts = append(r.layouts, path)
		},
		OnError: func(err error) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.errs = append(r.errs, err)
		},
	}
}

func testConfig(root string) *config.Config {
	cfg := config.Default()
	cfg.RootDir = root
	cfg.LayoutsDirAbsolute = filepath.Join(root, "layouts")
	cfg.Watch.Debounce = 20 * time.Millisecond
	return cfg
}

const annotated = "// @layout('popup')\nexport default () => null\n"

func newTestController(t *testing.T, builder *fakeBuilder) (*Controller, afero.Fs, *recorder) {
	t.Helper()
	fs := afero.NewMemMapFs()
	rec := &recorder{}
	return NewController(testConfig("/p"), fs, builder, rec.callbacks(), nil), fs, rec
}

func TestControllerBuildsAnnotatedComponent(t *testing.T) {
	builder := &fakeBuilder{}
	c, fs, rec := newTestController(t, builder)
	require.NoError(t, afero.WriteFile(fs, "/p/src/popup.tsx", []byte(annotated), 0o644))

	c.HandleEvent(context.Background(), ChangeEvent{Type: EventChange, Path: "/p/src/popup.tsx"})

	assert.Equal(t, []string{"/p/src/popup.tsx"}, builder.calls)
	assert.Equal(t, []string{"/p/src/popup.tsx"}, rec.started)
	assert.Equal(t, []string{"/p/src/popup.tsx"}, rec.completed)
}

func TestControllerSkipsIrrelevantPaths(t *testing.T) {
	builder := &fakeBuilder{}
	c, fs, rec := newTestController(t, builder)
	ctx := context.Background()

	require.NoError(t, afero.WriteFile(fs, "/p/src/plain.tsx", []byte("export {}\n"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/p/src/popup.test.tsx", []byte(annotated), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/p/src/util.ts", []byte(annotated), 0o644))
	require.NoError(t, artifact.NewStore(fs).Write(ctx, "/p/src/popup.html", "<p>x</p>"))

	for _, path := range []string{"/p/src/plain.tsx", "/p/src/popup.test.tsx", "/p/src/util.ts", "/p/src/popup.html"} {
		c.HandleEvent(ctx, ChangeEvent{Type: EventChange, Path: path})
	}

	assert.Zero(t, builder.callCount())
	assert.Empty(t, rec.started)
	assert.Empty(t, rec.errs)
}

func TestControllerLayoutChangeIsInformational(t *testing.T) {
	builder := &fakeBuilder{}
	c, fs, rec := newTestController(t, builder)
	require.NoError(t, afero.WriteFile(fs, "/p/layouts/popup.tsx", []byte(annotated), 0o644))

	c.HandleEvent(context.Background(), ChangeEvent{Type: EventChange, Path: "/p/layouts/popup.tsx"})

	assert.Zero(t, builder.callCount())
	assert.Equal(t, []string{"/p/layouts/popup.tsx"}, rec.layouts)
}

func TestControllerDropsReentrantEvents(t *testing.T) {
	builder := &fakeBuilder{entered: make(chan string, 1), release: make(chan struct{})}
	c, fs, _ := newTestController(t, builder)
	require.NoError(t, afero.WriteFile(fs, "/p/src/popup.tsx", []byte(annotated), 0o644))
	ctx := context.Background()
	event := ChangeEvent{Type: EventChange, Path: "/p/src/popup.tsx"}

	first := make(chan struct{})
	go func() {
		defer close(first)
		c.HandleEvent(ctx, event)
	}()

	select {
	case <-builder.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first event never reached the builder")
	}

	// The path is in flight, so this returns without building.
	c.HandleEvent(ctx, event)
	assert.Equal(t, 1, builder.callCount())

	close(builder.release)
	<-first

	// Once finished, the path can be processed again.
	builder.entered = nil
	c.HandleEvent(ctx, event)
	assert.Equal(t, 2, builder.callCount())
}

func TestControllerUnlinkDeletesOnlyGeneratedArtifacts(t *testing.T) {
	builder := &fakeBuilder{}
	c, fs, rec := newTestController(t, builder)
	ctx := context.Background()
	store := artifact.NewStore(fs)

	require.NoError(t, store.Write(ctx, "/p/src/popup/popup.html", "<!DOCTYPE html><html></html>"))
	require.NoError(t, afero.WriteFile(fs, "/p/src/options.html", []byte("<html>mine</html>"), 0o644))

	c.HandleEvent(ctx, ChangeEvent{Type: EventUnlink, Path: "/p/src/popup/index.tsx"})
	c.HandleEvent(ctx, ChangeEvent{Type: EventUnlink, Path: "/p/src/options.tsx"})
	c.HandleEvent(ctx, ChangeEvent{Type: EventUnlink, Path: "/p/layouts/options.tsx"})

	exists, _ := afero.Exists(fs, "/p/src/popup/popup.html")
	assert.False(t, exists)
	exists, _ = afero.Exists(fs, "/p/src/options.html")
	assert.True(t, exists, "hand-authored html is never deleted")
	assert.Equal(t, []string{"/p/src/popup/popup.html"}, rec.deleted)
}

func TestControllerUnlinkIgnoresNonComponentSiblings(t *testing.T) {
	builder := &fakeBuilder{}
	c, fs, rec := newTestController(t, builder)
	ctx := context.Background()
	store := artifact.NewStore(fs)

	require.NoError(t, afero.WriteFile(fs, "/p/src/options.tsx", []byte(annotated), 0o644))
	require.NoError(t, store.Write(ctx, "/p/src/options.html", "<!DOCTYPE html><html></html>"))
	require.NoError(t, afero.WriteFile(fs, "/p/src/popup.tsx", []byte(annotated), 0o644))
	require.NoError(t, store.Write(ctx, "/p/src/popup.html", "<!DOCTYPE html><html></html>"))
	require.NoError(t, afero.WriteFile(fs, "/p/src/dist/about.tsx", []byte(annotated), 0o644))
	require.NoError(t, store.Write(ctx, "/p/src/dist/about.html", "<!DOCTYPE html><html></html>"))

	for _, path := range []string{
		"/p/src/options.css",
		"/p/src/options.md",
		"/p/src/popup",
		"/p/src/dist/about.tsx",
	} {
		c.HandleEvent(ctx, ChangeEvent{Type: EventUnlink, Path: path})
	}

	for _, artifactPath := range []string{"/p/src/options.html", "/p/src/popup.html", "/p/src/dist/about.html"} {
		exists, _ := afero.Exists(fs, artifactPath)
		assert.True(t, exists, "%s must survive", artifactPath)
	}
	assert.Empty(t, rec.deleted)
}

func TestControllerRelevantPaths(t *testing.T) {
	c, _, _ := newTestController(t, &fakeBuilder{})

	assert.True(t, c.relevant("/p/src/popup.tsx"))
	assert.True(t, c.relevant("/p/src/popup/index.jsx"))
	assert.True(t, c.relevant("/p/layouts/popup.tmpl"))
	assert.False(t, c.relevant("/p/src/popup.css"))
	assert.False(t, c.relevant("/p/src/popup.html"))
	assert.False(t, c.relevant("/p/README.md"))
}

func TestControllerReportsBuilderErrors(t *testing.T) {
	builder := &fakeBuilder{result: func(string) (*types.ProcessingResult, error) {
		return nil, errors.New("custom engine is malformed")
	}}
	c, fs, rec := newTestController(t, builder)
	require.NoError(t, afero.WriteFile(fs, "/p/src/popup.tsx", []byte(annotated), 0o644))

	c.HandleEvent(context.Background(), ChangeEvent{Type: EventAdd, Path: "/p/src/popup.tsx"})

	require.Len(t, rec.errs, 1)
	assert.Equal(t, []string{"custom engine is malformed"}, rec.messages)

	// A failed component is reported without an error callback.
	builder.result = func(path string) (*types.ProcessingResult, error) {
		return &types.ProcessingResult{Error: "layout not found: popup"}, nil
	}
	c.HandleEvent(context.Background(), ChangeEvent{Type: EventChange, Path: "/p/src/popup.tsx"})
	assert.Len(t, rec.errs, 1)
	assert.Equal(t, []string{"custom engine is malformed", "layout not found: popup"}, rec.messages)
}

func TestControllerRoots(t *testing.T) {
	c := NewController(testConfig("/p"), afero.NewMemMapFs(), &fakeBuilder{}, Callbacks{}, nil)
	assert.Equal(t, []string{"/p/src", "/p/layouts"}, c.Roots())

	cfg := testConfig("/p")
	cfg.LayoutsDirAbsolute = "/p/src/layouts"
	c = NewController(cfg, afero.NewMemMapFs(), &fakeBuilder{}, Callbacks{}, nil)
	assert.Equal(t, []string{"/p/src"}, c.Roots())
}

func TestControllerWatchesFilesystem(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "layouts"), 0o755))

	builder := &fakeBuilder{}
	rec := &recorder{}
	ready := make(chan struct{})
	callbacks := rec.callbacks()
	callbacks.OnReady = func() { close(ready) }

	c := NewController(testConfig(root), afero.NewOsFs(), builder, callbacks, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, c.Start(ctx))
	defer c.Stop()

	select {
	case <-ready:
	case <-time.After(2 * time.Second):
		t.Fatal("controller never became ready")
	}

	popup := filepath.Join(root, "src", "popup.tsx")
	require.NoError(t, os.WriteFile(popup, []byte(annotated), 0o644))

	require.Eventually(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return len(rec.completed) > 0
	}, 3*time.Second, 10*time.Millisecond)

	require.NoError(t, c.Stop())
	require.NoError(t, c.Stop())
	assert.Equal(t, popup, builder.calls[0])
}
