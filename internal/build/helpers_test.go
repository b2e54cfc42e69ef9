package build

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/plasmo-layout/internal/config"
	"github.com/conneroisu/plasmo-layout/internal/engine"
)

// stubEngine renders "<main>{stem}</main>", fails for templates whose name
// contains "fail", panics for "panic" and blocks until cancelled for names
// containing "slow".
type stubEngine struct {
	engine.Base
	mu         sync.Mutex
	initCalls  int
	cleanCalls int
	renders    []engine.Context
}

func newStub(name string, exts ...string) *stubEngine {
	return &stubEngine{Base: engine.NewBase(name, exts...)}
}

func (s *stubEngine) Render(ctx context.Context, templatePath string, data engine.Context) (string, error) {
	s.mu.Lock()
	s.renders = append(s.renders, data)
	s.mu.Unlock()

	stem := strings.TrimSuffix(filepath.Base(templatePath), filepath.Ext(templatePath))
	switch {
	case strings.Contains(stem, "fail"):
		return "", errors.New("layout threw: boom")
	case strings.Contains(stem, "panic"):
		var m map[string]string
		m[stem] = "boom"
	case strings.Contains(stem, "slow"):
		<-ctx.Done()
		return "", ctx.Err()
	}
	return engine.EnsureCompleteDocument("<main>"+stem+"</main>", engine.TitleFor(data)), nil
}

func (s *stubEngine) Initialize(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initCalls++
	return nil
}

func (s *stubEngine) Cleanup(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleanCalls++
	return nil
}

type fixture struct {
	fs        afero.Fs
	cfg       *config.Config
	engines   []*stubEngine
	factories int
	builder   *Builder
}

func newFixture(t *testing.T, engines ...*stubEngine) *fixture {
	t.Helper()
	if len(engines) == 0 {
		engines = []*stubEngine{newStub(config.EngineJSX, ".tsx", ".jsx")}
	}

	cfg := config.Default()
	cfg.RootDir = "/p"
	cfg.LayoutsDirAbsolute = "/p/layouts"

	f := &fixture{fs: afero.NewMemMapFs(), cfg: cfg, engines: engines}
	f.builder = NewBuilder(cfg, f.fs, nil, WithRegistryFactory(func(context.Context) (*engine.Registry, error) {
		f.factories++
		r := engine.NewEmptyRegistry(nil)
		for _, e := range f.engines {
			if err := r.Register(e); err != nil {
				return nil, err
			}
		}
		return r, nil
	}))
	return f
}

func (f *fixture) write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(f.fs, path, []byte(content), 0o644))
}

func (f *fixture) read(t *testing.T, path string) string {
	t.Helper()
	b, err := afero.ReadFile(f.fs, path)
	require.NoError(t, err)
	return string(b)
}

func component(layout string) string {
	return "// @layout('" + layout + "')\nexport default function Component() { return null }\n"
}
