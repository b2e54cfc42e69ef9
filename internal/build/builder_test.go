package build

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/plasmo-layout/internal/artifact"
	"github.com/conneroisu/plasmo-layout/internal/config"
	"github.com/conneroisu/plasmo-layout/internal/engine"
)

func TestBuildGeneratesArtifact(t *testing.T) {
	f := newFixture(t)
	f.write(t, "/p/layouts/tabs/onboarding.tsx", "export default () => null")
	f.write(t, "/p/src/tabs/onboarding.tsx", component("tabs.onboarding"))

	summary, err := f.builder.Build(context.Background(), []string{"/p/src/tabs/onboarding.tsx"})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.TotalScanned)
	assert.Equal(t, 1, summary.ComponentsWithLayouts)
	assert.Equal(t, 1, summary.SuccessCount)
	assert.Zero(t, summary.FailureCount)

	result := summary.Results[0]
	assert.True(t, result.Success)
	assert.Equal(t, "/p/src/tabs/onboarding.html", result.Component.OutputPath)
	assert.Equal(t, "/p/layouts/tabs/onboarding.tsx", result.Component.ResolvedLayoutPath)
	assert.Equal(t, config.EngineJSX, result.Component.EngineType)

	out := f.read(t, "/p/src/tabs/onboarding.html")
	assert.Contains(t, out, artifact.Marker)
	assert.Contains(t, out, "<main>onboarding</main>")
	assert.Contains(t, out, "<title>Onboarding</title>")
	assert.True(t, artifact.NewStore(f.fs).IsGenerated("/p/src/tabs/onboarding.html"))

	stub := f.engines[0]
	require.Len(t, stub.renders, 1)
	assert.Equal(t, "/p/src/tabs/onboarding.tsx", stub.renders[0][engine.ComponentPathKey])
	assert.Equal(t, "/p/src/tabs/onboarding.html", stub.renders[0][engine.OutputPathKey])
}

func TestBuildCountsAndFailures(t *testing.T) {
	f := newFixture(t)
	f.write(t, "/p/layouts/popup.tsx", "x")
	f.write(t, "/p/layouts/fail.tsx", "x")

	files := []string{
		"/p/src/popup/index.tsx",
		"/p/src/options.tsx",
		"/p/src/broken.tsx",
		"/p/src/plain.tsx",
		"/p/src/missing.tsx",
		"/p/src/invalid.tsx",
	}
	f.write(t, files[0], component("popup"))
	f.write(t, files[1], component("missing.one"))
	f.write(t, files[2], component("fail"))
	f.write(t, files[3], "export const x = 1\n")
	// files[4] is never written
	f.write(t, files[5], component("../escape"))

	summary, err := f.builder.Build(context.Background(), files)
	require.NoError(t, err)

	assert.Equal(t, 6, summary.TotalScanned)
	assert.Equal(t, 4, summary.ComponentsWithLayouts)
	assert.Equal(t, 1, summary.SuccessCount)
	assert.Equal(t, 3, summary.FailureCount)
	assert.Equal(t, summary.ComponentsWithLayouts, summary.SuccessCount+summary.FailureCount)

	require.Len(t, summary.Results, 4)
	assert.Equal(t, "/p/src/popup/popup.html", summary.Results[0].Component.OutputPath)

	failures := summary.Failures()
	require.Len(t, failures, 3)
	assert.Contains(t, failures[0].Error, "layout not found: missing.one")
	assert.Contains(t, failures[0].Error, "tried")
	assert.Contains(t, failures[1].Error, "layout threw: boom")
	assert.Contains(t, failures[2].Error, "invalid layout path")

	exists, _ := afero.Exists(f.fs, "/p/src/options.html")
	assert.False(t, exists, "failed components produce no artifact")

	assert.Equal(t, 1, f.factories)
	assert.Equal(t, 1, f.engines[0].initCalls)
	assert.Equal(t, 1, f.engines[0].cleanCalls)
}

func TestBuildWithoutLayoutsSkipsRegistry(t *testing.T) {
	f := newFixture(t)
	f.write(t, "/p/src/a.tsx", "export const a = 1\n")
	f.write(t, "/p/src/b.tsx", "// mentions layout but never annotates\n")

	summary, err := f.builder.Build(context.Background(), []string{"/p/src/a.tsx", "/p/src/b.tsx"})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.TotalScanned)
	assert.Zero(t, summary.ComponentsWithLayouts)
	assert.Empty(t, summary.Results)
	assert.Zero(t, f.factories)
}

func TestBuildMalformedSourceIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.write(t, "/p/layouts/popup.tsx", "x")
	f.write(t, "/p/src/garbage.tsx", "@layout( ((( }}}} <<<< \x00\xff")
	f.write(t, "/p/src/popup.tsx", component("popup"))

	summary, err := f.builder.Build(context.Background(), []string{"/p/src/garbage.tsx", "/p/src/popup.tsx"})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.TotalScanned)
	assert.Equal(t, 1, summary.ComponentsWithLayouts)
	assert.Equal(t, 1, summary.SuccessCount)
}

func TestBuildRegistryFailureAborts(t *testing.T) {
	fs := afero.NewMemMapFs()
	cfg := config.Default()
	cfg.RootDir = "/p"
	cfg.LayoutsDirAbsolute = "/p/layouts"
	require.NoError(t, afero.WriteFile(fs, "/p/src/popup.tsx", []byte(component("popup")), 0o644))

	boom := errors.New("custom engine is malformed")
	b := NewBuilder(cfg, fs, nil, WithRegistryFactory(func(context.Context) (*engine.Registry, error) {
		return nil, boom
	}))

	summary, err := b.Build(context.Background(), []string{"/p/src/popup.tsx"})
	assert.Nil(t, summary)
	assert.ErrorIs(t, err, boom)
}

func TestBuildNoEngineForResolvedLayout(t *testing.T) {
	f := newFixture(t)
	f.write(t, "/p/layouts/popup.tmpl", "<p>{{ .outputPath }}</p>")
	f.write(t, "/p/src/popup.tsx", component("popup"))

	summary, err := f.builder.Build(context.Background(), []string{"/p/src/popup.tsx"})
	require.NoError(t, err)
	require.Len(t, summary.Results, 1)
	assert.False(t, summary.Results[0].Success)
	assert.Equal(t, "no engine available for: /p/layouts/popup.tmpl", summary.Results[0].Error)
	assert.Equal(t, config.EngineTemplate, summary.Results[0].Component.EngineType)
}

func TestBuildRenderTimeout(t *testing.T) {
	f := newFixture(t)
	f.cfg.RenderTimeout = 20 * time.Millisecond
	f.write(t, "/p/layouts/slow.tsx", "x")
	f.write(t, "/p/layouts/popup.tsx", "x")
	f.write(t, "/p/src/slow.tsx", component("slow"))
	f.write(t, "/p/src/popup.tsx", component("popup"))

	summary, err := f.builder.Build(context.Background(), []string{"/p/src/slow.tsx", "/p/src/popup.tsx"})
	require.NoError(t, err)
	require.Len(t, summary.Results, 2)
	assert.False(t, summary.Results[0].Success)
	assert.Contains(t, summary.Results[0].Error, "timed out")
	assert.True(t, summary.Results[1].Success)
}

func TestBuildEnginePanicFailsOnlyThatComponent(t *testing.T) {
	for _, timeout := range []time.Duration{0, time.Second} {
		t.Run(timeout.String(), func(t *testing.T) {
			f := newFixture(t)
			f.cfg.RenderTimeout = timeout
			f.write(t, "/p/layouts/panic.tsx", "x")
			f.write(t, "/p/layouts/popup.tsx", "x")
			f.write(t, "/p/src/panic.tsx", component("panic"))
			f.write(t, "/p/src/popup.tsx", component("popup"))

			summary, err := f.builder.Build(context.Background(), []string{"/p/src/panic.tsx", "/p/src/popup.tsx"})
			require.NoError(t, err)
			require.Len(t, summary.Results, 2)

			failed := summary.Results[0]
			assert.False(t, failed.Success)
			assert.Empty(t, failed.HTML)
			assert.Contains(t, failed.Error, "panicked")
			assert.Contains(t, failed.Error, "nil map")
			assert.True(t, summary.Results[1].Success)
			assert.Equal(t, 1, f.engines[0].cleanCalls)
		})
	}
}

func TestBuildWriteFailure(t *testing.T) {
	base := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(base, "/p/layouts/popup.tsx", []byte("x"), 0o644))
	require.NoError(t, afero.WriteFile(base, "/p/src/popup.tsx", []byte(component("popup")), 0o644))

	cfg := config.Default()
	cfg.RootDir = "/p"
	cfg.LayoutsDirAbsolute = "/p/layouts"
	stub := newStub(config.EngineJSX, ".tsx")
	b := NewBuilder(cfg, afero.NewReadOnlyFs(base), nil, WithRegistryFactory(func(context.Context) (*engine.Registry, error) {
		r := engine.NewEmptyRegistry(nil)
		return r, r.Register(stub)
	}))

	summary, err := b.Build(context.Background(), []string{"/p/src/popup.tsx"})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.ComponentsWithLayouts)
	assert.Zero(t, summary.SuccessCount)
	assert.Equal(t, 1, summary.FailureCount)
	require.Len(t, summary.Results, 1)

	result := summary.Results[0]
	assert.False(t, result.Success)
	assert.Empty(t, result.HTML)
	assert.Contains(t, result.Error, "failed to")
	assert.Equal(t, "/p/layouts/popup.tsx", result.Component.ResolvedLayoutPath)
	assert.Len(t, stub.renders, 1, "rendering succeeded before the write failed")

	exists, _ := afero.Exists(base, "/p/src/popup.html")
	assert.False(t, exists)
}

func TestBuildOutputDir(t *testing.T) {
	f := newFixture(t)
	f.cfg.OutputDirAbsolute = "/p/build/pages"
	f.write(t, "/p/layouts/popup.tsx", "x")
	f.write(t, "/p/src/popup/index.tsx", component("popup"))

	summary, err := f.builder.Build(context.Background(), []string{"/p/src/popup/index.tsx"})
	require.NoError(t, err)
	require.Equal(t, 1, summary.SuccessCount)
	assert.Contains(t, f.read(t, "/p/build/pages/popup.html"), "<main>popup</main>")
}

func TestBuildCustomEngineExtensions(t *testing.T) {
	f := newFixture(t, newStub(config.EngineJSX, ".tsx"), newStub(config.EngineCustom, ".shout"))
	f.cfg.Engine = config.EngineCustom
	f.write(t, "/p/layouts/popup.shout", "x")
	f.write(t, "/p/src/popup.tsx", component("popup"))

	summary, err := f.builder.Build(context.Background(), []string{"/p/src/popup.tsx"})
	require.NoError(t, err)
	require.Len(t, summary.Results, 1)
	assert.True(t, summary.Results[0].Success, summary.Results[0].Error)
	assert.Equal(t, "/p/layouts/popup.shout", summary.Results[0].Component.ResolvedLayoutPath)
	assert.Equal(t, config.EngineCustom, summary.Results[0].Component.EngineType)
	assert.Len(t, f.engines[1].renders, 1)
}

func TestBuildOne(t *testing.T) {
	f := newFixture(t)
	f.write(t, "/p/layouts/popup.tsx", "x")
	f.write(t, "/p/src/popup.tsx", component("popup"))
	f.write(t, "/p/src/plain.tsx", "export {}\n")
	ctx := context.Background()

	result, err := f.builder.BuildOne(ctx, "/p/src/plain.tsx")
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.Zero(t, f.factories)

	result, err = f.builder.BuildOne(ctx, "/p/src/popup.tsx")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.Success)
	assert.Equal(t, "/p/src/popup.html", result.Component.OutputPath)
	assert.Equal(t, 1, f.engines[0].cleanCalls)

	_, err = f.builder.BuildOne(ctx, "/p/src/gone.tsx")
	require.Error(t, err)
}

func TestBuildProjectDiscoversFiles(t *testing.T) {
	f := newFixture(t)
	f.write(t, "/p/layouts/popup.tsx", "x")
	f.write(t, "/p/src/popup.tsx", component("popup"))
	f.write(t, "/p/src/popup.test.tsx", component("popup"))
	f.write(t, "/p/src/util.ts", component("popup"))

	summary, err := f.builder.BuildProject(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TotalScanned)
	assert.Equal(t, 1, summary.SuccessCount)
}

func TestBuildHonoursCancellation(t *testing.T) {
	f := newFixture(t)
	f.write(t, "/p/src/popup.tsx", component("popup"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.builder.Build(ctx, []string{"/p/src/popup.tsx"})
	assert.ErrorIs(t, err, context.Canceled)
}
