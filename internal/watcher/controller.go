package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"github.com/conneroisu/plasmo-layout/internal/artifact"
	"github.com/conneroisu/plasmo-layout/internal/config"
	"github.com/conneroisu/plasmo-layout/internal/discovery"
	"github.com/conneroisu/plasmo-layout/internal/logging"
	"github.com/conneroisu/plasmo-layout/internal/scanner"
	"github.com/conneroisu/plasmo-layout/internal/types"
)

// SingleFileBuilder builds one component file. It returns nil and no error
// when the file declares no layout.
type SingleFileBuilder interface {
	BuildOne(ctx context.Context, path string) (*types.ProcessingResult, error)
}

// Callbacks receive watch-mode notifications. Any of them may be nil.
type Callbacks struct {
	OnProcessStart    func(path string)
	OnProcessComplete func(path string, success bool, message string)
	OnDelete          func(artifactPath string)
	OnLayoutChange    func(path string)
	OnReady           func()
	OnError           func(err error)
}

// Controller rebuilds artifacts in response to file events. A path already
// being processed is not processed again until the first run finishes.
type Controller struct {
	cfg       *config.Config
	fs        afero.Fs
	store     *artifact.Store
	builder   SingleFileBuilder
	matcher   *discovery.Matcher
	callbacks Callbacks
	logger    logging.Logger

	mu         sync.Mutex
	processing map[string]struct{}
	inflight   sync.WaitGroup

	watcher  *FileWatcher
	stopOnce sync.Once
	stopErr  error
}

// NewController creates a controller. fs must be the filesystem the
// watcher observes.
func NewController(cfg *config.Config, fs afero.Fs, builder SingleFileBuilder, callbacks Callbacks, logger logging.Logger) *Controller {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Controller{
		cfg:        cfg,
		fs:         fs,
		store:      artifact.NewStore(fs),
		builder:    builder,
		matcher:    discovery.NewMatcher(cfg),
		callbacks:  callbacks,
		logger:     logger.WithComponent("watch_controller"),
		processing: make(map[string]struct{}),
	}
}

// Roots returns the directories the controller watches: the static base of
// every include glob plus the layouts directory.
func (c *Controller) Roots() []string {
	roots := c.matcher.WatchRoots()
	for _, r := range roots {
		if within(c.cfg.LayoutsDirAbsolute, r) {
			return roots
		}
	}
	return append(roots, c.cfg.LayoutsDirAbsolute)
}

// Start registers the watch roots and begins handling events. OnReady is
// called once every root has been registered. Roots that do not exist or
// cannot be watched are skipped with a warning.
func (c *Controller) Start(ctx context.Context) error {
	fw, err := NewFileWatcher(c.cfg.RootDir, c.cfg.Watch.Debounce, c.logger)
	if err != nil {
		return err
	}
	fw.AddIgnore(c.matcher.Excluded)
	fw.AddFilter(c.relevant)
	fw.OnError(c.reportError)
	fw.AddHandler(func(ctx context.Context, events []ChangeEvent) {
		for _, event := range events {
			c.inflight.Add(1)
			go func(event ChangeEvent) {
				defer c.inflight.Done()
				c.HandleEvent(ctx, event)
			}(event)
		}
	})

	for _, root := range c.Roots() {
		if ok, _ := afero.DirExists(c.fs, root); !ok {
			c.logger.Warn(ctx, nil, "Watch root does not exist", "root", artifact.RelativePath(root, c.cfg.RootDir))
			continue
		}
		if err := fw.AddRecursive(root); err != nil {
			err = fmt.Errorf("watching %s: %w", root, err)
			c.logger.Warn(ctx, err, "Watch root skipped")
			c.reportError(err)
			continue
		}
		c.logger.Debug(ctx, "Watching", "root", root)
	}

	c.watcher = fw
	fw.Start(ctx)

	c.logger.Info(ctx, "Watch mode ready", "roots", len(c.Roots()))
	if c.callbacks.OnReady != nil {
		c.callbacks.OnReady()
	}
	return nil
}

// Stop stops the watcher and waits for in-flight handlers. It is safe to
// call more than once.
func (c *Controller) Stop() error {
	c.stopOnce.Do(func() {
		if c.watcher != nil {
			c.stopErr = c.watcher.Stop()
		}
		c.inflight.Wait()
	})
	return c.stopErr
}

// HandleEvent applies one file event.
func (c *Controller) HandleEvent(ctx context.Context, event ChangeEvent) {
	switch event.Type {
	case EventUnlink:
		c.handleUnlink(ctx, event.Path)
	default:
		c.handleChange(ctx, event)
	}
}

func (c *Controller) handleChange(ctx context.Context, event ChangeEvent) {
	path := event.Path
	if !c.begin(path) {
		c.logger.Debug(ctx, "Already processing, event dropped", "path", path)
		return
	}
	defer c.end(path)

	rel := artifact.RelativePath(path, c.cfg.RootDir)

	if strings.EqualFold(filepath.Ext(path), ".html") && c.store.IsGenerated(path) {
		return
	}

	if within(path, c.cfg.LayoutsDirAbsolute) {
		c.logger.Info(ctx, "Layout changed, run a full build to update components using it", "path", rel)
		if c.callbacks.OnLayoutChange != nil {
			c.callbacks.OnLayoutChange(path)
		}
		return
	}

	if !c.matcher.Included(path) || c.matcher.Excluded(path) {
		return
	}

	content, err := afero.ReadFile(c.fs, path)
	if err != nil {
		c.fail(ctx, path, err)
		return
	}
	if !scanner.ProbablyHasAnnotation(content) {
		c.logger.Debug(ctx, "No layout annotation", "path", rel)
		return
	}

	verb := "Changed"
	if event.Type == EventAdd {
		verb = "New"
	}
	c.logger.Info(ctx, verb, "path", rel)
	if c.callbacks.OnProcessStart != nil {
		c.callbacks.OnProcessStart(path)
	}

	result, err := c.builder.BuildOne(ctx, path)
	if err != nil {
		c.fail(ctx, path, err)
		return
	}
	if result == nil {
		return
	}

	if result.Success {
		c.logger.Info(ctx, "Generated", "output", artifact.RelativePath(result.Component.OutputPath, c.cfg.RootDir))
	} else {
		c.logger.Error(ctx, nil, "Failed", "path", rel, "reason", result.Error)
	}
	if c.callbacks.OnProcessComplete != nil {
		c.callbacks.OnProcessComplete(path, result.Success, result.Error)
	}
}

func (c *Controller) handleUnlink(ctx context.Context, path string) {
	rel := artifact.RelativePath(path, c.cfg.RootDir)

	if within(path, c.cfg.LayoutsDirAbsolute) {
		c.logger.Info(ctx, "Layout removed", "path", rel)
		return
	}
	// Only a removed component source owns an artifact; a stylesheet or
	// directory with the same stem does not.
	if !artifact.IsComponentSource(path) || !c.matcher.Included(path) {
		return
	}
	c.logger.Info(ctx, "Removed", "path", rel)

	generated := artifact.DeriveOutputPath(path, c.cfg.OutputDirAbsolute)
	deleted, err := c.store.Delete(ctx, generated)
	if err != nil {
		c.reportError(err)
		return
	}
	if deleted {
		c.logger.Info(ctx, "Deleted generated HTML", "source", rel,
			"artifact", artifact.RelativePath(generated, c.cfg.RootDir))
		if c.callbacks.OnDelete != nil {
			c.callbacks.OnDelete(generated)
		}
	}
}

// relevant reports whether an event for path can affect an artifact: a
// file under the layouts directory or an included component source.
func (c *Controller) relevant(path string) bool {
	if within(path, c.cfg.LayoutsDirAbsolute) {
		return true
	}
	return artifact.IsComponentSource(path) && c.matcher.Included(path)
}

func (c *Controller) fail(ctx context.Context, path string, err error) {
	c.logger.Error(ctx, err, "Error processing file", "path", path)
	c.reportError(err)
	if c.callbacks.OnProcessComplete != nil {
		c.callbacks.OnProcessComplete(path, false, err.Error())
	}
}

func (c *Controller) reportError(err error) {
	if c.callbacks.OnError != nil {
		c.callbacks.OnError(err)
	}
}

// begin marks path as in flight. It returns false if it already was.
func (c *Controller) begin(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.processing[path]; busy {
		return false
	}
	c.processing[path] = struct{}{}
	return true
}

func (c *Controller) end(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.processing, path)
}

// within reports whether path is dir or inside it.
func within(path, dir string) bool {
	if dir == "" {
		return false
	}
	return path == dir || strings.HasPrefix(path, dir+string(filepath.Separator))
}
