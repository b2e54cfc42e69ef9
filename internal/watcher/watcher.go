// Package watcher watches component and layout sources and rebuilds
// artifacts as they change.
//
// FileWatcher is the low-level primitive: recursive fsnotify registration
// and a debouncer that batches bursts of events. Controller applies the
// layout pipeline to those batches.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/conneroisu/plasmo-layout/internal/logging"
)

// DefaultDebounce is the quiet period used when none is configured.
const DefaultDebounce = 100 * time.Millisecond

// FileWatcher watches directory trees with debouncing
type FileWatcher struct {
	watcher   *fsnotify.Watcher
	debouncer *Debouncer
	baseDir   string
	filters   []FileFilter
	ignores   []FileFilter
	handlers  []ChangeHandler
	onError   func(error)
	logger    logging.Logger
	mutex     sync.RWMutex

	wg       sync.WaitGroup
	done     chan struct{}
	stopOnce sync.Once
	stopErr  error
}

// ChangeEvent represents a file change event
type ChangeEvent struct {
	Type EventType
	Path string
}

// EventType represents the type of file change
type EventType int

const (
	EventAdd EventType = iota
	EventChange
	EventUnlink
)

// String returns the string representation of the EventType
func (e EventType) String() string {
	switch e {
	case EventAdd:
		return "add"
	case EventChange:
		return "change"
	case EventUnlink:
		return "unlink"
	default:
		return "unknown"
	}
}

// FileFilter reports whether a path is of interest.
type FileFilter func(path string) bool

// ChangeHandler handles a debounced batch of events
type ChangeHandler func(ctx context.Context, events []ChangeEvent)

// NewFileWatcher creates a watcher confined to baseDir. A zero debounce
// uses DefaultDebounce.
func NewFileWatcher(baseDir string, debounce time.Duration, logger logging.Logger) (*FileWatcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("resolving base directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	done := make(chan struct{})
	return &FileWatcher{
		watcher:   watcher,
		debouncer: NewDebouncer(debounce, done),
		baseDir:   abs,
		logger:    logger.WithComponent("file_watcher"),
		done:      done,
	}, nil
}

// AddFilter adds a filter every reported file must pass
func (fw *FileWatcher) AddFilter(filter FileFilter) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.filters = append(fw.filters, filter)
}

// AddIgnore adds a predicate for paths that are neither watched nor
// reported. Ignored directories are not descended into.
func (fw *FileWatcher) AddIgnore(ignore FileFilter) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.ignores = append(fw.ignores, ignore)
}

// AddHandler adds a change handler
func (fw *FileWatcher) AddHandler(handler ChangeHandler) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.handlers = append(fw.handlers, handler)
}

// OnError sets the callback for watcher errors. Errors never stop the
// watcher.
func (fw *FileWatcher) OnError(fn func(error)) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.onError = fn
}

// AddRecursive adds a directory and all subdirectories to watch
func (fw *FileWatcher) AddRecursive(root string) error {
	cleanRoot, err := fw.validatePath(root)
	if err != nil {
		return fmt.Errorf("invalid root path: %w", err)
	}
	_, err = fw.addTree(cleanRoot, false)
	return err
}

// addTree registers every directory under root. With collect set the files
// found are returned so a directory created while watching reports its
// contents.
func (fw *FileWatcher) addTree(root string, collect bool) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if fw.ignored(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if err := fw.watcher.Add(path); err != nil {
				return fmt.Errorf("watching %s: %w", path, err)
			}
			return nil
		}
		if collect {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// validatePath cleans path and rejects anything outside the base directory.
func (fw *FileWatcher) validatePath(path string) (string, error) {
	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("getting absolute path: %w", err)
	}
	if absPath != fw.baseDir && !strings.HasPrefix(absPath, fw.baseDir+string(filepath.Separator)) {
		return "", fmt.Errorf("path %s is outside %s", path, fw.baseDir)
	}
	return absPath, nil
}

func (fw *FileWatcher) ignored(path string) bool {
	fw.mutex.RLock()
	defer fw.mutex.RUnlock()
	for _, ignore := range fw.ignores {
		if ignore(path) {
			return true
		}
	}
	return false
}

func (fw *FileWatcher) accepted(path string) bool {
	if fw.ignored(path) {
		return false
	}
	fw.mutex.RLock()
	defer fw.mutex.RUnlock()
	for _, filter := range fw.filters {
		if !filter(path) {
			return false
		}
	}
	return true
}

// Start starts the event loops. They run until ctx is done or Stop is
// called.
func (fw *FileWatcher) Start(ctx context.Context) {
	fw.wg.Add(2)
	go fw.watchLoop(ctx)
	go fw.processEvents(ctx)
}

// Stop closes the watcher and waits for its loops to exit. It is safe to
// call more than once.
func (fw *FileWatcher) Stop() error {
	fw.stopOnce.Do(func() {
		close(fw.done)
		fw.debouncer.Stop()
		fw.stopErr = fw.watcher.Close()
		fw.wg.Wait()
	})
	return fw.stopErr
}

func (fw *FileWatcher) watchLoop(ctx context.Context) {
	defer fw.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-fw.done:
			return
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handleFsnotifyEvent(ctx, event)
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.reportError(ctx, err)
		}
	}
}

func (fw *FileWatcher) reportError(ctx context.Context, err error) {
	fw.logger.Warn(ctx, err, "File watcher error")
	fw.mutex.RLock()
	onError := fw.onError
	fw.mutex.RUnlock()
	if onError != nil {
		onError(err)
	}
}

func (fw *FileWatcher) handleFsnotifyEvent(ctx context.Context, event fsnotify.Event) {
	path := event.Name

	switch {
	case event.Has(fsnotify.Create):
		info, err := os.Stat(path)
		if err == nil && info.IsDir() {
			if fw.ignored(path) {
				return
			}
			files, err := fw.addTree(path, true)
			if err != nil {
				fw.reportError(ctx, err)
			}
			for _, file := range files {
				if fw.accepted(file) {
					fw.debouncer.Add(ChangeEvent{Type: EventAdd, Path: file})
				}
			}
			return
		}
		if fw.accepted(path) {
			fw.debouncer.Add(ChangeEvent{Type: EventAdd, Path: path})
		}
	case event.Has(fsnotify.Write):
		if fw.accepted(path) {
			fw.debouncer.Add(ChangeEvent{Type: EventChange, Path: path})
		}
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		if fw.accepted(path) {
			fw.debouncer.Add(ChangeEvent{Type: EventUnlink, Path: path})
		}
	}
}

func (fw *FileWatcher) processEvents(ctx context.Context) {
	defer fw.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-fw.done:
			return
		case events := <-fw.debouncer.Output():
			fw.mutex.RLock()
			handlers := fw.handlers
			fw.mutex.RUnlock()

			for _, handler := range handlers {
				handler(ctx, events)
			}
		}
	}
}
