package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventTypeString(t *testing.T) {
	testCases := []struct {
		eventType EventType
		expected  string
	}{
		{EventAdd, "add"},
		{EventChange, "change"},
		{EventUnlink, "unlink"},
		{EventType(42), "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.eventType.String())
		})
	}
}

func TestDebouncerDeduplicatesInFirstSeenOrder(t *testing.T) {
	done := make(chan struct{})
	defer close(done)
	d := NewDebouncer(20*time.Millisecond, done)

	d.Add(ChangeEvent{Type: EventChange, Path: "/p/a.tsx"})
	d.Add(ChangeEvent{Type: EventAdd, Path: "/p/b.tsx"})
	d.Add(ChangeEvent{Type: EventChange, Path: "/p/a.tsx"})
	d.Add(ChangeEvent{Type: EventChange, Path: "/p/b.tsx"})
	d.Add(ChangeEvent{Type: EventUnlink, Path: "/p/c.tsx"})

	select {
	case batch := <-d.Output():
		assert.Equal(t, []ChangeEvent{
			{Type: EventChange, Path: "/p/a.tsx"},
			{Type: EventAdd, Path: "/p/b.tsx"},
			{Type: EventUnlink, Path: "/p/c.tsx"},
		}, batch)
	case <-time.After(2 * time.Second):
		t.Fatal("no batch emitted")
	}
}

func TestDebouncerLatestEventWins(t *testing.T) {
	assert.Equal(t, EventAdd, merge(EventAdd, EventChange))
	assert.Equal(t, EventUnlink, merge(EventAdd, EventUnlink))
	assert.Equal(t, EventAdd, merge(EventUnlink, EventAdd))
	assert.Equal(t, EventChange, merge(EventChange, EventChange))
}

func TestDebouncerStopCancelsPendingFlush(t *testing.T) {
	done := make(chan struct{})
	d := NewDebouncer(30*time.Millisecond, done)
	d.Add(ChangeEvent{Type: EventChange, Path: "/p/a.tsx"})
	d.Stop()
	close(done)

	select {
	case batch := <-d.Output():
		t.Fatalf("unexpected batch %v", batch)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestFileWatcherValidatePath(t *testing.T) {
	base := t.TempDir()
	fw, err := NewFileWatcher(base, 0, nil)
	require.NoError(t, err)
	defer fw.Stop()

	clean, err := fw.validatePath(filepath.Join(base, "src", "..", "src"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "src"), clean)

	_, err = fw.validatePath(filepath.Dir(base))
	assert.Error(t, err)

	_, err = fw.validatePath(base + "-sibling")
	assert.Error(t, err)
}

type collector struct {
	mu     sync.Mutex
	events []ChangeEvent
}

func (c *collector) handle(_ context.Context, events []ChangeEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, events...)
}

func (c *collector) seen(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.events {
		if e.Path == path {
			return true
		}
	}
	return false
}

func (c *collector) typeOf(path string) (EventType, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.events) - 1; i >= 0; i-- {
		if c.events[i].Path == path {
			return c.events[i].Type, true
		}
	}
	return 0, false
}

func TestFileWatcherReportsFileEvents(t *testing.T) {
	base := t.TempDir()
	src := filepath.Join(base, "src")
	require.NoError(t, os.MkdirAll(filepath.Join(src, "node_modules"), 0o755))

	fw, err := NewFileWatcher(base, 20*time.Millisecond, nil)
	require.NoError(t, err)
	defer fw.Stop()

	fw.AddIgnore(func(path string) bool { return filepath.Base(path) == "node_modules" })
	fw.AddFilter(func(path string) bool { return filepath.Ext(path) == ".tsx" })
	events := &collector{}
	fw.AddHandler(events.handle)
	require.NoError(t, fw.AddRecursive(src))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fw.Start(ctx)

	ignored := filepath.Join(src, "node_modules", "dep.tsx")
	require.NoError(t, os.WriteFile(ignored, []byte("x"), 0o644))

	styles := filepath.Join(src, "popup.css")
	require.NoError(t, os.WriteFile(styles, []byte("body {}"), 0o644))

	popup := filepath.Join(src, "popup.tsx")
	require.NoError(t, os.WriteFile(popup, []byte("// @layout('popup')"), 0o644))
	require.Eventually(t, func() bool { return events.seen(popup) }, 3*time.Second, 10*time.Millisecond)
	assert.False(t, events.seen(ignored))
	assert.False(t, events.seen(styles), "filtered files are not reported")

	nested := filepath.Join(src, "tabs", "onboarding.tsx")
	require.NoError(t, os.MkdirAll(filepath.Dir(nested), 0o755))
	require.NoError(t, os.WriteFile(nested, []byte("x"), 0o644))
	require.Eventually(t, func() bool { return events.seen(nested) }, 3*time.Second, 10*time.Millisecond)

	require.NoError(t, os.Remove(popup))
	require.Eventually(t, func() bool {
		typ, ok := events.typeOf(popup)
		return ok && typ == EventUnlink
	}, 3*time.Second, 10*time.Millisecond)
}

func TestFileWatcherStopIsIdempotent(t *testing.T) {
	fw, err := NewFileWatcher(t.TempDir(), 10*time.Millisecond, nil)
	require.NoError(t, err)
	fw.Start(context.Background())

	require.NoError(t, fw.Stop())
	require.NoError(t, fw.Stop())
}

func TestFileWatcherRejectsRootOutsideBase(t *testing.T) {
	fw, err := NewFileWatcher(t.TempDir(), 0, nil)
	require.NoError(t, err)
	defer fw.Stop()

	assert.Error(t, fw.AddRecursive(t.TempDir()))
}
