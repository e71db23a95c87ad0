package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_RerunsOnChange(t *testing.T) {
	dir := t.TempDir()
	testsDir := filepath.Join(dir, "tests", "unit_tests")
	require.NoError(t, os.MkdirAll(testsDir, 0o755))

	var runs atomic.Int32
	w, err := New(dir, func(context.Context) { runs.Add(1) })
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Initial run fires before any change.
	require.Eventually(t, func() bool { return runs.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(testsDir, "test_graph.py"), []byte("def test(): pass\n"), 0o644))

	require.Eventually(t, func() bool { return runs.Load() >= 2 }, 3*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop on cancel")
	}
}

func TestWatcher_BatchesRapidSaves(t *testing.T) {
	dir := t.TempDir()
	srcDir := filepath.Join(dir, "src")
	require.NoError(t, os.MkdirAll(srcDir, 0o755))

	var runs atomic.Int32
	w, err := New(dir, func(context.Context) { runs.Add(1) })
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	require.Eventually(t, func() bool { return runs.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)

	// A burst of writes inside the debounce window collapses to one rerun.
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(srcDir, "agent.py"), []byte("x = 1\n"), 0o644))
		time.Sleep(20 * time.Millisecond)
	}

	require.Eventually(t, func() bool { return runs.Load() >= 2 }, 3*time.Second, 10*time.Millisecond)
	time.Sleep(debounceDur)
	assert.LessOrEqual(t, runs.Load(), int32(3))
}

func TestRelevant_FiltersNoise(t *testing.T) {
	w := &Watcher{projectDir: "/p"}

	cases := []struct {
		name string
		ev   fsnotify.Event
		want bool
	}{
		{"python write", fsnotify.Event{Name: "/p/src/agent.py", Op: fsnotify.Write}, true},
		{"chmod only", fsnotify.Event{Name: "/p/src/agent.py", Op: fsnotify.Chmod}, false},
		{"pyc artifact", fsnotify.Event{Name: "/p/src/agent.pyc", Op: fsnotify.Write}, false},
		{"editor backup", fsnotify.Event{Name: "/p/src/agent.py~", Op: fsnotify.Write}, false},
		{"hidden file", fsnotify.Event{Name: "/p/.env", Op: fsnotify.Write}, false},
		{"pycache", fsnotify.Event{Name: "/p/src/__pycache__/agent.cpython-312.pyc", Op: fsnotify.Create}, false},
		{"state dir", fsnotify.Event{Name: "/p/.langgraph_api/state.json", Op: fsnotify.Write}, false},
		{"removed test", fsnotify.Event{Name: "/p/tests/unit_tests/test_old.py", Op: fsnotify.Remove}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, w.relevant(tc.ev))
		})
	}
}

func TestIgnoredDir(t *testing.T) {
	assert.True(t, ignoredDir("__pycache__"))
	assert.True(t, ignoredDir(".git"))
	assert.True(t, ignoredDir(".langgraph_api"))
	assert.False(t, ignoredDir("src"))
	assert.False(t, ignoredDir("tests"))
}
