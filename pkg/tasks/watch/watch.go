// Package watch implements watch mode for the test runner: it monitors the
// project's source and test trees and reruns the configured test command
// whenever a relevant file changes, until the context is cancelled.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"agentdev/pkg/logx"
)

// debounceDur batches rapid editor saves into a single rerun.
const debounceDur = 500 * time.Millisecond

// watchRoots are the project subtrees monitored for changes.
var watchRoots = []string{"src", "tests"}

// Watcher reruns a callback on file changes under the project tree.
type Watcher struct {
	projectDir string
	onChange   func(ctx context.Context)
	watcher    *fsnotify.Watcher
	logger     *logx.Logger
}

// New creates a Watcher for projectDir. onChange runs once immediately and
// again after each debounced batch of changes.
func New(projectDir string, onChange func(ctx context.Context)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		projectDir: projectDir,
		onChange:   onChange,
		watcher:    fsw,
		logger:     logx.NewLogger("watch"),
	}, nil
}

// Run watches until ctx is cancelled. Blocks.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() { _ = w.watcher.Close() }()

	for _, root := range watchRoots {
		dir := filepath.Join(w.projectDir, root)
		if _, err := os.Stat(dir); err != nil {
			continue
		}
		if err := w.addTree(dir); err != nil {
			return err
		}
	}
	// Also catch top-level files (pyproject.toml, langgraph.json).
	if err := w.watcher.Add(w.projectDir); err != nil {
		return err
	}

	w.logger.Info("Watching for changes under %s", w.projectDir)
	w.onChange(ctx)

	// The timer is armed on the first relevant event of a batch and
	// reset by each subsequent one.
	debounce := time.NewTimer(debounceDur)
	if !debounce.Stop() {
		<-debounce.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("Change detected: %s %s", event.Op, event.Name)

			// New directories join the watch so nested changes are seen.
			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = w.addTree(event.Name)
				}
			}

			debounce.Reset(debounceDur)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Watch error: %v", err)

		case <-debounce.C:
			w.onChange(ctx)
		}
	}
}

// addTree registers dir and every subdirectory with the watcher.
func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if ignoredDir(d.Name()) {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}

// relevant filters out noise: ignored directories, cache artifacts, and
// chmod-only events.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Op.Has(fsnotify.Create | fsnotify.Write | fsnotify.Remove | fsnotify.Rename) {
		return false
	}

	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".pyc") || strings.HasSuffix(name, "~") {
		return false
	}
	for _, part := range strings.Split(event.Name, string(os.PathSeparator)) {
		if ignoredDir(part) {
			return false
		}
	}
	return true
}

func ignoredDir(name string) bool {
	switch name {
	case "__pycache__", ".git", ".venv", ".pytest_cache", ".mypy_cache", ".ruff_cache", ".langgraph_api", ".agentdev":
		return true
	}
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}
