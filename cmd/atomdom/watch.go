package main

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	vdom "github.com/vango-dev/atomdom/pkg/vdom"
)

// frameWatcher reloads tree files when they change on disk.
type frameWatcher struct {
	paths  []string
	logger *slog.Logger
	// onChange receives the index and new contents of a valid tree.
	onChange func(i int, data []byte)
}

// Watch starts watching and returns once the watches are in place. The
// watcher stops when ctx is done; the returned channel closes then.
//
// Directories are watched rather than files, so editors that save by
// renaming a new file into place are picked up too.
func (w *frameWatcher) Watch(ctx context.Context) (<-chan struct{}, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	index := make(map[string]int, len(w.paths))
	dirs := make(map[string]struct{})
	for i, p := range w.paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			watcher.Close()
			return nil, err
		}
		index[abs] = i
		dirs[filepath.Dir(abs)] = struct{}{}
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer watcher.Close()
		dec := vdom.NewTreeDecoder()

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				abs, err := filepath.Abs(event.Name)
				if err != nil {
					continue
				}
				i, ok := index[abs]
				if !ok {
					continue
				}
				w.reload(dec, i, w.paths[i])

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				w.logger.Warn("serve: watch error", "error", err)
			}
		}
	}()
	return done, nil
}

// reload reads and validates one tree. Invalid trees are logged and the
// previous contents stay in use.
func (w *frameWatcher) reload(dec *vdom.TreeDecoder, i int, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		// Mid-save; the next event retries.
		return
	}
	if _, err := readTree(dec, path, bytes.NewReader(data)); err != nil {
		w.logger.Warn("serve: ignoring invalid tree", "path", path, "error", err)
		return
	}
	w.logger.Info("serve: reloaded tree", "path", path)
	w.onChange(i, data)
}
