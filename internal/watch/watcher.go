// Package watch turns file system activity in a directory into debounced
// upload batches.
package watch

import (
	"context"
	"fmt"
	"os"
	"time"

	"pdfchat/internal/logging"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period used when none is configured.
const DefaultDebounce = 2 * time.Second

// Watcher monitors one directory with fsnotify.
type Watcher struct {
	fsw      *fsnotify.Watcher
	allow    func(path string) bool
	debounce time.Duration
}

// New creates a watcher. allow filters paths (nil accepts all); debounce is
// how long the directory must stay quiet before a batch is emitted.
func New(allow func(path string) bool, debounce time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if allow == nil {
		allow = func(string) bool { return true }
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{fsw: fsw, allow: allow, debounce: debounce}, nil
}

// Watch starts monitoring dir. Each value on the returned channel is the set
// of files created or written since the previous batch, in first-seen order.
// The channel closes when ctx is done or the watcher is closed.
func (w *Watcher) Watch(ctx context.Context, dir string) (<-chan []string, error) {
	if err := w.fsw.Add(dir); err != nil {
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	logging.Watch("watching %s (debounce %v)", dir, w.debounce)

	batches := make(chan []string)
	go w.loop(ctx, batches)
	return batches, nil
}

func (w *Watcher) loop(ctx context.Context, batches chan<- []string) {
	defer close(batches)

	var (
		pending = make(map[string]bool)
		order   []string
		timer   *time.Timer
		fire    <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	arm := func() {
		if timer == nil {
			timer = time.NewTimer(w.debounce)
		} else {
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.debounce)
		}
		fire = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			switch {
			case event.Has(fsnotify.Create) || event.Has(fsnotify.Write):
				if !w.allow(event.Name) || isDir(event.Name) {
					continue
				}
				if !pending[event.Name] {
					pending[event.Name] = true
					order = append(order, event.Name)
				}
				arm()
			case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
				if pending[event.Name] {
					delete(pending, event.Name)
					order = removePath(order, event.Name)
				}
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logging.WatchWarn("watcher error: %v", err)

		case <-fire:
			fire = nil
			if len(order) == 0 {
				continue
			}
			batch := order
			order = nil
			pending = make(map[string]bool)
			logging.Watch("batch ready: %d files", len(batch))

			select {
			case batches <- batch:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Close stops the watcher and closes any channel returned by Watch.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func removePath(paths []string, target string) []string {
	out := paths[:0]
	for _, p := range paths {
		if p != target {
			out = append(out, p)
		}
	}
	return out
}
