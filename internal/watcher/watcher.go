// Package watcher reports changes in the notes directory.
package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/tagshelf/internal/parser"
)

// DefaultDebounce is the quiet period before OnSettled runs.
const DefaultDebounce = 300 * time.Millisecond

// Event kinds passed to EventCallback.
const (
	KindCreated = "created"
	KindUpdated = "updated"
	KindDeleted = "deleted"
)

// EventCallback is called for every change to a note file.
// rel is the note key, relative to the watched root.
type EventCallback func(kind string, rel string)

// Options configures Watch.
type Options struct {
	// Debounce is the quiet period after the last change before OnSettled
	// is called. Zero means DefaultDebounce.
	Debounce time.Duration
	// OnEvent receives note-level changes as they happen.
	OnEvent EventCallback
	// OnSettled runs once a burst of changes (notes or attachments) is over.
	OnSettled func(ctx context.Context)
}

// Watch watches root and its subdirectories until ctx is cancelled.
//
// New directories created at runtime are added to the watch list. A rename
// is reported as a deletion of the old name; the new name arrives as a
// separate create.
func Watch(ctx context.Context, root string, logger *slog.Logger, opts Options) error {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root))

	var settleTimer *time.Timer
	var settleCh <-chan time.Time

	scheduleSettle := func() {
		if settleTimer == nil {
			settleTimer = time.NewTimer(opts.Debounce)
			settleCh = settleTimer.C
		} else {
			settleTimer.Reset(opts.Debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if settleTimer != nil {
				settleTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-settleCh:
			settleTimer = nil
			settleCh = nil
			if opts.OnSettled != nil {
				opts.OnSettled(ctx)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op == fsnotify.Chmod {
				continue
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching new dir", slog.String("path", ev.Name))
					}
					scheduleSettle()
					continue
				}
			}

			rel, relErr := filepath.Rel(root, ev.Name)
			if relErr != nil {
				continue
			}
			rel = filepath.ToSlash(rel)
			scheduleSettle()

			// Notes live directly under root; anything deeper is an attachment.
			if filepath.Dir(rel) != "." || !parser.IsNoteFile(rel) {
				continue
			}
			kind := kindOf(ev.Op)
			logger.Debug("watcher: note changed", slog.String("path", rel), slog.String("op", kind))
			if opts.OnEvent != nil {
				opts.OnEvent(kind, rel)
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

func kindOf(op fsnotify.Op) string {
	switch {
	case op&fsnotify.Create != 0:
		return KindCreated
	case op&(fsnotify.Remove|fsnotify.Rename) != 0:
		return KindDeleted
	default:
		return KindUpdated
	}
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
