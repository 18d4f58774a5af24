package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// RefreshFunc triggers a snapshot rebuild. The watcher coalesces bursts of
// filesystem events into a single call per quiet period.
type RefreshFunc func(ctx context.Context)

// Watch starts an fsnotify watcher on the posts root and processes change
// events until ctx is cancelled. Because snapshots are rebuilt wholesale
// rather than patched, the watcher only needs to notice that something
// changed: any relevant event resets a debounce timer, and when the burst
// settles, refresh is invoked once.
//
// New directories created at runtime are added to the watch list so posts
// dropped into them are seen.
func Watch(ctx context.Context, root string, debounce time.Duration, logger *slog.Logger, refresh RefreshFunc) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("ingest: start watcher: %w", err)
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return fmt.Errorf("ingest: watch tree: %w", err)
	}
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}

	logger.Info("watcher: started", slog.String("root", root))

	var timer *time.Timer
	var timerCh <-chan time.Time
	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(debounce)
			timerCh = timer.C
		} else {
			timer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-timerCh:
			logger.Debug("watcher: change burst settled")
			refresh(ctx)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					}
					schedule()
					continue
				}
			}

			if !relevant(ev.Name) {
				continue
			}
			logger.Debug("watcher: change", slog.String("path", ev.Name), slog.String("op", ev.Op.String()))
			schedule()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// relevant filters out files that can never affect a snapshot: hidden
// files and editor backup files.
func relevant(absPath string) bool {
	base := filepath.Base(absPath)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") {
		return false
	}
	return true
}

// addDirsRecursive adds root and all its visible subdirectories to the
// watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}
