package policy

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a Holder when its policy file changes on disk.
//
// The parent directory is watched rather than the file, because editors and
// config-map mounts replace files by rename.
type Watcher struct {
	watcher  *fsnotify.Watcher
	holder   *Holder
	file     string
	debounce time.Duration
	logger   *slog.Logger
}

func NewWatcher(holder *Holder, logger *slog.Logger) (*Watcher, error) {
	if holder.path == "" {
		return nil, fmt.Errorf("policy holder has no file to watch")
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	abs, err := filepath.Abs(holder.path)
	if err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("resolve policy path: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("failed to watch directory %s: %w", filepath.Dir(abs), err)
	}
	return &Watcher{
		watcher:  fw,
		holder:   holder,
		file:     abs,
		debounce: 200 * time.Millisecond,
		logger:   logger,
	}, nil
}

// Run blocks until ctx is cancelled, reloading after each burst of writes.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher channel closed")
			}
			if !w.relevant(event) {
				continue
			}
			timer.Reset(w.debounce)
		case <-timer.C:
			// Errors are logged by Reload; the old snapshot keeps serving.
			_ = w.holder.Reload(ctx)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher error channel closed")
			}
			w.logger.WarnContext(ctx, "policy watcher error", "error", err)
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.file {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)
}
