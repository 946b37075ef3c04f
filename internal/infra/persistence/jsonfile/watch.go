package jsonfile

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"ritual/pkg/domain"
)

// Watch calls onChange each time the document is rewritten, by this store
// or another process, until ctx is cancelled. Bursts of events within the
// debounce window produce one call. The parent directory is watched because
// saves replace the file by rename.
func (s *Store) Watch(ctx context.Context, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return domain.IOError("watch", s.path, err)
	}
	defer func() { _ = watcher.Close() }()

	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		return domain.IOError("watch", dir, err)
	}
	target := filepath.Clean(s.path)
	s.logger.Debug("watching state document", "path", target)

	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			fire = time.After(s.debounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("watch error", "path", target, "error", err)
		case <-fire:
			fire = nil
			s.logger.Debug("state document changed", "path", target)
			onChange()
		}
	}
}
