package store

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dar-kow/discord-bot-jira-work-log/internal/logging"
)

// Watcher reloads the store when its backing files change on disk, so
// mappings edited by hand take effect without restarting the service.
type Watcher struct {
	store    *Store
	watcher  *fsnotify.Watcher
	debounce time.Duration
}

// NewWatcher watches the directories containing the store's backing files.
// Watching the directory rather than the file survives editors and the
// store's own temp-file-and-rename writes.
func NewWatcher(st *Store) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	dirs := map[string]struct{}{
		filepath.Dir(st.tasksPath):    {},
		filepath.Dir(st.accountsPath): {},
	}
	for dir := range dirs {
		if err := fw.Add(dir); err != nil {
			fw.Close()
			return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	return &Watcher{
		store:    st,
		watcher:  fw,
		debounce: 250 * time.Millisecond,
	}, nil
}

// Run blocks until ctx is cancelled, reloading the store after relevant
// file events. Bursts of events (editor save, rename dance) collapse into
// one reload.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	log := logging.WithComponent("store-watcher")

	var timer *time.Timer
	var pending <-chan time.Time

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
			log.Debug("mapping file changed", "file", event.Name, "op", event.Op.String())
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			pending = timer.C

		case <-pending:
			pending = nil
			if err := w.store.Reload(); err != nil {
				log.Error("reload after file change failed", "error", err)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("file watcher error", "error", err)
		}
	}
}

// relevant reports whether an event touches one of the backing files.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Rename) {
		return false
	}
	name := filepath.Clean(event.Name)
	return name == filepath.Clean(w.store.tasksPath) || name == filepath.Clean(w.store.accountsPath)
}
