package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/dddot/internal/models"
	"github.com/starford/dddot/internal/storage"
)

// reconcileDelay debounces the rescan that follows a rename.
const reconcileDelay = 200 * time.Millisecond

// ChangeFunc receives a note change after the index has been updated.
// IDs are slash-separated vault paths.
type ChangeFunc func(change models.NoteChange)

type watcher struct {
	db       *DB
	store    storage.Provider
	root     string
	logger   *slog.Logger
	onChange ChangeFunc
}

// Watch keeps the index in step with the vault until ctx is cancelled and
// reports every indexed change to onChange (which may be nil).
//
// Directories created at runtime are watched as they appear. fsnotify only
// reports the old path of a rename, so renames trigger a debounced rescan
// that drops stale rows and indexes the new location.
func Watch(ctx context.Context, db *DB, store storage.Provider, vaultRoot string, logger *slog.Logger, onChange ChangeFunc) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := addDirsRecursive(fw, vaultRoot); err != nil {
		return err
	}

	w := &watcher{db: db, store: store, root: vaultRoot, logger: logger, onChange: onChange}
	logger.Info("watcher: started", slog.String("root", vaultRoot))

	var reconcile *time.Timer
	var reconcileCh <-chan time.Time
	defer func() {
		if reconcile != nil {
			reconcile.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			w.reconcile()

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(fw, ev.Name); addErr != nil {
						logger.Warn("watcher: add new dir failed", slog.String("path", ev.Name), slog.String("error", addErr.Error()))
					}
					w.indexDir(ev.Name)
					continue
				}
			}
			if w.handle(ev) {
				if reconcile == nil {
					reconcile = time.NewTimer(reconcileDelay)
					reconcileCh = reconcile.C
				} else {
					reconcile.Reset(reconcileDelay)
				}
			}

		case watchErr, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// handle applies one file event to the index. It reports whether a rescan
// should be scheduled.
func (w *watcher) handle(ev fsnotify.Event) bool {
	if !strings.HasSuffix(ev.Name, ".md") {
		return false
	}
	rel, ok := w.rel(ev.Name)
	if !ok {
		return false
	}

	switch {
	case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
		kind := models.ChangeUpdated
		if ev.Op&fsnotify.Create != 0 {
			kind = models.ChangeCreated
		}
		w.index(rel, kind)
	case ev.Op&fsnotify.Remove != 0:
		w.remove(rel)
	case ev.Op&fsnotify.Rename != 0:
		w.remove(rel)
		return true
	}
	return false
}

func (w *watcher) rel(abs string) (string, bool) {
	rel, err := filepath.Rel(w.root, abs)
	if err != nil {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func (w *watcher) index(rel string, kind models.ChangeKind) {
	data, err := w.store.Read(rel)
	if err != nil {
		w.logger.Warn("watcher: read failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	if err := IndexFile(w.db, rel, data); err != nil {
		w.logger.Warn("watcher: index failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	w.logger.Debug("watcher: indexed", slog.String("path", rel), slog.String("op", string(kind)))
	w.notify(rel, kind)
}

func (w *watcher) remove(rel string) {
	if err := w.db.DeleteNote(rel); err != nil {
		w.logger.Warn("watcher: delete failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	w.logger.Debug("watcher: deleted", slog.String("path", rel))
	w.notify(rel, models.ChangeDeleted)
}

func (w *watcher) notify(rel string, kind models.ChangeKind) {
	if w.onChange != nil {
		w.onChange(models.NoteChange{ID: rel, Event: kind})
	}
}

// reconcile compares the index against the vault: rows without a file are
// removed, files with a missing or stale checksum are indexed.
func (w *watcher) reconcile() {
	checksums, err := w.db.AllChecksums()
	if err != nil {
		w.logger.Warn("reconcile: all checksums failed", slog.String("error", err.Error()))
		return
	}
	metas, err := w.store.List("")
	if err != nil {
		w.logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[string]string, len(metas))
	for _, m := range metas {
		disk[m.Path] = m.Checksum
	}
	for p := range checksums {
		if _, ok := disk[p]; !ok {
			w.remove(p)
		}
	}
	for p, cs := range disk {
		old, known := checksums[p]
		if old == cs {
			continue
		}
		kind := models.ChangeUpdated
		if !known {
			kind = models.ChangeCreated
		}
		w.index(p, kind)
	}
}

// indexDir indexes the notes already present in a newly created directory.
func (w *watcher) indexDir(dir string) {
	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(p, ".md") {
			return nil
		}
		if rel, ok := w.rel(p); ok {
			w.index(rel, models.ChangeCreated)
		}
		return nil
	})
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
