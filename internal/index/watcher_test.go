package index_test

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/starford/dddot/internal/index"
	"github.com/starford/dddot/internal/models"
	"github.com/starford/dddot/internal/testutil"
)

type recorder struct {
	mu      sync.Mutex
	changes []models.NoteChange
}

func (r *recorder) record(c models.NoteChange) {
	r.mu.Lock()
	r.changes = append(r.changes, c)
	r.mu.Unlock()
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func (r *recorder) has(c models.NoteChange) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Contains(r.changes, c)
}

// startWatcher runs Watch over a seeded, synced vault until the test ends.
func startWatcher(t *testing.T, files map[string]string) (string, *index.DB, *recorder) {
	t.Helper()
	root, store := testutil.TestVault(t, files)
	db := testutil.TestDB(t)
	logger := testutil.Logger()
	if err := index.Sync(db, store, logger); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	rec := &recorder{}
	go func() {
		defer close(done)
		_ = index.Watch(ctx, db, store, store.Root(), logger, rec.record)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	time.Sleep(100 * time.Millisecond)
	return root, db, rec
}

func indexed(db *index.DB, path string) func() bool {
	return func() bool {
		cs, _ := db.GetChecksum(path)
		return cs != ""
	}
}

func TestWatcher_NewFileIndexed(t *testing.T) {
	root, db, rec := startWatcher(t, nil)

	writeFile(t, filepath.Join(root, "new.md"), "# New")

	eventually(t, 5*time.Second, 50*time.Millisecond, indexed(db, "new.md"), "new file not indexed by watcher")
	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		return rec.has(models.NoteChange{ID: "new.md", Event: models.ChangeCreated})
	}, "expected created:new.md callback")

	n, err := db.GetNote("new.md")
	if err != nil {
		t.Fatalf("GetNote: %v", err)
	}
	if n.Title != "New" {
		t.Errorf("title = %q, want New", n.Title)
	}
}

func TestWatcher_UpdateReportsTitleChange(t *testing.T) {
	root, db, rec := startWatcher(t, map[string]string{"plan.md": "# Plan"})

	writeFile(t, filepath.Join(root, "plan.md"), "# Roadmap")

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		n, err := db.GetNote("plan.md")
		return err == nil && n.Title == "Roadmap"
	}, "title change not indexed")
	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		return rec.has(models.NoteChange{ID: "plan.md", Event: models.ChangeUpdated})
	}, "expected updated:plan.md callback")
}

func TestWatcher_NewDirWatched(t *testing.T) {
	root, db, rec := startWatcher(t, nil)

	subDir := filepath.Join(root, "subdir")
	if err := os.MkdirAll(subDir, 0o755); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	writeFile(t, filepath.Join(subDir, "deep.md"), "# Deep")

	eventually(t, 5*time.Second, 50*time.Millisecond, indexed(db, "subdir/deep.md"), "file in new subdir not indexed by watcher")
	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		return rec.has(models.NoteChange{ID: "subdir/deep.md", Event: models.ChangeCreated}) ||
			rec.has(models.NoteChange{ID: "subdir/deep.md", Event: models.ChangeUpdated})
	}, "expected a callback for subdir/deep.md")
}

func TestWatcher_DeleteRemovesFromIndex(t *testing.T) {
	root, db, rec := startWatcher(t, map[string]string{"del.md": "# Delete Me"})
	if !indexed(db, "del.md")() {
		t.Fatal("precondition: file should be indexed")
	}

	if err := os.Remove(filepath.Join(root, "del.md")); err != nil {
		t.Fatal(err)
	}

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool { return !indexed(db, "del.md")() }, "deleted file still in index")
	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		return rec.has(models.NoteChange{ID: "del.md", Event: models.ChangeDeleted})
	}, "expected deleted:del.md callback")
}

func TestWatcher_RenameReconciles(t *testing.T) {
	root, db, rec := startWatcher(t, map[string]string{"old.md": "# Rename"})

	if err := os.Rename(filepath.Join(root, "old.md"), filepath.Join(root, "renamed.md")); err != nil {
		t.Fatal(err)
	}

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return !indexed(db, "old.md")() && indexed(db, "renamed.md")()
	}, "rename reconciliation failed: old path should be removed and new path indexed")
	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		return rec.has(models.NoteChange{ID: "old.md", Event: models.ChangeDeleted})
	}, "expected deleted:old.md callback")
}
