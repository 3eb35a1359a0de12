// Package testutil provides shared test helpers for setting up vaults, indexes and services.
package testutil

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/starford/dddot/internal/bridge"
	"github.com/starford/dddot/internal/index"
	"github.com/starford/dddot/internal/models"
	"github.com/starford/dddot/internal/noteservice"
	"github.com/starford/dddot/internal/storage"
)

// Logger returns a logger that discards everything below error level.
func Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "dddot-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestVault creates a temporary vault directory seeded with files (path → content).
func TestVault(t *testing.T, files map[string]string) (string, *storage.FS) {
	t.Helper()
	vaultDir := t.TempDir()
	store, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	for p, content := range files {
		if err := store.Write(p, []byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	return vaultDir, store
}

// Env is an indexed vault with a note service on top.
type Env struct {
	Root   string
	Store  *storage.FS
	DB     *index.DB
	Notes  *noteservice.Service
	Logger *slog.Logger
}

// NewEnv seeds a vault with files, indexes it and builds the note service.
func NewEnv(t *testing.T, files map[string]string) *Env {
	t.Helper()
	root, store := TestVault(t, files)
	db := TestDB(t)
	logger := Logger()
	if err := index.Sync(db, store, logger); err != nil {
		t.Fatal(err)
	}
	return &Env{
		Root:   root,
		Store:  store,
		DB:     db,
		Notes:  noteservice.NewService(store, db, logger),
		Logger: logger,
	}
}

// Write updates a note on disk and in the index, then reports the change
// to the note service the way the watcher does.
func (e *Env) Write(t *testing.T, path, content string) {
	t.Helper()
	if err := e.Store.Write(path, []byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := index.IndexFile(e.DB, path, []byte(content)); err != nil {
		t.Fatal(err)
	}
	e.Notes.NotifyChange(models.NoteChange{ID: path, Event: models.ChangeUpdated})
}

// Emitter records emitted bridge events.
type Emitter struct {
	mu       sync.Mutex
	messages []bridge.Message
}

// Emit records msg.
func (e *Emitter) Emit(_ context.Context, msg bridge.Message) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.messages = append(e.messages, msg)
	return nil
}

// Messages returns the recorded events of the given type.
func (e *Emitter) Messages(typ string) []bridge.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []bridge.Message
	for _, m := range e.messages {
		if m.Type == typ {
			out = append(out, m)
		}
	}
	return out
}
