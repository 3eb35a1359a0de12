package noteservice_test

import (
	"context"
	"errors"
	"testing"

	"github.com/starford/dddot/internal/apperr"
	"github.com/starford/dddot/internal/models"
	"github.com/starford/dddot/internal/testutil"
)

var vault = map[string]string{
	"inbox/todo.md":    "---\ntitle: Buy milk\ntodo: true\n---\nsee [[plan]]\n",
	"projects/plan.md": "# Plan\n",
	"index.md":         "# Home\n[[projects/plan]]\n",
}

func TestGetNote(t *testing.T) {
	env := testutil.NewEnv(t, vault)
	ctx := context.Background()

	n, err := env.Notes.GetNote(ctx, "inbox/todo.md")
	if err != nil {
		t.Fatalf("GetNote: %v", err)
	}
	want := models.Note{ID: "inbox/todo.md", Title: "Buy milk", ParentID: "inbox", IsTodo: 1}
	if n != want {
		t.Errorf("GetNote = %+v, want %+v", n, want)
	}

	if _, err := env.Notes.GetNote(ctx, "nope.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestGetFolder(t *testing.T) {
	env := testutil.NewEnv(t, vault)
	ctx := context.Background()

	f, err := env.Notes.GetFolder(ctx, "projects")
	if err != nil || f.Title != "projects" {
		t.Errorf("GetFolder(projects) = %+v, %v", f, err)
	}
	root, err := env.Notes.GetFolder(ctx, "")
	if err != nil || root.Title != "/" {
		t.Errorf("GetFolder(root) = %+v, %v", root, err)
	}
	if _, err := env.Notes.GetFolder(ctx, "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestBacklinks(t *testing.T) {
	env := testutil.NewEnv(t, vault)

	bl, err := env.Notes.Backlinks(context.Background(), "projects/plan.md")
	if err != nil {
		t.Fatalf("Backlinks: %v", err)
	}
	if len(bl) != 2 || bl[0].Title != "Buy milk" || bl[1].Title != "Home" {
		t.Errorf("Backlinks = %+v", bl)
	}
}

func TestOpenNoteDetail(t *testing.T) {
	env := testutil.NewEnv(t, vault)
	ctx := context.Background()

	d, err := env.Notes.OpenNoteDetail(ctx, "projects/plan.md")
	if err != nil {
		t.Fatalf("OpenNoteDetail: %v", err)
	}
	if d.Title != "Plan" || d.ParentID != "projects" || len(d.Backlinks) != 2 || d.Links == nil {
		t.Errorf("detail = %+v", d)
	}
	if _, err := env.Notes.OpenNoteDetail(ctx, "ghost.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSelection(t *testing.T) {
	env := testutil.NewEnv(t, vault)
	ctx := context.Background()

	if _, err := env.Notes.SelectedNote(ctx); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("nothing selected yet, err = %v", err)
	}

	var got []string
	cancel := env.Notes.OnSelectionChange(func(_ context.Context, id string) { got = append(got, id) })

	if err := env.Notes.SelectNote(ctx, "index.md"); err != nil {
		t.Fatalf("SelectNote: %v", err)
	}
	if err := env.Notes.SelectNote(ctx, "ghost.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("selecting unknown note: err = %v", err)
	}
	n, err := env.Notes.SelectedNote(ctx)
	if err != nil || n.ID != "index.md" {
		t.Errorf("SelectedNote = %+v, %v", n, err)
	}

	cancel()
	_ = env.Notes.SelectNote(ctx, "projects/plan.md")
	if len(got) != 1 || got[0] != "index.md" {
		t.Errorf("listener calls = %v, want only index.md", got)
	}
}

func TestNotifyChange(t *testing.T) {
	env := testutil.NewEnv(t, vault)
	ctx := context.Background()
	_ = env.Notes.SelectNote(ctx, "index.md")

	var got []models.NoteChange
	env.Notes.OnNoteChange(func(_ context.Context, c models.NoteChange) { got = append(got, c) })

	env.Write(t, "index.md", "# Home v2\n")
	env.Notes.NotifyChange(models.NoteChange{ID: "index.md", Event: models.ChangeDeleted})

	if len(got) != 2 || got[0].Event != models.ChangeUpdated || got[1].Event != models.ChangeDeleted {
		t.Errorf("changes = %+v", got)
	}
	if _, err := env.Notes.SelectedNote(ctx); !errors.Is(err, apperr.ErrNotFound) {
		t.Error("deleting the selected note should clear the selection")
	}
}
