// Package recentnotes keeps the rolling history of recently selected notes.
package recentnotes

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/starford/dddot/internal/bridge"
	"github.com/starford/dddot/internal/linklist"
	"github.com/starford/dddot/internal/models"
	"github.com/starford/dddot/internal/render"
	"github.com/starford/dddot/internal/section"
	"github.com/starford/dddot/internal/settings"
	"github.com/starford/dddot/internal/tool"
)

// Key is the tool key and message namespace.
const Key = "recentnotes"

// Settings keys and defaults.
const (
	ContentSetting      = "dddot.settings.recentnotes.content"
	MaxNotesSetting     = "dddot.settings.recentnotes.maxnotes"
	ShowFullPathSetting = "dddot.settings.recentnotes.showfullpath"

	DefaultMaxNotes     = 5
	DefaultShowFullPath = false
)

// Tool is the recent notes tool.
type Tool struct {
	tool.Base

	mu      sync.Mutex
	links   *linklist.List
	cancels []func()
}

var _ tool.Tool = (*Tool)(nil)

// New returns the recent notes tool.
func New(d tool.Deps) *Tool {
	return &Tool{Base: tool.NewBase(Key, d), links: &linklist.List{}}
}

func (t *Tool) Title() string                  { return "Recent Notes" }
func (t *Tool) HasView() bool                  { return true }
func (t *Tool) ExtraButtons() []section.Button { return nil }

// Start restores the persisted history and follows selection and title changes.
func (t *Tool) Start(ctx context.Context) error {
	raw, err := settings.LoadRaw(ctx, t.Settings, ContentSetting, json.RawMessage("[]"))
	if err != nil {
		return fmt.Errorf("recentnotes: load history: %w", err)
	}
	t.mu.Lock()
	t.links = linklist.Rehydrate(raw)
	t.mu.Unlock()

	t.cancels = append(t.cancels,
		t.Notes.OnSelectionChange(t.onSelectionChange),
		t.Notes.OnNoteChange(t.onNoteChange),
	)
	return nil
}

// Stop drops the host subscriptions.
func (t *Tool) Stop() {
	for _, cancel := range t.cancels {
		cancel()
	}
	t.cancels = nil
}

// Respond answers the recentnotes.* requests.
func (t *Tool) Respond(ctx context.Context, msg bridge.Message) (any, error) {
	switch msg.Event() {
	case tool.EventReady:
		return t.onReady(ctx)
	case "tool.openNoteDetailDialog":
		var req struct {
			NoteID string `json:"noteId"`
		}
		if err := msg.Decode(&req); err != nil {
			return nil, err
		}
		return t.Notes.OpenNoteDetail(ctx, req.NoteID)
	default:
		return t.Unhandled(msg)
	}
}

// Links returns the current history.
func (t *Tool) Links() []models.Link {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.links.Links()
}

// InsertNote moves note to the front of the history, then trims, saves and
// refreshes the panel.
func (t *Tool) InsertNote(ctx context.Context, note models.Note) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.links.InsertFront(models.NoteLinkFromNote(note))
	t.truncate(ctx)
	if err := t.save(ctx); err != nil {
		return err
	}
	return t.refresh(ctx)
}

func (t *Tool) onSelectionChange(ctx context.Context, noteID string) {
	note, err := t.Notes.GetNote(ctx, noteID)
	if err != nil {
		t.Logger.Warn("recentnotes: selected note lookup failed", slog.String("id", noteID), slog.String("error", err.Error()))
		return
	}
	if err := t.InsertNote(ctx, note); err != nil {
		t.Logger.Warn("recentnotes: insert failed", slog.String("id", noteID), slog.String("error", err.Error()))
	}
}

func (t *Tool) onNoteChange(ctx context.Context, change models.NoteChange) {
	if change.Event != models.ChangeUpdated {
		return
	}
	note, err := t.Notes.GetNote(ctx, change.ID)
	if err != nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.links.Update(change.ID, models.TitlePatch(note.Title)) {
		return
	}
	if err := t.save(ctx); err != nil {
		t.Logger.Warn("recentnotes: save failed", slog.String("error", err.Error()))
		return
	}
	if err := t.refresh(ctx); err != nil {
		t.Logger.Warn("recentnotes: render failed", slog.String("error", err.Error()))
	}
}

func (t *Tool) onReady(ctx context.Context) ([]render.LinkView, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.truncate(ctx)
	return t.render(ctx)
}

// truncate reads the limit at call time so a changed setting applies on the
// next insert or mount. A null or non-positive limit falls back to the default
// so a bad setting never wipes the history.
func (t *Tool) truncate(ctx context.Context) {
	maxNotes, err := settings.Load(ctx, t.Settings, MaxNotesSetting, DefaultMaxNotes)
	if err != nil {
		t.Logger.Warn("recentnotes: max notes setting", slog.String("error", err.Error()))
	}
	if maxNotes < 1 {
		maxNotes = DefaultMaxNotes
	}
	t.links.Truncate(maxNotes)
}

func (t *Tool) save(ctx context.Context) error {
	if err := settings.Save(ctx, t.Settings, ContentSetting, t.links.Dehydrate()); err != nil {
		return fmt.Errorf("recentnotes: save history: %w", err)
	}
	return nil
}

func (t *Tool) refresh(ctx context.Context) error {
	views, err := t.render(ctx)
	if err != nil {
		return err
	}
	t.Refresh(ctx, views)
	return nil
}

func (t *Tool) render(ctx context.Context) ([]render.LinkView, error) {
	showFullPath, err := settings.Load(ctx, t.Settings, ShowFullPathSetting, DefaultShowFullPath)
	if err != nil {
		t.Logger.Warn("recentnotes: show full path setting", slog.String("error", err.Error()))
	}

	links := t.links.Links()
	for i := range links {
		links[i].FinalTitle = links[i].Title
		if !showFullPath {
			continue
		}
		folder, err := t.Notes.GetFolder(ctx, links[i].ParentID)
		if err != nil {
			t.Logger.Debug("recentnotes: parent folder lookup failed", slog.String("id", links[i].ParentID))
			continue
		}
		links[i].FinalTitle = fmt.Sprintf("%s/(%s)", folder.Title, links[i].Title)
	}

	return t.Renderer.Links(links, func(l models.Link) render.Options {
		menu := bridge.NewMessage(t.Type("tool.openNoteDetailDialog"), map[string]string{"noteId": l.ID})
		return render.Options{OnClick: tool.OpenNote(l.ID), OnContextMenu: &menu}
	})
}
