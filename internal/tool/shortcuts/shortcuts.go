// Package shortcuts keeps the user's list of pinned notes and folders.
package shortcuts

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
const Key = "shortcuts"

// LinksSetting stores the shortcut list.
const LinksSetting = "dddot.settings.shortcuts.links"

// Tool is the shortcuts tool.
type Tool struct {
	tool.Base

	mu      sync.Mutex
	links   *linklist.List
	cancels []func()
}

var _ tool.Tool = (*Tool)(nil)

// New returns the shortcuts tool.
func New(d tool.Deps) *Tool {
	return &Tool{Base: tool.NewBase(Key, d), links: &linklist.List{}}
}

func (t *Tool) Title() string { return "Shortcuts" }
func (t *Tool) HasView() bool { return true }

// ExtraButtons adds the "add current note" header button.
func (t *Tool) ExtraButtons() []section.Button {
	return []section.Button{{
		Icon:    "fas fa-plus",
		Tooltip: "Add current note",
		Message: bridge.NewMessage(t.Type("tool.addCurrentNote"), nil),
	}}
}

// Start restores the persisted shortcuts and follows title changes.
func (t *Tool) Start(ctx context.Context) error {
	raw, err := settings.LoadRaw(ctx, t.Settings, LinksSetting, json.RawMessage("[]"))
	if err != nil {
		return fmt.Errorf("shortcuts: load links: %w", err)
	}
	t.mu.Lock()
	t.links = linklist.Rehydrate(raw)
	t.mu.Unlock()

	t.cancels = append(t.cancels, t.Notes.OnNoteChange(t.onNoteChange))
	return nil
}

// Stop drops the host subscriptions.
func (t *Tool) Stop() {
	for _, cancel := range t.cancels {
		cancel()
	}
	t.cancels = nil
}

type request struct {
	NoteID   string `json:"noteId"`
	FolderID string `json:"folderId"`
	ID       string `json:"id"`
}

// Respond answers the shortcuts.* requests.
func (t *Tool) Respond(ctx context.Context, msg bridge.Message) (any, error) {
	var req request
	if err := msg.Decode(&req); err != nil {
		return nil, err
	}

	switch msg.Event() {
	case tool.EventReady:
		t.mu.Lock()
		defer t.mu.Unlock()
		return t.render()
	case "tool.addNote":
		note, err := t.Notes.GetNote(ctx, req.NoteID)
		if err != nil {
			return nil, err
		}
		return nil, t.mutate(ctx, func(l *linklist.List) bool {
			l.Append(models.NoteLinkFromNote(note))
			return true
		})
	case "tool.addCurrentNote":
		note, err := t.Notes.SelectedNote(ctx)
		if err != nil {
			return nil, err
		}
		return nil, t.mutate(ctx, func(l *linklist.List) bool {
			l.Append(models.NoteLinkFromNote(note))
			return true
		})
	case "tool.addFolder":
		folder, err := t.Notes.GetFolder(ctx, req.FolderID)
		if err != nil {
			return nil, err
		}
		return nil, t.mutate(ctx, func(l *linklist.List) bool {
			l.Append(models.NewFolderLink(folder.ID, folder.Title))
			return true
		})
	case "tool.removeLink":
		return nil, t.mutate(ctx, func(l *linklist.List) bool { return l.Remove(req.ID) })
	default:
		return t.Unhandled(msg)
	}
}

// Links returns the current shortcuts.
func (t *Tool) Links() []models.Link {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.links.Links()
}

// mutate applies fn and, when it reports a change, saves and refreshes.
func (t *Tool) mutate(ctx context.Context, fn func(*linklist.List) bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !fn(t.links) {
		return nil
	}
	if err := settings.Save(ctx, t.Settings, LinksSetting, t.links.Dehydrate()); err != nil {
		return fmt.Errorf("shortcuts: save links: %w", err)
	}
	views, err := t.render()
	if err != nil {
		return err
	}
	t.Refresh(ctx, views)
	return nil
}

func (t *Tool) onNoteChange(ctx context.Context, change models.NoteChange) {
	if change.Event != models.ChangeUpdated {
		return
	}
	note, err := t.Notes.GetNote(ctx, change.ID)
	if err != nil {
		return
	}
	if err := t.mutate(ctx, func(l *linklist.List) bool {
		return l.Update(change.ID, models.TitlePatch(note.Title))
	}); err != nil {
		t.Logger.Warn("shortcuts: update failed", slog.String("error", err.Error()))
	}
}

func (t *Tool) render() ([]render.LinkView, error) {
	return t.Renderer.Links(t.links.Links(), func(l models.Link) render.Options {
		remove := bridge.NewMessage(t.Type("tool.removeLink"), map[string]string{"id": l.ID})
		click := tool.OpenNote(l.ID)
		if l.Kind == models.FolderLink {
			click = tool.OpenFolder(l.ID)
		}
		return render.Options{OnClick: click, OnContextMenu: &remove}
	})
}
