// Package backlinks lists the notes that link to the selected note.
package backlinks

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/starford/dddot/internal/apperr"
	"github.com/starford/dddot/internal/bridge"
	"github.com/starford/dddot/internal/models"
	"github.com/starford/dddot/internal/render"
	"github.com/starford/dddot/internal/section"
	"github.com/starford/dddot/internal/tool"
)

// Key is the tool key and message namespace.
const Key = "backlinks"

// Tool is the backlinks tool. It keeps no state of its own; every render
// queries the index for the current selection.
type Tool struct {
	tool.Base

	mu      sync.Mutex
	cancels []func()
}

var _ tool.Tool = (*Tool)(nil)

// New returns the backlinks tool.
func New(d tool.Deps) *Tool {
	return &Tool{Base: tool.NewBase(Key, d)}
}

func (t *Tool) Title() string                  { return "Backlinks" }
func (t *Tool) HasView() bool                  { return true }
func (t *Tool) ExtraButtons() []section.Button { return nil }

// Start refreshes on every selection change and vault change.
func (t *Tool) Start(_ context.Context) error {
	t.cancels = append(t.cancels,
		t.Notes.OnSelectionChange(func(ctx context.Context, _ string) { t.refresh(ctx) }),
		t.Notes.OnNoteChange(func(ctx context.Context, _ models.NoteChange) { t.refresh(ctx) }),
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

// Respond answers the backlinks.* requests.
func (t *Tool) Respond(ctx context.Context, msg bridge.Message) (any, error) {
	switch msg.Event() {
	case tool.EventReady:
		t.mu.Lock()
		defer t.mu.Unlock()
		return t.render(ctx)
	default:
		return t.Unhandled(msg)
	}
}

func (t *Tool) refresh(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	views, err := t.render(ctx)
	if err != nil {
		t.Logger.Warn("backlinks: render failed", slog.String("error", err.Error()))
		return
	}
	t.Refresh(ctx, views)
}

func (t *Tool) render(ctx context.Context) ([]render.LinkView, error) {
	note, err := t.Notes.SelectedNote(ctx)
	if errors.Is(err, apperr.ErrNotFound) {
		return []render.LinkView{}, nil
	}
	if err != nil {
		return nil, err
	}
	notes, err := t.Notes.Backlinks(ctx, note.ID)
	if err != nil {
		return nil, err
	}
	links := make([]models.Link, len(notes))
	for i, n := range notes {
		links[i] = models.NoteLinkFromNote(n)
	}
	return t.Renderer.Links(links, func(l models.Link) render.Options {
		return render.Options{OnClick: tool.OpenNote(l.ID)}
	})
}
