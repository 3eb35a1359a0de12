// Package tool holds what the host-side panel tools share: the Tool contract,
// their dependencies and the refresh event they emit.
package tool

import (
	"context"
	"log/slog"

	"github.com/starford/dddot/internal/bridge"
	"github.com/starford/dddot/internal/metrics"
	"github.com/starford/dddot/internal/models"
	"github.com/starford/dddot/internal/noteservice"
	"github.com/starford/dddot/internal/render"
	"github.com/starford/dddot/internal/section"
	"github.com/starford/dddot/internal/settings"
)

// Event names every tool understands.
const (
	EventReady   = "onReady"
	EventRefresh = "refresh"
)

// Tool is a host-side panel tool. It answers the requests of its namespace
// through Respond and pushes updates with a "<key>.refresh" event.
type Tool interface {
	bridge.Responder
	Key() string
	Title() string
	HasView() bool
	ExtraButtons() []section.Button
	// Start loads persisted state and subscribes to host notifications.
	Start(ctx context.Context) error
	// Stop drops the host subscriptions.
	Stop()
}

// Notes is the host data API the tools use.
type Notes interface {
	GetNote(ctx context.Context, id string) (models.Note, error)
	GetFolder(ctx context.Context, id string) (models.Folder, error)
	Backlinks(ctx context.Context, id string) ([]models.Note, error)
	SelectedNote(ctx context.Context) (models.Note, error)
	OpenNoteDetail(ctx context.Context, id string) (*noteservice.NoteDetail, error)
	OnSelectionChange(fn noteservice.SelectionFunc) (cancel func())
	OnNoteChange(fn noteservice.ChangeFunc) (cancel func())
}

var _ Notes = (*noteservice.Service)(nil)

// Emitter sends fire-and-forget events to the panel.
type Emitter interface {
	Emit(ctx context.Context, msg bridge.Message) error
}

// Deps are the services a tool is built with.
type Deps struct {
	Settings settings.Store
	Notes    Notes
	Emitter  Emitter
	Renderer *render.Renderer
	Logger   *slog.Logger
	Metrics  *metrics.Collector
}

// Base implements the parts of Tool every tool shares.
type Base struct {
	Deps
	key string
}

// NewBase returns the shared part of the tool with the given key.
func NewBase(key string, d Deps) Base {
	if d.Renderer == nil {
		d.Renderer = render.New()
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	d.Logger = d.Logger.With(slog.String("tool", key))
	return Base{Deps: d, key: key}
}

// Key returns the tool key, which is also its message namespace.
func (b *Base) Key() string { return b.key }

// Type returns the message type of event in the tool namespace.
func (b *Base) Type(event string) string { return b.key + "." + event }

// Refresh emits "<key>.refresh" with the rendered links. Failures are logged;
// the panel keeps its previous view.
func (b *Base) Refresh(ctx context.Context, views []render.LinkView) {
	if b.Emitter == nil {
		return
	}
	if views == nil {
		views = []render.LinkView{}
	}
	msg := bridge.NewMessage(b.Type(EventRefresh), map[string]any{"links": views})
	if err := b.Emitter.Emit(ctx, msg); err != nil {
		b.Logger.Warn("tool: refresh failed", slog.String("error", err.Error()))
		return
	}
	b.Metrics.Refresh(b.key)
}

// Unhandled logs a request the tool has no handler for and answers null.
func (b *Base) Unhandled(msg bridge.Message) (any, error) {
	b.Logger.Debug("tool: unhandled message", slog.String("type", msg.Type))
	return nil, nil
}

// OpenNote is the message a note link posts when clicked.
func OpenNote(noteID string) bridge.Message {
	return bridge.NewMessage("dddot.openNote", map[string]string{"noteId": noteID})
}

// OpenFolder is the message a folder link posts when clicked.
func OpenFolder(folderID string) bridge.Message {
	return bridge.NewMessage("dddot.openFolder", map[string]string{"folderId": folderID})
}

// Descriptor returns the section descriptor of t.
func Descriptor(t Tool) section.Descriptor {
	return section.Descriptor{
		Key:          t.Key(),
		Title:        t.Title(),
		HasView:      t.HasView(),
		ExtraButtons: t.ExtraButtons(),
		ContainerID:  section.ContainerID(t.Key()),
		ContentID:    section.ContentID(t.Key()),
	}
}

// Descriptors returns the section descriptors of tools in order.
func Descriptors(tools []Tool) []section.Descriptor {
	out := make([]section.Descriptor, len(tools))
	for i, t := range tools {
		out[i] = Descriptor(t)
	}
	return out
}
