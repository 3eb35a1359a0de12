// Package host is the host-side composition root: it builds the enabled
// tools, routes panel requests to them and answers the core dddot.* messages.
package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/starford/dddot/internal/apperr"
	"github.com/starford/dddot/internal/bridge"
	"github.com/starford/dddot/internal/metrics"
	"github.com/starford/dddot/internal/noteservice"
	"github.com/starford/dddot/internal/render"
	"github.com/starford/dddot/internal/section"
	"github.com/starford/dddot/internal/settings"
	"github.com/starford/dddot/internal/tool"
	"github.com/starford/dddot/internal/tool/backlinks"
	"github.com/starford/dddot/internal/tool/recentnotes"
	"github.com/starford/dddot/internal/tool/shortcuts"
)

// Namespace is the message namespace of the host core.
const Namespace = "dddot"

// PanelOrderSetting stores the section order reported by the panel.
const PanelOrderSetting = "dddot.settings.panel.order"

// Factory builds a tool from its dependencies.
type Factory func(tool.Deps) tool.Tool

// Registry lists every known tool in its default order.
var Registry = []struct {
	Key string
	New Factory
}{
	{recentnotes.Key, func(d tool.Deps) tool.Tool { return recentnotes.New(d) }},
	{shortcuts.Key, func(d tool.Deps) tool.Tool { return shortcuts.New(d) }},
	{backlinks.Key, func(d tool.Deps) tool.Tool { return backlinks.New(d) }},
}

// Options configure a Host.
type Options struct {
	// Tools are the enabled tool keys; empty enables all.
	Tools []string
	// DefaultOrder is the section order used until the panel reports one.
	DefaultOrder []string
	Logger       *slog.Logger
	Metrics      *metrics.Collector
}

// SectionsInfo is the panel boot payload.
type SectionsInfo struct {
	Sections     []section.Descriptor `json:"sections"`
	DefaultOrder []string             `json:"defaultOrder"`
}

// Host owns the host endpoint of the bridge and the tools behind it.
type Host struct {
	settings settings.Store
	notes    *noteservice.Service
	logger   *slog.Logger
	opts     Options

	endpoint *bridge.Endpoint
	router   *bridge.Router
	tools    []tool.Tool
}

// New builds the host on transport t. Call Start before the panel mounts.
func New(t bridge.Transport, store settings.Store, notes *noteservice.Service, opts Options) (*Host, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	h := &Host{
		settings: store,
		notes:    notes,
		logger:   opts.Logger,
		opts:     opts,
		router:   bridge.NewRouter(opts.Logger),
	}
	h.endpoint = bridge.NewEndpoint("host", t,
		bridge.WithLogger(opts.Logger),
		bridge.WithResponder(h.router),
		bridge.WithMetrics(opts.Metrics),
	)

	deps := tool.Deps{
		Settings: store,
		Notes:    notes,
		Emitter:  h.endpoint,
		Renderer: render.New(),
		Logger:   opts.Logger,
		Metrics:  opts.Metrics,
	}
	for _, entry := range Registry {
		if len(opts.Tools) > 0 && !slices.Contains(opts.Tools, entry.Key) {
			continue
		}
		t := entry.New(deps)
		h.tools = append(h.tools, t)
		h.router.Handle(t.Key(), t)
	}
	for _, key := range opts.Tools {
		if _, err := h.Tool(key); err != nil {
			_ = h.endpoint.Close()
			return nil, fmt.Errorf("host: tool %q: %w", key, err)
		}
	}
	h.router.HandleFunc(Namespace, h.respond)
	return h, nil
}

// Start starts every tool.
func (h *Host) Start(ctx context.Context) error {
	for _, t := range h.tools {
		if err := t.Start(ctx); err != nil {
			return fmt.Errorf("host: start %s: %w", t.Key(), err)
		}
	}
	h.logger.Info("host: tools started", slog.Int("count", len(h.tools)))
	return nil
}

// Close stops the tools and the endpoint.
func (h *Host) Close() error {
	for _, t := range h.tools {
		t.Stop()
	}
	return h.endpoint.Close()
}

// Endpoint returns the host side of the bridge.
func (h *Host) Endpoint() *bridge.Endpoint {
	return h.endpoint
}

// Tools returns the enabled tools.
func (h *Host) Tools() []tool.Tool {
	return slices.Clone(h.tools)
}

// Tool returns the enabled tool with key, or apperr.ErrUnknownTool.
func (h *Host) Tool(key string) (tool.Tool, error) {
	for _, t := range h.tools {
		if t.Key() == key {
			return t, nil
		}
	}
	return nil, apperr.ErrUnknownTool
}

// Descriptors returns the section descriptors of the enabled tools.
func (h *Host) Descriptors() []section.Descriptor {
	return tool.Descriptors(h.tools)
}

// DefaultOrder returns the persisted section order, falling back to the
// configured order.
func (h *Host) DefaultOrder(ctx context.Context) []string {
	order, err := settings.Load(ctx, h.settings, PanelOrderSetting, h.opts.DefaultOrder)
	if err != nil {
		h.logger.Warn("host: load section order", slog.String("error", err.Error()))
	}
	return order
}

// Sections returns the panel boot payload.
func (h *Host) Sections(ctx context.Context) SectionsInfo {
	return SectionsInfo{Sections: h.Descriptors(), DefaultOrder: h.DefaultOrder(ctx)}
}

// SaveOrder persists the section order reported by the panel. Unknown keys
// are kept so a tool disabled today keeps its slot when it comes back.
func (h *Host) SaveOrder(ctx context.Context, order []string) error {
	if order == nil {
		order = []string{}
	}
	return settings.Save(ctx, h.settings, PanelOrderSetting, order)
}

type coreRequest struct {
	NoteID   string   `json:"noteId"`
	FolderID string   `json:"folderId"`
	Order    []string `json:"order"`
}

func (h *Host) respond(ctx context.Context, msg bridge.Message) (any, error) {
	var req coreRequest
	if err := msg.Decode(&req); err != nil {
		return nil, err
	}
	switch msg.Event() {
	case "openNote":
		if err := h.notes.SelectNote(ctx, req.NoteID); err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				h.logger.Info("host: open unknown note", slog.String("id", req.NoteID))
				return nil, nil
			}
			return nil, err
		}
		return nil, nil
	case "openFolder":
		return h.notes.GetFolder(ctx, req.FolderID)
	case "onSectionOrderChanged":
		return nil, h.SaveOrder(ctx, req.Order)
	case "getSections":
		return h.Sections(ctx), nil
	default:
		h.logger.Debug("host: unhandled message", slog.String("type", msg.Type))
		return nil, nil
	}
}
