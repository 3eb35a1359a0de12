// Package panel is the panel-side runtime: it mounts the sections reported
// by the host, boots one worker per section and keeps the section order and
// view props the renderer displays.
package panel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/starford/dddot/internal/bridge"
	"github.com/starford/dddot/internal/metrics"
	"github.com/starford/dddot/internal/render"
	"github.com/starford/dddot/internal/section"
	"github.com/starford/dddot/internal/viewprop"
)

// LinksProp is the view prop the section workers fill.
const LinksProp = "links"

// Options configure a Panel.
type Options struct {
	Logger  *slog.Logger
	Metrics *metrics.Collector
	// OnChange is called with the key of a section whose props changed.
	OnChange func(section string)
}

// Boot is the host's answer to dddot.getSections.
type Boot struct {
	Sections     []section.Descriptor `json:"sections"`
	DefaultOrder []string             `json:"defaultOrder"`
}

// Panel is one mounted panel. The view-prop channel is owned by the caller
// and handed in, so a later panel can take it over after this one unmounts.
type Panel struct {
	endpoint *bridge.Endpoint
	channel  *viewprop.Channel
	props    *viewprop.Store
	logger   *slog.Logger
	metrics  *metrics.Collector

	mu       sync.Mutex
	mounted  bool
	reg      *viewprop.Registration
	order    *section.OrderState
	drag     *section.DragItem
	expanded map[string]bool
	subs     []*bridge.Subscription
}

// New creates a panel talking to the host over t.
func New(t bridge.Transport, channel *viewprop.Channel, opts Options) *Panel {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Panel{
		endpoint: bridge.NewEndpoint("panel", t,
			bridge.WithLogger(opts.Logger),
			bridge.WithMetrics(opts.Metrics),
		),
		channel:  channel,
		props:    viewprop.NewStore(opts.OnChange),
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		order:    section.NewOrderState(nil, nil),
		expanded: make(map[string]bool),
	}
}

// Endpoint returns the panel side of the bridge.
func (p *Panel) Endpoint() *bridge.Endpoint {
	return p.endpoint
}

// Mount fetches the sections from the host, registers the panel on the
// view-prop channel and boots every section worker. It returns once each
// worker has received its initial view, or failed to.
func (p *Panel) Mount(ctx context.Context) error {
	raw, err := p.endpoint.PostMessage(ctx, bridge.NewMessage("dddot.getSections", nil))
	if err != nil {
		return fmt.Errorf("panel: get sections: %w", err)
	}
	var boot Boot
	if err := json.Unmarshal(raw, &boot); err != nil {
		return fmt.Errorf("panel: decode sections: %w", err)
	}

	p.mu.Lock()
	p.order = section.NewOrderState(boot.Sections, boot.DefaultOrder)
	for _, d := range p.order.Sections() {
		p.expanded[d.Key] = true
	}
	p.mounted = true
	p.reg = p.channel.Register(p.props.Set)
	keys := p.order.Keys()
	p.mu.Unlock()

	var g errgroup.Group
	for _, key := range keys {
		g.Go(func() error { return p.boot(ctx, key) })
	}
	return g.Wait()
}

// boot runs the worker contract of one section: subscribe to refresh first
// so no update is missed, then request the initial view.
func (p *Panel) boot(ctx context.Context, key string) error {
	sub := p.endpoint.OnMessage(key+".refresh", func(_ context.Context, msg bridge.Message) {
		links, ok := msg.Field(LinksProp)
		if !ok {
			return
		}
		p.push(key, LinksProp, links)
	})

	p.mu.Lock()
	if !p.mounted {
		p.mu.Unlock()
		sub.Unsubscribe()
		return nil
	}
	p.subs = append(p.subs, sub)
	p.mu.Unlock()

	res, err := p.endpoint.PostMessage(ctx, bridge.NewMessage(key+".onReady", nil))
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.logger.Warn("panel: section boot failed", slog.String("section", key), slog.String("error", err.Error()))
		return nil
	}
	p.push(key, LinksProp, res)
	return nil
}

// push applies a value only while this panel holds the live registration.
// Replies and events that arrive after Unmount, or after a later panel took
// over the channel, are dropped.
func (p *Panel) push(key, name string, value json.RawMessage) {
	p.mu.Lock()
	reg := p.reg
	if !p.mounted {
		reg = nil
	}
	p.mu.Unlock()

	applied := reg != nil && reg.Push(key, name, value)
	p.metrics.Push(key, applied)
	if !applied {
		p.logger.Debug("panel: push dropped", slog.String("section", key))
	}
}

// Unmount unregisters the panel and drops its subscriptions. Updates that
// arrive afterwards are discarded. A panel that already lost the channel to
// a later one leaves that panel registered.
func (p *Panel) Unmount() {
	p.mu.Lock()
	reg := p.reg
	subs := p.subs
	p.reg = nil
	p.subs = nil
	p.mounted = false
	p.mu.Unlock()

	if reg != nil {
		reg.Unregister()
	}

	for _, s := range subs {
		s.Unsubscribe()
	}
}

// Close unmounts the panel and closes its endpoint.
func (p *Panel) Close() error {
	p.Unmount()
	return p.endpoint.Close()
}

// Sections returns the sections in display order.
func (p *Panel) Sections() []section.Descriptor {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.order.Sections()
}

// Props returns the view props of a section.
func (p *Panel) Props(key string) viewprop.Props {
	return p.props.Section(key)
}

// Links decodes the links prop of a section. A section without links yet
// yields an empty list.
func (p *Panel) Links(key string) ([]render.LinkView, error) {
	v, ok := p.props.Get(key, LinksProp)
	if !ok {
		return nil, nil
	}
	raw, ok := v.(json.RawMessage)
	if !ok {
		return nil, fmt.Errorf("panel: %s links: unexpected %T", key, v)
	}
	var links []render.LinkView
	if err := json.Unmarshal(raw, &links); err != nil {
		return nil, fmt.Errorf("panel: %s links: %w", key, err)
	}
	return links, nil
}

// BeginDrag starts dragging the section at index.
func (p *Panel) BeginDrag(index int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	item, ok := p.order.BeginDrag(index)
	if !ok {
		return false
	}
	p.drag = &item
	return true
}

// Hover moves the pointer over the section at hoverIndex during a drag and
// reports whether the sections were swapped.
func (p *Panel) Hover(hoverIndex int, pointerY float64, bounds section.Rect) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.drag == nil {
		return false
	}
	return p.order.HoverItem(p.drag, hoverIndex, pointerY, bounds)
}

// EndDrag finishes the drag and reports a changed order to the host.
func (p *Panel) EndDrag(ctx context.Context) error {
	p.mu.Lock()
	p.order.EndDrag()
	p.drag = nil
	changed := p.order.Changed()
	keys := p.order.Keys()
	p.mu.Unlock()

	if !changed {
		return nil
	}
	msg := bridge.NewMessage("dddot.onSectionOrderChanged", map[string]any{"order": keys})
	if _, err := p.endpoint.PostMessage(ctx, msg); err != nil {
		return fmt.Errorf("panel: report order: %w", err)
	}
	p.mu.Lock()
	p.order.Reset()
	p.mu.Unlock()
	return nil
}

// ToggleExpanded flips whether a section's content is shown and returns the
// new state.
func (p *Panel) ToggleExpanded(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expanded[key] = !p.expanded[key]
	return p.expanded[key]
}

// Expanded reports whether a section's content is shown.
func (p *Panel) Expanded(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.expanded[key]
}

// Click posts a link or button message to the host and returns its result.
func (p *Panel) Click(ctx context.Context, msg bridge.Message) (json.RawMessage, error) {
	res, err := p.endpoint.PostMessage(ctx, msg)
	if err != nil && !errors.Is(err, context.Canceled) {
		p.logger.Warn("panel: click failed", slog.String("type", msg.Type), slog.String("error", err.Error()))
	}
	return res, err
}
