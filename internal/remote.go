package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/starford/dddot/internal/panel"
	"github.com/starford/dddot/internal/render"
	"github.com/starford/dddot/internal/sse"
	"github.com/starford/dddot/internal/viewprop"
)

// RunPanel runs a headless panel against a remote host and prints a snapshot
// of every section whose view props change.
func RunPanel(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	if app.remoteURL == "" {
		return fmt.Errorf("remote URL is required")
	}
	logger := app.newLogger()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := sse.Dial(ctx, app.remoteURL+"/api", app.config.Auth.Token, nil)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	changed := make(chan string, 16)
	p := panel.New(client, viewprop.NewChannel(), panel.Options{
		Logger: logger,
		OnChange: func(key string) {
			select {
			case changed <- key:
			default:
				logger.Warn("snapshot dropped", slog.String("section", key))
			}
		},
	})
	defer p.Close()

	mountCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := p.Mount(mountCtx); err != nil {
		return fmt.Errorf("mount panel: %w", err)
	}
	logger.Info("Panel mounted", slog.String("host", app.remoteURL))
	for _, d := range p.Sections() {
		app.printSection(p, d.Key)
	}

	for {
		select {
		case key := <-changed:
			app.printSection(p, key)
		case <-client.Done():
			return fmt.Errorf("host closed the event stream")
		case <-ctx.Done():
			p.Unmount()
			return nil
		}
	}
}

type sectionSnapshot struct {
	Section string            `json:"section"`
	Links   []render.LinkView `json:"links"`
}

func (a *application) printSection(p *panel.Panel, key string) {
	links, err := p.Links(key)
	if err != nil {
		slog.Warn("decode section", slog.String("section", key), slog.String("error", err.Error()))
		return
	}
	_ = json.NewEncoder(a.out).Encode(sectionSnapshot{Section: key, Links: links})
}
