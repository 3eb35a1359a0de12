package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/dddot/internal/bridge"
	"github.com/starford/dddot/internal/host"
	"github.com/starford/dddot/internal/index"
	"github.com/starford/dddot/internal/mcpserver"
	"github.com/starford/dddot/internal/panel"
	"github.com/starford/dddot/internal/viewprop"
)

// RunMCP serves the panel over MCP on stdin/stdout. Host and panel run in
// process, joined by an in-memory bridge.
func RunMCP(ctx context.Context, opts ...Option) error {
	opts = append([]Option{WithLogOutput(os.Stderr)}, opts...)
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.newLogger()

	c, err := app.openCore(logger)
	if err != nil {
		return err
	}
	defer c.Close()

	hostEnd, panelEnd := bridge.Pipe(64)
	h, err := host.New(hostEnd, c.settings, c.notes, host.Options{
		Tools:        cfg.Panel.Tools,
		DefaultOrder: cfg.Panel.DefaultOrder,
		Logger:       logger,
	})
	if err != nil {
		return fmt.Errorf("init host: %w", err)
	}
	defer h.Close()
	if err := h.Start(ctx); err != nil {
		return fmt.Errorf("start host: %w", err)
	}

	p := panel.New(panelEnd, viewprop.NewChannel(), panel.Options{Logger: logger})
	defer p.Close()

	mountCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := p.Mount(mountCtx); err != nil {
		return fmt.Errorf("mount panel: %w", err)
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := index.Watch(gCtx, c.db, c.store, c.store.Root(), logger, c.notes.NotifyChange); err != nil {
			logger.Error("watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("MCP server starting on stdio")
		if err := mcpserver.New(h, p, c.notes).ServeStdio(); err != nil {
			return fmt.Errorf("mcp server: %w", err)
		}
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		return err
	}
	return nil
}
