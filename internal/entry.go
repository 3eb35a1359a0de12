// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/dddot/internal/api"
	"github.com/starford/dddot/internal/host"
	"github.com/starford/dddot/internal/index"
	"github.com/starford/dddot/internal/metrics"
	"github.com/starford/dddot/internal/sse"
)

// Run starts the host: the vault index and watcher, the tools and the HTTP
// gateway panels connect to.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.newLogger()

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	c, err := app.openCore(logger)
	if err != nil {
		return err
	}
	defer c.Close()

	collector := metrics.NewCollector("dddot")

	// The SSE broker is the host side of the bridge.
	broker := sse.NewBroker(cfg.App.HTTP.KeepAlive)

	h, err := host.New(broker, c.settings, c.notes, host.Options{
		Tools:        cfg.Panel.Tools,
		DefaultOrder: cfg.Panel.DefaultOrder,
		Logger:       logger,
		Metrics:      collector,
	})
	if err != nil {
		return fmt.Errorf("init host: %w", err)
	}
	defer h.Close()

	if err := h.Start(ctx); err != nil {
		return fmt.Errorf("start host: %w", err)
	}

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Mount("/api", api.NewRouter(h, broker, c.notes, cfg.Auth.AuthEnabled(), cfg.Auth.Token))
	r.Handle("/metrics", collector.Handler())

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	g, gCtx := errgroup.WithContext(ctx)

	// Keep the index current and fan note changes out to the tools.
	g.Go(func() error {
		if err := index.Watch(gCtx, c.db, c.store, c.store.Root(), logger, c.notes.NotifyChange); err != nil {
			logger.Error("watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		// Event streams never finish on their own; closing the broker ends them.
		if err := broker.Close(); err != nil {
			logger.Error("broker close error", slog.String("error", err.Error()))
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group so the watcher stops with the server.
var errShutdown = errors.New("shutdown")
