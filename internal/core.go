package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/afero"

	"github.com/starford/dddot/internal/index"
	"github.com/starford/dddot/internal/noteservice"
	"github.com/starford/dddot/internal/settings"
	"github.com/starford/dddot/internal/storage"
)

// newApplication applies opts and fills defaults.
func newApplication(opts []Option) (*application, error) {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if app.logOutput == nil {
		app.logOutput = os.Stdout
	}
	if app.fs == nil {
		app.fs = afero.NewOsFs()
	}
	if app.out == nil {
		app.out = os.Stdout
	}
	return app, nil
}

// newLogger builds the structured JSON logger and makes it the default.
func (a *application) newLogger() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(a.logOutput, &slog.HandlerOptions{
		Level: a.config.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// core is the host-side state shared by the serve and mcp runners.
type core struct {
	store    *storage.FS
	db       *index.DB
	notes    *noteservice.Service
	settings settings.Store
}

func (a *application) openCore(logger *slog.Logger) (*core, error) {
	cfg := a.config

	// Ensure vault directory exists.
	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create vault dir: %w", err)
	}

	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	if err := index.Sync(db, store, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	st, err := a.openSettings()
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init settings: %w", err)
	}
	logger.Info("Settings store opened",
		slog.String("backend", cfg.Settings.Backend),
		slog.String("path", cfg.Settings.Path))

	return &core{
		store:    store,
		db:       db,
		notes:    noteservice.NewService(store, db, logger),
		settings: st,
	}, nil
}

func (a *application) openSettings() (settings.Store, error) {
	cfg := a.config.Settings
	switch cfg.Backend {
	case SettingsBackendMemory:
		return settings.NewMemory(), nil
	case SettingsBackendFile:
		f, err := settings.OpenFile(a.fs, cfg.Path)
		if err != nil {
			return nil, err
		}
		return f, nil
	default:
		s, err := settings.OpenSQLite(cfg.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

func (c *core) Close() error {
	return errors.Join(c.settings.Close(), c.db.Close())
}
