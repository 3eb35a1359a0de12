package internal

import (
	"io"

	"github.com/spf13/afero"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config    *Config
	logOutput io.Writer
	fs        afero.Fs
	remoteURL string
	out       io.Writer
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithLogOutput sets where the JSON logger writes. The MCP runner keeps
// stdout for the protocol, so it logs to stderr.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.logOutput = w
	}
}

// WithFs sets the filesystem the file settings backend uses.
func WithFs(fs afero.Fs) Option {
	return func(a *application) {
		a.fs = fs
	}
}

// WithRemote sets the base URL of the host a headless panel connects to.
func WithRemote(url string) Option {
	return func(a *application) {
		a.remoteURL = url
	}
}

// WithOutput sets where the headless panel prints section snapshots.
func WithOutput(w io.Writer) Option {
	return func(a *application) {
		a.out = w
	}
}
