package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/dddot/internal/host"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Settings backends.
const (
	SettingsBackendSQLite = "sqlite"
	SettingsBackendFile   = "file"
	SettingsBackendMemory = "memory"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Vault    VaultConfig       `yaml:"vault"`
	SQLite   SQLiteConfig      `yaml:"sqlite"`
	Settings SettingsConfig    `yaml:"settings"`
	Panel    PanelConfig       `yaml:"panel"`
	Auth     AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Vault.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Settings.Validate(); err != nil {
		return err
	}
	if err := c.Panel.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration. KeepAlive is the interval of
// the comment lines written to idle event streams.
type HTTPConfig struct {
	Port      int           `yaml:"port"`
	KeepAlive time.Duration `yaml:"keep_alive"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.KeepAlive, validation.Required, validation.Min(100*time.Millisecond)),
	)
}

// VaultConfig holds the path to the Markdown vault directory.
type VaultConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// SettingsConfig selects where tools persist their settings.
// Path is the database file for "sqlite" and the JSON document for "file".
type SettingsConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// Validate validates the settings configuration.
func (c *SettingsConfig) Validate() error {
	if c.Backend == "" {
		c.Backend = SettingsBackendSQLite
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.Required,
			validation.In(SettingsBackendSQLite, SettingsBackendFile, SettingsBackendMemory)),
		validation.Field(&c.Path, validation.When(c.Backend != SettingsBackendMemory, validation.Required)),
	)
}

// PanelConfig controls which tools the side panel shows.
//
// Tools lists the enabled tool keys; empty enables every known tool.
// DefaultOrder is the section order used until the user reorders the panel.
type PanelConfig struct {
	Tools        []string `yaml:"tools"`
	DefaultOrder []string `yaml:"default_order"`
}

// Validate validates the panel configuration.
func (c *PanelConfig) Validate() error {
	known := make([]any, 0, len(host.Registry))
	for _, entry := range host.Registry {
		known = append(known, entry.Key)
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Tools, validation.Each(validation.In(known...))),
		validation.Field(&c.DefaultOrder, validation.Each(validation.In(known...))),
	); err != nil {
		return err
	}
	for i, key := range c.DefaultOrder {
		if slices.Contains(c.DefaultOrder[:i], key) {
			return fmt.Errorf("panel: default_order lists %q twice", key)
		}
	}
	return nil
}

// ErrMissingToken is returned when token auth is configured without a token.
var ErrMissingToken = errors.New("token is empty")

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but %w", AuthModeToken, ErrMissingToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port:      8080,
				KeepAlive: 15 * time.Second,
			},
		},
		Vault: VaultConfig{
			Path: "./vault",
		},
		SQLite: SQLiteConfig{
			Path: "./dddot.db",
		},
		Settings: SettingsConfig{
			Backend: SettingsBackendSQLite,
			Path:    "./dddot-settings.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
