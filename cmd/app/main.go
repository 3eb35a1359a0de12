package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v3"

	"github.com/starford/dddot/internal"
	pkgconfig "github.com/starford/dddot/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(afero.NewOsFs(), cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.RunMCP(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("mcp run error: %w", err)
	}
	return nil
}

func runPanel(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if token := cmd.String("token"); token != "" {
		cfg.Auth.Token = token
	}
	opts := []internal.Option{
		internal.WithConfig(cfg),
		internal.WithRemote(cmd.String("url")),
		internal.WithLogOutput(os.Stderr),
	}
	if err := internal.RunPanel(ctx, opts...); err != nil {
		return fmt.Errorf("panel run error: %w", err)
	}
	return nil
}

func main() {
	cmd := &cli.Command{
		Name:   "dddot",
		Usage:  "Side panel of recent notes, shortcuts and backlinks for a Markdown vault",
		Action: serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the host and its HTTP gateway",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the panel over MCP on stdio",
				Action: serveMCP,
			},
			{
				Name:   "panel",
				Usage:  "Run a headless panel against a running host and print its sections",
				Action: runPanel,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "url",
						Usage:   "Base URL of the host",
						Value:   "http://localhost:8080",
						Sources: cli.EnvVars("DDDOT_URL"),
					},
					&cli.StringFlag{
						Name:    "token",
						Usage:   "Bearer token for the host",
						Sources: cli.EnvVars("DDDOT_TOKEN"),
					},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
