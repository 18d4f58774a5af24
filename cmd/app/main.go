package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/norandom/blogd/internal"
	pkgconfig "github.com/norandom/blogd/pkg/config"
	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"
)

func run(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	switch _, err := os.Stat(configPath); {
	case err == nil:
		if err := pkgconfig.Load(configPath, cfg); err != nil {
			return fmt.Errorf("failed to parse config: %w", err)
		}
	case cmd.IsSet("config"):
		return fmt.Errorf("config file not found: %s", configPath)
	default:
		// No config file at the default location: run on defaults.
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("default config invalid: %w", err)
		}
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
	}
	if cmd.Bool("mcp") {
		opts = append(opts, internal.WithMCPMode(true))
	}

	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

func main() {
	cmd := &cli.Command{
		Name:   "blogd",
		Usage:  "Multi-tenant blog content engine with frontmatter ingestion, full-text search, and a read-only REST API",
		Action: run,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("BLOGD_CONFIG_FILE"),
			},
			&cli.BoolFlag{
				Name:    "mcp",
				Usage:   "Serve MCP tools on stdio instead of the HTTP API",
				Sources: cli.EnvVars("BLOGD_MCP"),
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
