package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/tagshelf/internal"
	pkgconfig "github.com/starford/tagshelf/pkg/config"
)

var version = "dev"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if _, err := pkgconfig.LoadOptional(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if mode := cmd.String("mode"); mode != "" {
		cfg.Query.Mode = mode
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid mode: %w", err)
		}
	}
	return cfg, nil
}

func action(fn func(context.Context, ...internal.Option) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		opts := []internal.Option{
			internal.WithConfig(cfg),
			internal.WithVersion(version),
		}
		if err := fn(ctx, opts...); err != nil {
			return fmt.Errorf("%s: %w", cmd.Name, err)
		}
		return nil
	}
}

func modeFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "mode",
		Aliases: []string{"m"},
		Usage:   "Query mode: static, remote, live or sqlite",
		Sources: cli.EnvVars("TAGSHELF_MODE"),
	}
}

func main() {
	cmd := &cli.Command{
		Name:    "tagshelf",
		Usage:   "Browse a flat directory of HTML notes as folders derived from their hierarchical tags",
		Version: version,
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
				Name:   "build",
				Usage:  "Materialize the catalog into JSON artifacts and copy attachments",
				Action: action(internal.Build),
			},
			{
				Name:   "serve",
				Usage:  "Serve the query API over HTTP",
				Flags:  []cli.Flag{modeFlag()},
				Action: action(internal.Serve),
			},
			{
				Name:   "mcp",
				Usage:  "Serve the query API as MCP tools over stdio",
				Flags:  []cli.Flag{modeFlag()},
				Action: action(internal.ServeMCP),
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
