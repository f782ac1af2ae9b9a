package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/starford/tagshelf/internal/attachment"
	"github.com/starford/tagshelf/internal/catalog"
	"github.com/starford/tagshelf/internal/index"
	"github.com/starford/tagshelf/internal/logging"
	"github.com/starford/tagshelf/internal/storage"
)

var errConfigRequired = errors.New("config is required")

func (a *application) log(f *os.File) *slog.Logger {
	if a.logger != nil {
		return a.logger
	}
	return logging.New(f, a.config.App.LogFormat, a.config.App.LogLevel)
}

// Build reads the notes directory once and materializes the catalog as
// JSON artifacts, optionally mirroring it into the SQLite index.
func Build(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.log(os.Stdout)
	start := time.Now()

	logger.Info("Build starting",
		slog.String("notes_path", cfg.Notes.Path),
		slog.String("data_path", cfg.Output.DataPath),
		slog.String("assets_path", cfg.Output.AssetsPath),
		slog.String("index_path", cfg.Output.IndexPath))

	notes, err := storage.NewFS(cfg.Notes.Path)
	if err != nil {
		return fmt.Errorf("open notes dir: %w", err)
	}
	out, err := storage.EnsureFS(cfg.Output.DataPath)
	if err != nil {
		return fmt.Errorf("open data dir: %w", err)
	}
	if cfg.Output.AssetsPath != "" {
		if err := os.MkdirAll(cfg.Output.AssetsPath, 0o755); err != nil {
			return fmt.Errorf("create assets dir: %w", err)
		}
	}

	resolver := attachment.NewResolver(cfg.Notes.Path, cfg.Output.PublicPrefix)
	builder := catalog.NewBuilder(notes, resolver, cfg.Build.Options(cfg.Output.AssetsPath), logger)

	cat, err := builder.Collect(ctx)
	if err != nil {
		return fmt.Errorf("collect: %w", err)
	}
	if err := catalog.WriteJSON(ctx, out, cat, logger); err != nil {
		return fmt.Errorf("write artifacts: %w", err)
	}

	if cfg.Output.IndexPath != "" {
		db, err := index.Open(cfg.Output.IndexPath)
		if err != nil {
			return fmt.Errorf("open index: %w", err)
		}
		defer db.Close()
		if err := db.ReplaceCatalog(ctx, cat); err != nil {
			return fmt.Errorf("write index: %w", err)
		}
	}

	mismatches := 0
	for _, c := range cat.VerifyCounts() {
		if !c.Match {
			mismatches++
			logger.Warn("folder count mismatch",
				slog.String("path", c.Path),
				slog.Int("unique", c.TotalUniqueFiles),
				slog.Int("bundle", c.BundleSize))
		}
	}

	logger.Info("Build finished",
		slog.Int("notes", len(cat.Notes)),
		slog.Int("folders", len(cat.Tree.Paths())),
		slog.Int("count_mismatches", mismatches),
		logging.Since(start))
	return nil
}
