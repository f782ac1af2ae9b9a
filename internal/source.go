package internal

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/starford/tagshelf/internal/attachment"
	"github.com/starford/tagshelf/internal/catalog"
	"github.com/starford/tagshelf/internal/index"
	"github.com/starford/tagshelf/internal/query"
	"github.com/starford/tagshelf/internal/storage"
)

// source is the read side selected by query.mode.
type source struct {
	accessor query.Accessor
	// live is set only in live mode.
	live *query.Live
	// attachments is nil when no local attachment directory is configured.
	attachments *attachment.Resolver
	close       func() error
}

func openSource(ctx context.Context, cfg *Config, logger *slog.Logger) (*source, error) {
	src := &source{close: func() error { return nil }}
	if cfg.Output.AssetsPath != "" {
		src.attachments = attachment.NewResolver(cfg.Output.AssetsPath, cfg.Output.PublicPrefix)
	}

	switch cfg.Query.Mode {
	case ModeStatic:
		store, err := storage.NewFS(cfg.Output.DataPath)
		if err != nil {
			return nil, fmt.Errorf("open data dir: %w", err)
		}
		src.accessor = query.NewStatic(store)

	case ModeRemote:
		acc, err := query.NewRemote(cfg.Query.BaseURL, &http.Client{Timeout: 30 * time.Second})
		if err != nil {
			return nil, err
		}
		src.accessor = acc

	case ModeLive:
		notes, err := storage.NewFS(cfg.Notes.Path)
		if err != nil {
			return nil, fmt.Errorf("open notes dir: %w", err)
		}
		resolver := attachment.NewResolver(cfg.Notes.Path, cfg.Output.PublicPrefix)
		builder := catalog.NewBuilder(notes, resolver, cfg.Build.Options(""), logger)
		live := query.NewLive(builder, logger)
		if _, err := live.Refresh(ctx); err != nil {
			return nil, fmt.Errorf("initial build: %w", err)
		}
		src.accessor = live
		src.live = live
		src.attachments = resolver

	case ModeSQLite:
		db, err := index.Open(cfg.Output.IndexPath)
		if err != nil {
			return nil, fmt.Errorf("open index: %w", err)
		}
		src.accessor = query.NewSQLite(db)
		src.close = db.Close

	default:
		return nil, fmt.Errorf("unknown query mode %q", cfg.Query.Mode)
	}

	logger.Info("Query source opened", slog.String("mode", cfg.Query.Mode))
	return src, nil
}
