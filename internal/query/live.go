package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/starford/tagshelf/internal/apperr"
	"github.com/starford/tagshelf/internal/catalog"
	"github.com/starford/tagshelf/internal/models"
)

// Live computes the catalog from the notes directory in memory.
// Refresh rescans the source; note content is always re-read on request.
type Live struct {
	builder *catalog.Builder
	logger  *slog.Logger

	mu  sync.RWMutex
	cat *catalog.Catalog

	refreshMu sync.Mutex
}

// NewLive creates a live accessor. The first query triggers a scan
// unless Refresh was called before.
func NewLive(builder *catalog.Builder, logger *slog.Logger) *Live {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Live{builder: builder, logger: logger}
}

// Refresh rescans the notes directory and swaps in the new catalog.
// The attachment-existence cache is cleared first so new folders are seen.
func (l *Live) Refresh(ctx context.Context) (*catalog.Catalog, error) {
	l.refreshMu.Lock()
	defer l.refreshMu.Unlock()

	l.builder.Resolver().ClearCache()
	c, err := l.builder.Collect(ctx)
	if err != nil {
		return nil, fmt.Errorf("query: rescan: %w", err)
	}
	l.mu.Lock()
	l.cat = c
	l.mu.Unlock()
	l.logger.Debug("live catalog refreshed", slog.Int("notes", len(c.Notes)))
	return c, nil
}

func (l *Live) current(ctx context.Context) (*catalog.Catalog, error) {
	l.mu.RLock()
	c := l.cat
	l.mu.RUnlock()
	if c != nil {
		return c, nil
	}
	return l.Refresh(ctx)
}

// FolderStructure implements Accessor.
func (l *Live) FolderStructure(ctx context.Context) (*models.FolderNode, error) {
	c, err := l.current(ctx)
	if err != nil {
		return nil, err
	}
	return c.Tree.Root, nil
}

// FilesForFolder implements Accessor.
func (l *Live) FilesForFolder(ctx context.Context, path string, page, limit int, tags []string) (models.FolderPage, error) {
	c, err := l.current(ctx)
	if err != nil {
		return models.FolderPage{}, err
	}
	return c.Page(path, page, limit, tags), nil
}

// FileContent re-reads a known note from the source directory. A note
// removed or unreadable since the last Refresh reports apperr.ErrNotFound.
func (l *Live) FileContent(ctx context.Context, key string) (*models.Note, error) {
	c, err := l.current(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := c.Notes[key]; !ok {
		return nil, fmt.Errorf("query: note %q: %w", key, apperr.ErrNotFound)
	}
	n, err := l.builder.Load(key)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, fmt.Errorf("query: note %q: %w", key, err)
		}
		return nil, fmt.Errorf("query: note %q unreadable: %w: %w", key, apperr.ErrNotFound, err)
	}
	return n, nil
}

// ListFiles implements Accessor.
func (l *Live) ListFiles(ctx context.Context, page, limit int) (models.FileList, error) {
	c, err := l.current(ctx)
	if err != nil {
		return models.FileList{}, err
	}
	return c.ListFiles(page, limit), nil
}

// VerifyFolderCounts implements Accessor.
func (l *Live) VerifyFolderCounts(ctx context.Context) ([]models.FolderCount, error) {
	c, err := l.current(ctx)
	if err != nil {
		return nil, err
	}
	return c.VerifyCounts(), nil
}
