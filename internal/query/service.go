package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/starford/tagshelf/internal/apperr"
	"github.com/starford/tagshelf/internal/catalog"
	"github.com/starford/tagshelf/internal/models"
)

// Service fronts an Accessor for the HTTP and MCP surfaces: it applies the
// configured page size and normalizes folder paths and note keys.
type Service struct {
	acc      Accessor
	pageSize int
}

// NewService wraps acc. A non-positive pageSize means catalog.DefaultPageSize.
func NewService(acc Accessor, pageSize int) *Service {
	if pageSize < 1 {
		pageSize = catalog.DefaultPageSize
	}
	return &Service{acc: acc, pageSize: pageSize}
}

// PageSize is the limit applied when a caller passes none.
func (s *Service) PageSize() int { return s.pageSize }

// FolderStructure implements Accessor.
func (s *Service) FolderStructure(ctx context.Context) (*models.FolderNode, error) {
	return s.acc.FolderStructure(ctx)
}

// FilesForFolder implements Accessor. Leading and trailing slashes are
// ignored, so "/A/B/" names the same folder as "A/B".
func (s *Service) FilesForFolder(ctx context.Context, path string, page, limit int, tags []string) (models.FolderPage, error) {
	if limit < 1 {
		limit = s.pageSize
	}
	return s.acc.FilesForFolder(ctx, strings.Trim(path, "/"), page, limit, compact(tags))
}

// FileContent implements Accessor.
func (s *Service) FileContent(ctx context.Context, key string) (*models.Note, error) {
	if strings.TrimSpace(key) == "" {
		return nil, fmt.Errorf("query: empty note key: %w", apperr.ErrNotFound)
	}
	return s.acc.FileContent(ctx, key)
}

// ListFiles implements Accessor.
func (s *Service) ListFiles(ctx context.Context, page, limit int) (models.FileList, error) {
	if limit < 1 {
		limit = s.pageSize
	}
	return s.acc.ListFiles(ctx, page, limit)
}

// VerifyFolderCounts implements Accessor.
func (s *Service) VerifyFolderCounts(ctx context.Context) ([]models.FolderCount, error) {
	return s.acc.VerifyFolderCounts(ctx)
}

func compact(tags []string) []string {
	var out []string
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
