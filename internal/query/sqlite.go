package query

import (
	"context"

	"github.com/starford/tagshelf/internal/index"
	"github.com/starford/tagshelf/internal/models"
)

// SQLite answers queries from a catalog stored by index.ReplaceCatalog.
type SQLite struct {
	db index.CatalogIndex
}

// NewSQLite wraps an opened index.
func NewSQLite(db index.CatalogIndex) *SQLite {
	return &SQLite{db: db}
}

// FolderStructure implements Accessor.
func (s *SQLite) FolderStructure(ctx context.Context) (*models.FolderNode, error) {
	return s.db.FolderStructure(ctx)
}

// FilesForFolder implements Accessor.
func (s *SQLite) FilesForFolder(ctx context.Context, path string, page, limit int, tags []string) (models.FolderPage, error) {
	return s.db.FilesForFolder(ctx, path, page, limit, tags)
}

// FileContent implements Accessor.
func (s *SQLite) FileContent(ctx context.Context, key string) (*models.Note, error) {
	return s.db.FileContent(ctx, key)
}

// ListFiles implements Accessor.
func (s *SQLite) ListFiles(ctx context.Context, page, limit int) (models.FileList, error) {
	return s.db.ListFiles(ctx, page, limit)
}

// VerifyFolderCounts implements Accessor.
func (s *SQLite) VerifyFolderCounts(ctx context.Context) ([]models.FolderCount, error) {
	return s.db.VerifyCounts(ctx)
}
