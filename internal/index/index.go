package index

import (
	"context"

	"github.com/starford/tagshelf/internal/catalog"
	"github.com/starford/tagshelf/internal/models"
)

// CatalogIndex is the read/write surface of a stored catalog.
// Consumers should depend on this interface rather than the concrete *DB type.
type CatalogIndex interface {
	ReplaceCatalog(ctx context.Context, c *catalog.Catalog) error
	FolderStructure(ctx context.Context) (*models.FolderNode, error)
	FilesForFolder(ctx context.Context, path string, page, limit int, tags []string) (models.FolderPage, error)
	FileContent(ctx context.Context, key string) (*models.Note, error)
	ListFiles(ctx context.Context, page, limit int) (models.FileList, error)
	VerifyCounts(ctx context.Context) ([]models.FolderCount, error)
	Close() error
}

// Verify *DB satisfies CatalogIndex at compile time.
var _ CatalogIndex = (*DB)(nil)
