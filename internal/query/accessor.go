// Package query is the read side of the catalog. Every backend answers the
// same questions with the same results for the same data: the JSON
// artifacts on disk or over HTTP, a live scan of the notes directory, or
// the SQLite index.
package query

import (
	"context"

	"github.com/starford/tagshelf/internal/models"
)

// Accessor is the read-only catalog surface.
//
// FilesForFolder returns an empty page rather than an error for an unknown
// folder. FileContent reports apperr.ErrNotFound for an unknown note.
type Accessor interface {
	FolderStructure(ctx context.Context) (*models.FolderNode, error)
	FilesForFolder(ctx context.Context, path string, page, limit int, tags []string) (models.FolderPage, error)
	FileContent(ctx context.Context, key string) (*models.Note, error)
	ListFiles(ctx context.Context, page, limit int) (models.FileList, error)
	VerifyFolderCounts(ctx context.Context) ([]models.FolderCount, error)
}

var (
	_ Accessor = (*Artifacts)(nil)
	_ Accessor = (*Live)(nil)
	_ Accessor = (*SQLite)(nil)
	_ Accessor = (*Service)(nil)
)
