package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"

	"github.com/starford/tagshelf/internal/apperr"
	"github.com/starford/tagshelf/internal/models"
	"github.com/starford/tagshelf/internal/storage"
)

// Artifact layout under the data directory.
const (
	StructureFile = "folder-structure.json"
	NotesDir      = "notes"
	FoldersDir    = "folders"
	rootBundle    = "root.json"
)

// NoteFile is the artifact holding a note's record.
func NoteFile(key string) string {
	return path.Join(NotesDir, url.PathEscape(key)+".json")
}

// FolderFile is the artifact holding a folder's full bundle.
func FolderFile(folderPath string) string {
	if folderPath == "" {
		return path.Join(FoldersDir, rootBundle)
	}
	return path.Join(FoldersDir, "folder-"+url.PathEscape(folderPath)+".json")
}

// WriteJSON serializes the catalog into out: the structure, one bundle per
// folder and one record per note. Artifacts left over from a previous
// build are removed.
func WriteJSON(ctx context.Context, out storage.Provider, c *Catalog, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if err := writeArtifact(out, StructureFile, c.Tree.Root); err != nil {
		return err
	}

	written := make(map[string]struct{}, len(c.Notes)+len(c.bundles))
	for _, p := range c.Tree.Paths() {
		if err := ctx.Err(); err != nil {
			return err
		}
		b, _ := c.Bundle(p)
		name := FolderFile(p)
		page := models.FolderPage{Files: b, Total: len(b)}
		if err := writeArtifact(out, name, page); err != nil {
			return err
		}
		written[name] = struct{}{}
		logger.Info("folder written", slog.String("path", p), slog.Int("files", len(b)))
	}
	for key, n := range c.Notes {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := NoteFile(key)
		if err := writeArtifact(out, name, n); err != nil {
			return err
		}
		written[name] = struct{}{}
	}

	removed, err := prune(out, written, NotesDir, FoldersDir)
	if err != nil {
		return err
	}
	logger.Info("artifacts written",
		slog.Int("folders", len(c.bundles)),
		slog.Int("notes", len(c.Notes)),
		slog.Int("stale_removed", removed))
	return nil
}

func writeArtifact(out storage.Provider, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("catalog: encode %s: %w", name, err)
	}
	if err := out.Write(name, data); err != nil {
		return fmt.Errorf("catalog: write %s: %w", name, err)
	}
	return nil
}

func prune(out storage.Provider, keep map[string]struct{}, dirs ...string) (int, error) {
	removed := 0
	for _, dir := range dirs {
		files, err := out.List(dir)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				continue
			}
			return removed, err
		}
		for _, f := range files {
			name := path.Join(dir, path.Base(f.Path))
			if _, ok := keep[name]; ok || !strings.HasSuffix(name, ".json") {
				continue
			}
			if err := out.Delete(name); err != nil && !errors.Is(err, apperr.ErrNotFound) {
				return removed, err
			}
			removed++
		}
	}
	return removed, nil
}

// ReadJSON loads an artifact written by WriteJSON.
func ReadJSON(src storage.Provider, name string, v any) error {
	data, err := src.Read(name)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("catalog: decode %s: %w: %w", name, apperr.ErrMalformedInput, err)
	}
	return nil
}
