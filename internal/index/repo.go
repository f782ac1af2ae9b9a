package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/starford/tagshelf/internal/apperr"
	"github.com/starford/tagshelf/internal/catalog"
	"github.com/starford/tagshelf/internal/hierarchy"
	"github.com/starford/tagshelf/internal/models"
)

const structureKey = "structure"

// ReplaceCatalog swaps the stored catalog for c within a single transaction.
func (db *DB) ReplaceCatalog(ctx context.Context, c *catalog.Catalog) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	for _, table := range []string{"notes", "note_tags", "folders", "folder_files", "meta"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("index: clear %s: %w", table, err)
		}
	}

	noteStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO notes (key, title, checksum, metadata, has_attachments, image_attachments, content, raw_html)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("index: prepare note insert: %w", err)
	}
	defer noteStmt.Close()
	tagStmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO note_tags (note_key, tag) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("index: prepare tag insert: %w", err)
	}
	defer tagStmt.Close()

	for key, n := range c.Notes {
		mdJSON, err := json.Marshal(n.Metadata)
		if err != nil {
			return fmt.Errorf("index: encode metadata %s: %w", key, err)
		}
		imgJSON, err := json.Marshal(nonNil(n.ImageAttachments))
		if err != nil {
			return fmt.Errorf("index: encode previews %s: %w", key, err)
		}
		if _, err := noteStmt.ExecContext(ctx, key, n.Metadata.Title, n.Checksum, string(mdJSON),
			n.HasAttachments, string(imgJSON), n.Content, n.RawHTML); err != nil {
			return fmt.Errorf("index: insert note %s: %w", key, err)
		}
		for _, tag := range n.Metadata.LeafTags() {
			if _, err := tagStmt.ExecContext(ctx, key, tag); err != nil {
				return fmt.Errorf("index: insert tag %s: %w", key, err)
			}
		}
	}

	folderStmt, err := tx.PrepareContext(ctx, `INSERT INTO folders (path, name, total_unique_files) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("index: prepare folder insert: %w", err)
	}
	defer folderStmt.Close()
	fileStmt, err := tx.PrepareContext(ctx, `INSERT INTO folder_files (folder_path, position, note_key) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("index: prepare folder file insert: %w", err)
	}
	defer fileStmt.Close()

	for _, p := range c.Tree.Paths() {
		node, err := c.Tree.Find(p)
		if err != nil {
			return err
		}
		if _, err := folderStmt.ExecContext(ctx, p, node.Name, node.TotalUniqueFiles); err != nil {
			return fmt.Errorf("index: insert folder %q: %w", p, err)
		}
		bundle, _ := c.Bundle(p)
		for i, e := range bundle {
			if _, err := fileStmt.ExecContext(ctx, p, i, e.File); err != nil {
				return fmt.Errorf("index: insert folder file %q: %w", p, err)
			}
		}
	}

	structure, err := json.Marshal(c.Tree.Root)
	if err != nil {
		return fmt.Errorf("index: encode structure: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO meta (key, value) VALUES (?, ?)`, structureKey, string(structure)); err != nil {
		return fmt.Errorf("index: store structure: %w", err)
	}

	return tx.Commit()
}

// FolderStructure returns the stored hierarchy root.
func (db *DB) FolderStructure(ctx context.Context) (*models.FolderNode, error) {
	var raw string
	err := db.conn.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, structureKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: no catalog stored: %w", apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("index: structure: %w", err)
	}
	var root models.FolderNode
	if err := json.Unmarshal([]byte(raw), &root); err != nil {
		return nil, fmt.Errorf("index: decode structure: %w: %w", apperr.ErrMalformedInput, err)
	}
	return &root, nil
}

// FilesForFolder returns one page of a folder bundle in stored order,
// optionally keeping only notes with one of the given leaf tags.
// An unknown folder yields an empty page.
func (db *DB) FilesForFolder(ctx context.Context, path string, page, limit int, tags []string) (models.FolderPage, error) {
	page, limit = catalog.NormalizePage(page, limit)

	where := `f.folder_path = ?`
	args := []any{path}
	if len(tags) > 0 {
		where += ` AND EXISTS (SELECT 1 FROM note_tags t WHERE t.note_key = f.note_key AND t.tag IN (` +
			placeholders(len(tags)) + `))`
		for _, t := range tags {
			args = append(args, t)
		}
	}

	var total int
	if err := db.conn.QueryRowContext(ctx,
		`SELECT count(*) FROM folder_files f WHERE `+where, args...).Scan(&total); err != nil {
		return models.FolderPage{}, fmt.Errorf("index: count folder: %w", err)
	}

	offset := (page - 1) * limit
	if offset >= total || page-1 > total/limit {
		return models.FolderPage{Files: []models.FileEntry{}, Total: total}, nil
	}

	rows, err := db.conn.QueryContext(ctx, `
		SELECT n.key, n.metadata, n.has_attachments, n.image_attachments
		FROM folder_files f JOIN notes n ON n.key = f.note_key
		WHERE `+where+`
		ORDER BY f.position
		LIMIT ? OFFSET ?`, append(args, limit, offset)...)
	if err != nil {
		return models.FolderPage{}, fmt.Errorf("index: folder files: %w", err)
	}
	defer rows.Close()

	files := []models.FileEntry{}
	for rows.Next() {
		var (
			e             models.FileEntry
			mdJSON, imgJS string
		)
		if err := rows.Scan(&e.File, &mdJSON, &e.HasAttachments, &imgJS); err != nil {
			return models.FolderPage{}, err
		}
		if err := decodeEntry(&e, mdJSON, imgJS); err != nil {
			return models.FolderPage{}, err
		}
		files = append(files, e)
	}
	if err := rows.Err(); err != nil {
		return models.FolderPage{}, err
	}
	return models.FolderPage{Files: files, Total: total, HasMore: offset+len(files) < total}, nil
}

// FileContent returns the full record for a note key.
func (db *DB) FileContent(ctx context.Context, key string) (*models.Note, error) {
	var (
		n             models.Note
		mdJSON, imgJS string
	)
	err := db.conn.QueryRowContext(ctx, `
		SELECT key, checksum, metadata, has_attachments, image_attachments, content, raw_html
		FROM notes WHERE key = ?`, key).
		Scan(&n.File, &n.Checksum, &mdJSON, &n.HasAttachments, &imgJS, &n.Content, &n.RawHTML)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: note %q: %w", key, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("index: get note: %w", err)
	}
	if err := json.Unmarshal([]byte(mdJSON), &n.Metadata); err != nil {
		return nil, fmt.Errorf("index: decode metadata %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(imgJS), &n.ImageAttachments); err != nil {
		return nil, fmt.Errorf("index: decode previews %s: %w", key, err)
	}
	n.ImageAttachments = nonNil(n.ImageAttachments)
	return &n, nil
}

// ListFiles pages through every stored note key in key order.
func (db *DB) ListFiles(ctx context.Context, page, limit int) (models.FileList, error) {
	page, limit = catalog.NormalizePage(page, limit)

	var total int
	if err := db.conn.QueryRowContext(ctx, `SELECT count(*) FROM notes`).Scan(&total); err != nil {
		return models.FileList{}, fmt.Errorf("index: count notes: %w", err)
	}
	offset := (page - 1) * limit
	if offset >= total || page-1 > total/limit {
		return models.FileList{Files: []string{}, Total: total}, nil
	}

	rows, err := db.conn.QueryContext(ctx, `SELECT key FROM notes ORDER BY key LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return models.FileList{}, fmt.Errorf("index: list notes: %w", err)
	}
	defer rows.Close()
	keys := []string{}
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return models.FileList{}, err
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return models.FileList{}, err
	}
	return models.FileList{Files: keys, Total: total, HasMore: offset+len(keys) < total}, nil
}

// VerifyCounts compares every folder's stored count with its bundle size.
// Rows follow the stored tree in pre-order, children by name.
func (db *DB) VerifyCounts(ctx context.Context) ([]models.FolderCount, error) {
	root, err := db.FolderStructure(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := db.conn.QueryContext(ctx,
		`SELECT folder_path, count(*) FROM folder_files GROUP BY folder_path`)
	if err != nil {
		return nil, fmt.Errorf("index: verify counts: %w", err)
	}
	defer rows.Close()
	sizes := make(map[string]int)
	for rows.Next() {
		var (
			path string
			n    int
		)
		if err := rows.Scan(&path, &n); err != nil {
			return nil, err
		}
		sizes[path] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	tree := hierarchy.FromRoot(root)
	paths := tree.Paths()
	out := make([]models.FolderCount, 0, len(paths))
	for _, p := range paths {
		node, err := tree.Find(p)
		if err != nil {
			return nil, err
		}
		out = append(out, catalog.CountOf(node, sizes[p]))
	}
	return out, nil
}

func decodeEntry(e *models.FileEntry, mdJSON, imgJSON string) error {
	if err := json.Unmarshal([]byte(mdJSON), &e.Metadata); err != nil {
		return fmt.Errorf("index: decode metadata %s: %w", e.File, err)
	}
	if err := json.Unmarshal([]byte(imgJSON), &e.ImageAttachments); err != nil {
		return fmt.Errorf("index: decode previews %s: %w", e.File, err)
	}
	e.ImageAttachments = nonNil(e.ImageAttachments)
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
