// Package catalog materializes the tag hierarchy into per-folder bundles:
// every note reachable from a folder, joined with its metadata and previews,
// deduplicated and sorted by display title.
package catalog

import (
	"bytes"
	"log/slog"
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/starford/tagshelf/internal/hierarchy"
	"github.com/starford/tagshelf/internal/models"
)

// Catalog is the fully materialized state of one build.
type Catalog struct {
	Tree  *hierarchy.Tree
	Notes map[string]*models.Note

	bundles map[string][]models.FileEntry
}

// New joins notes onto tree and precomputes the bundle of every folder.
func New(tree *hierarchy.Tree, notes map[string]*models.Note, logger *slog.Logger) *Catalog {
	c := &Catalog{
		Tree:    tree,
		Notes:   notes,
		bundles: make(map[string][]models.FileEntry),
	}
	lookup := func(key string) (models.FileEntry, bool) {
		n, ok := notes[key]
		if !ok {
			return models.FileEntry{}, false
		}
		return n.Entry(), true
	}
	for _, p := range tree.Paths() {
		node, _ := tree.Find(p)
		c.bundles[p] = JoinFiles(p, hierarchy.CollectFiles(node), lookup, logger)
	}
	return c
}

// Bundle returns the sorted entries for a folder path.
func (c *Catalog) Bundle(path string) ([]models.FileEntry, bool) {
	b, ok := c.bundles[path]
	return b, ok
}

// Page slices a folder bundle. Unknown folders yield an empty page.
func (c *Catalog) Page(path string, page, limit int, tags []string) models.FolderPage {
	b, ok := c.bundles[path]
	if !ok {
		return EmptyPage()
	}
	return PageOf(b, page, limit, tags)
}

// ListFiles pages through every note key in key order.
func (c *Catalog) ListFiles(page, limit int) models.FileList {
	keys := make([]string, 0, len(c.Notes))
	for k := range c.Notes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return FileListOf(keys, page, limit)
}

// VerifyCounts compares each folder's computed count with its bundle size.
func (c *Catalog) VerifyCounts() []models.FolderCount {
	out := make([]models.FolderCount, 0, len(c.bundles))
	for _, p := range c.Tree.Paths() {
		node, _ := c.Tree.Find(p)
		out = append(out, CountOf(node, len(c.bundles[p])))
	}
	return out
}

// CountOf builds a verification row.
func CountOf(node *models.FolderNode, bundleSize int) models.FolderCount {
	return models.FolderCount{
		Path:             node.Path,
		TotalUniqueFiles: node.TotalUniqueFiles,
		BundleSize:       bundleSize,
		Match:            node.TotalUniqueFiles == bundleSize,
	}
}

// JoinFiles resolves every key through lookup and sorts the result.
// Keys with no record get a default entry titled with the key.
func JoinFiles(path string, keys []string, lookup func(string) (models.FileEntry, bool), logger *slog.Logger) []models.FileEntry {
	entries := make([]models.FileEntry, 0, len(keys))
	for _, k := range keys {
		e, ok := lookup(k)
		if !ok {
			if logger != nil {
				logger.Warn("missing metadata for file",
					slog.String("file", k),
					slog.String("folder", path))
			}
			e = models.FileEntry{
				File:             k,
				Metadata:         models.DefaultMetadata(k),
				ImageAttachments: []string{},
			}
		}
		entries = append(entries, e)
	}
	SortEntries(entries)
	return entries
}

// SortEntries orders entries by display title, case-insensitively and
// language aware. Equal titles keep their input order.
func SortEntries(entries []models.FileEntry) {
	col := collate.New(language.Und, collate.IgnoreCase)
	var buf collate.Buffer
	keys := make([][]byte, len(entries))
	for i := range entries {
		keys[i] = col.KeyFromString(&buf, entries[i].DisplayTitle())
	}
	idx := make([]int, len(entries))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return bytes.Compare(keys[idx[a]], keys[idx[b]]) < 0
	})
	sorted := make([]models.FileEntry, len(entries))
	for i, j := range idx {
		sorted[i] = entries[j]
	}
	copy(entries, sorted)
}
