package catalog

import (
	"slices"

	"github.com/starford/tagshelf/internal/models"
)

// DefaultPageSize applies when a caller passes a non-positive limit.
const DefaultPageSize = 20

// Paginate returns the 1-based page of items, the total and whether a
// further page has items. Out-of-range pages are empty.
func Paginate[T any](items []T, page, limit int) ([]T, int, bool) {
	page, limit = NormalizePage(page, limit)
	total := len(items)
	if page-1 > total/limit {
		return []T{}, total, false
	}
	start := (page - 1) * limit
	if start >= total {
		return []T{}, total, false
	}
	end := min(start+limit, total)
	return items[start:end], total, end < total
}

// NormalizePage clamps page to at least 1 and replaces a non-positive
// limit with DefaultPageSize.
func NormalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	return page, limit
}

// PageOf filters entries by tags and slices the requested page.
func PageOf(entries []models.FileEntry, page, limit int, tags []string) models.FolderPage {
	files, total, more := Paginate(FilterByTags(entries, tags), page, limit)
	return models.FolderPage{Files: files, Total: total, HasMore: more}
}

// FileListOf slices a page of note keys.
func FileListOf(keys []string, page, limit int) models.FileList {
	files, total, more := Paginate(keys, page, limit)
	return models.FileList{Files: files, Total: total, HasMore: more}
}

// EmptyPage is the result for unknown folders.
func EmptyPage() models.FolderPage {
	return models.FolderPage{Files: []models.FileEntry{}}
}

// FilterByTags keeps entries having at least one leaf tag in tags.
// An empty tags list keeps everything.
func FilterByTags(entries []models.FileEntry, tags []string) []models.FileEntry {
	if len(tags) == 0 {
		return entries
	}
	out := make([]models.FileEntry, 0, len(entries))
	for _, e := range entries {
		for _, leaf := range e.Metadata.LeafTags() {
			if slices.Contains(tags, leaf) {
				out = append(out, e)
				break
			}
		}
	}
	return out
}
