// Package parser extracts note metadata from exported HTML and converts
// Markdown notes into the same HTML-plus-metadata shape.
//
// Extraction is pattern based and tolerant: malformed or missing fields
// degrade to empty strings and nothing here returns an error for bad markup.
package parser

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/starford/tagshelf/internal/models"
)

var (
	titleRe = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	metaRe  = regexp.MustCompile(`(?i)<meta\s+name=["']([^"']+)["']\s+content=["']([^"']*)["']`)
)

// Meta names with a dedicated field. Everything else lands in Metadata.Extra.
const (
	metaCreated    = "created"
	metaModified   = "modified"
	metaTags       = "tags"
	metaUniqueID   = "bear-note-unique-identifier"
	metaLastDevice = "last device"
	metaTitle      = "title"
)

var (
	htmlExts     = map[string]bool{".html": true, ".htm": true}
	markdownExts = map[string]bool{".md": true, ".markdown": true}
)

// Result is a parsed note.
type Result struct {
	Metadata models.Metadata
	// HTML is the note's markup; for Markdown notes, the rendered document.
	HTML string
}

// IsNoteFile reports whether name has a note extension.
func IsNoteFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return htmlExts[ext] || markdownExts[ext]
}

// IsMarkdown reports whether name is a Markdown note.
func IsMarkdown(name string) bool {
	return markdownExts[strings.ToLower(filepath.Ext(name))]
}

// NoteBase strips a note extension from key. Keys without one are returned as is,
// so "My.Trip.html" becomes "My.Trip" and "My.Trip" stays untouched.
func NoteBase(key string) string {
	if IsNoteFile(key) {
		return strings.TrimSuffix(key, filepath.Ext(key))
	}
	return key
}

// Parse dispatches on the key's extension.
func Parse(key string, src []byte) (*Result, error) {
	if IsMarkdown(key) {
		return ParseMarkdown(src)
	}
	return &Result{Metadata: ExtractMetadata(string(src)), HTML: string(src)}, nil
}

// ExtractMetadata reads the first <title> and every <meta name=".." content=".."> pair.
// A title meta pair replaces the <title> text.
func ExtractMetadata(markup string) models.Metadata {
	var md models.Metadata

	if m := titleRe.FindStringSubmatch(markup); m != nil {
		md.Title = strings.TrimSpace(m[1])
	}

	for _, m := range metaRe.FindAllStringSubmatch(markup, -1) {
		name := strings.ToLower(m[1])
		content := m[2]
		switch name {
		case metaCreated:
			md.Created = content
		case metaModified:
			md.Modified = content
		case metaTags:
			md.Tags = content
		case metaUniqueID:
			md.UniqueID = content
		case metaLastDevice:
			md.LastDevice = content
		case metaTitle:
			md.Title = content
		default:
			if md.Extra == nil {
				md.Extra = make(map[string]string)
			}
			md.Extra[name] = content
		}
	}
	return md
}
