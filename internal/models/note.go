// Package models defines the domain types shared by the build and query sides.
package models

import (
	"encoding/json"
	"strings"
)

// Note is a single note as materialized for reading: metadata, attachment
// previews, the markup rewritten for serving and the untouched original.
type Note struct {
	File             string   `json:"file"`
	Metadata         Metadata `json:"metadata"`
	HasAttachments   bool     `json:"hasAttachments"`
	ImageAttachments []string `json:"imageAttachments"`
	Content          string   `json:"content"`
	RawHTML          string   `json:"rawHtml"`
	Checksum         string   `json:"checksum"`
}

// Entry returns the listing view of the note.
func (n *Note) Entry() FileEntry {
	return FileEntry{
		File:             n.File,
		Metadata:         n.Metadata,
		HasAttachments:   n.HasAttachments,
		ImageAttachments: nonNil(n.ImageAttachments),
	}
}

// FileEntry is one row of a folder listing.
type FileEntry struct {
	File             string   `json:"file"`
	Metadata         Metadata `json:"metadata"`
	HasAttachments   bool     `json:"hasAttachments"`
	ImageAttachments []string `json:"imageAttachments"`
}

// DisplayTitle is the sort key for listings: the title, else the file name.
func (e *FileEntry) DisplayTitle() string {
	if e.Metadata.Title != "" {
		return e.Metadata.Title
	}
	return e.File
}

// FolderPage is a slice of a folder bundle.
type FolderPage struct {
	Files   []FileEntry `json:"files"`
	Total   int         `json:"total"`
	HasMore bool        `json:"hasMore"`
}

// FileList is a page of note keys.
type FileList struct {
	Files   []string `json:"files"`
	Total   int      `json:"total"`
	HasMore bool     `json:"hasMore"`
}

// FolderNode is one virtual folder of the tag hierarchy.
type FolderNode struct {
	Name             string                 `json:"name"`
	Path             string                 `json:"path"`
	Children         map[string]*FolderNode `json:"children"`
	Files            []string               `json:"files"`
	TotalUniqueFiles int                    `json:"totalUniqueFiles"`
}

// NewFolderNode returns an empty node with non-nil collections.
func NewFolderNode(name, path string) *FolderNode {
	return &FolderNode{
		Name:     name,
		Path:     path,
		Children: make(map[string]*FolderNode),
		Files:    []string{},
	}
}

// FolderCount compares a node's computed count with the size of its bundle.
type FolderCount struct {
	Path             string `json:"path"`
	TotalUniqueFiles int    `json:"totalUniqueFiles"`
	BundleSize       int    `json:"bundleSize"`
	Match            bool   `json:"match"`
}

// Known metadata keys as they appear in serialized form.
const (
	KeyTitle      = "title"
	KeyCreated    = "created"
	KeyModified   = "modified"
	KeyTags       = "tags"
	KeyUniqueID   = "uniqueId"
	KeyLastDevice = "lastDevice"
)

// Metadata holds the well-known note fields plus any unrecognized
// name/value pairs found alongside them. It serializes as a flat object.
type Metadata struct {
	Title      string
	Created    string
	Modified   string
	Tags       string
	UniqueID   string
	LastDevice string
	Extra      map[string]string
}

// DefaultMetadata is the record used when a note's metadata is unavailable.
func DefaultMetadata(file string) Metadata {
	return Metadata{Title: file}
}

// TagPaths splits the raw tags string into its tag paths. Blank entries are dropped.
func (m Metadata) TagPaths() []string {
	if strings.TrimSpace(m.Tags) == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(m.Tags, ", ") {
		if strings.TrimSpace(p) == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

// LeafTags returns the last segment of every tag path.
func (m Metadata) LeafTags() []string {
	paths := m.TagPaths()
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		parts := strings.Split(p, "/")
		out = append(out, parts[len(parts)-1])
	}
	return out
}

// MarshalJSON flattens Extra next to the known fields. Known fields win on collision.
func (m Metadata) MarshalJSON() ([]byte, error) {
	flat := make(map[string]string, 6+len(m.Extra))
	for k, v := range m.Extra {
		flat[k] = v
	}
	flat[KeyTitle] = m.Title
	flat[KeyCreated] = m.Created
	flat[KeyModified] = m.Modified
	flat[KeyTags] = m.Tags
	flat[KeyUniqueID] = m.UniqueID
	flat[KeyLastDevice] = m.LastDevice
	return json.Marshal(flat)
}

// UnmarshalJSON reverses MarshalJSON.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	var flat map[string]string
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}
	*m = Metadata{}
	for k, v := range flat {
		switch k {
		case KeyTitle:
			m.Title = v
		case KeyCreated:
			m.Created = v
		case KeyModified:
			m.Modified = v
		case KeyTags:
			m.Tags = v
		case KeyUniqueID:
			m.UniqueID = v
		case KeyLastDevice:
			m.LastDevice = v
		default:
			if m.Extra == nil {
				m.Extra = make(map[string]string)
			}
			m.Extra[k] = v
		}
	}
	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
