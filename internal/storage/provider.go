// Package storage is the file-system abstraction shared by the note source
// and the artifact output directory.
package storage

import "time"

// FileInfo describes one regular file directly inside a listed directory.
type FileInfo struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// Provider is the interface for rooted file operations. Paths are relative to the root.
type Provider interface {
	// Root returns the absolute root directory.
	Root() string
	// List returns the regular files directly inside dir, sorted by name.
	List(dir string) ([]FileInfo, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path, creating parent directories.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
}
