// Package testutil provides shared test helpers for building note source trees.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/tagshelf/internal/storage"
)

// NoteHTML renders a minimal exported note. Values are inserted verbatim.
func NoteHTML(title, tags, body string) string {
	return fmt.Sprintf(`<html><head><title>%s</title>
<meta name="tags" content="%s">
<meta name="created" content="2024-01-02T03:04:05Z">
</head><body>%s</body></html>`, title, tags, body)
}

// WriteFiles creates every file under root, making parent dirs as needed.
func WriteFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

// TestVault creates a temporary source directory holding files and returns
// it with a storage.Provider rooted there.
func TestVault(t *testing.T, files map[string]string) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	WriteFiles(t, dir, files)
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}
