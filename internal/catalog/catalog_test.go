package catalog

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/starford/tagshelf/internal/attachment"
	"github.com/starford/tagshelf/internal/hierarchy"
	"github.com/starford/tagshelf/internal/models"
	"github.com/starford/tagshelf/internal/parser"
	"github.com/starford/tagshelf/internal/storage"
	"github.com/starford/tagshelf/internal/testutil"
)

func collect(t *testing.T, files map[string]string, opts Options) (*Catalog, string) {
	t.Helper()
	dir, store := testutil.TestVault(t, files)
	b := NewBuilder(store, attachment.NewResolver(dir, ""), opts, nil)
	c, err := b.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return c, dir
}

func keysOf(entries []models.FileEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.File
	}
	return out
}

func TestCollect_Bundles(t *testing.T) {
	c, _ := collect(t, map[string]string{
		"a.html":    testutil.NoteHTML("Alpha", "A/B, A/C", "<p>a</p>"),
		"b.html":    testutil.NoteHTML("Beta", "A/B", "<p>b</p>"),
		"c.html":    testutil.NoteHTML("Gamma", "", "<p>c</p>"),
		"d.html":    testutil.NoteHTML("Delta", "Z", "<p>d</p>"),
		"notes.txt": "not a note",
	}, Options{})

	tests := []struct {
		path string
		want []string
	}{
		{"", []string{"a.html", "b.html", "d.html", "c.html"}},
		{"A", []string{"a.html", "b.html"}},
		{"A/B", []string{"a.html", "b.html"}},
		{"A/C", []string{"a.html"}},
		{"Z", []string{"d.html"}},
	}
	for _, tt := range tests {
		b, ok := c.Bundle(tt.path)
		if !ok {
			t.Errorf("Bundle(%q) missing", tt.path)
			continue
		}
		if got := keysOf(b); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Bundle(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
	if len(c.Notes) != 4 {
		t.Errorf("notes = %d, want 4", len(c.Notes))
	}
}

func TestCollect_CountsMatchBundles(t *testing.T) {
	c, _ := collect(t, map[string]string{
		"1.html": testutil.NoteHTML("One", "X, X/Y", ""),
		"2.html": testutil.NoteHTML("Two", "X/Y/Z", ""),
		"3.html": testutil.NoteHTML("Three", "Q", ""),
	}, Options{})
	for _, fc := range c.VerifyCounts() {
		if !fc.Match {
			t.Errorf("folder %q: count %d, bundle %d", fc.Path, fc.TotalUniqueFiles, fc.BundleSize)
		}
	}
	node, err := c.Tree.Find("X")
	if err != nil {
		t.Fatal(err)
	}
	if node.TotalUniqueFiles != 2 {
		t.Errorf("X count = %d, want 2", node.TotalUniqueFiles)
	}
}

func TestCollect_TitleDefaultsToKey(t *testing.T) {
	c, _ := collect(t, map[string]string{
		"plain.html": "<html><body>no head</body></html>",
	}, Options{})
	n := c.Notes["plain.html"]
	if n == nil {
		t.Fatal("note missing")
	}
	if n.Metadata.Title != "plain.html" {
		t.Errorf("title = %q, want plain.html", n.Metadata.Title)
	}
	if n.Checksum == "" {
		t.Error("checksum empty")
	}
}

func TestCollect_Attachments(t *testing.T) {
	body := `<img src="Trip/second.jpg"><img src="./Trip/first.png"><a href="Trip/doc.pdf">doc</a>`
	assets := t.TempDir()
	c, _ := collect(t, map[string]string{
		"Trip.html":       testutil.NoteHTML("Trip", "Travel", body),
		"Trip/first.png":  "png",
		"Trip/second.jpg": "jpg",
		"Trip/third.gif":  "gif",
		"Trip/doc.pdf":    "pdf",
		"Home.html":       testutil.NoteHTML("Home", "Travel", ""),
	}, Options{PreviewLimit: 2, AssetsDir: assets})

	trip := c.Notes["Trip.html"]
	if !trip.HasAttachments {
		t.Error("Trip.html: HasAttachments = false")
	}
	want := []string{"/attachments/Trip/second.jpg", "/attachments/Trip/first.png"}
	if !reflect.DeepEqual(trip.ImageAttachments, want) {
		t.Errorf("previews = %v, want %v", trip.ImageAttachments, want)
	}
	if !strings.Contains(trip.Content, `href="/attachments/Trip/doc.pdf"`) {
		t.Errorf("content not rewritten: %s", trip.Content)
	}
	if !strings.Contains(trip.RawHTML, `href="Trip/doc.pdf"`) {
		t.Errorf("raw html modified: %s", trip.RawHTML)
	}
	if _, err := os.Stat(filepath.Join(assets, "Trip", "third.gif")); err != nil {
		t.Errorf("attachment not copied: %v", err)
	}

	home := c.Notes["Home.html"]
	if home.HasAttachments || len(home.ImageAttachments) != 0 {
		t.Errorf("Home.html attachments = %v %v", home.HasAttachments, home.ImageAttachments)
	}
}

func TestCollect_MarkdownNote(t *testing.T) {
	c, _ := collect(t, map[string]string{
		"todo.md": "---\ntitle: Todo\ntags: [Work/Projects]\n---\n# Heading\n\nbody\n",
	}, Options{})
	n := c.Notes["todo.md"]
	if n.Metadata.Title != "Todo" {
		t.Errorf("title = %q, want Todo", n.Metadata.Title)
	}
	b, ok := c.Bundle("Work/Projects")
	if !ok || len(b) != 1 {
		t.Fatalf("Work/Projects bundle = %v", b)
	}
	if !strings.Contains(n.Content, "<h1") {
		t.Errorf("content not rendered: %s", n.Content)
	}
}

func TestProcess_ParseFailureKeepsAttachments(t *testing.T) {
	dir, store := testutil.TestVault(t, map[string]string{
		"trip.md":       "<img src=\"trip/shot.png\">\n",
		"trip/shot.png": "png",
	})
	b := NewBuilder(store, attachment.NewResolver(dir, ""), Options{}, nil)
	b.parse = func(string, []byte) (*parser.Result, error) {
		return nil, errors.New("render failed")
	}

	n := b.Process("trip.md")
	if n.Metadata.Title != "trip.md" || n.Metadata.Tags != "" {
		t.Errorf("metadata = %+v, want defaults", n.Metadata)
	}
	if !n.HasAttachments {
		t.Error("HasAttachments = false, want true")
	}
	if !strings.Contains(n.Content, "/attachments/trip/shot.png") {
		t.Errorf("content not rewritten: %s", n.Content)
	}
	if n.RawHTML != "<img src=\"trip/shot.png\">\n" {
		t.Errorf("raw = %q, want source", n.RawHTML)
	}
	if n.Checksum == "" {
		t.Error("checksum missing")
	}
}

func TestCollect_ReportsProgress(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	dir, store := testutil.TestVault(t, map[string]string{
		"a.html": testutil.NoteHTML("Alpha", "Work/Projects, Home", ""),
	})
	c, err := NewBuilder(store, attachment.NewResolver(dir, ""), Options{}, logger).Collect(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	out, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := WriteJSON(context.Background(), out, c, logger); err != nil {
		t.Fatal(err)
	}

	logs := buf.String()
	for _, want := range []string{
		`level=DEBUG msg="note processed" file=a.html title=Alpha tags=2`,
		`level=INFO msg="folder written" path="" files=1`,
		`level=INFO msg="folder written" path=Work/Projects files=1`,
		`level=INFO msg="folder written" path=Home files=1`,
	} {
		if !strings.Contains(logs, want) {
			t.Errorf("log missing %q\n%s", want, logs)
		}
	}
}

// failingStore fails reads for one key.
type failingStore struct {
	storage.Provider
	bad string
}

func (f failingStore) Read(p string) ([]byte, error) {
	if p == f.bad {
		return nil, errors.New("disk on fire")
	}
	return f.Provider.Read(p)
}

func TestCollect_ReadFailureUsesDefaults(t *testing.T) {
	dir, store := testutil.TestVault(t, map[string]string{
		"ok.html":  testutil.NoteHTML("Ok", "T", ""),
		"bad.html": testutil.NoteHTML("Bad", "T", ""),
	})
	b := NewBuilder(failingStore{Provider: store, bad: "bad.html"}, attachment.NewResolver(dir, ""), Options{}, nil)
	c, err := b.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	bad := c.Notes["bad.html"]
	if bad == nil || bad.Metadata.Title != "bad.html" || bad.Metadata.Tags != "" {
		t.Errorf("bad.html = %+v, want default record", bad)
	}
	if got := keysOf(c.Page("T", 1, 10, nil).Files); !reflect.DeepEqual(got, []string{"ok.html"}) {
		t.Errorf("T = %v, want [ok.html]", got)
	}
}

func TestCollect_Canceled(t *testing.T) {
	dir, store := testutil.TestVault(t, map[string]string{"a.html": ""})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewBuilder(store, attachment.NewResolver(dir, ""), Options{}, nil).Collect(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestCollect_MissingSource(t *testing.T) {
	store, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := os.RemoveAll(store.Root()); err != nil {
		t.Fatal(err)
	}
	_, err = NewBuilder(store, attachment.NewResolver(store.Root(), ""), Options{}, nil).Collect(context.Background())
	if err == nil {
		t.Error("expected error for missing source directory")
	}
}

func TestSortEntries_CaseInsensitiveStable(t *testing.T) {
	entries := []models.FileEntry{
		{File: "3", Metadata: models.Metadata{Title: "banana"}},
		{File: "1", Metadata: models.Metadata{Title: "Apple"}},
		{File: "x", Metadata: models.Metadata{Title: "same"}},
		{File: "2", Metadata: models.Metadata{Title: "cherry"}},
		{File: "a", Metadata: models.Metadata{Title: "Same"}},
		{File: "zeta"},
	}
	SortEntries(entries)
	want := []string{"1", "3", "2", "x", "a", "zeta"}
	if got := keysOf(entries); !reflect.DeepEqual(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestJoinFiles_MissingRecord(t *testing.T) {
	lookup := func(k string) (models.FileEntry, bool) {
		if k == "known.html" {
			return models.FileEntry{File: k, Metadata: models.Metadata{Title: "Known"}}, true
		}
		return models.FileEntry{}, false
	}
	got := JoinFiles("F", []string{"lost.html", "known.html"}, lookup, nil)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].File != "known.html" || got[1].Metadata.Title != "lost.html" {
		t.Errorf("got %+v", got)
	}
	if got[1].ImageAttachments == nil {
		t.Error("default entry has nil previews")
	}
}

func TestPage_UnknownFolder(t *testing.T) {
	c := New(hierarchy.Build(nil, 0), map[string]*models.Note{}, nil)
	p := c.Page("nope", 1, 10, nil)
	if p.Total != 0 || p.HasMore || p.Files == nil || len(p.Files) != 0 {
		t.Errorf("page = %+v, want empty", p)
	}
}

func TestListFiles(t *testing.T) {
	c, _ := collect(t, map[string]string{
		"b.html": "", "a.html": "", "c.html": "",
	}, Options{})
	l := c.ListFiles(1, 2)
	if !reflect.DeepEqual(l.Files, []string{"a.html", "b.html"}) || l.Total != 3 || !l.HasMore {
		t.Errorf("page 1 = %+v", l)
	}
	l = c.ListFiles(2, 2)
	if !reflect.DeepEqual(l.Files, []string{"c.html"}) || l.HasMore {
		t.Errorf("page 2 = %+v", l)
	}
}
