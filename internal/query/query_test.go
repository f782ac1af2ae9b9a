package query

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/starford/tagshelf/internal/apperr"
	"github.com/starford/tagshelf/internal/attachment"
	"github.com/starford/tagshelf/internal/catalog"
	"github.com/starford/tagshelf/internal/index"
	"github.com/starford/tagshelf/internal/models"
	"github.com/starford/tagshelf/internal/storage"
	"github.com/starford/tagshelf/internal/testutil"
)

var fixture = map[string]string{
	"a.html":          testutil.NoteHTML("Alpha", "A/B, A/C", `<img src="a/pic.png">`),
	"b.html":          testutil.NoteHTML("beta", "A/B", "<p>b</p>"),
	"c.html":          testutil.NoteHTML("Gamma", "A/C", ""),
	"My Note.html":    testutil.NoteHTML("Spaced", "A B/C%D", ""),
	"untagged.html":   testutil.NoteHTML("Untagged", "", ""),
	"a/pic.png":       "png",
	"readme.markdown": "---\ntitle: Readme\ntags: Docs\n---\nhello\n",
}

type env struct {
	notesDir string
	builder  *catalog.Builder
	cat      *catalog.Catalog
	dataDir  string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	dir, store := testutil.TestVault(t, fixture)
	b := catalog.NewBuilder(store, attachment.NewResolver(dir, ""), catalog.Options{}, nil)
	c, err := b.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	dataDir := t.TempDir()
	out, err := storage.NewFS(dataDir)
	if err != nil {
		t.Fatal(err)
	}
	if err := catalog.WriteJSON(context.Background(), out, c, nil); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	return &env{notesDir: dir, builder: b, cat: c, dataDir: dataDir}
}

func (e *env) accessors(t *testing.T) map[string]Accessor {
	t.Helper()
	store, err := storage.NewFS(e.dataDir)
	if err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(http.FileServer(http.Dir(e.dataDir)))
	t.Cleanup(srv.Close)
	remote, err := NewRemote(srv.URL, srv.Client())
	if err != nil {
		t.Fatal(err)
	}

	dbPath := filepath.Join(t.TempDir(), "catalog.db")
	db, err := index.Open(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.ReplaceCatalog(context.Background(), e.cat); err != nil {
		t.Fatal(err)
	}

	return map[string]Accessor{
		"static": NewStatic(store),
		"remote": remote,
		"live":   NewLive(e.builder, nil),
		"sqlite": NewSQLite(db),
	}
}

func TestAccessors_AgreeWithCatalog(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	for name, acc := range e.accessors(t) {
		t.Run(name, func(t *testing.T) {
			root, err := acc.FolderStructure(ctx)
			if err != nil {
				t.Fatalf("FolderStructure: %v", err)
			}
			if !reflect.DeepEqual(root, e.cat.Tree.Root) {
				t.Errorf("structure mismatch")
			}

			for _, p := range e.cat.Tree.Paths() {
				for page := 1; page <= 3; page++ {
					got, err := acc.FilesForFolder(ctx, p, page, 2, nil)
					if err != nil {
						t.Fatalf("FilesForFolder(%q): %v", p, err)
					}
					if want := e.cat.Page(p, page, 2, nil); !reflect.DeepEqual(got, want) {
						t.Errorf("FilesForFolder(%q, %d) = %+v, want %+v", p, page, got, want)
					}
				}
			}

			got, err := acc.FilesForFolder(ctx, "A", 1, 10, []string{"C"})
			if err != nil {
				t.Fatal(err)
			}
			if want := e.cat.Page("A", 1, 10, []string{"C"}); !reflect.DeepEqual(got, want) {
				t.Errorf("tag filter = %+v, want %+v", got, want)
			}

			for key, want := range e.cat.Notes {
				n, err := acc.FileContent(ctx, key)
				if err != nil {
					t.Fatalf("FileContent(%q): %v", key, err)
				}
				if !reflect.DeepEqual(n, want) {
					t.Errorf("FileContent(%q) = %+v, want %+v", key, n, want)
				}
			}

			files, err := acc.ListFiles(ctx, 1, 100)
			if err != nil {
				t.Fatal(err)
			}
			if want := e.cat.ListFiles(1, 100); !reflect.DeepEqual(files, want) {
				t.Errorf("ListFiles = %+v, want %+v", files, want)
			}

			counts, err := acc.VerifyFolderCounts(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if len(counts) != len(e.cat.Tree.Paths()) {
				t.Errorf("counts = %d, want %d", len(counts), len(e.cat.Tree.Paths()))
			}
			for _, fc := range counts {
				if !fc.Match {
					t.Errorf("folder %q mismatch: %+v", fc.Path, fc)
				}
			}
		})
	}
}

func TestAccessors_UnknownFolderAndNote(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	for name, acc := range e.accessors(t) {
		t.Run(name, func(t *testing.T) {
			page, err := acc.FilesForFolder(ctx, "No/Such/Folder", 1, 20, nil)
			if err != nil {
				t.Fatalf("FilesForFolder: %v", err)
			}
			if page.Total != 0 || page.HasMore || len(page.Files) != 0 || page.Files == nil {
				t.Errorf("page = %+v, want empty", page)
			}
			for _, key := range []string{"missing.html", "../secret.html", "a/pic.png"} {
				if _, err := acc.FileContent(ctx, key); !errors.Is(err, apperr.ErrNotFound) {
					t.Errorf("FileContent(%q) err = %v, want ErrNotFound", key, err)
				}
			}
		})
	}
}

func TestArtifacts_FileContentIsRewritten(t *testing.T) {
	e := newEnv(t)
	store, err := storage.NewFS(e.dataDir)
	if err != nil {
		t.Fatal(err)
	}
	n, err := NewStatic(store).FileContent(context.Background(), "a.html")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(n.Content, `src="/attachments/a/pic.png"`) {
		t.Errorf("content = %s", n.Content)
	}
	if !strings.Contains(n.RawHTML, `src="a/pic.png"`) {
		t.Errorf("rawHtml = %s", n.RawHTML)
	}
	if !n.HasAttachments || !reflect.DeepEqual(n.ImageAttachments, []string{"/attachments/a/pic.png"}) {
		t.Errorf("attachments = %v %v", n.HasAttachments, n.ImageAttachments)
	}
}

func TestRemote_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "folder-structure.json"):
			w.WriteHeader(http.StatusInternalServerError)
		default:
			_, _ = w.Write([]byte("{broken"))
		}
	}))
	defer srv.Close()
	acc, err := NewRemote(srv.URL+"/data", srv.Client())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if _, err := acc.FolderStructure(ctx); err == nil || errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("FolderStructure err = %v, want server error", err)
	}
	if _, err := acc.FileContent(ctx, "x.html"); !errors.Is(err, apperr.ErrMalformedInput) {
		t.Errorf("FileContent err = %v, want ErrMalformedInput", err)
	}
	if _, err := NewRemote("ftp://example.com", nil); err == nil {
		t.Error("expected error for unsupported scheme")
	}
}

func TestRemote_EscapesArtifactNames(t *testing.T) {
	var got []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = append(got, r.URL.EscapedPath())
		_, _ = w.Write([]byte(`{"files":[],"total":0,"hasMore":false}`))
	}))
	defer srv.Close()
	acc, err := NewRemote(srv.URL+"/data/", srv.Client())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := acc.FilesForFolder(context.Background(), "A B/C", 1, 10, nil); err != nil {
		t.Fatal(err)
	}
	want := "/data/folders/folder-A%2520B%252FC.json"
	if len(got) != 1 || got[0] != want {
		t.Errorf("requested %v, want %q", got, want)
	}
}

func TestLive_RefreshAndFreshContent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	live := NewLive(e.builder, nil)

	if _, err := live.FolderStructure(ctx); err != nil {
		t.Fatal(err)
	}
	testutil.WriteFiles(t, e.notesDir, map[string]string{
		"new.html": testutil.NoteHTML("New", "Fresh", ""),
		"b.html":   testutil.NoteHTML("beta edited", "A/B", "<p>edited</p>"),
	})

	page, err := live.FilesForFolder(ctx, "Fresh", 1, 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 0 {
		t.Errorf("new folder visible before refresh: %+v", page)
	}
	n, err := live.FileContent(ctx, "b.html")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(n.Content, "edited") {
		t.Errorf("content not re-read: %s", n.Content)
	}

	if _, err := live.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	page, err = live.FilesForFolder(ctx, "Fresh", 1, 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 1 || page.Files[0].File != "new.html" {
		t.Errorf("Fresh = %+v", page)
	}
}

func TestLive_AttachmentFolderCreatedLater(t *testing.T) {
	dir, store := testutil.TestVault(t, map[string]string{
		"n.html": testutil.NoteHTML("N", "T", `<img src="n/x.png">`),
	})
	b := catalog.NewBuilder(store, attachment.NewResolver(dir, ""), catalog.Options{}, nil)
	live := NewLive(b, nil)
	ctx := context.Background()
	page, err := live.FilesForFolder(ctx, "T", 1, 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	if page.Files[0].HasAttachments {
		t.Fatal("attachments reported before folder exists")
	}
	if err := os.MkdirAll(filepath.Join(dir, "n"), 0o755); err != nil {
		t.Fatal(err)
	}
	testutil.WriteFiles(t, dir, map[string]string{"n/x.png": "png"})
	if _, err := live.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	page, err = live.FilesForFolder(ctx, "T", 1, 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !page.Files[0].HasAttachments {
		t.Error("attachments not seen after refresh")
	}
}

// brokenRead fails every Read of key with a non-NotFound error.
type brokenRead struct {
	storage.Provider
	key string
}

func (b *brokenRead) Read(path string) ([]byte, error) {
	if path == b.key {
		return nil, errors.New("permission denied")
	}
	return b.Provider.Read(path)
}

func TestLive_NoteGoneAfterRefresh(t *testing.T) {
	dir, store := testutil.TestVault(t, map[string]string{
		"gone.html": testutil.NoteHTML("Gone", "T", ""),
		"kept.html": testutil.NoteHTML("Kept", "T", ""),
	})
	b := catalog.NewBuilder(store, attachment.NewResolver(dir, ""), catalog.Options{}, nil)
	live := NewLive(b, nil)
	ctx := context.Background()
	if _, err := live.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(filepath.Join(dir, "gone.html")); err != nil {
		t.Fatal(err)
	}

	n, err := live.FileContent(ctx, "gone.html")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("FileContent = %+v, %v; want ErrNotFound", n, err)
	}
	if _, err := live.FileContent(ctx, "kept.html"); err != nil {
		t.Errorf("kept.html: %v", err)
	}
}

func TestLive_UnreadableNote(t *testing.T) {
	dir, store := testutil.TestVault(t, map[string]string{
		"locked.html": testutil.NoteHTML("Locked", "T", ""),
	})
	b := catalog.NewBuilder(&brokenRead{Provider: store, key: "locked.html"}, attachment.NewResolver(dir, ""), catalog.Options{}, nil)
	live := NewLive(b, nil)
	ctx := context.Background()

	page, err := live.FilesForFolder(ctx, "", 1, 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 1 || page.Files[0].Metadata.Title != "locked.html" {
		t.Errorf("root page = %+v, want default record", page)
	}
	if _, err := live.FileContent(ctx, "locked.html"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("FileContent err = %v, want ErrNotFound", err)
	}
}

type recordingAccessor struct {
	Accessor
	path  string
	limit int
	tags  []string
}

func (r *recordingAccessor) FilesForFolder(_ context.Context, path string, _ int, limit int, tags []string) (models.FolderPage, error) {
	r.path, r.limit, r.tags = path, limit, tags
	return catalog.EmptyPage(), nil
}

func TestService_Normalizes(t *testing.T) {
	rec := &recordingAccessor{}
	svc := NewService(rec, 7)
	if _, err := svc.FilesForFolder(context.Background(), "/A/B/", 1, 0, []string{" x ", ""}); err != nil {
		t.Fatal(err)
	}
	if rec.path != "A/B" {
		t.Errorf("path = %q, want %q", rec.path, "A/B")
	}
	if rec.limit != 7 {
		t.Errorf("limit = %d, want 7", rec.limit)
	}
	if !reflect.DeepEqual(rec.tags, []string{"x"}) {
		t.Errorf("tags = %v, want [x]", rec.tags)
	}
	if _, err := svc.FileContent(context.Background(), " "); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("empty key err = %v, want ErrNotFound", err)
	}
	if NewService(rec, 0).PageSize() != catalog.DefaultPageSize {
		t.Error("default page size not applied")
	}
}
