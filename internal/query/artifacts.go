package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/starford/tagshelf/internal/apperr"
	"github.com/starford/tagshelf/internal/catalog"
	"github.com/starford/tagshelf/internal/hierarchy"
	"github.com/starford/tagshelf/internal/models"
	"github.com/starford/tagshelf/internal/storage"
)

// loader fetches one artifact by its name relative to the data root.
type loader interface {
	load(ctx context.Context, name string, v any) error
}

// Artifacts answers queries from the files written by catalog.WriteJSON.
type Artifacts struct {
	src loader
}

// NewStatic reads artifacts from a local data directory.
func NewStatic(store storage.Provider) *Artifacts {
	return &Artifacts{src: diskLoader{store: store}}
}

// NewRemote fetches artifacts from baseURL, which serves the data directory.
// A nil client means http.DefaultClient.
func NewRemote(baseURL string, client *http.Client) (*Artifacts, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("query: base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("query: base url %q: unsupported scheme", baseURL)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Artifacts{src: httpLoader{base: u, client: client}}, nil
}

// FolderStructure implements Accessor.
func (a *Artifacts) FolderStructure(ctx context.Context) (*models.FolderNode, error) {
	var root models.FolderNode
	if err := a.src.load(ctx, catalog.StructureFile, &root); err != nil {
		return nil, err
	}
	return &root, nil
}

// FilesForFolder implements Accessor.
func (a *Artifacts) FilesForFolder(ctx context.Context, path string, page, limit int, tags []string) (models.FolderPage, error) {
	bundle, err := a.bundle(ctx, path)
	if errors.Is(err, apperr.ErrNotFound) {
		return catalog.EmptyPage(), nil
	}
	if err != nil {
		return models.FolderPage{}, err
	}
	return catalog.PageOf(bundle, page, limit, tags), nil
}

// FileContent implements Accessor.
func (a *Artifacts) FileContent(ctx context.Context, key string) (*models.Note, error) {
	if key == "" {
		return nil, fmt.Errorf("query: empty note key: %w", apperr.ErrNotFound)
	}
	var n models.Note
	if err := a.src.load(ctx, catalog.NoteFile(key), &n); err != nil {
		return nil, err
	}
	if n.ImageAttachments == nil {
		n.ImageAttachments = []string{}
	}
	return &n, nil
}

// ListFiles implements Accessor.
func (a *Artifacts) ListFiles(ctx context.Context, page, limit int) (models.FileList, error) {
	root, err := a.FolderStructure(ctx)
	if err != nil {
		return models.FileList{}, err
	}
	keys := hierarchy.CollectFiles(root)
	sort.Strings(keys)
	return catalog.FileListOf(keys, page, limit), nil
}

// VerifyFolderCounts implements Accessor.
func (a *Artifacts) VerifyFolderCounts(ctx context.Context) ([]models.FolderCount, error) {
	root, err := a.FolderStructure(ctx)
	if err != nil {
		return nil, err
	}
	tree := hierarchy.FromRoot(root)
	out := make([]models.FolderCount, 0)
	for _, p := range tree.Paths() {
		node, _ := tree.Find(p)
		bundle, err := a.bundle(ctx, p)
		if err != nil && !errors.Is(err, apperr.ErrNotFound) {
			return nil, err
		}
		out = append(out, catalog.CountOf(node, len(bundle)))
	}
	return out, nil
}

func (a *Artifacts) bundle(ctx context.Context, path string) ([]models.FileEntry, error) {
	var page models.FolderPage
	if err := a.src.load(ctx, catalog.FolderFile(path), &page); err != nil {
		return nil, err
	}
	return page.Files, nil
}

type diskLoader struct {
	store storage.Provider
}

func (d diskLoader) load(ctx context.Context, name string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return catalog.ReadJSON(d.store, name, v)
}

type httpLoader struct {
	base   *url.URL
	client *http.Client
}

func (h httpLoader) load(ctx context.Context, name string, v any) error {
	segs := strings.Split(name, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	u := h.base.JoinPath(segs...)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("query: request %s: %w", name, err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("query: fetch %s: %w", name, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("query: fetch %s: %w", name, apperr.ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("query: fetch %s: unexpected status %d", name, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("query: read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("query: decode %s: %w: %w", name, apperr.ErrMalformedInput, err)
	}
	return nil
}
