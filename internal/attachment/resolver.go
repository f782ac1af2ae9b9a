// Package attachment connects a note's relative asset references to the
// per-note attachment directory stored next to it.
//
// A note "foo.html" owns the directory "foo/" under the resolver root. Assets
// are published under "<prefix>/<escaped base>/<escaped relative path>".
package attachment

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/starford/tagshelf/internal/apperr"
	"github.com/starford/tagshelf/internal/parser"
)

// DefaultPrefix is the public URL prefix for rewritten asset references.
const DefaultPrefix = "/attachments"

var (
	imgSrcRe   = regexp.MustCompile(`(?i)<img\s[^>]*?\bsrc=["']([^"']+)["']`)
	assetRefRe = regexp.MustCompile(`(?i)\b(src|href)=["']([^"']+)["']`)
	schemeRe   = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*:`)
)

// Resolver locates, lists, copies and reads note attachments under root.
// The directory-existence cache lives until ClearCache.
type Resolver struct {
	root   string
	prefix string

	mu     sync.RWMutex
	exists map[string]bool
}

// NewResolver creates a resolver for attachment folders under root.
// An empty prefix means DefaultPrefix.
func NewResolver(root, prefix string) *Resolver {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Resolver{
		root:   root,
		prefix: strings.TrimRight(prefix, "/"),
		exists: make(map[string]bool),
	}
}

// Root returns the directory holding the per-note attachment folders.
func (r *Resolver) Root() string { return r.root }

// Prefix returns the public URL prefix.
func (r *Resolver) Prefix() string { return r.prefix }

// Dir returns the attachment directory for a note key.
func (r *Resolver) Dir(key string) (string, error) {
	return r.baseDir(parser.NoteBase(key))
}

// baseDir returns the attachment directory named base, the note key
// without its extension as it appears in public paths.
func (r *Resolver) baseDir(base string) (string, error) {
	if base == "" || base == "." || base == ".." || strings.ContainsAny(base, `/\`) || strings.ContainsRune(base, 0) {
		return "", fmt.Errorf("attachment: folder %q: %w", base, apperr.ErrInvalidPath)
	}
	return filepath.Join(r.root, base), nil
}

// FolderExists reports whether the note has an attachment directory.
// Results are cached per key, including negative ones.
func (r *Resolver) FolderExists(key string) bool {
	r.mu.RLock()
	ok, cached := r.exists[key]
	r.mu.RUnlock()
	if cached {
		return ok
	}

	exists := false
	if dir, err := r.Dir(key); err == nil {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			exists = true
		}
	}

	r.mu.Lock()
	r.exists[key] = exists
	r.mu.Unlock()
	return exists
}

// ClearCache drops every cached existence result at once.
func (r *Resolver) ClearCache() {
	r.mu.Lock()
	r.exists = make(map[string]bool)
	r.mu.Unlock()
}

// PublicPath maps a path relative to the note's attachment directory to its URL.
func (r *Resolver) PublicPath(key, rel string) string {
	segs := strings.Split(rel, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return r.prefix + "/" + url.PathEscape(parser.NoteBase(key)) + "/" + strings.Join(segs, "/")
}

// ExtractImageReferences returns relative image sources in document order,
// duplicates included, with leading "./" and "../" markers removed.
func ExtractImageReferences(markup string) []string {
	var refs []string
	for _, m := range imgSrcRe.FindAllStringSubmatch(markup, -1) {
		ref := strings.TrimSpace(m[1])
		if !isRelative(ref) || !hasExt(ref, imageExts) {
			continue
		}
		refs = append(refs, trimRelMarkers(ref))
	}
	return refs
}

// ResolveImageAttachments lists the note's image files ordered by first
// reference in markup (exact relative path first, then basename; unreferenced
// files last in directory order), truncated to limit and mapped to public paths.
// A limit <= 0 keeps every file.
func (r *Resolver) ResolveImageAttachments(key, markup string, limit int) ([]string, error) {
	if !r.FolderExists(key) {
		return []string{}, nil
	}
	dir, err := r.Dir(key)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("attachment: list %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() && hasExt(e.Name(), imageExts) {
			files = append(files, e.Name())
		}
	}

	if refs := ExtractImageReferences(markup); len(refs) > 0 {
		exact := make(map[string]int, len(refs))
		byBase := make(map[string]int, len(refs))
		for i, ref := range refs {
			rel := r.relative(key, ref)
			if _, ok := exact[rel]; !ok {
				exact[rel] = i
			}
			b := path.Base(rel)
			if _, ok := byBase[b]; !ok {
				byBase[b] = i
			}
		}
		rank := func(name string) int {
			if i, ok := exact[name]; ok {
				return i
			}
			if i, ok := byBase[name]; ok {
				return i
			}
			return math.MaxInt
		}
		sort.SliceStable(files, func(i, j int) bool { return rank(files[i]) < rank(files[j]) })
	}

	if limit > 0 && len(files) > limit {
		files = files[:limit]
	}
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = r.PublicPath(key, f)
	}
	return out, nil
}

// RewriteAssetReferences points every relative src/href with a known asset
// extension at its public path. Absolute and already rewritten references
// are left alone, so applying it twice equals applying it once.
func (r *Resolver) RewriteAssetReferences(markup, key string) string {
	matches := assetRefRe.FindAllStringSubmatchIndex(markup, -1)
	if len(matches) == 0 {
		return markup
	}

	var b strings.Builder
	b.Grow(len(markup))
	last := 0
	for _, m := range matches {
		attr := markup[m[2]:m[3]]
		ref := strings.TrimSpace(markup[m[4]:m[5]])
		if !isRelative(ref) || r.isPublished(ref) || !hasExt(ref, assetExts) {
			continue
		}
		b.WriteString(markup[last:m[0]])
		b.WriteString(attr)
		b.WriteString(`="`)
		b.WriteString(r.PublicPath(key, r.relative(key, ref)))
		b.WriteString(`"`)
		last = m[1]
	}
	b.WriteString(markup[last:])
	return b.String()
}

// ReadAttachment returns an asset's bytes and content type. Missing files
// and paths leaving the note's directory both report apperr.ErrNotFound.
func (r *Resolver) ReadAttachment(key, rel string) ([]byte, string, error) {
	dir, err := r.Dir(key)
	if err != nil {
		return nil, "", err
	}
	return r.read(dir, key, rel)
}

// ReadBaseAttachment is ReadAttachment addressed by the folder segment of a
// public path (see PublicPath) instead of the note key.
func (r *Resolver) ReadBaseAttachment(base, rel string) ([]byte, string, error) {
	dir, err := r.baseDir(base)
	if err != nil {
		return nil, "", err
	}
	return r.read(dir, base, rel)
}

func (r *Resolver) read(dir, key, rel string) ([]byte, string, error) {
	abs, err := safePath(dir, rel)
	if err != nil {
		return nil, "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, "", fmt.Errorf("attachment: %s/%s: %w", key, rel, apperr.ErrNotFound)
		}
		return nil, "", fmt.Errorf("attachment: stat: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, "", fmt.Errorf("attachment: %s/%s: %w", key, rel, apperr.ErrNotFound)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, "", fmt.Errorf("attachment: read %s: %w", rel, err)
	}
	return data, ContentType(abs), nil
}

// CopyTo mirrors the note's attachment directory into destRoot/<base>.
// Directory creation is idempotent. Individual copy failures are collected
// and do not stop the remaining files.
func (r *Resolver) CopyTo(key, destRoot string) (int, error) {
	if !r.FolderExists(key) {
		return 0, nil
	}
	src, err := r.Dir(key)
	if err != nil {
		return 0, err
	}
	dst := filepath.Join(destRoot, parser.NoteBase(key))

	copied := 0
	var errs []error
	walkErr := filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			errs = append(errs, err)
			return nil
		}
		rel, relErr := filepath.Rel(src, p)
		if relErr != nil {
			errs = append(errs, relErr)
			return nil
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil && !errors.Is(err, fs.ErrExist) {
				errs = append(errs, fmt.Errorf("attachment: mkdir %s: %w", target, err))
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if err := copyFile(p, target); err != nil {
			errs = append(errs, err)
			return nil
		}
		copied++
		return nil
	})
	if walkErr != nil {
		errs = append(errs, walkErr)
	}
	return copied, errors.Join(errs...)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("attachment: open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("attachment: create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("attachment: copy %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("attachment: close %s: %w", dst, err)
	}
	return nil
}

// safePath resolves rel inside dir and rejects anything escaping it.
func safePath(dir, rel string) (string, error) {
	if rel == "" || strings.ContainsRune(rel, 0) {
		return "", fmt.Errorf("attachment: %q: %w", rel, apperr.ErrInvalidPath)
	}
	cleaned := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("attachment: %q: %w", rel, apperr.ErrInvalidPath)
	}
	abs := filepath.Join(dir, cleaned)
	if !strings.HasPrefix(abs, dir+string(os.PathSeparator)) {
		return "", fmt.Errorf("attachment: %q escapes %s: %w", rel, dir, apperr.ErrInvalidPath)
	}
	return abs, nil
}

// relative turns an in-document reference into a path inside the note's
// attachment directory: markers stripped, percent-decoded, and a leading
// "<base>/" (the layout of exported notes) removed.
func (r *Resolver) relative(key, ref string) string {
	ref = trimRelMarkers(ref)
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		ref = ref[:i]
	}
	if dec, err := url.PathUnescape(ref); err == nil {
		ref = dec
	}
	return strings.TrimPrefix(ref, parser.NoteBase(key)+"/")
}

func (r *Resolver) isPublished(ref string) bool {
	return strings.HasPrefix(ref, r.prefix+"/")
}

func isRelative(ref string) bool {
	if ref == "" || strings.HasPrefix(ref, "/") || strings.HasPrefix(ref, "#") {
		return false
	}
	return !schemeRe.MatchString(ref)
}

func trimRelMarkers(ref string) string {
	for {
		switch {
		case strings.HasPrefix(ref, "./"):
			ref = ref[2:]
		case strings.HasPrefix(ref, "../"):
			ref = ref[3:]
		default:
			return ref
		}
	}
}
