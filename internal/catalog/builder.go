package catalog

import (
	"context"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/starford/tagshelf/internal/attachment"
	"github.com/starford/tagshelf/internal/checksum"
	"github.com/starford/tagshelf/internal/hierarchy"
	"github.com/starford/tagshelf/internal/models"
	"github.com/starford/tagshelf/internal/parser"
	"github.com/starford/tagshelf/internal/storage"
)

// Default build settings.
const (
	DefaultConcurrency  = 50
	DefaultPreviewLimit = 4
)

// Options tunes a Builder. Zero values fall back to the defaults.
type Options struct {
	// Concurrency bounds how many notes are processed at once.
	Concurrency int
	// PreviewLimit caps the image previews kept per note.
	PreviewLimit int
	// MaxDepth caps the segments taken from one tag path.
	MaxDepth int
	// AssetsDir, when set, receives a copy of every attachment folder.
	AssetsDir string
}

func (o Options) withDefaults() Options {
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	if o.PreviewLimit <= 0 {
		o.PreviewLimit = DefaultPreviewLimit
	}
	if o.MaxDepth <= 0 {
		o.MaxDepth = hierarchy.DefaultMaxDepth
	}
	return o
}

// Builder reads every note from a source directory and produces a Catalog.
type Builder struct {
	notes    storage.Provider
	resolver *attachment.Resolver
	opts     Options
	logger   *slog.Logger

	parse func(key string, src []byte) (*parser.Result, error)
}

// NewBuilder creates a Builder over the notes provider.
func NewBuilder(notes storage.Provider, resolver *attachment.Resolver, opts Options, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Builder{
		notes:    notes,
		resolver: resolver,
		opts:     opts.withDefaults(),
		logger:   logger,
		parse:    parser.Parse,
	}
}

// Resolver exposes the attachment resolver the builder uses.
func (b *Builder) Resolver() *attachment.Resolver { return b.resolver }

// Collect processes every note and builds the hierarchy and bundles.
// Only a failure to list the source, or ctx cancellation, is returned;
// a note that cannot be read or parsed gets a default record.
func (b *Builder) Collect(ctx context.Context) (*Catalog, error) {
	files, err := b.notes.List("")
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(files))
	for _, f := range files {
		if parser.IsNoteFile(f.Path) {
			keys = append(keys, f.Path)
		}
	}
	sort.Strings(keys)

	notes := make([]*models.Note, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.opts.Concurrency)
	for i, key := range keys {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			notes[i] = b.Process(key)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byKey := make(map[string]*models.Note, len(notes))
	entries := make([]hierarchy.Entry, 0, len(notes))
	for _, n := range notes {
		byKey[n.File] = n
		entries = append(entries, hierarchy.Entry{File: n.File, Tags: n.Metadata.Tags})
	}
	tree := hierarchy.Build(entries, b.opts.MaxDepth)
	for _, tp := range tree.Truncated {
		b.logger.Warn("tag path truncated",
			slog.String("tag", tp),
			slog.Int("max_depth", b.opts.MaxDepth))
	}

	b.logger.Info("catalog collected",
		slog.Int("notes", len(byKey)),
		slog.Int("folders", len(tree.Paths())))
	return New(tree, byKey, b.logger), nil
}

// Process turns a single note into its record. It never fails: a read
// error yields the default record, a parse error yields default metadata,
// and an attachment error yields no previews.
func (b *Builder) Process(key string) *models.Note {
	n, err := b.Load(key)
	if err != nil {
		b.logger.Warn("note read failed", slog.String("file", key), slog.String("error", err.Error()))
		return defaultNote(key)
	}
	return n
}

// Load is Process, except that a failure to read the source is returned.
func (b *Builder) Load(key string) (*models.Note, error) {
	data, err := b.notes.Read(key)
	if err != nil {
		return nil, err
	}
	return b.process(key, data), nil
}

func defaultNote(key string) *models.Note {
	return &models.Note{
		File:             key,
		Metadata:         models.DefaultMetadata(key),
		ImageAttachments: []string{},
	}
}

func (b *Builder) process(key string, data []byte) *models.Note {
	n := defaultNote(key)
	n.Checksum = checksum.Sum(data)

	markup := string(data)
	res, err := b.parse(key, data)
	if err != nil {
		b.logger.Warn("note parse failed", slog.String("file", key), slog.String("error", err.Error()))
	} else {
		n.Metadata = res.Metadata
		markup = res.HTML
	}
	if n.Metadata.Title == "" {
		n.Metadata.Title = key
	}
	n.RawHTML = markup

	n.HasAttachments = b.resolver.FolderExists(key)
	previews, err := b.resolver.ResolveImageAttachments(key, markup, b.opts.PreviewLimit)
	if err != nil {
		b.logger.Warn("attachment scan failed", slog.String("file", key), slog.String("error", err.Error()))
	} else {
		n.ImageAttachments = previews
	}
	n.Content = b.resolver.RewriteAssetReferences(markup, key)

	if b.opts.AssetsDir != "" && n.HasAttachments {
		copied, err := b.resolver.CopyTo(key, b.opts.AssetsDir)
		if err != nil {
			b.logger.Warn("attachment copy failed", slog.String("file", key), slog.String("error", err.Error()))
		} else {
			b.logger.Debug("attachments copied", slog.String("file", key), slog.Int("count", copied))
		}
	}

	b.logger.Debug("note processed",
		slog.String("file", key),
		slog.String("title", n.Metadata.Title),
		slog.Int("tags", len(n.Metadata.TagPaths())))
	return n
}
