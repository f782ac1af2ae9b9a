// Package hierarchy turns note tag paths into a tree of virtual folders.
//
// A note tagged "A/B, A/C" is placed in the files of A/B and A/C only; A sees
// it through its descendants. Counts are computed in one bottom-up pass once
// every note has been inserted.
package hierarchy

import (
	"fmt"
	"sort"
	"strings"

	"github.com/starford/tagshelf/internal/apperr"
	"github.com/starford/tagshelf/internal/models"
)

// DefaultMaxDepth bounds the number of segments taken from a single tag path.
const DefaultMaxDepth = 32

// RootName is the display name of the synthetic root folder.
const RootName = "root"

// Entry is the input for one note: its key and raw tags string.
type Entry struct {
	File string
	Tags string
}

// Tree is a built folder hierarchy with a path index.
type Tree struct {
	Root *models.FolderNode
	// Truncated lists tag paths that were cut to the maximum depth.
	Truncated []string

	index   map[string]*models.FolderNode
	members map[string]map[string]struct{}
}

// Build inserts every entry and computes TotalUniqueFiles.
// Empty path segments ("A//B", "/A") are skipped so every folder path is unique
// and distinct from the root's "". A note whose tags yield no segment at all is
// filed under the root. maxDepth <= 0 means DefaultMaxDepth.
func Build(entries []Entry, maxDepth int) *Tree {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	t := &Tree{
		Root:    models.NewFolderNode(RootName, ""),
		index:   make(map[string]*models.FolderNode),
		members: make(map[string]map[string]struct{}),
	}
	t.index[""] = t.Root

	for _, e := range entries {
		placed := false
		for _, tagPath := range (models.Metadata{Tags: e.Tags}).TagPaths() {
			segs := splitSegments(tagPath)
			if len(segs) == 0 {
				continue
			}
			if len(segs) > maxDepth {
				segs = segs[:maxDepth]
				t.Truncated = append(t.Truncated, tagPath)
			}
			t.addFile(t.ensure(segs), e.File)
			placed = true
		}
		if !placed {
			t.addFile(t.Root, e.File)
		}
	}

	CountUniqueFiles(t.Root)
	t.members = nil
	return t
}

// FromRoot wraps an already built node tree, e.g. one decoded from JSON.
func FromRoot(root *models.FolderNode) *Tree {
	t := &Tree{Root: root, index: make(map[string]*models.FolderNode)}
	var walk func(n *models.FolderNode)
	walk = func(n *models.FolderNode) {
		t.index[n.Path] = n
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(root)
	return t
}

// ensure walks or creates the nodes for segs and returns the last one.
func (t *Tree) ensure(segs []string) *models.FolderNode {
	node := t.Root
	for i, seg := range segs {
		child, ok := node.Children[seg]
		if !ok {
			child = models.NewFolderNode(seg, strings.Join(segs[:i+1], "/"))
			node.Children[seg] = child
			t.index[child.Path] = child
		}
		node = child
	}
	return node
}

// Find returns the node at path ("" is the root).
func (t *Tree) Find(path string) (*models.FolderNode, error) {
	n, ok := t.index[path]
	if !ok {
		return nil, fmt.Errorf("hierarchy: folder %q: %w", path, apperr.ErrNotFound)
	}
	return n, nil
}

// Paths lists every folder path, root first, in pre-order with children sorted by name.
func (t *Tree) Paths() []string {
	var out []string
	var walk func(n *models.FolderNode)
	walk = func(n *models.FolderNode) {
		out = append(out, n.Path)
		for _, name := range SortedChildNames(n) {
			walk(n.Children[name])
		}
	}
	walk(t.Root)
	return out
}

// Collect returns the distinct files reachable from path: the node's own files
// first, then its children's in name order.
func (t *Tree) Collect(path string) ([]string, error) {
	n, err := t.Find(path)
	if err != nil {
		return nil, err
	}
	return CollectFiles(n), nil
}

// CollectFiles is Collect for a node already in hand.
func CollectFiles(n *models.FolderNode) []string {
	seen := make(map[string]struct{})
	out := []string{}
	var walk func(n *models.FolderNode)
	walk = func(n *models.FolderNode) {
		for _, f := range n.Files {
			if _, ok := seen[f]; ok {
				continue
			}
			seen[f] = struct{}{}
			out = append(out, f)
		}
		for _, name := range SortedChildNames(n) {
			walk(n.Children[name])
		}
	}
	walk(n)
	return out
}

// CountUniqueFiles sets TotalUniqueFiles on n and every descendant to the size
// of the union of its own and its descendants' files.
func CountUniqueFiles(n *models.FolderNode) map[string]struct{} {
	set := make(map[string]struct{}, len(n.Files))
	for _, f := range n.Files {
		set[f] = struct{}{}
	}
	for _, c := range n.Children {
		for f := range CountUniqueFiles(c) {
			set[f] = struct{}{}
		}
	}
	n.TotalUniqueFiles = len(set)
	return set
}

// SortedChildNames returns n's child names in ascending order.
func SortedChildNames(n *models.FolderNode) []string {
	names := make([]string, 0, len(n.Children))
	for name := range n.Children {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func splitSegments(tagPath string) []string {
	parts := strings.Split(tagPath, "/")
	segs := parts[:0]
	for _, p := range parts {
		if p != "" {
			segs = append(segs, p)
		}
	}
	return segs
}

// addFile appends file to n unless a repeated tag already put it there.
func (t *Tree) addFile(n *models.FolderNode, file string) {
	set, ok := t.members[n.Path]
	if !ok {
		set = make(map[string]struct{})
		t.members[n.Path] = set
	}
	if _, dup := set[file]; dup {
		return
	}
	set[file] = struct{}{}
	n.Files = append(n.Files, file)
}
