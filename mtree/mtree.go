// Package mtree implements the mutable tree builder: an in-memory
// staging area that accumulates name → child-checksum mappings while a
// directory is being walked, before it is serialized into an
// immutable dir-tree object (§2, §4.2).
package mtree

import (
	"sort"

	"github.com/dabukalam/ostree/errs"
	"github.com/dabukalam/ostree/plumbing"
)

// FileChild is a staged regular file, symlink or device node: just
// its content checksum, since its metadata lives in the FILE object
// itself.
type FileChild struct {
	Checksum plumbing.Checksum
}

// DirChild is a staged subdirectory, already reduced to its own
// content and meta checksums by a prior recursive stage.
type DirChild struct {
	ContentChecksum plumbing.Checksum
	MetaChecksum    plumbing.Checksum
}

// Tree is one directory level of the mutable tree being built. The
// zero value is ready to use.
type Tree struct {
	files   map[string]FileChild
	dirs    map[string]DirChild
	pending map[string]*Tree // subtrees under construction by Walk, not yet reduced via SetDir
}

// New returns an empty Tree.
func New() *Tree {
	return &Tree{files: map[string]FileChild{}, dirs: map[string]DirChild{}}
}

// SetFile records name as a file (or symlink/device) child.
func (t *Tree) SetFile(name string, checksum plumbing.Checksum) {
	t.ensure()
	delete(t.dirs, name)
	t.files[name] = FileChild{Checksum: checksum}
}

// SetDir records name as a subdirectory child, reduced to its final
// content and meta checksums.
func (t *Tree) SetDir(name string, content, meta plumbing.Checksum) {
	t.ensure()
	delete(t.files, name)
	delete(t.pending, name)
	t.dirs[name] = DirChild{ContentChecksum: content, MetaChecksum: meta}
}

func (t *Tree) ensure() {
	if t.files == nil {
		t.files = map[string]FileChild{}
	}
	if t.dirs == nil {
		t.dirs = map[string]DirChild{}
	}
}

// LookupFile returns the checksum staged for a file child, used by
// archive ingestion to resolve hardlink targets within the tree
// currently being built (§4.2 "resolve the target inside the mutable
// tree").
func (t *Tree) LookupFile(name string) (plumbing.Checksum, bool) {
	f, ok := t.files[name]
	return f.Checksum, ok
}

// Names returns the file and directory child names, each
// lexicographically sorted, ready for dir-tree serialization.
func (t *Tree) Names() (files, dirs []string) {
	files = make([]string, 0, len(t.files))
	for name := range t.files {
		files = append(files, name)
	}
	sort.Strings(files)

	dirs = make([]string, 0, len(t.dirs))
	for name := range t.dirs {
		dirs = append(dirs, name)
	}
	sort.Strings(dirs)
	return files, dirs
}

// File returns the staged checksum for a file child by name.
func (t *Tree) File(name string) (FileChild, bool) {
	f, ok := t.files[name]
	return f, ok
}

// Dir returns the staged checksums for a directory child by name.
func (t *Tree) Dir(name string) (DirChild, bool) {
	d, ok := t.dirs[name]
	return d, ok
}

// Empty reports whether the tree has no children at all.
func (t *Tree) Empty() bool {
	return len(t.files) == 0 && len(t.dirs) == 0
}

// Subtree returns a subtree previously created by Walk that has not
// yet been reduced to checksums via SetDir.
func (t *Tree) Subtree(name string) (*Tree, bool) {
	sub, ok := t.pending[name]
	return sub, ok
}

// PendingNames returns the names of subtrees created by Walk that have
// not yet been reduced via SetDir, sorted lexicographically. Used by
// archive ingestion to finalize a whole mutable tree bottom-up once the
// entry stream is exhausted.
func (t *Tree) PendingNames() []string {
	names := make([]string, 0, len(t.pending))
	for name := range t.pending {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Walk resolves a "/"-separated relative path down through nested
// Trees, auto-creating intermediate directory nodes as archive
// ingestion requires (§4.2 "walk or auto-create parent mutable-tree
// nodes"). It returns the Tree of the path's containing directory and
// the final path component's name.
func Walk(root *Tree, components []string) (*Tree, string, error) {
	if len(components) == 0 {
		return nil, "", errs.Invalid("empty path")
	}

	cur := root
	for _, c := range components[:len(components)-1] {
		if c == "" || c == "." || c == ".." {
			return nil, "", errs.Invalid("invalid path component %q", c)
		}
		cur.ensure()
		if cur.pending == nil {
			cur.pending = map[string]*Tree{}
		}
		sub, ok := cur.pending[c]
		if !ok {
			sub = New()
			cur.pending[c] = sub
		}
		cur = sub
	}
	return cur, components[len(components)-1], nil
}
