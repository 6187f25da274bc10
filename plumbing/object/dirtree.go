package object

import (
	"io"
	"sort"
	"strings"

	"github.com/dabukalam/ostree/errs"
	"github.com/dabukalam/ostree/plumbing"
	"github.com/dabukalam/ostree/plumbing/variant"
)

// FileEntry is one (name, checksum) pair in a DirTree's files list.
type FileEntry struct {
	Name     string
	Checksum plumbing.Checksum
}

// SubdirEntry is one (name, content-checksum, meta-checksum) triple in
// a DirTree's dirs list.
type SubdirEntry struct {
	Name             string
	ContentChecksum  plumbing.Checksum
	MetaChecksum     plumbing.Checksum
}

// DirTree is a directory's contents: two ordered sequences, files and
// subdirectories, each sorted lexicographically by name in strict
// byte order (§3).
type DirTree struct {
	Files []FileEntry
	Dirs  []SubdirEntry
}

// ValidName reports whether name is a legal entry name: no '/' and
// not '.' or '..' (§3).
func ValidName(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.Contains(name, "/")
}

// Sort orders Files and Dirs by name in strict byte order, in place.
func (t *DirTree) Sort() {
	sort.Slice(t.Files, func(i, j int) bool { return t.Files[i].Name < t.Files[j].Name })
	sort.Slice(t.Dirs, func(i, j int) bool { return t.Dirs[i].Name < t.Dirs[j].Name })
}

// Validate checks name legality and strict sort order, returning
// ErrInvalidArgument on the first violation.
func (t *DirTree) Validate() error {
	for _, f := range t.Files {
		if !ValidName(f.Name) {
			return errs.Invalid("dir-tree file entry has illegal name %q", f.Name)
		}
	}
	for _, d := range t.Dirs {
		if !ValidName(d.Name) {
			return errs.Invalid("dir-tree subdir entry has illegal name %q", d.Name)
		}
	}
	for i := 1; i < len(t.Files); i++ {
		if t.Files[i-1].Name >= t.Files[i].Name {
			return errs.Invalid("dir-tree files are not strictly sorted at %q", t.Files[i].Name)
		}
	}
	for i := 1; i < len(t.Dirs); i++ {
		if t.Dirs[i-1].Name >= t.Dirs[i].Name {
			return errs.Invalid("dir-tree dirs are not strictly sorted at %q", t.Dirs[i].Name)
		}
	}
	return nil
}

// Encode writes the canonical serialization of t. Callers must ensure
// t is sorted (Sort) before encoding; Encode does not sort for you so
// that deliberate misuse is caught by Validate in tests rather than
// silently fixed up.
func (t *DirTree) Encode(w io.Writer) error {
	e := variant.NewWriter(w)

	e.WriteUint32(uint32(len(t.Files))) //nolint:gosec
	for _, f := range t.Files {
		e.WriteString(f.Name)
		e.WriteRaw(f.Checksum[:])
	}

	e.WriteUint32(uint32(len(t.Dirs))) //nolint:gosec
	for _, d := range t.Dirs {
		e.WriteString(d.Name)
		e.WriteRaw(d.ContentChecksum[:])
		e.WriteRaw(d.MetaChecksum[:])
	}

	return e.Err()
}

// DecodeDirTree reads a DirTree written by Encode.
func DecodeDirTree(r io.Reader) (*DirTree, error) {
	d := variant.NewReader(r)

	nf := d.ReadUint32()
	files := make([]FileEntry, 0, nf)
	for i := uint32(0); i < nf && d.Err() == nil; i++ {
		name := d.ReadString()
		raw := d.ReadRaw(plumbing.ChecksumSize)
		var cs plumbing.Checksum
		copy(cs[:], raw)
		files = append(files, FileEntry{Name: name, Checksum: cs})
	}

	nd := d.ReadUint32()
	dirs := make([]SubdirEntry, 0, nd)
	for i := uint32(0); i < nd && d.Err() == nil; i++ {
		name := d.ReadString()
		content := d.ReadRaw(plumbing.ChecksumSize)
		meta := d.ReadRaw(plumbing.ChecksumSize)
		var cc, mc plumbing.Checksum
		copy(cc[:], content)
		copy(mc[:], meta)
		dirs = append(dirs, SubdirEntry{Name: name, ContentChecksum: cc, MetaChecksum: mc})
	}

	if err := d.Err(); err != nil {
		return nil, err
	}
	return &DirTree{Files: files, Dirs: dirs}, nil
}

// Hash computes the checksum of t's canonical serialization. t must
// already be sorted.
func (t *DirTree) Hash() (plumbing.Checksum, error) {
	h := plumbing.NewHasher()
	if err := t.Encode(h); err != nil {
		return plumbing.Checksum{}, err
	}
	return h.Sum(), nil
}
