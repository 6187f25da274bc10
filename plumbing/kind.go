package plumbing

// Kind identifies one of the four object kinds stored in the
// repository. Values are deliberately small and contiguous so Kind
// can index small arrays (e.g. per-kind file extensions).
type Kind int8

const (
	// InvalidKind is the zero value and never names a real object.
	InvalidKind Kind = iota
	// FileKind is a file object: header plus, for regular files, raw
	// content bytes.
	FileKind
	// DirMetaKind is a directory's own (uid, gid, mode, xattrs).
	DirMetaKind
	// DirTreeKind is a directory's sorted (files, dirs) listing.
	DirTreeKind
	// CommitKind links a root tree into the commit history DAG.
	CommitKind
)

func (k Kind) String() string {
	switch k {
	case FileKind:
		return "file"
	case DirMetaKind:
		return "dirmeta"
	case DirTreeKind:
		return "dirtree"
	case CommitKind:
		return "commit"
	default:
		return "invalid"
	}
}

// IsMeta reports whether k is one of the metadata kinds (everything
// but FileKind), per §3's "Metadata kinds are DIR_META, DIR_TREE,
// COMMIT".
func (k Kind) IsMeta() bool {
	return k != InvalidKind && k != FileKind
}

// Valid reports whether k is one of the four defined kinds.
func (k Kind) Valid() bool {
	switch k {
	case FileKind, DirMetaKind, DirTreeKind, CommitKind:
		return true
	default:
		return false
	}
}
