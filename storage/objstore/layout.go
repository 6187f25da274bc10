// Package objstore implements the on-disk loose object layout and the
// atomic insertion protocol shared by all four object kinds (§4.1).
package objstore

import (
	"os"
	"path/filepath"

	"github.com/dabukalam/ostree/config"
	"github.com/dabukalam/ostree/errs"
	"github.com/dabukalam/ostree/plumbing"
)

const (
	objectsDirName = "objects"
	tmpDirName     = "tmp"
	tmpPendingName = "pending"
)

// Store is a handle on the loose object store rooted at a repository
// directory. Zero values are not usable; construct with New.
type Store struct {
	root string
	mode config.Mode
}

// New returns a Store for the repository rooted at root, using mode to
// decide each kind's on-disk representation.
func New(root string, mode config.Mode) *Store {
	return &Store{root: root, mode: mode}
}

// Root returns the repository root directory.
func (s *Store) Root() string { return s.root }

// Mode returns the repository's storage mode.
func (s *Store) Mode() config.Mode { return s.mode }

// ObjectsDir returns the objects/ directory path.
func (s *Store) ObjectsDir() string { return filepath.Join(s.root, objectsDirName) }

// TmpDir returns the tmp/ staging directory path.
func (s *Store) TmpDir() string { return filepath.Join(s.root, tmpDirName) }

// EnsureLayout creates objects/, tmp/, and tmp/pending/ if missing.
// Called by repository Init and by transaction Begin.
func (s *Store) EnsureLayout() error {
	for _, dir := range []string{
		s.ObjectsDir(),
		s.TmpDir(),
		filepath.Join(s.TmpDir(), tmpPendingName),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errs.IO("create "+dir, err)
		}
	}
	return nil
}

// extension returns the filename extension used for kind's main object
// file under the store's mode. For FILE objects in ARCHIVE mode this
// is the header file's extension; ContentExtension names the
// companion raw-content file.
func extension(kind plumbing.Kind, mode config.Mode) string {
	switch kind {
	case plumbing.DirMetaKind:
		return "dirmeta"
	case plumbing.DirTreeKind:
		return "dirtree"
	case plumbing.CommitKind:
		return "commit"
	case plumbing.FileKind:
		return "file"
	default:
		return "invalid"
	}
}

// ContentExtension is the extension of the companion raw-content file
// used for FILE objects only in ARCHIVE mode (§4.1, §6).
const ContentExtension = "filecontent"

// fanoutDir returns the objects/XX directory name for checksum.
func fanoutDir(hex string) string { return hex[0:2] }

// path returns the on-disk path for an object of kind named checksum,
// with the given extension.
func (s *Store) path(checksum plumbing.Checksum, ext string) string {
	hex := checksum.String()
	return filepath.Join(s.ObjectsDir(), fanoutDir(hex), hex[2:]+"."+ext)
}

// Path returns the path of kind's main object file for checksum.
func (s *Store) Path(checksum plumbing.Checksum, kind plumbing.Kind) string {
	return s.path(checksum, extension(kind, s.mode))
}

// ContentPath returns the path of the ARCHIVE-mode raw content file
// for a FILE object. Only meaningful when Mode() == config.Archive.
func (s *Store) ContentPath(checksum plumbing.Checksum) string {
	return s.path(checksum, ContentExtension)
}
