package objstore

import (
	"context"
	"io"

	"github.com/dabukalam/ostree/config"
	"github.com/dabukalam/ostree/errs"
	"github.com/dabukalam/ostree/plumbing"
	"github.com/dabukalam/ostree/plumbing/object"
)

// PutFile stores a FILE object, dispatching to the on-disk layout the
// store's mode uses for it (§4.1, §6). content is read only for
// regular files; it is ignored (and may be nil) for symlinks and
// device nodes, whose payload lives entirely in header.
func (s *Store) PutFile(ctx context.Context, header *object.FileHeader, content io.Reader) (plumbing.Checksum, error) {
	if err := ctx.Err(); err != nil {
		return plumbing.Checksum{}, errs.ErrCancelled
	}

	switch s.mode {
	case config.Bare:
		return s.putFileBare(header, content)
	case config.Archive:
		return s.putFileArchive(header, content)
	case config.ArchiveZ2:
		return s.putFileArchiveZ2(header, content)
	default:
		return plumbing.Checksum{}, errs.Invalid("unknown repository mode %d", s.mode)
	}
}

// OpenFile returns a FILE object's header and a reader over its raw
// content. The reader is empty (but non-nil) for symlinks and device
// nodes. Callers must Close the returned reader.
func (s *Store) OpenFile(checksum plumbing.Checksum) (*object.FileHeader, io.ReadCloser, error) {
	switch s.mode {
	case config.Bare:
		return s.openFileBare(checksum)
	case config.Archive:
		return s.openFileArchive(checksum)
	case config.ArchiveZ2:
		return s.openFileArchiveZ2(checksum)
	default:
		return nil, nil, errs.Invalid("unknown repository mode %d", s.mode)
	}
}
