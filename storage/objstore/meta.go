package objstore

import (
	"bytes"
	"context"
	"os"

	"github.com/dabukalam/ostree/errs"
	"github.com/dabukalam/ostree/plumbing"
)

// PutMeta stores a metadata object (DIR_META, DIR_TREE or COMMIT)
// whose canonical serialization is already in data, addressed by its
// checksum. If an object already exists at that checksum the write is
// skipped (§4.1, §4.2 step 6).
func (s *Store) PutMeta(ctx context.Context, kind plumbing.Kind, checksum plumbing.Checksum, data []byte) error {
	if err := ctx.Err(); err != nil {
		return errs.ErrCancelled
	}

	target := s.Path(checksum, kind)
	if _, err := os.Stat(target); err == nil {
		return nil
	}

	f, err := s.tempFile("meta-")
	if err != nil {
		return err
	}

	if _, err := f.Write(data); err != nil {
		abort(f)
		return errs.IO("write temp metadata object", err)
	}

	return commit(f, target, false)
}

// GetMeta returns the raw canonical bytes of a metadata object.
func (s *Store) GetMeta(checksum plumbing.Checksum, kind plumbing.Kind) ([]byte, error) {
	path := s.Path(checksum, kind)
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.NotFound("%s object %s", kind, checksum)
		}
		return nil, errs.IO("read "+path, err)
	}
	return b, nil
}

// Exists reports whether an object of kind named checksum is present
// in this store (not checking any parent repository).
func (s *Store) Exists(checksum plumbing.Checksum, kind plumbing.Kind) bool {
	_, err := os.Stat(s.Path(checksum, kind))
	return err == nil
}

// Stat reports whether an object exists and, if so, its size, without
// opening it.
func (s *Store) Stat(checksum plumbing.Checksum, kind plumbing.Kind) (exists bool, size int64, err error) {
	info, statErr := os.Stat(s.Path(checksum, kind))
	if statErr != nil {
		if os.IsNotExist(statErr) {
			return false, 0, nil
		}
		return false, 0, errs.IO("stat object", statErr)
	}
	return true, info.Size(), nil
}

// VerifyChecksum hashes data and compares it against want, returning a
// CORRUPT error naming both checksums on mismatch (S4).
func VerifyChecksum(want plumbing.Checksum, data []byte) error {
	got := plumbing.Sum256Bytes(data)
	if !bytes.Equal(got[:], want[:]) {
		return errs.Corrupt("checksum mismatch: expected %s, computed %s", want, got)
	}
	return nil
}
