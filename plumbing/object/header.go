// Package object defines the canonical serialization of the four
// stored object kinds: file headers, dir-meta, dir-tree and commit
// (§3, §6).
package object

import (
	"io"

	"github.com/dabukalam/ostree/errs"
	"github.com/dabukalam/ostree/plumbing"
	"github.com/dabukalam/ostree/plumbing/variant"
)

// FileHeader is the metadata portion of a FILE object: everything but
// the raw content bytes that follow it for regular files.
type FileHeader struct {
	Mode          plumbing.PosixMode
	UID           uint32
	GID           uint32
	SymlinkTarget string            // non-empty only when Mode.IsSymlink()
	Rdev          uint64            // meaningful only when Mode.IsDevice()
	Xattrs        map[string][]byte // nil is equivalent to empty
}

// Encode writes the canonical serialization of h.
func (h *FileHeader) Encode(w io.Writer) error {
	e := variant.NewWriter(w)
	e.WriteUint32(uint32(h.Mode))
	e.WriteUint32(h.UID)
	e.WriteUint32(h.GID)
	e.WriteString(h.SymlinkTarget)
	e.WriteUint64(h.Rdev)
	e.WriteXattrs(h.Xattrs)
	return e.Err()
}

// DecodeFileHeader reads a FileHeader written by Encode.
func DecodeFileHeader(r io.Reader) (*FileHeader, error) {
	d := variant.NewReader(r)
	h := &FileHeader{
		Mode:          plumbing.PosixMode(d.ReadUint32()),
		UID:           d.ReadUint32(),
		GID:           d.ReadUint32(),
		SymlinkTarget: d.ReadString(),
		Rdev:          d.ReadUint64(),
		Xattrs:        d.ReadXattrs(),
	}
	if err := d.Err(); err != nil {
		return nil, err
	}
	return h, nil
}

// HashFileObject computes the checksum of a FILE object: the header's
// canonical bytes followed by content, exactly as it is hashed on
// insertion regardless of which on-disk layout the repository mode
// uses to actually store the two parts (§3).
func HashFileObject(h *FileHeader, content io.Reader) (plumbing.Checksum, error) {
	hasher := plumbing.NewHasher()
	if err := h.Encode(hasher); err != nil {
		return plumbing.Checksum{}, err
	}
	if content != nil {
		if _, err := io.Copy(hasher, content); err != nil {
			return plumbing.Checksum{}, errs.IO("hash file content", err)
		}
	}
	return hasher.Sum(), nil
}
