package object

import (
	"io"

	"github.com/dabukalam/ostree/plumbing"
	"github.com/dabukalam/ostree/plumbing/variant"
)

// DirMeta is a directory's own attributes, independent of its
// contents: (uid, gid, mode, xattrs) (§3).
type DirMeta struct {
	UID    uint32
	GID    uint32
	Mode   plumbing.PosixMode
	Xattrs map[string][]byte
}

// Encode writes the canonical serialization of m.
func (m *DirMeta) Encode(w io.Writer) error {
	e := variant.NewWriter(w)
	e.WriteUint32(m.UID)
	e.WriteUint32(m.GID)
	e.WriteUint32(uint32(m.Mode))
	e.WriteXattrs(m.Xattrs)
	return e.Err()
}

// DecodeDirMeta reads a DirMeta written by Encode.
func DecodeDirMeta(r io.Reader) (*DirMeta, error) {
	d := variant.NewReader(r)
	m := &DirMeta{
		UID:    d.ReadUint32(),
		GID:    d.ReadUint32(),
		Mode:   plumbing.PosixMode(d.ReadUint32()),
		Xattrs: d.ReadXattrs(),
	}
	if err := d.Err(); err != nil {
		return nil, err
	}
	return m, nil
}

// Hash computes the checksum of m's canonical serialization.
func (m *DirMeta) Hash() (plumbing.Checksum, error) {
	h := plumbing.NewHasher()
	if err := m.Encode(h); err != nil {
		return plumbing.Checksum{}, err
	}
	return h.Sum(), nil
}
