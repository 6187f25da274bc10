package object

import (
	"errors"
	"io"
	"time"

	"github.com/dabukalam/ostree/plumbing"
	"github.com/dabukalam/ostree/plumbing/variant"
)

// RelatedObject is an extra (checksum, kind) reference carried by a
// commit alongside its root tree — e.g. a detached build log shipped
// next to the commit without being part of the tree.
type RelatedObject struct {
	Checksum plumbing.Checksum
	Kind     plumbing.Kind
}

// Commit links a root directory (content + meta) to an optional
// parent commit, carrying metadata, a subject/body and a timestamp
// (§3).
type Commit struct {
	Metadata  variant.Dict
	Parent    plumbing.Checksum // zero value means no parent
	HasParent bool
	Related   []RelatedObject
	Subject   string
	Body      string
	Timestamp time.Time // truncated to whole seconds, UTC, on encode

	RootContentChecksum plumbing.Checksum
	RootMetaChecksum    plumbing.Checksum
}

// Encode writes the canonical serialization of c. The timestamp is
// always written as whole seconds since the Unix epoch UTC, big-endian
// (§3, §6) — the one field in this format that is not little-endian.
func (c *Commit) Encode(w io.Writer) error {
	e := variant.NewWriter(w)

	e.WriteDict(c.Metadata)
	e.WriteBool(c.HasParent)
	e.WriteRaw(c.Parent[:])

	e.WriteUint32(uint32(len(c.Related))) //nolint:gosec
	for _, r := range c.Related {
		e.WriteRaw(r.Checksum[:])
		e.WriteUint32(uint32(r.Kind))
	}

	e.WriteString(c.Subject)
	e.WriteString(c.Body)
	e.WriteUint64BE(uint64(c.Timestamp.UTC().Unix())) //nolint:gosec

	e.WriteRaw(c.RootContentChecksum[:])
	e.WriteRaw(c.RootMetaChecksum[:])

	return e.Err()
}

// DecodeCommit reads a Commit written by Encode.
func DecodeCommit(r io.Reader) (*Commit, error) {
	d := variant.NewReader(r)

	c := &Commit{}
	c.Metadata = d.ReadDict()
	c.HasParent = d.ReadBool()
	copy(c.Parent[:], d.ReadRaw(plumbing.ChecksumSize))

	n := d.ReadUint32()
	c.Related = make([]RelatedObject, 0, n)
	for i := uint32(0); i < n && d.Err() == nil; i++ {
		var cs plumbing.Checksum
		copy(cs[:], d.ReadRaw(plumbing.ChecksumSize))
		kind := plumbing.Kind(d.ReadUint32()) //nolint:gosec
		c.Related = append(c.Related, RelatedObject{Checksum: cs, Kind: kind})
	}

	c.Subject = d.ReadString()
	c.Body = d.ReadString()
	c.Timestamp = time.Unix(int64(d.ReadUint64BE()), 0).UTC() //nolint:gosec

	copy(c.RootContentChecksum[:], d.ReadRaw(plumbing.ChecksumSize))
	copy(c.RootMetaChecksum[:], d.ReadRaw(plumbing.ChecksumSize))

	if err := d.Err(); err != nil {
		return nil, err
	}
	return c, nil
}

// Hash computes the checksum of c's canonical serialization.
func (c *Commit) Hash() (plumbing.Checksum, error) {
	h := plumbing.NewHasher()
	if err := c.Encode(h); err != nil {
		return plumbing.Checksum{}, err
	}
	return h.Sum(), nil
}

// ErrNoParent is wrapped by resolving "<rev>^" when the commit named
// by <rev> has no parent (S3). Callers format a message naming the
// commit, e.g. fmt.Errorf("commit %s has no parent: %w", hash, ErrNoParent).
var ErrNoParent = errors.New("commit has no parent")
