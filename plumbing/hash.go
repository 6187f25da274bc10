// Package plumbing implements the core types shared across the object
// store, staging pipeline, checkout engine and reference store: the
// content checksum, object kinds and permission helpers.
package plumbing

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"

	"github.com/dabukalam/ostree/errs"
)

// ChecksumSize is the length in bytes of a raw SHA-256 checksum.
const ChecksumSize = sha256.Size

// HexSize is the length in characters of a hex-encoded checksum.
const HexSize = ChecksumSize * 2

// ZeroChecksum is the all-zero checksum, used to mean "no parent".
var ZeroChecksum Checksum

// Checksum is the content address of a stored object: the SHA-256 of
// its canonical serialization, held as a fixed-size byte array so it
// is comparable and usable as a map key.
type Checksum [ChecksumSize]byte

// String returns the lowercase hex representation.
func (c Checksum) String() string {
	return hex.EncodeToString(c[:])
}

// IsZero reports whether c is the zero checksum (used to represent an
// absent parent commit).
func (c Checksum) IsZero() bool {
	return c == ZeroChecksum
}

// ParseChecksum parses a 64-character lowercase hex string into a
// Checksum. It returns ErrCorrupt for anything else, including
// uppercase hex, which this format never produces or accepts.
func ParseChecksum(s string) (Checksum, error) {
	var c Checksum
	if len(s) != HexSize {
		return c, errs.Corrupt("checksum %q has length %d, want %d", s, len(s), HexSize)
	}
	if !LooksLikeChecksum(s) {
		return c, errs.Corrupt("checksum %q is not lowercase hex", s)
	}

	b, err := hex.DecodeString(s)
	if err != nil {
		return c, errs.Corrupt("checksum %q is not valid hex: %v", s, err)
	}

	copy(c[:], b)
	return c, nil
}

// LooksLikeChecksum reports whether s has the syntactic shape of a
// checksum (64 lowercase hex characters), without validating that it
// names any object. Ref names are rejected when they look like this,
// and a rev of this shape is taken as a literal checksum (§4.5, §8
// property 6).
func LooksLikeChecksum(s string) bool {
	if len(s) != HexSize {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		default:
			return false
		}
	}
	return true
}

// Hasher is a streaming SHA-256 hasher that also implements io.Writer,
// so content can be teed through it while being copied elsewhere.
type Hasher struct {
	h hash.Hash
}

// NewHasher returns a ready-to-use Hasher.
func NewHasher() *Hasher {
	return &Hasher{h: sha256.New()}
}

// Write implements io.Writer.
func (h *Hasher) Write(p []byte) (int, error) {
	return h.h.Write(p)
}

// Sum returns the checksum of everything written so far.
func (h *Hasher) Sum() Checksum {
	var c Checksum
	copy(c[:], h.h.Sum(nil))
	return c
}

// Sum256 hashes all of r's remaining content.
func Sum256(r io.Reader) (Checksum, error) {
	h := NewHasher()
	if _, err := io.Copy(h, r); err != nil {
		var c Checksum
		return c, errs.IO("hash content", err)
	}
	return h.Sum(), nil
}

// Sum256Bytes hashes b directly.
func Sum256Bytes(b []byte) Checksum {
	return sha256.Sum256(b)
}
