package variant

import (
	"encoding/binary"
	"io"
	"sort"

	"github.com/dabukalam/ostree/errs"
)

// Writer encodes the primitives of the tagged binary format onto an
// underlying io.Writer.
type Writer struct {
	w   io.Writer
	err error
}

// NewWriter returns a Writer that writes to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Err returns the first error encountered by any Write* call.
func (e *Writer) Err() error { return e.err }

func (e *Writer) write(p []byte) {
	if e.err != nil {
		return
	}
	if _, err := e.w.Write(p); err != nil {
		e.err = errs.IO("variant write", err)
	}
}

// WriteUint32 writes a fixed-width little-endian uint32, used for
// length prefixes and other sizes per §6.
func (e *Writer) WriteUint32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	e.write(b[:])
}

// WriteUint64BE writes a fixed-width big-endian uint64, used only for
// the commit timestamp per §3/§6.
func (e *Writer) WriteUint64BE(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	e.write(b[:])
}

// WriteBool writes a single 0/1 byte.
func (e *Writer) WriteBool(v bool) {
	if v {
		e.write([]byte{1})
	} else {
		e.write([]byte{0})
	}
}

// WriteBytes writes a uint32-length-prefixed raw byte array.
func (e *Writer) WriteBytes(b []byte) {
	e.WriteUint32(uint32(len(b))) //nolint:gosec // lengths here are always small
	e.write(b)
}

// WriteString writes a uint32-length-prefixed UTF-8 string.
func (e *Writer) WriteString(s string) {
	e.WriteBytes([]byte(s))
}

// WriteUint64 writes a fixed-width little-endian uint64.
func (e *Writer) WriteUint64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	e.write(b[:])
}

// WriteRaw writes p with no length prefix, for fields of a statically
// known fixed width such as checksums.
func (e *Writer) WriteRaw(p []byte) {
	e.write(p)
}

// WriteInt64 writes a fixed-width little-endian int64.
func (e *Writer) WriteInt64(v int64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(v)) //nolint:gosec // two's complement round-trip
	e.write(b[:])
}

// WriteValue writes a tagged Value: one tag byte followed by its payload.
func (e *Writer) WriteValue(v Value) {
	if e.err != nil {
		return
	}
	e.write([]byte{byte(v.tag)})
	switch v.tag {
	case TagString:
		e.WriteString(v.str)
	case TagBytes:
		e.WriteBytes(v.bytes)
	case TagInt64:
		e.WriteInt64(v.i)
	case TagBool:
		e.WriteBool(v.b)
	case TagStringArray:
		e.WriteUint32(uint32(len(v.strArr))) //nolint:gosec
		for _, s := range v.strArr {
			e.WriteString(s)
		}
	default:
		if e.err == nil {
			e.err = errUnknownTag
		}
	}
}

// WriteDict writes a Dict: a uint32 count followed by (key, value)
// pairs in sorted key order, so identical content always produces
// identical bytes regardless of map iteration order.
func (e *Writer) WriteDict(d Dict) {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	e.WriteUint32(uint32(len(keys))) //nolint:gosec
	for _, k := range keys {
		e.WriteString(k)
		e.WriteValue(d[k])
	}
}

// WriteXattrs writes a name->value xattr mapping in sorted key order,
// using the same (count, (string,bytes)*) shape as a Dict of TagBytes
// values but without the per-entry tag byte, since every value here
// is always raw bytes.
func (e *Writer) WriteXattrs(xattrs map[string][]byte) {
	keys := make([]string, 0, len(xattrs))
	for k := range xattrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	e.WriteUint32(uint32(len(keys))) //nolint:gosec
	for _, k := range keys {
		e.WriteString(k)
		e.WriteBytes(xattrs[k])
	}
}
