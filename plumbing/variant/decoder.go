package variant

import (
	"encoding/binary"
	"io"
	"unicode/utf8"

	"github.com/dabukalam/ostree/errs"
)

// maxAlloc bounds a single length-prefixed allocation so a corrupt or
// malicious length prefix cannot force an out-of-memory read.
const maxAlloc = 1 << 30

// Reader decodes the primitives written by Writer from an underlying
// io.Reader.
type Reader struct {
	r   io.Reader
	err error
}

// NewReader returns a Reader that reads from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Err returns the first error encountered by any Read* call.
func (d *Reader) Err() error { return d.err }

func (d *Reader) read(p []byte) {
	if d.err != nil {
		return
	}
	if _, err := io.ReadFull(d.r, p); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			d.err = errs.Corrupt("unexpected end of data")
			return
		}
		d.err = errs.IO("variant read", err)
	}
}

// ReadUint32 reads a fixed-width little-endian uint32.
func (d *Reader) ReadUint32() uint32 {
	var b [4]byte
	d.read(b[:])
	return binary.LittleEndian.Uint32(b[:])
}

// ReadUint64BE reads a fixed-width big-endian uint64.
func (d *Reader) ReadUint64BE() uint64 {
	var b [8]byte
	d.read(b[:])
	return binary.BigEndian.Uint64(b[:])
}

// ReadBool reads a single 0/1 byte.
func (d *Reader) ReadBool() bool {
	var b [1]byte
	d.read(b[:])
	return b[0] != 0
}

// ReadBytes reads a uint32-length-prefixed raw byte array.
func (d *Reader) ReadBytes() []byte {
	n := d.ReadUint32()
	if d.err != nil {
		return nil
	}
	if uint64(n) > maxAlloc {
		d.err = errs.Corrupt("length prefix %d exceeds maximum", n)
		return nil
	}
	b := make([]byte, n)
	d.read(b)
	return b
}

// ReadString reads a uint32-length-prefixed UTF-8 string.
func (d *Reader) ReadString() string {
	b := d.ReadBytes()
	if d.err != nil {
		return ""
	}
	if !utf8.Valid(b) {
		d.err = errs.Corrupt("string is not valid UTF-8")
		return ""
	}
	return string(b)
}

// ReadUint64 reads a fixed-width little-endian uint64.
func (d *Reader) ReadUint64() uint64 {
	var b [8]byte
	d.read(b[:])
	return binary.LittleEndian.Uint64(b[:])
}

// ReadRaw reads exactly n bytes with no length prefix.
func (d *Reader) ReadRaw(n int) []byte {
	b := make([]byte, n)
	d.read(b)
	return b
}

// ReadInt64 reads a fixed-width little-endian int64.
func (d *Reader) ReadInt64() int64 {
	var b [8]byte
	d.read(b[:])
	return int64(binary.LittleEndian.Uint64(b[:])) //nolint:gosec
}

// ReadValue reads a tagged Value.
func (d *Reader) ReadValue() Value {
	if d.err != nil {
		return Value{}
	}
	var tb [1]byte
	d.read(tb[:])
	if d.err != nil {
		return Value{}
	}

	switch Tag(tb[0]) {
	case TagString:
		return String(d.ReadString())
	case TagBytes:
		return Bytes(d.ReadBytes())
	case TagInt64:
		return Int(d.ReadInt64())
	case TagBool:
		return Bool(d.ReadBool())
	case TagStringArray:
		n := d.ReadUint32()
		arr := make([]string, 0, n)
		for i := uint32(0); i < n && d.err == nil; i++ {
			arr = append(arr, d.ReadString())
		}
		return StringArray(arr)
	default:
		d.err = errUnknownTag
		return Value{}
	}
}

// ReadDict reads a Dict.
func (d *Reader) ReadDict() Dict {
	n := d.ReadUint32()
	if d.err != nil {
		return nil
	}
	out := make(Dict, n)
	for i := uint32(0); i < n && d.err == nil; i++ {
		k := d.ReadString()
		v := d.ReadValue()
		if d.err == nil {
			out[k] = v
		}
	}
	return out
}

// ReadXattrs reads a name->value xattr mapping written by WriteXattrs.
func (d *Reader) ReadXattrs() map[string][]byte {
	n := d.ReadUint32()
	if d.err != nil {
		return nil
	}
	out := make(map[string][]byte, n)
	for i := uint32(0); i < n && d.err == nil; i++ {
		k := d.ReadString()
		v := d.ReadBytes()
		if d.err == nil {
			out[k] = v
		}
	}
	return out
}
