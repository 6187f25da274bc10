// Package variant implements the tagged binary encoding used for all
// metadata objects and file headers (§6): fixed-width little-endian
// integers for sizes, a big-endian uint64 for commit timestamps, byte
// arrays, UTF-8 strings, arrays, and string-keyed dictionaries of
// scalar values.
package variant

import "github.com/dabukalam/ostree/errs"

// Tag identifies the wire type of an encoded Value.
type Tag uint8

const (
	// TagString is a length-prefixed UTF-8 string.
	TagString Tag = iota + 1
	// TagBytes is a length-prefixed raw byte array.
	TagBytes
	// TagInt64 is a fixed-width little-endian signed 64-bit integer.
	TagInt64
	// TagBool is a single byte, 0 or 1.
	TagBool
	// TagStringArray is a length-prefixed array of TagString values.
	TagStringArray
)

// Value is a single entry in a metadata dictionary (the GVariant `v`
// in an `a{sv}` dict, restricted to the scalar/array shapes this
// format actually emits: string, bytes, int64, bool, []string).
type Value struct {
	tag    Tag
	str    string
	bytes  []byte
	i      int64
	b      bool
	strArr []string
}

// String builds a string-valued Value.
func String(s string) Value { return Value{tag: TagString, str: s} }

// Bytes builds a bytes-valued Value. The slice is not copied.
func Bytes(b []byte) Value { return Value{tag: TagBytes, bytes: b} }

// Int builds an int64-valued Value.
func Int(i int64) Value { return Value{tag: TagInt64, i: i} }

// Bool builds a bool-valued Value.
func Bool(b bool) Value { return Value{tag: TagBool, b: b} }

// StringArray builds a []string-valued Value. The slice is not copied.
func StringArray(ss []string) Value { return Value{tag: TagStringArray, strArr: ss} }

// Tag reports the Value's wire type.
func (v Value) Tag() Tag { return v.tag }

// AsString returns the string payload; ok is false if v is not a string.
func (v Value) AsString() (string, bool) { return v.str, v.tag == TagString }

// AsBytes returns the bytes payload; ok is false if v is not bytes.
func (v Value) AsBytes() ([]byte, bool) { return v.bytes, v.tag == TagBytes }

// AsInt returns the int64 payload; ok is false if v is not an int64.
func (v Value) AsInt() (int64, bool) { return v.i, v.tag == TagInt64 }

// AsBool returns the bool payload; ok is false if v is not a bool.
func (v Value) AsBool() (bool, bool) { return v.b, v.tag == TagBool }

// AsStringArray returns the []string payload; ok is false otherwise.
func (v Value) AsStringArray() ([]string, bool) { return v.strArr, v.tag == TagStringArray }

// Equal reports whether v and other encode to the same bytes.
func (v Value) Equal(other Value) bool {
	if v.tag != other.tag {
		return false
	}
	switch v.tag {
	case TagString:
		return v.str == other.str
	case TagBytes:
		return string(v.bytes) == string(other.bytes)
	case TagInt64:
		return v.i == other.i
	case TagBool:
		return v.b == other.b
	case TagStringArray:
		if len(v.strArr) != len(other.strArr) {
			return false
		}
		for i := range v.strArr {
			if v.strArr[i] != other.strArr[i] {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Dict is a string-keyed dictionary of Values, the wire shape used for
// commit metadata mappings. Iteration order when encoding is always
// the sorted key order, so encoding is deterministic.
type Dict map[string]Value

var errUnknownTag = errs.Corrupt("variant: unknown tag")
