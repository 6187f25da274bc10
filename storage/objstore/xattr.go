package objstore

import (
	"sort"
	"syscall"

	"github.com/pkg/xattr"

	"github.com/dabukalam/ostree/errs"
)

// XattrNotSupported reports whether err indicates the underlying
// filesystem has no xattr support at all, as opposed to a real
// failure, mirroring the ENOTSUP/ENOATTR/EINVAL triage rclone's local
// backend applies before giving up on a single attribute. Exported so
// the staging and checkout packages can apply the same triage when
// reading/writing xattrs on real filesystem entries outside the store.
func XattrNotSupported(err error) bool {
	xerr, ok := err.(*xattr.Error)
	if !ok {
		return false
	}
	return xerr.Err == syscall.ENOTSUP || xerr.Err == syscall.EINVAL || xerr.Err == xattr.ENOATTR
}

// SetXattrs best-effort applies xattrs to path (or the symlink itself
// when followSymlinks is false), stopping at the first attribute that
// fails for a reason other than missing xattr support.
func SetXattrs(path string, followSymlinks bool, xattrs map[string][]byte) error {
	for k, v := range xattrs {
		var err error
		if followSymlinks {
			err = xattr.Set(path, k, v)
		} else {
			err = xattr.LSet(path, k, v)
		}
		if err != nil {
			if XattrNotSupported(err) {
				return nil
			}
			return errs.IO("set xattr "+k+" on "+path, err)
		}
	}
	return nil
}

// ReadXattrs reads back every attribute set on path, returning nil
// (not an error) when the filesystem has no xattr support.
func ReadXattrs(path string, followSymlinks bool) (map[string][]byte, error) {
	var list []string
	var err error
	if followSymlinks {
		list, err = xattr.List(path)
	} else {
		list, err = xattr.LList(path)
	}
	if err != nil {
		if XattrNotSupported(err) {
			return nil, nil
		}
		return nil, errs.IO("list xattrs on "+path, err)
	}
	if len(list) == 0 {
		return nil, nil
	}
	sort.Strings(list)

	out := make(map[string][]byte, len(list))
	for _, k := range list {
		var v []byte
		if followSymlinks {
			v, err = xattr.Get(path, k)
		} else {
			v, err = xattr.LGet(path, k)
		}
		if err != nil {
			if XattrNotSupported(err) {
				continue
			}
			return nil, errs.IO("get xattr "+k+" on "+path, err)
		}
		out[k] = v
	}
	return out, nil
}
