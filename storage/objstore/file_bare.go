package objstore

import (
	"bytes"
	"io"
	"os"

	"golang.org/x/sys/unix"

	"github.com/dabukalam/ostree/errs"
	"github.com/dabukalam/ostree/plumbing"
	"github.com/dabukalam/ostree/plumbing/object"
)

// putFileBare stores a FILE object as a real filesystem entry: a
// regular file with the header's mode/owner/xattrs applied directly
// to the inode, a plain symlink, or a device node. The object's
// checksum is still the hash of the canonical header-plus-content
// bytes (object.HashFileObject); only the on-disk representation
// diverges from that serialization in BARE mode (§3, §4.1, §6).
func (s *Store) putFileBare(header *object.FileHeader, content io.Reader) (plumbing.Checksum, error) {
	canon := header.Mode.Canonical()

	switch {
	case canon.IsSymlink():
		return s.putSymlinkBare(header)
	case canon.IsDevice():
		return s.putDeviceBare(header)
	default:
		return s.putRegularBare(header, content)
	}
}

func (s *Store) putSymlinkBare(header *object.FileHeader) (plumbing.Checksum, error) {
	checksum, err := object.HashFileObject(header, nil)
	if err != nil {
		return plumbing.Checksum{}, err
	}

	target := s.Path(checksum, plumbing.FileKind)
	if s.Exists(checksum, plumbing.FileKind) {
		return checksum, nil
	}

	tmpPath := s.tempName("sym-")
	if err := os.Symlink(header.SymlinkTarget, tmpPath); err != nil {
		return plumbing.Checksum{}, errs.IO("create temp symlink", err)
	}
	if err := SetXattrs(tmpPath, false, header.Xattrs); err != nil {
		_ = os.Remove(tmpPath)
		return plumbing.Checksum{}, err
	}

	return checksum, commitPath(tmpPath, target)
}

func (s *Store) putDeviceBare(header *object.FileHeader) (plumbing.Checksum, error) {
	checksum, err := object.HashFileObject(header, nil)
	if err != nil {
		return plumbing.Checksum{}, err
	}

	target := s.Path(checksum, plumbing.FileKind)
	if s.Exists(checksum, plumbing.FileKind) {
		return checksum, nil
	}

	tmpPath := s.tempName("dev-")
	mode := uint32(header.Mode.Canonical())
	if err := unix.Mknod(tmpPath, mode, int(header.Rdev)); err != nil {
		return plumbing.Checksum{}, errs.IO("mknod temp device node", err)
	}
	if err := SetXattrs(tmpPath, false, header.Xattrs); err != nil {
		_ = os.Remove(tmpPath)
		return plumbing.Checksum{}, err
	}

	return checksum, commitPath(tmpPath, target)
}

func (s *Store) putRegularBare(header *object.FileHeader, content io.Reader) (plumbing.Checksum, error) {
	hasher := plumbing.NewHasher()
	if err := header.Encode(hasher); err != nil {
		return plumbing.Checksum{}, err
	}

	f, err := s.tempFile("file-")
	if err != nil {
		return plumbing.Checksum{}, err
	}

	if content != nil {
		if _, err := io.Copy(io.MultiWriter(f, hasher), content); err != nil {
			abort(f)
			return plumbing.Checksum{}, errs.IO("write temp file object content", err)
		}
	}
	checksum := hasher.Sum()

	target := s.Path(checksum, plumbing.FileKind)
	if s.Exists(checksum, plumbing.FileKind) {
		abort(f)
		return checksum, nil
	}

	if err := f.Chmod(os.FileMode(header.Mode.Canonical().Perm())); err != nil {
		abort(f)
		return plumbing.Checksum{}, errs.IO("chmod temp file object", err)
	}
	if err := f.Chown(int(header.UID), int(header.GID)); err != nil && !os.IsPermission(err) {
		abort(f)
		return plumbing.Checksum{}, errs.IO("chown temp file object", err)
	}
	if err := SetXattrs(f.Name(), true, header.Xattrs); err != nil {
		abort(f)
		return plumbing.Checksum{}, err
	}

	return checksum, commit(f, target, true)
}

// commitPath is the non-regular-file sibling of commit: it renames an
// already-created symlink or device node into the fanout layout,
// treating EEXIST as success since the target name is content-derived.
func commitPath(tmpPath, target string) error {
	if err := ensureFanoutDir(target); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, target); err != nil {
		_ = os.Remove(tmpPath)
		if os.IsExist(err) {
			return nil
		}
		return errs.IO("rename into place at "+target, err)
	}
	return nil
}

func (s *Store) openFileBare(checksum plumbing.Checksum) (*object.FileHeader, io.ReadCloser, error) {
	path := s.Path(checksum, plumbing.FileKind)

	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, errs.NotFound("file object %s", checksum)
		}
		return nil, nil, errs.IO("lstat "+path, err)
	}

	switch {
	case info.Mode()&os.ModeSymlink != 0:
		linkTarget, err := os.Readlink(path)
		if err != nil {
			return nil, nil, errs.IO("readlink "+path, err)
		}
		xattrs, err := ReadXattrs(path, false)
		if err != nil {
			return nil, nil, err
		}
		header := &object.FileHeader{
			Mode:          plumbing.ModeFmtLnk | 0777,
			SymlinkTarget: linkTarget,
			Xattrs:        xattrs,
		}
		return header, io.NopCloser(bytes.NewReader(nil)), nil

	case info.Mode()&(os.ModeDevice|os.ModeCharDevice) != 0:
		stat, ok := info.Sys().(*unix.Stat_t)
		var mode plumbing.PosixMode
		var rdev uint64
		var uid, gid uint32
		if ok {
			mode = plumbing.PosixMode(stat.Mode)
			rdev = uint64(stat.Rdev)
			uid, gid = stat.Uid, stat.Gid
		}
		xattrs, err := ReadXattrs(path, false)
		if err != nil {
			return nil, nil, err
		}
		header := &object.FileHeader{Mode: mode, UID: uid, GID: gid, Rdev: rdev, Xattrs: xattrs}
		return header, io.NopCloser(bytes.NewReader(nil)), nil

	default:
		f, err := os.Open(path)
		if err != nil {
			return nil, nil, errs.IO("open "+path, err)
		}
		var uid, gid uint32
		if stat, ok := info.Sys().(*unix.Stat_t); ok {
			uid, gid = stat.Uid, stat.Gid
		}
		xattrs, err := ReadXattrs(path, true)
		if err != nil {
			_ = f.Close()
			return nil, nil, err
		}
		header := &object.FileHeader{
			Mode:   plumbing.ModeFmtReg | plumbing.PosixMode(info.Mode().Perm()),
			UID:    uid,
			GID:    gid,
			Xattrs: xattrs,
		}
		return header, f, nil
	}
}
