package checkout

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/dabukalam/ostree/config"
	"github.com/dabukalam/ostree/errs"
	"github.com/dabukalam/ostree/plumbing"
	"github.com/dabukalam/ostree/plumbing/object"
	"github.com/dabukalam/ostree/storage/objstore"
)

// checkoutFile materializes one FILE object at destDir/name, trying a
// hardlink first where the mode pairing allows it and falling back to
// a streamed copy otherwise (§4.3 "Per-file strategy").
func (e *Engine) checkoutFile(ctx context.Context, checksum plumbing.Checksum, destDir, name string, opts Options) error {
	if err := ctx.Err(); err != nil {
		return errs.ErrCancelled
	}

	header, content, err := e.store.OpenFile(checksum)
	if err != nil {
		return err
	}
	defer content.Close()

	canon := header.Mode.Canonical()
	destPath := filepath.Join(destDir, name)

	if canon.IsDevice() && opts.Permissions == UserMode {
		return nil
	}

	if canon.IsSymlink() {
		return checkoutSymlink(header, destPath, opts)
	}

	if hardlinkEligible(e.store.Mode(), opts.Permissions) {
		src, ok, err := e.hardlinkSource(canon, checksum)
		if err != nil {
			return err
		}
		if ok {
			linked, err := linkInto(src, destPath, opts.Overwrite)
			if err != nil {
				return err
			}
			if linked {
				return nil
			}
			// hardlink unsupported on this filesystem pairing; fall through to copy.
		}
	}

	if canon.IsDevice() {
		return materializeDevice(header, destPath, opts)
	}
	return materializeRegular(header, content, destPath, opts)
}

// hardlinkSource returns the real on-disk path a hardlink should point
// at for checksum under the store's current mode, and whether a
// hardlink attempt is meaningful at all for this object's type.
func (e *Engine) hardlinkSource(canon plumbing.PosixMode, checksum plumbing.Checksum) (string, bool, error) {
	switch e.store.Mode() {
	case config.Bare:
		return e.store.Path(checksum, plumbing.FileKind), true, nil
	case config.Archive:
		if !canon.IsRegular() {
			return "", false, nil
		}
		return e.store.ContentPath(checksum), true, nil
	case config.ArchiveZ2:
		if !canon.IsRegular() || e.cache == nil {
			return "", false, nil
		}
		path, err := e.cache.Ensure(checksum)
		if err != nil {
			return "", false, err
		}
		return path, true, nil
	default:
		return "", false, nil
	}
}

// linkInto attempts link(2) from src to dest, reporting (true, nil) on
// success and (false, nil) when the failure means "hardlink
// unsupported here" (EMLINK, EXDEV, EPERM) so the caller falls back to
// copying (§4.3 step 2).
func linkInto(src, dest string, overwrite OverwriteMode) (bool, error) {
	err := os.Link(src, dest)
	if err == nil {
		return true, nil
	}
	if os.IsExist(err) && overwrite == UnionFiles {
		if rmErr := os.Remove(dest); rmErr != nil && !os.IsNotExist(rmErr) {
			return false, errs.IO("unlink existing "+dest+" before relink", rmErr)
		}
		if err := os.Link(src, dest); err == nil {
			return true, nil
		} else if !hardlinkUnsupported(err) {
			return false, errs.IO("link "+src+" to "+dest, err)
		}
		return false, nil
	}
	if os.IsExist(err) {
		return false, errs.Exists("destination %s already exists", dest)
	}
	if hardlinkUnsupported(err) {
		return false, nil
	}
	return false, errs.IO("link "+src+" to "+dest, err)
}

func hardlinkUnsupported(err error) bool {
	var linkErr *os.LinkError
	if !errors.As(err, &linkErr) {
		return false
	}
	errno, ok := linkErr.Err.(syscall.Errno)
	if !ok {
		return false
	}
	return errno == syscall.EMLINK || errno == syscall.EXDEV || errno == syscall.EPERM
}

func checkoutSymlink(header *object.FileHeader, destPath string, opts Options) error {
	tmpPath := tempSiblingName(destPath)
	if err := os.Symlink(header.SymlinkTarget, tmpPath); err != nil {
		return errs.IO("create symlink "+tmpPath, err)
	}
	if opts.Permissions == NoneMode {
		_ = os.Lchown(tmpPath, int(header.UID), int(header.GID))
		if err := objstore.SetXattrs(tmpPath, false, header.Xattrs); err != nil {
			_ = os.Remove(tmpPath)
			return err
		}
	}
	return renameIntoPlace(tmpPath, destPath, opts.Overwrite)
}

func materializeDevice(header *object.FileHeader, destPath string, opts Options) error {
	tmpPath := tempSiblingName(destPath)
	mode := uint32(header.Mode.Canonical())
	if err := unix.Mknod(tmpPath, mode, int(header.Rdev)); err != nil {
		return errs.IO("mknod "+tmpPath, err)
	}
	if err := os.Chown(tmpPath, int(header.UID), int(header.GID)); err != nil && !os.IsPermission(err) {
		_ = os.Remove(tmpPath)
		return errs.IO("chown "+tmpPath, err)
	}
	if err := objstore.SetXattrs(tmpPath, false, header.Xattrs); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return renameIntoPlace(tmpPath, destPath, opts.Overwrite)
}

func materializeRegular(header *object.FileHeader, content io.Reader, destPath string, opts Options) error {
	dir := filepath.Dir(destPath)
	tmp, err := os.CreateTemp(dir, ".checkout-tmp-*")
	if err != nil {
		return errs.IO("create temp file in "+dir, err)
	}
	tmpPath := tmp.Name()

	if _, err := io.Copy(tmp, content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return errs.IO("write "+tmpPath, err)
	}
	if err := tmp.Chmod(os.FileMode(header.Mode.Canonical().Perm())); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return errs.IO("chmod "+tmpPath, err)
	}
	if opts.Permissions == NoneMode {
		if err := tmp.Chown(int(header.UID), int(header.GID)); err != nil && !os.IsPermission(err) {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
			return errs.IO("chown "+tmpPath, err)
		}
		if err := objstore.SetXattrs(tmpPath, true, header.Xattrs); err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
			return err
		}
	}
	if err := unix.Fdatasync(int(tmp.Fd())); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return errs.IO("fdatasync "+tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return errs.IO("close "+tmpPath, err)
	}

	return renameIntoPlace(tmpPath, destPath, opts.Overwrite)
}

// renameIntoPlace renames tmpPath to destPath, honoring FailIfExists
// by checking before the rename (os.Rename would otherwise silently
// replace on POSIX) and relying on rename's own atomicity for
// UnionFiles (S6: readers never observe a truncated destination).
func renameIntoPlace(tmpPath, destPath string, overwrite OverwriteMode) error {
	if overwrite == FailIfExists {
		if _, err := os.Lstat(destPath); err == nil {
			_ = os.Remove(tmpPath)
			return errs.Exists("destination %s already exists", destPath)
		}
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		_ = os.Remove(tmpPath)
		return errs.IO("rename into place at "+destPath, err)
	}
	return nil
}

func tempSiblingName(destPath string) string {
	var b [8]byte
	_, _ = rand.Read(b)
	return filepath.Join(filepath.Dir(destPath), ".checkout-tmp-"+hex.EncodeToString(b[:]))
}
