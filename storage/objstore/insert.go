package objstore

import (
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/dabukalam/ostree/errs"
)

// tempFile creates a uniquely named file under tmp/ ready to be
// written to and later committed into the fanout layout via commit.
func (s *Store) tempFile(pattern string) (*os.File, error) {
	f, err := os.CreateTemp(s.TmpDir(), pattern)
	if err != nil {
		return nil, errs.IO("create temp object file", err)
	}
	return f, nil
}

// abort removes a temp file on any error path, per §4.1 step 5.
func abort(f *os.File) {
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
}

// ensureFanoutDir creates target's parent objects/XX directory.
func ensureFanoutDir(target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return errs.IO("create fanout directory for "+target, err)
	}
	return nil
}

// commit renders the insertion protocol of §4.1: optionally fdatasync
// the temp file, ensure the target's fanout directory exists, then
// rename into place. EEXIST on rename is treated as success, since the
// object is content-addressed and the existing bytes are identical.
func commit(f *os.File, target string, sync bool) error {
	if sync {
		if err := unix.Fdatasync(int(f.Fd())); err != nil {
			abort(f)
			return errs.IO("fdatasync temp object file", err)
		}
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return errs.IO("close temp object file", err)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		_ = os.Remove(f.Name())
		return errs.IO("create fanout directory for "+target, err)
	}

	if err := os.Rename(f.Name(), target); err != nil {
		_ = os.Remove(f.Name())
		if os.IsExist(err) {
			return nil
		}
		return errs.IO("rename temp object into place at "+target, err)
	}

	return nil
}
