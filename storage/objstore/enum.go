package objstore

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/dabukalam/ostree/errs"
	"github.com/dabukalam/ostree/plumbing"
)

// ObjectInfo describes one object found by Enumerate.
type ObjectInfo struct {
	Checksum plumbing.Checksum
	Kind     plumbing.Kind
}

// Enumerate walks the fanout layout and calls fn for every object
// whose kind satisfies filter (nil means every kind). It stops and
// returns fn's error as soon as fn returns a non-nil one.
//
// A companion ARCHIVE-mode content file never produces its own entry:
// only the kind-bearing file (header or meta object) is reported, per
// §4.1's "filter by extension" enumeration model.
func (s *Store) Enumerate(filter func(plumbing.Kind) bool, fn func(ObjectInfo) error) error {
	fanoutDirs, err := os.ReadDir(s.ObjectsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errs.IO("read objects directory", err)
	}

	for _, fd := range fanoutDirs {
		if !fd.IsDir() || len(fd.Name()) != 2 {
			continue
		}
		entries, err := os.ReadDir(filepath.Join(s.ObjectsDir(), fd.Name()))
		if err != nil {
			return errs.IO("read fanout directory "+fd.Name(), err)
		}

		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			info, ok := parseObjectFilename(fd.Name(), e.Name())
			if !ok {
				continue
			}
			if filter != nil && !filter(info.Kind) {
				continue
			}
			if err := fn(info); err != nil {
				return err
			}
		}
	}
	return nil
}

// parseObjectFilename recovers the checksum and kind from a fanout
// directory name and a file name within it, skipping companion
// content files (extension ContentExtension) which are not
// independently-kinded objects.
func parseObjectFilename(fanout, name string) (ObjectInfo, bool) {
	dot := strings.LastIndexByte(name, '.')
	if dot < 0 {
		return ObjectInfo{}, false
	}
	rest, ext := name[:dot], name[dot+1:]
	if len(fanout) != 2 || len(rest) != plumbing.HexSize-2 {
		return ObjectInfo{}, false
	}

	checksum, err := plumbing.ParseChecksum(fanout + rest)
	if err != nil {
		return ObjectInfo{}, false
	}

	var kind plumbing.Kind
	switch ext {
	case "file":
		kind = plumbing.FileKind
	case "dirmeta":
		kind = plumbing.DirMetaKind
	case "dirtree":
		kind = plumbing.DirTreeKind
	case "commit":
		kind = plumbing.CommitKind
	default:
		return ObjectInfo{}, false
	}

	return ObjectInfo{Checksum: checksum, Kind: kind}, true
}
