// Package devino implements the (device, inode) → checksum cache that
// lets staging skip re-hashing a source file that is already a
// hardlink to a stored object (§4.4).
package devino

import (
	"os"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/dabukalam/ostree/config"
	"github.com/dabukalam/ostree/errs"
	"github.com/dabukalam/ostree/plumbing"
	"github.com/dabukalam/ostree/storage/objstore"
)

// Key identifies a file by the (st_dev, st_ino) pair stat(2) reports,
// mirroring the Dev/Ino fields of ivoronin-dupedog's FileInfo.
type Key struct {
	Dev uint64
	Ino uint64
}

// Cache is an in-memory, transaction-scoped map from Key to the
// checksum of the FILE object the inode is already known to be. Hash
// quality does not matter for correctness (§4.4); a plain Go map is
// sufficient and needs no custom hash function.
type Cache struct {
	mu sync.Mutex
	m  map[Key]plumbing.Checksum
}

// New returns an empty Cache.
func New() *Cache {
	return &Cache{m: make(map[Key]plumbing.Checksum)}
}

// Put records that the inode named by key is already stored as checksum.
func (c *Cache) Put(key Key, checksum plumbing.Checksum) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = checksum
}

// Lookup returns the checksum previously recorded for key, if any.
func (c *Cache) Lookup(key Key) (plumbing.Checksum, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	checksum, ok := c.m[key]
	return checksum, ok
}

// Len reports the number of entries currently cached.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.m)
}

// KeyOf stats path and returns the (dev, ino) key for it.
func KeyOf(path string) (Key, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return Key{}, errs.IO("lstat "+path, err)
	}
	stat, ok := info.Sys().(*unix.Stat_t)
	if !ok {
		return Key{}, errs.Invalid("cannot read dev/ino for %s on this platform", path)
	}
	return Key{Dev: uint64(stat.Dev), Ino: stat.Ino}, nil
}

// Warmup scans every loose FILE object currently in the store and
// records the (dev, ino) of whichever real on-disk file a future
// checkout would hardlink from, so that a source file already linked
// to a stored object is recognized without hashing it again (§4.2
// "begin ... optionally scans existing loose file objects").
//
// In ARCHIVE_Z2 mode the stored object is always compressed, so no
// real source file can ever alias its inode; warmup is a no-op there
// and Lookup simply always misses.
func Warmup(store *objstore.Store) (*Cache, error) {
	c := New()
	if store.Mode() == config.ArchiveZ2 {
		return c, nil
	}

	err := store.Enumerate(func(k plumbing.Kind) bool { return k == plumbing.FileKind }, func(info objstore.ObjectInfo) error {
		path := store.Path(info.Checksum, info.Kind)
		if store.Mode() == config.Archive {
			path = store.ContentPath(info.Checksum)
		}

		if _, err := os.Lstat(path); err != nil {
			if os.IsNotExist(err) {
				return nil // symlink/device header with no companion content file
			}
			return errs.IO("lstat "+path, err)
		}

		key, err := KeyOf(path)
		if err != nil {
			return err
		}
		c.Put(key, info.Checksum)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}
