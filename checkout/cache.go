package checkout

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/dabukalam/ostree/errs"
	"github.com/dabukalam/ostree/plumbing"
	"github.com/dabukalam/ostree/storage/objstore"
)

// UncompressedCache holds on-demand decompressed copies of ARCHIVE_Z2
// file objects so USER-mode checkouts can still hardlink instead of
// decompressing on every checkout (§4.3, §4.1 "uncompressed-objects-cache").
type UncompressedCache struct {
	root  string
	store *objstore.Store

	mu       sync.Mutex
	prefixes map[string]struct{}
}

// NewUncompressedCache returns a cache rooted at
// <repo>/uncompressed-objects-cache, backed by store for decompression.
func NewUncompressedCache(repoRoot string, store *objstore.Store) *UncompressedCache {
	return &UncompressedCache{
		root:     filepath.Join(repoRoot, "uncompressed-objects-cache"),
		store:    store,
		prefixes: map[string]struct{}{},
	}
}

func (c *UncompressedCache) path(checksum plumbing.Checksum) string {
	hex := checksum.String()
	return filepath.Join(c.root, "objects", hex[0:2], hex[2:]+".file")
}

// Ensure returns the path of checksum's uncompressed copy, decompressing
// it from the main ARCHIVE_Z2 object first if it is not already cached
// (§4.3 step 1).
func (c *UncompressedCache) Ensure(checksum plumbing.Checksum) (string, error) {
	dest := c.path(checksum)
	if _, err := os.Stat(dest); err == nil {
		return dest, nil
	}

	header, content, err := c.store.OpenFile(checksum)
	if err != nil {
		return "", err
	}
	defer content.Close()

	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errs.IO("create "+dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".uncompressed-tmp-*")
	if err != nil {
		return "", errs.IO("create temp uncompressed object", err)
	}
	tmpPath := tmp.Name()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return "", errs.IO("read compressed content for "+checksum.String(), err)
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return "", errs.IO("write uncompressed content", err)
	}
	if err := tmp.Chmod(os.FileMode(header.Mode.Canonical().Perm()) | 0444); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return "", errs.IO("chmod uncompressed content", err)
	}
	if err := unix.Fdatasync(int(tmp.Fd())); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return "", errs.IO("fdatasync uncompressed content", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", errs.IO("close uncompressed content", err)
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		if os.IsExist(err) {
			return dest, nil
		}
		return "", errs.IO("rename uncompressed content into place", err)
	}

	c.markTouched(checksum.String()[0:2])
	return dest, nil
}

func (c *UncompressedCache) markTouched(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prefixes[prefix] = struct{}{}
}

// swapTouched atomically returns and clears the set of fanout prefixes
// touched since the last call, for checkout-gc to scan (§4.3, §5).
func (c *UncompressedCache) swapTouched() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	prefixes := make([]string, 0, len(c.prefixes))
	for p := range c.prefixes {
		prefixes = append(prefixes, p)
	}
	c.prefixes = map[string]struct{}{}
	return prefixes
}
