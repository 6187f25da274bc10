package checkout

import (
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"

	"github.com/dabukalam/ostree/errs"
	"github.com/dabukalam/ostree/logging"
)

// GC atomically swaps out the set of uncompressed-cache fanout
// prefixes touched since the last GC and unlinks every entry in those
// directories whose link count has dropped to 1 — meaning no surviving
// checkout still holds it (§4.3 "checkout-gc", S5).
func (c *UncompressedCache) GC() error {
	prefixes := c.swapTouched()

	var reclaimed, scanned int64
	for _, prefix := range prefixes {
		dir := filepath.Join(c.root, "objects", prefix)
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return errs.IO("read uncompressed cache dir "+dir, err)
		}

		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			scanned++
			path := filepath.Join(dir, entry.Name())
			info, err := os.Lstat(path)
			if err != nil {
				if os.IsNotExist(err) {
					continue
				}
				return errs.IO("lstat "+path, err)
			}
			stat, ok := info.Sys().(*unix.Stat_t)
			if !ok || stat.Nlink != 1 {
				continue
			}
			size := info.Size()
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return errs.IO("unlink "+path, err)
			}
			reclaimed += size
		}
	}

	logging.Log().WithField("scanned", scanned).
		WithField("reclaimed", humanize.Bytes(uint64(reclaimed))).
		WithField("prefixes", len(prefixes)).
		Debug("checkout gc completed")
	return nil
}
