package objstore

import (
	"crypto/rand"
	"encoding/hex"
	"path/filepath"
)

// tempName returns a path under tmp/ with the given prefix and a
// random suffix, for operations (symlink, mknod) that need a path
// rather than an already-open *os.File.
func (s *Store) tempName(prefix string) string {
	var b [8]byte
	_, _ = rand.Read(b)
	return filepath.Join(s.TmpDir(), prefix+hex.EncodeToString(b[:]))
}
