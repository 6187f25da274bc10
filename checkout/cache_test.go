package checkout

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dabukalam/ostree/config"
	"github.com/dabukalam/ostree/plumbing"
	"github.com/dabukalam/ostree/plumbing/object"
	"github.com/dabukalam/ostree/stage"
	"github.com/dabukalam/ostree/storage/objstore"
)

func stageOneFile(t *testing.T, store *objstore.Store, content string) plumbing.Checksum {
	t.Helper()
	p := stage.New(store)
	require.NoError(t, p.Begin(false))
	defer p.Abort()
	checksum, err := p.StageFile(context.Background(), &object.FileHeader{
		Mode: plumbing.ModeFmtReg | 0644,
	}, strings.NewReader(content))
	require.NoError(t, err)
	return checksum
}

func TestUncompressedCacheEnsureWritesReadableCopy(t *testing.T) {
	store := objstore.New(t.TempDir(), config.ArchiveZ2)
	checksum := stageOneFile(t, store, "cached content")

	cache := NewUncompressedCache(t.TempDir(), store)
	path, err := cache.Ensure(checksum)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "cached content", string(data))
}

func TestUncompressedCacheEnsureIsIdempotent(t *testing.T) {
	store := objstore.New(t.TempDir(), config.ArchiveZ2)
	checksum := stageOneFile(t, store, "x")

	cache := NewUncompressedCache(t.TempDir(), store)
	path1, err := cache.Ensure(checksum)
	require.NoError(t, err)
	path2, err := cache.Ensure(checksum)
	require.NoError(t, err)
	assert.Equal(t, path1, path2)
}
