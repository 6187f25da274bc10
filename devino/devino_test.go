package devino

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dabukalam/ostree/config"
	"github.com/dabukalam/ostree/plumbing"
	"github.com/dabukalam/ostree/plumbing/object"
	"github.com/dabukalam/ostree/storage/objstore"
)

func TestCachePutLookup(t *testing.T) {
	c := New()
	key := Key{Dev: 1, Ino: 2}
	_, ok := c.Lookup(key)
	assert.False(t, ok)

	want := plumbing.Sum256Bytes([]byte("x"))
	c.Put(key, want)

	got, ok := c.Lookup(key)
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestWarmupFindsBareFileObject(t *testing.T) {
	root := t.TempDir()
	store := objstore.New(root, config.Bare)
	require.NoError(t, store.EnsureLayout())

	header := &object.FileHeader{Mode: plumbing.ModeFmtReg | 0644}
	checksum, err := store.PutFile(context.Background(), header, nil)
	require.NoError(t, err)

	cache, err := Warmup(store)
	require.NoError(t, err)

	path := store.Path(checksum, plumbing.FileKind)
	key, err := KeyOf(path)
	require.NoError(t, err)

	got, ok := cache.Lookup(key)
	require.True(t, ok)
	assert.Equal(t, checksum, got)
}
