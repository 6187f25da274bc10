package stage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dabukalam/ostree/config"
	"github.com/dabukalam/ostree/plumbing"
	"github.com/dabukalam/ostree/storage/objstore"
)

func newTestPipeline(t *testing.T, mode config.Mode) (*Pipeline, *objstore.Store) {
	t.Helper()
	store := objstore.New(t.TempDir(), mode)
	p := New(store)
	require.NoError(t, p.Begin(false))
	t.Cleanup(func() { _ = p.Abort() })
	return p, store
}

func writeTree(t *testing.T, root string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a"), []byte("hello\n"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(root, "b"), 0755))
	require.NoError(t, os.Symlink("../a", filepath.Join(root, "b", "c")))
}

func TestStageDirectoryBuildsExpectedTree(t *testing.T) {
	p, store := newTestPipeline(t, config.Bare)
	src := t.TempDir()
	writeTree(t, src)

	content, meta, err := p.StageDirectory(context.Background(), src, "")
	require.NoError(t, err)

	dirTreeBytes, err := store.GetMeta(content, plumbing.DirTreeKind)
	require.NoError(t, err)
	assert.NotEmpty(t, dirTreeBytes)

	_, err = store.GetMeta(meta, plumbing.DirMetaKind)
	require.NoError(t, err)
}

func TestStageDirectoryIsDeterministic(t *testing.T) {
	p, _ := newTestPipeline(t, config.Bare)
	src := t.TempDir()
	writeTree(t, src)

	content1, _, err := p.StageDirectory(context.Background(), src, "")
	require.NoError(t, err)
	content2, _, err := p.StageDirectory(context.Background(), src, "")
	require.NoError(t, err)
	assert.Equal(t, content1, content2)
}

func TestStageDirectoryFilterSkip(t *testing.T) {
	p, store := newTestPipeline(t, config.Bare)
	src := t.TempDir()
	writeTree(t, src)

	p.Filter = func(relPath string) FilterAction {
		if relPath == "a" {
			return FilterSkip
		}
		return FilterAllow
	}

	content, _, err := p.StageDirectory(context.Background(), src, "")
	require.NoError(t, err)

	tree, err := store.GetMeta(content, plumbing.DirTreeKind)
	require.NoError(t, err)
	assert.NotContains(t, string(tree), "hello")
}

func TestStageDirectoryReusesDevinoCache(t *testing.T) {
	p, store := newTestPipeline(t, config.Bare)
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "f"), []byte("dup"), 0644))

	_, _, err := p.StageDirectory(context.Background(), src, "")
	require.NoError(t, err)

	require.NoError(t, p.Abort())
	p2 := New(store)
	require.NoError(t, p2.Begin(true))
	defer p2.Abort()
	assert.Equal(t, 1, p2.devinoCache.Len())
}
