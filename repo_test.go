package ostree

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dabukalam/ostree/checkout"
	"github.com/dabukalam/ostree/config"
	"github.com/dabukalam/ostree/errs"
	"github.com/dabukalam/ostree/plumbing"
	"github.com/dabukalam/ostree/stage"
	"github.com/dabukalam/ostree/storage/objstore"
)

func TestS1BareCommitRoundTrip(t *testing.T) {
	root := filepath.Join(t.TempDir(), "repo")
	repo, err := Init(root, config.Bare)
	require.NoError(t, err)

	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "a"), []byte("hello\n"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(src, "b"), 0755))
	require.NoError(t, os.Symlink("../a", filepath.Join(src, "b", "c")))

	checksum, err := repo.Stage(context.Background(), src, CommitParams{
		Branch:  "main",
		Subject: "init",
	})
	require.NoError(t, err)

	resolved, err := repo.Resolve(context.Background(), "main", false)
	require.NoError(t, err)
	assert.Equal(t, checksum, resolved)

	dest := filepath.Join(t.TempDir(), "out")
	require.NoError(t, repo.Checkout(context.Background(), "main", dest, checkout.Options{Permissions: checkout.NoneMode}))

	data, err := os.ReadFile(filepath.Join(dest, "a"))
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(data))
	assert.Equal(t, os.FileMode(0644), statMode(t, filepath.Join(dest, "a")))

	link, err := os.Readlink(filepath.Join(dest, "b", "c"))
	require.NoError(t, err)
	assert.Equal(t, "../a", link)
}

func statMode(t *testing.T, path string) os.FileMode {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)
	return info.Mode().Perm()
}

func TestS2ArchiveZ2Dedup(t *testing.T) {
	root := filepath.Join(t.TempDir(), "repo")
	repo, err := Init(root, config.ArchiveZ2)
	require.NoError(t, err)

	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "x"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(src, "y"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "x", "f"), []byte("shared bytes"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "y", "f"), []byte("shared bytes"), 0644))

	checksum, err := repo.Stage(context.Background(), src, CommitParams{Branch: "main", Subject: "dedup"})
	require.NoError(t, err)

	commit, err := repo.LoadCommit(checksum)
	require.NoError(t, err)
	rootTree, err := repo.LoadDirTree(commit.RootContentChecksum)
	require.NoError(t, err)

	var xChecksum, yChecksum = rootTree.Dirs[0].ContentChecksum, rootTree.Dirs[1].ContentChecksum
	if rootTree.Dirs[0].Name != "x" {
		xChecksum, yChecksum = yChecksum, xChecksum
	}

	xTree, err := repo.LoadDirTree(xChecksum)
	require.NoError(t, err)
	yTree, err := repo.LoadDirTree(yChecksum)
	require.NoError(t, err)

	require.Len(t, xTree.Files, 1)
	require.Len(t, yTree.Files, 1)
	assert.Equal(t, xTree.Files[0].Checksum, yTree.Files[0].Checksum)

	fileObjects := 0
	require.NoError(t, repo.Store().Enumerate(
		func(k plumbing.Kind) bool { return k == plumbing.FileKind },
		func(objstore.ObjectInfo) error {
			fileObjects++
			return nil
		},
	))
	assert.Equal(t, 1, fileObjects)
}

func TestS3ParentRevWalk(t *testing.T) {
	root := filepath.Join(t.TempDir(), "repo")
	repo, err := Init(root, config.Bare)
	require.NoError(t, err)

	src1 := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src1, "a"), []byte("v1"), 0644))
	c1, err := repo.Stage(context.Background(), src1, CommitParams{Branch: "main", Subject: "c1"})
	require.NoError(t, err)

	src2 := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src2, "a"), []byte("v2"), 0644))
	c2, err := repo.Stage(context.Background(), src2, CommitParams{Branch: "main", ParentRev: "main", Subject: "c2"})
	require.NoError(t, err)

	got, err := repo.Resolve(context.Background(), "main^", false)
	require.NoError(t, err)
	assert.Equal(t, c1, got)

	_, err = repo.Resolve(context.Background(), "main^^", false)
	assert.ErrorIs(t, err, errs.ErrNotFound)

	assert.NotEqual(t, c1, c2)
}

func TestS6UnionOverwriteReplacesExistingFile(t *testing.T) {
	root := filepath.Join(t.TempDir(), "repo")
	repo, err := Init(root, config.Bare)
	require.NoError(t, err)

	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "a"), []byte("new content"), 0644))
	_, err = repo.Stage(context.Background(), src, CommitParams{Branch: "main", Subject: "s6"})
	require.NoError(t, err)

	dest := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dest, "a"), []byte("old content"), 0644))

	err = repo.Checkout(context.Background(), "main", dest, checkout.Options{
		Permissions: checkout.NoneMode,
		Overwrite:   checkout.UnionFiles,
	})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dest, "a"))
	require.NoError(t, err)
	assert.Equal(t, "new content", string(data))
}

func TestCommitFilterSkipOmitsFileFromTreeAndStore(t *testing.T) {
	root := filepath.Join(t.TempDir(), "repo")
	repo, err := Init(root, config.Bare)
	require.NoError(t, err)

	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "keep"), []byte("keep"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "skip"), []byte("unique-skip-content"), 0644))

	checksum, err := repo.Stage(context.Background(), src, CommitParams{
		Branch:  "main",
		Subject: "filtered",
		Filter: func(relPath string) stage.FilterAction {
			if relPath == "skip" {
				return stage.FilterSkip
			}
			return stage.FilterAllow
		},
	})
	require.NoError(t, err)

	commit, err := repo.LoadCommit(checksum)
	require.NoError(t, err)
	tree, err := repo.LoadDirTree(commit.RootContentChecksum)
	require.NoError(t, err)

	require.Len(t, tree.Files, 1)
	assert.Equal(t, "keep", tree.Files[0].Name)

	fileObjects := 0
	require.NoError(t, repo.Store().Enumerate(
		func(k plumbing.Kind) bool { return k == plumbing.FileKind },
		func(objstore.ObjectInfo) error {
			fileObjects++
			return nil
		},
	))
	assert.Equal(t, 1, fileObjects)
}

func TestWriteRefRejectsChecksumLikeRefName(t *testing.T) {
	root := filepath.Join(t.TempDir(), "repo")
	repo, err := Init(root, config.Bare)
	require.NoError(t, err)

	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "a"), []byte("x"), 0644))
	checksum, err := repo.Stage(context.Background(), src, CommitParams{Subject: "no-branch"})
	require.NoError(t, err)

	err = repo.WriteRef("", checksum.String(), checksum)
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func TestOpenRejectsParentCycle(t *testing.T) {
	root := filepath.Join(t.TempDir(), "repo")
	_, err := Init(root, config.Bare)
	require.NoError(t, err)

	configPath := filepath.Join(root, "config")
	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	abs, err := filepath.Abs(root)
	require.NoError(t, err)
	data = append(data, []byte("\tparent = "+abs+"\n")...)
	require.NoError(t, os.WriteFile(configPath, data, 0644))

	_, err = Open(root)
	assert.Error(t, err)
}
