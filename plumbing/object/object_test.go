package object

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dabukalam/ostree/plumbing"
	"github.com/dabukalam/ostree/plumbing/variant"
)

func TestFileHeaderRoundTrip(t *testing.T) {
	h := &FileHeader{
		Mode:          plumbing.ModeFmtReg | 0644,
		UID:           1000,
		GID:           1000,
		SymlinkTarget: "",
		Xattrs:        map[string][]byte{"user.x": []byte("y")},
	}

	var buf bytes.Buffer
	require.NoError(t, h.Encode(&buf))

	got, err := DecodeFileHeader(&buf)
	require.NoError(t, err)
	assert.Equal(t, h, got)
}

func TestHashFileObjectIsStableAndContentSensitive(t *testing.T) {
	h := &FileHeader{Mode: plumbing.ModeFmtReg | 0644}

	c1, err := HashFileObject(h, strings.NewReader("hello\n"))
	require.NoError(t, err)
	c2, err := HashFileObject(h, strings.NewReader("hello\n"))
	require.NoError(t, err)
	assert.Equal(t, c1, c2, "identical content must hash identically")

	c3, err := HashFileObject(h, strings.NewReader("different\n"))
	require.NoError(t, err)
	assert.NotEqual(t, c1, c3)
}

func TestDirTreeValidateRejectsBadNamesAndOrder(t *testing.T) {
	bad := &DirTree{Files: []FileEntry{{Name: "a/b"}}}
	assert.Error(t, bad.Validate())

	bad2 := &DirTree{Files: []FileEntry{{Name: ".."}}}
	assert.Error(t, bad2.Validate())

	unsorted := &DirTree{Files: []FileEntry{{Name: "b"}, {Name: "a"}}}
	assert.Error(t, unsorted.Validate())

	ok := &DirTree{Files: []FileEntry{{Name: "a"}, {Name: "b"}}}
	assert.NoError(t, ok.Validate())
}

func TestDirTreeRoundTripAndHash(t *testing.T) {
	tree := &DirTree{
		Files: []FileEntry{
			{Name: "a", Checksum: plumbing.Sum256Bytes([]byte("a"))},
			{Name: "z", Checksum: plumbing.Sum256Bytes([]byte("z"))},
		},
		Dirs: []SubdirEntry{
			{Name: "sub", ContentChecksum: plumbing.Sum256Bytes([]byte("c")), MetaChecksum: plumbing.Sum256Bytes([]byte("m"))},
		},
	}
	require.NoError(t, tree.Validate())

	h1, err := tree.Hash()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, tree.Encode(&buf))
	got, err := DecodeDirTree(&buf)
	require.NoError(t, err)
	assert.Equal(t, tree, got)

	h2, err := got.Hash()
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestCommitRoundTrip(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	parent := plumbing.Sum256Bytes([]byte("parent"))

	c := &Commit{
		Metadata:  variant.Dict{"version": variant.String("1")},
		Parent:    parent,
		HasParent: true,
		Subject:   "init",
		Body:      "",
		Timestamp: ts,
		Related: []RelatedObject{
			{Checksum: plumbing.Sum256Bytes([]byte("log")), Kind: plumbing.FileKind},
		},
		RootContentChecksum: plumbing.Sum256Bytes([]byte("root-content")),
		RootMetaChecksum:    plumbing.Sum256Bytes([]byte("root-meta")),
	}

	var buf bytes.Buffer
	require.NoError(t, c.Encode(&buf))

	got, err := DecodeCommit(&buf)
	require.NoError(t, err)
	assert.Equal(t, c.Parent, got.Parent)
	assert.True(t, got.HasParent)
	assert.Equal(t, c.Subject, got.Subject)
	assert.Equal(t, c.Timestamp.Unix(), got.Timestamp.Unix())
	assert.Equal(t, c.Related, got.Related)
	assert.Equal(t, c.RootContentChecksum, got.RootContentChecksum)
}

func TestCommitWithoutParent(t *testing.T) {
	c := &Commit{Subject: "root commit", Timestamp: time.Now()}

	var buf bytes.Buffer
	require.NoError(t, c.Encode(&buf))

	got, err := DecodeCommit(&buf)
	require.NoError(t, err)
	assert.False(t, got.HasParent)
	assert.True(t, got.Parent.IsZero())
}
