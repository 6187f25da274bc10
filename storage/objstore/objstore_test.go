package objstore

import (
	"context"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dabukalam/ostree/config"
	"github.com/dabukalam/ostree/errs"
	"github.com/dabukalam/ostree/plumbing"
	"github.com/dabukalam/ostree/plumbing/object"
)

func newTestStore(t *testing.T, mode config.Mode) *Store {
	t.Helper()
	root := t.TempDir()
	s := New(root, mode)
	require.NoError(t, s.EnsureLayout())
	return s
}

func TestPutMetaIsIdempotentAndVerifiable(t *testing.T) {
	s := newTestStore(t, config.Bare)
	data := []byte("dirtree-bytes")
	checksum := plumbing.Sum256Bytes(data)

	require.NoError(t, s.PutMeta(context.Background(), plumbing.DirTreeKind, checksum, data))
	require.NoError(t, s.PutMeta(context.Background(), plumbing.DirTreeKind, checksum, data))

	assert.True(t, s.Exists(checksum, plumbing.DirTreeKind))
	got, err := s.GetMeta(checksum, plumbing.DirTreeKind)
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.NoError(t, VerifyChecksum(checksum, got))

	exists, size, err := s.Stat(checksum, plumbing.DirTreeKind)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.EqualValues(t, len(data), size)
}

func TestVerifyChecksumReportsCorruptionWithBothChecksums(t *testing.T) {
	data := []byte("actual content")
	wrong := plumbing.Sum256Bytes([]byte("some other content"))

	err := VerifyChecksum(wrong, data)
	assert.ErrorIs(t, err, errs.ErrCorrupt)
	assert.Contains(t, err.Error(), wrong.String())
	assert.Contains(t, err.Error(), plumbing.Sum256Bytes(data).String())
}

func TestGetMetaNotFound(t *testing.T) {
	s := newTestStore(t, config.Bare)
	_, err := s.GetMeta(plumbing.Checksum{}, plumbing.CommitKind)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestPutFileRegularRoundTripAcrossModes(t *testing.T) {
	for _, mode := range []config.Mode{config.Bare, config.Archive, config.ArchiveZ2} {
		mode := mode
		t.Run(mode.String(), func(t *testing.T) {
			s := newTestStore(t, mode)
			header := &object.FileHeader{Mode: plumbing.ModeFmtReg | 0644}
			content := "hello, world\n"

			checksum, err := s.PutFile(context.Background(), header, strings.NewReader(content))
			require.NoError(t, err)

			wantChecksum, err := object.HashFileObject(header, strings.NewReader(content))
			require.NoError(t, err)
			assert.Equal(t, wantChecksum, checksum)

			gotHeader, rc, err := s.OpenFile(checksum)
			require.NoError(t, err)
			defer rc.Close()
			assert.True(t, gotHeader.Mode.Canonical().IsRegular())

			gotContent, err := io.ReadAll(rc)
			require.NoError(t, err)
			assert.Equal(t, content, string(gotContent))
		})
	}
}

func TestPutFileIsIdempotent(t *testing.T) {
	for _, mode := range []config.Mode{config.Bare, config.Archive, config.ArchiveZ2} {
		s := newTestStore(t, mode)
		header := &object.FileHeader{Mode: plumbing.ModeFmtReg | 0644}

		c1, err := s.PutFile(context.Background(), header, strings.NewReader("same"))
		require.NoError(t, err)
		c2, err := s.PutFile(context.Background(), header, strings.NewReader("same"))
		require.NoError(t, err)
		assert.Equal(t, c1, c2)
	}
}

func TestPutFileSymlinkArchive(t *testing.T) {
	s := newTestStore(t, config.Archive)
	header := &object.FileHeader{Mode: plumbing.ModeFmtLnk | 0777, SymlinkTarget: "target/path"}

	checksum, err := s.PutFile(context.Background(), header, nil)
	require.NoError(t, err)

	gotHeader, rc, err := s.OpenFile(checksum)
	require.NoError(t, err)
	defer rc.Close()
	assert.True(t, gotHeader.Mode.Canonical().IsSymlink())
	assert.Equal(t, "target/path", gotHeader.SymlinkTarget)

	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Empty(t, b)
}

func TestPutFileSymlinkBare(t *testing.T) {
	s := newTestStore(t, config.Bare)
	header := &object.FileHeader{Mode: plumbing.ModeFmtLnk | 0777, SymlinkTarget: "elsewhere"}

	checksum, err := s.PutFile(context.Background(), header, nil)
	require.NoError(t, err)

	path := s.Path(checksum, plumbing.FileKind)
	info, err := os.Lstat(path)
	require.NoError(t, err)
	assert.True(t, info.Mode()&os.ModeSymlink != 0)

	linkTarget, err := os.Readlink(path)
	require.NoError(t, err)
	assert.Equal(t, "elsewhere", linkTarget)
}

func TestEnumerateFiltersByKind(t *testing.T) {
	s := newTestStore(t, config.Bare)
	fileChecksum, err := s.PutFile(context.Background(), &object.FileHeader{Mode: plumbing.ModeFmtReg | 0644}, strings.NewReader("x"))
	require.NoError(t, err)

	metaData := []byte("dirmeta-bytes")
	metaChecksum := plumbing.Sum256Bytes(metaData)
	require.NoError(t, s.PutMeta(context.Background(), plumbing.DirMetaKind, metaChecksum, metaData))

	var found []ObjectInfo
	err = s.Enumerate(func(k plumbing.Kind) bool { return k == plumbing.FileKind }, func(info ObjectInfo) error {
		found = append(found, info)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, fileChecksum, found[0].Checksum)
	assert.Equal(t, plumbing.FileKind, found[0].Kind)
}
