package checkout

import (
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"golang.org/x/sys/unix"
)

func TestLinkIntoSucceeds(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0644))

	dest := filepath.Join(dir, "dest")
	linked, err := linkInto(src, dest, FailIfExists)
	require.NoError(t, err)
	assert.True(t, linked)

	var st unix.Stat_t
	require.NoError(t, unix.Stat(dest, &st))
	assert.Equal(t, uint64(2), uint64(st.Nlink))
}

func TestLinkIntoFailIfExistsReturnsExistsError(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0644))
	dest := filepath.Join(dir, "dest")
	require.NoError(t, os.WriteFile(dest, []byte("old"), 0644))

	_, err := linkInto(src, dest, FailIfExists)
	assert.Error(t, err)

	data, readErr := os.ReadFile(dest)
	require.NoError(t, readErr)
	assert.Equal(t, "old", string(data))
}

func TestLinkIntoUnionFilesReplacesExisting(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	require.NoError(t, os.WriteFile(src, []byte("new"), 0644))
	dest := filepath.Join(dir, "dest")
	require.NoError(t, os.WriteFile(dest, []byte("old"), 0644))

	linked, err := linkInto(src, dest, UnionFiles)
	require.NoError(t, err)
	assert.True(t, linked)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestRenameIntoPlaceFailIfExistsLeavesDestinationUntouched(t *testing.T) {
	dir := t.TempDir()
	tmp := filepath.Join(dir, "tmp")
	require.NoError(t, os.WriteFile(tmp, []byte("new"), 0644))
	dest := filepath.Join(dir, "dest")
	require.NoError(t, os.WriteFile(dest, []byte("old"), 0644))

	err := renameIntoPlace(tmp, dest, FailIfExists)
	assert.Error(t, err)

	data, readErr := os.ReadFile(dest)
	require.NoError(t, readErr)
	assert.Equal(t, "old", string(data))

	_, statErr := os.Stat(tmp)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRenameIntoPlaceUnionFilesAtomicallyReplaces(t *testing.T) {
	dir := t.TempDir()
	tmp := filepath.Join(dir, "tmp")
	require.NoError(t, os.WriteFile(tmp, []byte("new"), 0644))
	dest := filepath.Join(dir, "dest")
	require.NoError(t, os.WriteFile(dest, []byte("old"), 0644))

	err := renameIntoPlace(tmp, dest, UnionFiles)
	require.NoError(t, err)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestHardlinkUnsupportedRecognizesRelevantErrnos(t *testing.T) {
	linkErr := &os.LinkError{Op: "link", Old: "a", New: "b", Err: syscall.EXDEV}
	assert.True(t, hardlinkUnsupported(linkErr))
	assert.False(t, hardlinkUnsupported(nil))
	assert.False(t, hardlinkUnsupported(os.ErrInvalid))
}
