package refstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dabukalam/ostree/errs"
	"github.com/dabukalam/ostree/plumbing"
	"github.com/dabukalam/ostree/plumbing/object"
)

func noParent(plumbing.Checksum) (plumbing.Checksum, bool, error) {
	return plumbing.Checksum{}, false, nil
}

func TestWriteAndResolveLiteralChecksum(t *testing.T) {
	s := New(t.TempDir())
	c1 := plumbing.Sum256Bytes([]byte("commit-1"))

	require.NoError(t, s.Write("", "main", c1))

	got, err := s.Resolve(context.Background(), "main", noParent, nil, false)
	require.NoError(t, err)
	assert.Equal(t, c1, got)

	got, err = s.Resolve(context.Background(), c1.String(), noParent, nil, false)
	require.NoError(t, err)
	assert.Equal(t, c1, got)
}

func TestWriteRejectsChecksumLikeName(t *testing.T) {
	s := New(t.TempDir())
	c1 := plumbing.Sum256Bytes([]byte("commit-1"))
	err := s.Write("", c1.String(), c1)
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func TestResolveParentWalk(t *testing.T) {
	s := New(t.TempDir())
	c1 := plumbing.Sum256Bytes([]byte("c1"))
	c2 := plumbing.Sum256Bytes([]byte("c2"))
	require.NoError(t, s.Write("", "main", c2))

	lookup := func(c plumbing.Checksum) (plumbing.Checksum, bool, error) {
		if c == c2 {
			return c1, true, nil
		}
		return plumbing.Checksum{}, false, nil
	}

	got, err := s.Resolve(context.Background(), "main^", lookup, nil, false)
	require.NoError(t, err)
	assert.Equal(t, c1, got)

	_, err = s.Resolve(context.Background(), "main^^", lookup, nil, false)
	assert.ErrorIs(t, err, errs.ErrNotFound)
	assert.ErrorIs(t, err, object.ErrNoParent)
}

func TestResolveMissingOK(t *testing.T) {
	s := New(t.TempDir())
	got, err := s.Resolve(context.Background(), "nope", noParent, nil, true)
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	_, err = s.Resolve(context.Background(), "nope", noParent, nil, false)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestResolveRemoteRefs(t *testing.T) {
	s := New(t.TempDir())
	c1 := plumbing.Sum256Bytes([]byte("remote-commit"))
	require.NoError(t, s.Write("origin", "main", c1))

	got, err := s.Resolve(context.Background(), "origin/main", noParent, nil, false)
	require.NoError(t, err)
	assert.Equal(t, c1, got)
}

func TestListRefsAndRegenerateSummary(t *testing.T) {
	s := New(t.TempDir())
	c1 := plumbing.Sum256Bytes([]byte("a"))
	c2 := plumbing.Sum256Bytes([]byte("b"))
	require.NoError(t, s.Write("", "main", c1))
	require.NoError(t, s.Write("origin", "main", c2))

	entries, err := s.ListRefs("")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	require.NoError(t, s.RegenerateSummary())
}
