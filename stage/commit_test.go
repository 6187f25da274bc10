package stage

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dabukalam/ostree/config"
	"github.com/dabukalam/ostree/plumbing"
	"github.com/dabukalam/ostree/plumbing/object"
	"github.com/dabukalam/ostree/storage/objstore"
)

func TestEmitCommitStagesAndIsIdempotent(t *testing.T) {
	store := objstore.New(t.TempDir(), config.Bare)
	p := New(store)
	require.NoError(t, p.Begin(false))
	defer p.Abort()

	params := CommitParams{
		Subject:             "init",
		RootContentChecksum: plumbing.Sum256Bytes([]byte("root-content")),
		RootMetaChecksum:    plumbing.Sum256Bytes([]byte("root-meta")),
		Now:                 time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	c1, err := p.EmitCommit(context.Background(), params)
	require.NoError(t, err)
	c2, err := p.EmitCommit(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, c1, c2)

	raw, err := store.GetMeta(c1, plumbing.CommitKind)
	require.NoError(t, err)
	decoded, err := object.DecodeCommit(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, "init", decoded.Subject)
	assert.False(t, decoded.HasParent)
}

func TestEmitCommitWithParent(t *testing.T) {
	store := objstore.New(t.TempDir(), config.Bare)
	p := New(store)
	require.NoError(t, p.Begin(false))
	defer p.Abort()

	parent := plumbing.Sum256Bytes([]byte("parent-commit"))
	checksum, err := p.EmitCommit(context.Background(), CommitParams{
		Parent:    parent,
		HasParent: true,
		Subject:   "second",
		Now:       time.Now(),
	})
	require.NoError(t, err)

	raw, err := store.GetMeta(checksum, plumbing.CommitKind)
	require.NoError(t, err)
	decoded, err := object.DecodeCommit(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.True(t, decoded.HasParent)
	assert.Equal(t, parent, decoded.Parent)
}
