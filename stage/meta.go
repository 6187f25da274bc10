package stage

import (
	"bytes"
	"context"
	"io"

	"github.com/dabukalam/ostree/errs"
	"github.com/dabukalam/ostree/plumbing"
	"github.com/dabukalam/ostree/plumbing/object"
)

// StageFile stages a FILE object (regular file, symlink or device
// node) through the store's mode-specific layout, applying the
// pipeline's modifier flags to the header before writing (§4.2 step
// 2-3, 5-7 for FILE kind). content is nil for symlinks and device
// nodes.
func (p *Pipeline) StageFile(ctx context.Context, header *object.FileHeader, content io.Reader) (plumbing.Checksum, error) {
	if err := p.requireTxn(); err != nil {
		return plumbing.Checksum{}, err
	}
	if err := ctx.Err(); err != nil {
		return plumbing.Checksum{}, errs.ErrCancelled
	}

	h := applyModifiers(header, p.Modifiers)
	return p.store.PutFile(ctx, h, content)
}

// applyModifiers returns a (possibly copied) header reflecting
// SkipXattrs / CanonicalPermissions, leaving the caller's header
// value untouched.
func applyModifiers(header *object.FileHeader, flags ModifierFlags) *object.FileHeader {
	if !flags.SkipXattrs && !flags.CanonicalPermissions {
		return header
	}

	h := *header
	if flags.SkipXattrs {
		h.Xattrs = nil
	}
	if flags.CanonicalPermissions {
		perm := plumbing.PosixMode(0644)
		if h.Mode.Canonical().Perm()&0111 != 0 || h.Mode.Canonical().IsDir() {
			perm = 0755
		}
		h.Mode = h.Mode.Type() | perm
	}
	return &h
}

// StageDirMeta stages a directory's own (uid, gid, mode, xattrs).
func (p *Pipeline) StageDirMeta(ctx context.Context, meta *object.DirMeta) (plumbing.Checksum, error) {
	if err := p.requireTxn(); err != nil {
		return plumbing.Checksum{}, err
	}
	if err := ctx.Err(); err != nil {
		return plumbing.Checksum{}, errs.ErrCancelled
	}

	if p.Modifiers.SkipXattrs || p.Modifiers.CanonicalPermissions {
		m := *meta
		if p.Modifiers.SkipXattrs {
			m.Xattrs = nil
		}
		if p.Modifiers.CanonicalPermissions {
			m.Mode = m.Mode.Type() | 0755
		}
		meta = &m
	}

	checksum, err := meta.Hash()
	if err != nil {
		return plumbing.Checksum{}, err
	}

	var buf bytes.Buffer
	if err := meta.Encode(&buf); err != nil {
		return plumbing.Checksum{}, err
	}

	if err := p.store.PutMeta(ctx, plumbing.DirMetaKind, checksum, buf.Bytes()); err != nil {
		return plumbing.Checksum{}, err
	}
	return checksum, nil
}

// StageDirTree stages a directory's sorted (files, dirs) listing.
// tree must already be in strict sorted order (callers build it via
// mtree.Tree.Names, which returns sorted slices).
func (p *Pipeline) StageDirTree(ctx context.Context, tree *object.DirTree) (plumbing.Checksum, error) {
	if err := p.requireTxn(); err != nil {
		return plumbing.Checksum{}, err
	}
	if err := ctx.Err(); err != nil {
		return plumbing.Checksum{}, errs.ErrCancelled
	}
	if err := tree.Validate(); err != nil {
		return plumbing.Checksum{}, err
	}

	checksum, err := tree.Hash()
	if err != nil {
		return plumbing.Checksum{}, err
	}

	var buf bytes.Buffer
	if err := tree.Encode(&buf); err != nil {
		return plumbing.Checksum{}, err
	}

	if err := p.store.PutMeta(ctx, plumbing.DirTreeKind, checksum, buf.Bytes()); err != nil {
		return plumbing.Checksum{}, err
	}
	return checksum, nil
}
