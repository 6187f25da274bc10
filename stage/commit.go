package stage

import (
	"bytes"
	"context"
	"time"

	"github.com/dabukalam/ostree/errs"
	"github.com/dabukalam/ostree/plumbing"
	"github.com/dabukalam/ostree/plumbing/object"
	"github.com/dabukalam/ostree/plumbing/variant"
)

// CommitParams carries everything EmitCommit needs to build a Commit
// object, grouped to keep the method signature from growing every time
// a field is added (§4.2 "Commit emission").
type CommitParams struct {
	Parent    plumbing.Checksum
	HasParent bool
	Subject   string
	Body      string
	Metadata  variant.Dict
	Related   []object.RelatedObject

	RootContentChecksum plumbing.Checksum
	RootMetaChecksum    plumbing.Checksum

	Now time.Time
}

// EmitCommit builds and stages a commit object linking a staged root
// tree to an optional parent, returning its checksum. It does not
// touch refs; callers write the branch ref themselves once the commit
// is staged (§4.2, §4.5).
func (p *Pipeline) EmitCommit(ctx context.Context, params CommitParams) (plumbing.Checksum, error) {
	if err := p.requireTxn(); err != nil {
		return plumbing.Checksum{}, err
	}
	if err := ctx.Err(); err != nil {
		return plumbing.Checksum{}, errs.ErrCancelled
	}

	c := &object.Commit{
		Metadata:            params.Metadata,
		Parent:              params.Parent,
		HasParent:           params.HasParent,
		Related:             params.Related,
		Subject:             params.Subject,
		Body:                params.Body,
		Timestamp:           params.Now.UTC(),
		RootContentChecksum: params.RootContentChecksum,
		RootMetaChecksum:    params.RootMetaChecksum,
	}

	checksum, err := c.Hash()
	if err != nil {
		return plumbing.Checksum{}, err
	}

	var buf bytes.Buffer
	if err := c.Encode(&buf); err != nil {
		return plumbing.Checksum{}, err
	}

	if err := p.store.PutMeta(ctx, plumbing.CommitKind, checksum, buf.Bytes()); err != nil {
		return plumbing.Checksum{}, err
	}
	return checksum, nil
}
