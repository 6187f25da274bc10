// Package stage implements the staging/commit pipeline: transactional
// ingestion of a filesystem subtree or an archive entry stream into
// the object store, producing a commit (§2, §4.2).
package stage

import (
	"sync"

	"github.com/dabukalam/ostree/devino"
	"github.com/dabukalam/ostree/errs"
	"github.com/dabukalam/ostree/logging"
	"github.com/dabukalam/ostree/storage/objstore"
)

// ModifierFlags mirrors the original's OstreeRepoCommitModifierFlags:
// behavior switches applied uniformly across a whole staging operation
// (§4.2 NEW).
type ModifierFlags struct {
	// SkipXattrs omits reading/storing extended attributes entirely.
	SkipXattrs bool
	// CanonicalPermissions forces 0755 for directories and executable
	// files, 0644 otherwise, regardless of the source file's mode.
	CanonicalPermissions bool
	// ErrorOnUnlabeledContent is accepted for shape-compatibility with
	// the original but is not implemented: SELinux labeling is out of
	// scope, so requesting it fails fast with ErrUnsupported instead of
	// being silently ignored.
	ErrorOnUnlabeledContent bool
}

func (f ModifierFlags) validate() error {
	if f.ErrorOnUnlabeledContent {
		return errs.Unsupported("ErrorOnUnlabeledContent modifier flag")
	}
	return nil
}

// FilterAction is the verdict a CommitFilter returns for one entry,
// matching the original's OstreeRepoCommitFilter ALLOW/SKIP split
// (§4.2 NEW).
type FilterAction int

const (
	// FilterAllow stages the entry normally.
	FilterAllow FilterAction = iota
	// FilterSkip omits the entry (and, for a directory, its subtree)
	// from the staged tree entirely.
	FilterSkip
)

// CommitFilter is consulted once per filesystem entry during
// StageDirectory, keyed by the entry's path relative to the directory
// root being staged.
type CommitFilter func(relPath string) FilterAction

// Pipeline ties an object store to the staging-specific state: the
// current transaction's devino cache and the modifier/filter
// configuration for the staging calls made while it is open.
type Pipeline struct {
	store *objstore.Store

	mu          sync.Mutex
	inTxn       bool
	devinoCache *devino.Cache

	Modifiers ModifierFlags
	Filter    CommitFilter
}

// New returns a Pipeline over store. Call Begin before staging
// anything and Commit or Abort when done (§4.2's transaction bracket).
func New(store *objstore.Store) *Pipeline {
	return &Pipeline{store: store}
}

// Begin opens the single staging transaction this Pipeline allows at
// a time. If warmupDevino is true, every existing loose FILE object is
// scanned to seed the devino cache (§4.2, §4.4).
func (p *Pipeline) Begin(warmupDevino bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.inTxn {
		return errs.State("a staging transaction is already open")
	}
	if err := p.Modifiers.validate(); err != nil {
		return err
	}
	if err := p.store.EnsureLayout(); err != nil {
		return err
	}

	if warmupDevino {
		cache, err := devino.Warmup(p.store)
		if err != nil {
			return err
		}
		p.devinoCache = cache
	} else {
		p.devinoCache = devino.New()
	}

	p.inTxn = true
	logging.Log().WithField("devino_entries", p.devinoCache.Len()).Debug("staging transaction started")
	return nil
}

// Commit closes the transaction. Insertions were already atomic and
// idempotent as they happened, so there is nothing left to flush.
func (p *Pipeline) Commit() error {
	return p.end()
}

// Abort closes the transaction. Per §4.2, abort is identical to commit
// in effect: no rollback is needed because every insertion was already
// atomic.
func (p *Pipeline) Abort() error {
	return p.end()
}

func (p *Pipeline) end() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.inTxn {
		return errs.State("no staging transaction is open")
	}
	p.inTxn = false
	p.devinoCache = nil
	return nil
}

func (p *Pipeline) requireTxn() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.inTxn {
		return errs.State("staging operation attempted outside an active transaction")
	}
	return nil
}
