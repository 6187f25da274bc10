// Package ostree ties the object store, staging pipeline, checkout
// engine, and reference store into a single repository handle, the
// way the teacher's top-level Repository type wraps a Storer and a
// worktree filesystem.
package ostree

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/dabukalam/ostree/checkout"
	"github.com/dabukalam/ostree/config"
	"github.com/dabukalam/ostree/errs"
	"github.com/dabukalam/ostree/logging"
	"github.com/dabukalam/ostree/plumbing"
	"github.com/dabukalam/ostree/plumbing/object"
	"github.com/dabukalam/ostree/stage"
	"github.com/dabukalam/ostree/storage/objstore"
	"github.com/dabukalam/ostree/storage/refstore"
)

const configFileName = "config"

// Repo is a handle on a single repository directory: its object
// store, ref store, config, and (if configured) a chain of parent
// repositories consulted on local lookup miss (§9 "cross-module
// cyclic calls").
type Repo struct {
	root   string
	cfg    *config.Config
	store  *objstore.Store
	refs   *refstore.Store
	cache  *checkout.UncompressedCache
	parent *Repo
}

// Init creates a new repository at root with the given mode and
// writes its config file. root must not already contain a config
// file.
func Init(root string, mode config.Mode) (*Repo, error) {
	configPath := filepath.Join(root, configFileName)
	if _, err := os.Stat(configPath); err == nil {
		return nil, errs.Exists("repository already initialized at %s", root)
	}

	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errs.IO("create repository directory "+root, err)
	}

	cfg := config.Default(mode)
	if err := writeConfig(configPath, cfg); err != nil {
		return nil, err
	}

	repo, err := openWithVisited(root, nil)
	if err != nil {
		return nil, err
	}
	if err := repo.store.EnsureLayout(); err != nil {
		return nil, err
	}
	logging.Log().WithField("root", root).WithField("mode", mode).Info("initialized repository")
	return repo, nil
}

// Open opens an existing repository at root, resolving its parent
// chain if configured.
func Open(root string) (*Repo, error) {
	return openWithVisited(root, nil)
}

// openWithVisited opens root's config and, if it names a parent, opens
// that parent too, refusing to close a cycle (§9 Open Question
// resolution: cycles are detected by canonical absolute path, not
// guessed at silently).
func openWithVisited(root string, visited []string) (*Repo, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errs.IO("resolve absolute path for "+root, err)
	}
	for _, v := range visited {
		if v == abs {
			return nil, errs.Invalid("parent repository chain cycles back to %s", abs)
		}
	}
	visited = append(visited, abs)

	configPath := filepath.Join(root, configFileName)
	f, err := os.Open(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.NotFound("repository config at %s", configPath)
		}
		return nil, errs.IO("open "+configPath, err)
	}
	cfg, err := config.Decode(f)
	_ = f.Close()
	if err != nil {
		return nil, err
	}

	store := objstore.New(abs, cfg.Mode)
	refs := refstore.New(abs)

	repo := &Repo{root: abs, cfg: cfg, store: store, refs: refs}

	if cfg.Mode == config.ArchiveZ2 && cfg.EnableUncompressedCache {
		repo.cache = checkout.NewUncompressedCache(abs, store)
	}

	if cfg.Parent != "" {
		parent, err := openWithVisited(cfg.Parent, visited)
		if err != nil {
			return nil, err
		}
		repo.parent = parent
	}

	return repo, nil
}

func writeConfig(path string, cfg *config.Config) error {
	var buf bytes.Buffer
	if err := cfg.Encode(&buf); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return errs.IO("write "+path, err)
	}
	return nil
}

// Root returns the repository's absolute root directory.
func (r *Repo) Root() string { return r.root }

// Mode returns the repository's storage mode.
func (r *Repo) Mode() config.Mode { return r.cfg.Mode }

// Store exposes the underlying object store for callers that need
// lower-level access (fsck-style tooling, tests).
func (r *Repo) Store() *objstore.Store { return r.store }

// LoadCommit loads and decodes the commit named by checksum,
// recursing into a configured parent repository on local miss the
// same way object lookup does.
func (r *Repo) LoadCommit(checksum plumbing.Checksum) (*object.Commit, error) {
	raw, err := r.getMeta(checksum, plumbing.CommitKind)
	if err != nil {
		return nil, err
	}
	return object.DecodeCommit(bytes.NewReader(raw))
}

// LoadDirTree implements checkout.TreeLoader.
func (r *Repo) LoadDirTree(checksum plumbing.Checksum) (*object.DirTree, error) {
	raw, err := r.getMeta(checksum, plumbing.DirTreeKind)
	if err != nil {
		return nil, err
	}
	return object.DecodeDirTree(bytes.NewReader(raw))
}

// LoadDirMeta implements checkout.TreeLoader.
func (r *Repo) LoadDirMeta(checksum plumbing.Checksum) (*object.DirMeta, error) {
	raw, err := r.getMeta(checksum, plumbing.DirMetaKind)
	if err != nil {
		return nil, err
	}
	return object.DecodeDirMeta(bytes.NewReader(raw))
}

// getMeta reads a metadata object from this repo's store, falling
// back to the parent chain on NOT_FOUND (§4.1 "absence + parent repo
// set → recurse into parent").
func (r *Repo) getMeta(checksum plumbing.Checksum, kind plumbing.Kind) ([]byte, error) {
	raw, err := r.store.GetMeta(checksum, kind)
	if err == nil {
		return raw, nil
	}
	if !errs.IsNotFound(err) || r.parent == nil {
		return nil, err
	}
	return r.parent.getMeta(checksum, kind)
}

// commitParent implements refstore.CommitLookup for Resolve's "^"
// walk: load the commit and report its parent.
func (r *Repo) commitParent(checksum plumbing.Checksum) (plumbing.Checksum, bool, error) {
	c, err := r.LoadCommit(checksum)
	if err != nil {
		return plumbing.Checksum{}, false, err
	}
	return c.Parent, c.HasParent, nil
}

// resolveInParent implements refstore.ParentLookup, delegating a rev
// to the configured parent repository when present.
func (r *Repo) resolveInParent(rev string) (plumbing.Checksum, bool, error) {
	if r.parent == nil {
		return plumbing.Checksum{}, false, nil
	}
	checksum, err := r.parent.Resolve(context.Background(), rev, true)
	if err != nil {
		return plumbing.Checksum{}, false, err
	}
	if checksum.IsZero() {
		return plumbing.Checksum{}, false, nil
	}
	return checksum, true, nil
}

// Resolve implements §4.5's rev resolution against this repo's refs,
// falling back to the parent chain. missingOK suppresses NOT_FOUND,
// returning the zero checksum instead.
func (r *Repo) Resolve(ctx context.Context, rev string, missingOK bool) (plumbing.Checksum, error) {
	return r.refs.Resolve(ctx, rev, r.commitParent, r.resolveInParent, missingOK)
}

// WriteRef writes name (under refs/heads, or refs/remotes/<remote> if
// remote is non-empty) to rev, regenerating refs/summary when this
// repo's mode is ARCHIVE or ARCHIVE_Z2 (§4.5).
func (r *Repo) WriteRef(remote, name string, rev plumbing.Checksum) error {
	if err := r.refs.Write(remote, name, rev); err != nil {
		return err
	}
	if r.cfg.Mode == config.Archive || r.cfg.Mode == config.ArchiveZ2 {
		return r.refs.RegenerateSummary()
	}
	return nil
}

// ListRefs delegates to the ref store.
func (r *Repo) ListRefs(prefix string) ([]refstore.RefEntry, error) {
	return r.refs.ListRefs(prefix)
}

// CommitParams collects a Stage call's commit metadata, mirroring
// stage.CommitParams but taking a parent rev string instead of an
// already-resolved checksum.
type CommitParams struct {
	Branch     string
	ParentRev  string // resolved via Resolve; "" means no parent
	Subject    string
	Body       string
	Modifiers  stage.ModifierFlags
	Filter     stage.CommitFilter
	WarmDevino bool
}

// Stage ingests dir as a new commit on Branch, writing the ref on
// success. This is the repo-level convenience wrapping the lower-level
// stage.Pipeline transaction bracket (§4.2).
func (r *Repo) Stage(ctx context.Context, dir string, params CommitParams) (plumbing.Checksum, error) {
	var parent plumbing.Checksum
	hasParent := false
	if params.ParentRev != "" {
		c, err := r.Resolve(ctx, params.ParentRev, false)
		if err != nil {
			return plumbing.Checksum{}, err
		}
		parent = c
		hasParent = true
	}

	p := stage.New(r.store)
	p.Modifiers = params.Modifiers
	p.Filter = params.Filter
	if err := p.Begin(params.WarmDevino); err != nil {
		return plumbing.Checksum{}, err
	}
	defer p.Abort()

	content, meta, err := p.StageDirectory(ctx, dir, "")
	if err != nil {
		return plumbing.Checksum{}, err
	}

	checksum, err := p.EmitCommit(ctx, stage.CommitParams{
		Parent:              parent,
		HasParent:           hasParent,
		Subject:             params.Subject,
		Body:                params.Body,
		RootContentChecksum: content,
		RootMetaChecksum:    meta,
		Now:                 time.Now(),
	})
	if err != nil {
		return plumbing.Checksum{}, err
	}

	if err := p.Commit(); err != nil {
		return plumbing.Checksum{}, err
	}

	if params.Branch != "" {
		if err := r.WriteRef("", params.Branch, checksum); err != nil {
			return plumbing.Checksum{}, err
		}
	}

	logging.Log().WithField("commit", checksum).WithField("branch", params.Branch).Info("staged commit")
	return checksum, nil
}

// Checkout resolves rev to a commit and materializes its root tree at
// dest (§4.3).
func (r *Repo) Checkout(ctx context.Context, rev, dest string, opts checkout.Options) error {
	checksum, err := r.Resolve(ctx, rev, false)
	if err != nil {
		return err
	}
	commit, err := r.LoadCommit(checksum)
	if err != nil {
		return err
	}

	engine := checkout.New(r.store, r, r.cache)
	return engine.Checkout(ctx, commit.RootContentChecksum, commit.RootMetaChecksum, dest, opts)
}

// UncompressedCache returns the repo's on-demand uncompressed object
// cache, or nil when the mode isn't ARCHIVE_Z2 or caching is disabled
// in config.
func (r *Repo) UncompressedCache() *checkout.UncompressedCache { return r.cache }
