// Package checkout implements the materialization path: reconstructing
// a filesystem tree on disk from a commit's root dir-tree, using
// hardlink-based deduplication against the object store where the
// mode pairing allows it and falling back to copy otherwise (§4.3).
package checkout

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/alitto/pond"

	"github.com/dabukalam/ostree/config"
	"github.com/dabukalam/ostree/errs"
	"github.com/dabukalam/ostree/plumbing"
	"github.com/dabukalam/ostree/plumbing/object"
	"github.com/dabukalam/ostree/storage/objstore"
)

// PermissionMode selects how uid/gid/mode/xattrs are applied to
// materialized files (§4.3).
type PermissionMode int

const (
	// NoneMode preserves uid/gid/mode/xattrs exactly, requiring
	// appropriate privilege to chown to an arbitrary uid.
	NoneMode PermissionMode = iota
	// UserMode overrides uid/gid to the current effective user, drops
	// xattrs, and skips device nodes entirely.
	UserMode
)

// OverwriteMode selects how an existing destination is treated.
type OverwriteMode int

const (
	// FailIfExists is the default: checkout fails if the destination
	// directory already has an entry at a path being materialized.
	FailIfExists OverwriteMode = iota
	// UnionFiles tolerates existing directories (EEXIST swallowed) and
	// atomically replaces existing files.
	UnionFiles
)

// FilterAction is the verdict a CheckoutFilter returns for one entry.
type FilterAction int

const (
	// CheckoutAllow materializes the entry normally.
	CheckoutAllow FilterAction = iota
	// CheckoutSkip omits the entry (and, for a directory, its subtree).
	CheckoutSkip
)

// CheckoutFilter mirrors the staging CommitFilter shape, letting a
// caller skip materializing selected paths (§4.3 NEW).
type CheckoutFilter func(relPath string) FilterAction

// TreeLoader resolves the children of a staged directory: its dir-tree
// listing and its own dir-meta. Implemented by the repository type,
// kept as an interface here so checkout has no dependency on it.
type TreeLoader interface {
	LoadDirTree(checksum plumbing.Checksum) (*object.DirTree, error)
	LoadDirMeta(checksum plumbing.Checksum) (*object.DirMeta, error)
}

// Options configures one checkout operation.
type Options struct {
	Permissions PermissionMode
	Overwrite   OverwriteMode
	Filter      CheckoutFilter
	// Progress is invoked as the worker pool completes per-file
	// operations; done/total both count individual file entries, not
	// directories (§4.3 NEW).
	Progress func(done, total int)
	// Concurrency bounds the per-file worker pool. Zero means a small
	// fixed default.
	Concurrency int
}

// Engine materializes trees from a store onto the real filesystem.
type Engine struct {
	store  *objstore.Store
	loader TreeLoader
	cache  *UncompressedCache
}

// New returns an Engine over store. cache may be nil when the store's
// mode is not ArchiveZ2 or the uncompressed cache is disabled.
func New(store *objstore.Store, loader TreeLoader, cache *UncompressedCache) *Engine {
	return &Engine{store: store, loader: loader, cache: cache}
}

// Checkout materializes the tree rooted at (rootContent, rootMeta) at
// dest. dest's parent must already exist; dest itself is created.
func (e *Engine) Checkout(ctx context.Context, rootContent, rootMeta plumbing.Checksum, dest string, opts Options) error {
	if err := ctx.Err(); err != nil {
		return errs.ErrCancelled
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	pool := pond.New(concurrency, 0, pond.MinWorkers(1))
	defer pool.StopAndWait()

	total, err := e.countFiles(rootContent)
	if err != nil {
		return err
	}

	run := &checkoutRun{
		engine: e,
		opts:   opts,
		pool:   pool,
		total:  int64(total),
	}

	if err := run.materializeDir(ctx, rootContent, rootMeta, dest, ""); err != nil {
		return err
	}
	pool.StopAndWait()
	if err := run.firstErr(); err != nil {
		return err
	}
	return nil
}

// countFiles walks the tree once up front just to size the progress
// callback's total. A tree that fails to load here fails the whole
// checkout before anything is materialized.
func (e *Engine) countFiles(content plumbing.Checksum) (int, error) {
	tree, err := e.loader.LoadDirTree(content)
	if err != nil {
		return 0, err
	}
	n := len(tree.Files)
	for _, d := range tree.Dirs {
		sub, err := e.countFiles(d.ContentChecksum)
		if err != nil {
			return 0, err
		}
		n += sub
	}
	return n, nil
}

// checkoutRun carries the per-operation state shared across the
// recursive directory walk and the worker pool's file tasks: the
// latched first error and the progress counters (§4.3, §5).
type checkoutRun struct {
	engine *Engine
	opts   Options
	pool   *pond.WorkerPool

	total int64
	done  int64

	mu  sync.Mutex
	err error
}

func (r *checkoutRun) latch(err error) {
	if err == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err == nil {
		r.err = err
	}
}

func (r *checkoutRun) firstErr() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *checkoutRun) cancelled() bool {
	return r.firstErr() != nil
}

func (r *checkoutRun) progress() {
	done := atomic.AddInt64(&r.done, 1)
	if r.opts.Progress != nil {
		r.opts.Progress(int(done), int(r.total))
	}
}

// materializeDir creates dest, applies the directory's own meta, and
// dispatches file children to the worker pool before recursing into
// subdirectories once every file in this directory has completed
// (§4.3 "Subdirectory recursion waits until all file operations in the
// current directory have completed").
func (r *checkoutRun) materializeDir(ctx context.Context, content, meta plumbing.Checksum, dest, relPath string) error {
	if r.cancelled() {
		return nil
	}
	if err := ctx.Err(); err != nil {
		r.latch(errs.ErrCancelled)
		return nil
	}

	if r.opts.Filter != nil && r.opts.Filter(relPath) == CheckoutSkip {
		return nil
	}

	dirMeta, err := r.engine.loader.LoadDirMeta(meta)
	if err != nil {
		r.latch(err)
		return nil
	}

	if err := makeDir(dest, dirMeta, r.opts); err != nil {
		r.latch(err)
		return nil
	}

	tree, err := r.engine.loader.LoadDirTree(content)
	if err != nil {
		r.latch(err)
		return nil
	}

	var wg sync.WaitGroup
	for _, f := range tree.Files {
		f := f
		childRel := joinRel(relPath, f.Name)
		if r.opts.Filter != nil && r.opts.Filter(childRel) == CheckoutSkip {
			continue
		}
		wg.Add(1)
		r.pool.Submit(func() {
			defer wg.Done()
			if r.cancelled() {
				return
			}
			if err := r.engine.checkoutFile(ctx, f.Checksum, dest, f.Name, r.opts); err != nil {
				r.latch(err)
			}
			r.progress()
		})
	}
	wg.Wait()

	if r.cancelled() {
		return nil
	}

	for _, d := range tree.Dirs {
		childDest := filepath.Join(dest, d.Name)
		childRel := joinRel(relPath, d.Name)
		if err := r.materializeDir(ctx, d.ContentChecksum, d.MetaChecksum, childDest, childRel); err != nil {
			r.latch(err)
			return nil
		}
		if r.cancelled() {
			return nil
		}
	}
	return nil
}

func joinRel(a, b string) string {
	if a == "" {
		return b
	}
	return a + "/" + b
}

func makeDir(dest string, meta *object.DirMeta, opts Options) error {
	err := os.Mkdir(dest, os.FileMode(meta.Mode.Canonical().Perm()))
	if err != nil {
		if os.IsExist(err) && opts.Overwrite == UnionFiles {
			// tolerated
		} else {
			return errs.IO("mkdir "+dest, err)
		}
	}

	if opts.Permissions == NoneMode {
		if err := os.Chown(dest, int(meta.UID), int(meta.GID)); err != nil && !os.IsPermission(err) {
			return errs.IO("chown "+dest, err)
		}
		if err := objstore.SetXattrs(dest, true, meta.Xattrs); err != nil {
			return err
		}
	}
	return nil
}

// hardlinkEligible reports whether (mode, perms) permits attempting a
// hardlink from the store at all, per §4.3's mode-pairing table.
func hardlinkEligible(mode config.Mode, perms PermissionMode) bool {
	switch {
	case mode == config.Bare && perms == NoneMode:
		return true
	case mode == config.Archive && perms == UserMode:
		return true
	case mode == config.ArchiveZ2 && perms == UserMode:
		return true
	default:
		return false
	}
}
