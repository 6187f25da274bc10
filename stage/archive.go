package stage

import (
	"context"
	"io"
	"path"
	"strings"

	"github.com/dabukalam/ostree/errs"
	"github.com/dabukalam/ostree/mtree"
	"github.com/dabukalam/ostree/plumbing"
	"github.com/dabukalam/ostree/plumbing/object"
)

// ArchiveEntry is one record from an external archive iterator: a
// path, its POSIX attributes, an optional hardlink target (relative to
// the archive root), and a content stream for regular files (§4.2
// "Archive ingestion"). Libarchive-style tarball walking lives outside
// this package; callers adapt whatever iterator they have into this
// shape.
type ArchiveEntry struct {
	Path       string
	Header     object.FileHeader
	HardlinkOf string // non-empty means reuse the checksum already staged at this path
	Content    io.Reader
}

// archiveIngestor accumulates the mutable tree and per-path directory
// meta checksums while an entry stream is consumed, then reduces the
// whole tree bottom-up once the stream is exhausted.
type archiveIngestor struct {
	pipeline *Pipeline
	root     *mtree.Tree
	dirMeta  map[string]plumbing.Checksum
}

// IngestArchive stages a full stream of ArchiveEntry records, returning
// the (content, meta) checksums of the archive's implicit root
// directory. Directory entries stage their own dir-meta as they are
// seen; file entries stream through StageFile; hardlink entries reuse
// an already-staged checksum instead of re-reading content. An entry
// naming an unsupported file type fails the whole ingestion (§4.2).
func (p *Pipeline) IngestArchive(ctx context.Context, entries func() (ArchiveEntry, bool, error)) (content, meta plumbing.Checksum, err error) {
	if err := p.requireTxn(); err != nil {
		return plumbing.Checksum{}, plumbing.Checksum{}, err
	}

	ing := &archiveIngestor{
		pipeline: p,
		root:     mtree.New(),
		dirMeta:  map[string]plumbing.Checksum{},
	}

	for {
		if err := ctx.Err(); err != nil {
			return plumbing.Checksum{}, plumbing.Checksum{}, errs.ErrCancelled
		}

		entry, ok, err := entries()
		if err != nil {
			return plumbing.Checksum{}, plumbing.Checksum{}, err
		}
		if !ok {
			break
		}
		if err := ing.ingestOne(ctx, entry); err != nil {
			return plumbing.Checksum{}, plumbing.Checksum{}, err
		}
	}

	return ing.finalize(ctx, "", ing.root)
}

func (ing *archiveIngestor) ingestOne(ctx context.Context, entry ArchiveEntry) error {
	components := splitPath(entry.Path)
	if len(components) == 0 {
		return errs.Invalid("archive entry has empty path")
	}
	normalizedPath := strings.Join(components, "/")

	parent, name, err := mtree.Walk(ing.root, components)
	if err != nil {
		return err
	}

	if entry.HardlinkOf != "" {
		targetParent, targetName, err := mtree.Walk(ing.root, splitPath(entry.HardlinkOf))
		if err != nil {
			return err
		}
		checksum, ok := targetParent.LookupFile(targetName)
		if !ok {
			return errs.Invalid("hardlink target %q not yet staged", entry.HardlinkOf)
		}
		parent.SetFile(name, checksum)
		return nil
	}

	canon := entry.Header.Mode.Canonical()
	switch {
	case canon.IsDir():
		metaChecksum, err := ing.pipeline.StageDirMeta(ctx, &object.DirMeta{
			UID:    entry.Header.UID,
			GID:    entry.Header.GID,
			Mode:   entry.Header.Mode,
			Xattrs: entry.Header.Xattrs,
		})
		if err != nil {
			return err
		}
		ing.dirMeta[normalizedPath] = metaChecksum
		// Auto-vivify the subtree now so later entries under this path
		// resolve to the same node even if this directory has no children.
		if _, ok := parent.Subtree(name); !ok {
			if _, _, err := mtree.Walk(ing.root, append(components, "")); err != nil {
				return err
			}
		}
		return nil

	case canon.IsRegular(), canon.IsSymlink(), canon.IsDevice():
		checksum, err := ing.pipeline.StageFile(ctx, &entry.Header, entry.Content)
		if err != nil {
			return err
		}
		parent.SetFile(name, checksum)
		return nil

	default:
		return errs.Invalid("archive entry %q has unsupported file type", entry.Path)
	}
}

// finalize recursively reduces a pending mutable tree into its
// (content, meta) checksums, descending into every subtree a prior
// Walk auto-created before staging this level's own dir-tree object.
func (ing *archiveIngestor) finalize(ctx context.Context, dirPath string, tree *mtree.Tree) (plumbing.Checksum, plumbing.Checksum, error) {
	for _, name := range tree.PendingNames() {
		sub, _ := tree.Subtree(name)
		childPath := path.Join(dirPath, name)
		childContent, childMeta, err := ing.finalize(ctx, childPath, sub)
		if err != nil {
			return plumbing.Checksum{}, plumbing.Checksum{}, err
		}
		tree.SetDir(name, childContent, childMeta)
	}

	metaChecksum, ok := ing.dirMeta[dirPath]
	if !ok {
		// No explicit directory entry named this path (it only exists
		// because a deeper entry auto-vivified it); stage a default
		// dir-meta so the tree is still well formed.
		checksum, err := ing.pipeline.StageDirMeta(ctx, &object.DirMeta{
			Mode: plumbing.ModeFmtDir | 0755,
		})
		if err != nil {
			return plumbing.Checksum{}, plumbing.Checksum{}, err
		}
		metaChecksum = checksum
	}

	files, dirs := tree.Names()
	dirTree := &object.DirTree{}
	for _, name := range files {
		f, _ := tree.File(name)
		dirTree.Files = append(dirTree.Files, object.FileEntry{Name: name, Checksum: f.Checksum})
	}
	for _, name := range dirs {
		d, _ := tree.Dir(name)
		dirTree.Dirs = append(dirTree.Dirs, object.SubdirEntry{Name: name, ContentChecksum: d.ContentChecksum, MetaChecksum: d.MetaChecksum})
	}

	contentChecksum, err := ing.pipeline.StageDirTree(ctx, dirTree)
	if err != nil {
		return plumbing.Checksum{}, plumbing.Checksum{}, err
	}
	return contentChecksum, metaChecksum, nil
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}
