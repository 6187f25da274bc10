package stage

import (
	"context"
	"os"
	"path"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/dabukalam/ostree/devino"
	"github.com/dabukalam/ostree/errs"
	"github.com/dabukalam/ostree/mtree"
	"github.com/dabukalam/ostree/plumbing"
	"github.com/dabukalam/ostree/plumbing/object"
	"github.com/dabukalam/ostree/storage/objstore"
)

// StageDirectory walks a real directory bottom-up and stages every
// entry it contains, returning the (content, meta) checksums of the
// root directory itself (§4.2 "Directory tree staging"). relPrefix is
// the path used when consulting the pipeline's CommitFilter for
// entries under dir; pass "" at the top of a walk.
func (p *Pipeline) StageDirectory(ctx context.Context, dir, relPrefix string) (content, meta plumbing.Checksum, err error) {
	if err := p.requireTxn(); err != nil {
		return plumbing.Checksum{}, plumbing.Checksum{}, err
	}
	if err := ctx.Err(); err != nil {
		return plumbing.Checksum{}, plumbing.Checksum{}, errs.ErrCancelled
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return plumbing.Checksum{}, plumbing.Checksum{}, errs.IO("readdir "+dir, err)
	}

	tree := mtree.New()
	for _, entry := range entries {
		name := entry.Name()
		relPath := path.Join(relPrefix, name)

		if p.Filter != nil && p.Filter(relPath) == FilterSkip {
			continue
		}

		entryPath := filepath.Join(dir, name)

		if entry.IsDir() {
			childContent, childMeta, err := p.StageDirectory(ctx, entryPath, relPath)
			if err != nil {
				return plumbing.Checksum{}, plumbing.Checksum{}, err
			}
			tree.SetDir(name, childContent, childMeta)
			continue
		}

		checksum, err := p.stageFileEntry(ctx, entryPath, entry)
		if err != nil {
			return plumbing.Checksum{}, plumbing.Checksum{}, err
		}
		tree.SetFile(name, checksum)
	}

	dirMeta, err := lstatDirMeta(dir, p.Modifiers.SkipXattrs)
	if err != nil {
		return plumbing.Checksum{}, plumbing.Checksum{}, err
	}
	metaChecksum, err := p.StageDirMeta(ctx, dirMeta)
	if err != nil {
		return plumbing.Checksum{}, plumbing.Checksum{}, err
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

	contentChecksum, err := p.StageDirTree(ctx, dirTree)
	if err != nil {
		return plumbing.Checksum{}, plumbing.Checksum{}, err
	}
	return contentChecksum, metaChecksum, nil
}

// stageFileEntry stages one non-directory entry (regular file,
// symlink or device node), consulting the devino cache for regular
// files first so an already-stored inode is never re-hashed (§4.2 step
// 3, §4.4).
func (p *Pipeline) stageFileEntry(ctx context.Context, entryPath string, entry os.DirEntry) (plumbing.Checksum, error) {
	info, err := entry.Info()
	if err != nil {
		return plumbing.Checksum{}, errs.IO("stat "+entryPath, err)
	}

	if info.Mode().IsRegular() {
		if key, err := devino.KeyOf(entryPath); err == nil {
			if checksum, ok := p.devinoCache.Lookup(key); ok {
				return checksum, nil
			}
		}
	}

	header, content, err := fileHeaderFor(entryPath, info, p.Modifiers.SkipXattrs)
	if err != nil {
		return plumbing.Checksum{}, err
	}
	if content != nil {
		defer content.Close()
	}

	checksum, err := p.StageFile(ctx, header, content)
	if err != nil {
		return plumbing.Checksum{}, err
	}

	if info.Mode().IsRegular() {
		if key, err := devino.KeyOf(entryPath); err == nil {
			p.devinoCache.Put(key, checksum)
		}
	}
	return checksum, nil
}

// fileHeaderFor builds the FileHeader and content stream for a real
// filesystem entry: a symlink target, a device rdev stub, or an open
// regular file (§4.2 step 3 "open the file, synthesize a
// content-stream").
func fileHeaderFor(entryPath string, info os.FileInfo, skipXattrs bool) (*object.FileHeader, *os.File, error) {
	mode := info.Mode()

	switch {
	case mode&os.ModeSymlink != 0:
		target, err := os.Readlink(entryPath)
		if err != nil {
			return nil, nil, errs.IO("readlink "+entryPath, err)
		}
		xattrs, err := readXattrsUnlessSkipped(entryPath, false, skipXattrs)
		if err != nil {
			return nil, nil, err
		}
		uid, gid := ownerOf(info)
		return &object.FileHeader{
			Mode:          plumbing.ModeFmtLnk | 0777,
			UID:           uid,
			GID:           gid,
			SymlinkTarget: target,
			Xattrs:        xattrs,
		}, nil, nil

	case mode&(os.ModeDevice|os.ModeCharDevice) != 0:
		var rdev uint64
		uid, gid := ownerOf(info)
		if stat, ok := info.Sys().(*unix.Stat_t); ok {
			rdev = uint64(stat.Rdev)
		}
		fmtBits := plumbing.ModeFmtBlk
		if mode&os.ModeCharDevice != 0 {
			fmtBits = plumbing.ModeFmtChr
		}
		xattrs, err := readXattrsUnlessSkipped(entryPath, false, skipXattrs)
		if err != nil {
			return nil, nil, err
		}
		return &object.FileHeader{
			Mode:   fmtBits | plumbing.PosixMode(mode.Perm()),
			UID:    uid,
			GID:    gid,
			Rdev:   rdev,
			Xattrs: xattrs,
		}, nil, nil

	default:
		f, err := os.Open(entryPath)
		if err != nil {
			return nil, nil, errs.IO("open "+entryPath, err)
		}
		uid, gid := ownerOf(info)
		xattrs, err := readXattrsUnlessSkipped(entryPath, true, skipXattrs)
		if err != nil {
			_ = f.Close()
			return nil, nil, err
		}
		header := &object.FileHeader{
			Mode:   plumbing.ModeFmtReg | plumbing.PosixMode(mode.Perm()),
			UID:    uid,
			GID:    gid,
			Xattrs: xattrs,
		}
		return header, f, nil
	}
}

func ownerOf(info os.FileInfo) (uid, gid uint32) {
	if stat, ok := info.Sys().(*unix.Stat_t); ok {
		return stat.Uid, stat.Gid
	}
	return 0, 0
}

func readXattrsUnlessSkipped(path string, followSymlinks, skip bool) (map[string][]byte, error) {
	if skip {
		return nil, nil
	}
	return objstore.ReadXattrs(path, followSymlinks)
}

// lstatDirMeta reads a directory's own (uid, gid, mode, xattrs) off
// the real filesystem entry.
func lstatDirMeta(dir string, skipXattrs bool) (*object.DirMeta, error) {
	info, err := os.Lstat(dir)
	if err != nil {
		return nil, errs.IO("lstat "+dir, err)
	}
	uid, gid := ownerOf(info)
	xattrs, err := readXattrsUnlessSkipped(dir, true, skipXattrs)
	if err != nil {
		return nil, err
	}
	return &object.DirMeta{
		UID:    uid,
		GID:    gid,
		Mode:   plumbing.ModeFmtDir | plumbing.PosixMode(info.Mode().Perm()),
		Xattrs: xattrs,
	}, nil
}
