package objstore

import (
	"bytes"
	"compress/zlib"
	"io"
	"os"

	"github.com/dabukalam/ostree/errs"
	"github.com/dabukalam/ostree/plumbing"
	"github.com/dabukalam/ostree/plumbing/object"
)

// putFileArchiveZ2 stores a FILE object as a single temp file holding
// the uncompressed header bytes followed by the zlib-compressed raw
// content (§4.1, §6 ARCHIVE_Z2). The checksum is computed over the
// uncompressed header-plus-content bytes, exactly as in every other
// mode; compression only affects what lands on disk. go-git's own
// packfile reader/writer reach for compress/zlib the same way, so this
// is the ecosystem's stdlib, not a homegrown substitute.
func (s *Store) putFileArchiveZ2(header *object.FileHeader, content io.Reader) (plumbing.Checksum, error) {
	hasher := plumbing.NewHasher()

	f, err := s.tempFile("file-")
	if err != nil {
		return plumbing.Checksum{}, err
	}

	if err := header.Encode(io.MultiWriter(f, hasher)); err != nil {
		abort(f)
		return plumbing.Checksum{}, err
	}

	if header.Mode.Canonical().IsRegular() && content != nil {
		zw := zlib.NewWriter(f)
		if _, err := io.Copy(io.MultiWriter(zw, hasher), content); err != nil {
			_ = zw.Close()
			abort(f)
			return plumbing.Checksum{}, errs.IO("write compressed archive-z2 content", err)
		}
		if err := zw.Close(); err != nil {
			abort(f)
			return plumbing.Checksum{}, errs.IO("flush compressed archive-z2 content", err)
		}
	}

	checksum := hasher.Sum()
	target := s.Path(checksum, plumbing.FileKind)
	if s.Exists(checksum, plumbing.FileKind) {
		abort(f)
		return checksum, nil
	}

	return checksum, commit(f, target, true)
}

// archiveZ2Content decompresses the zlib stream that follows a
// decoded header in the single combined object file.
type archiveZ2Content struct {
	zr io.ReadCloser
	f  *os.File
}

func (c *archiveZ2Content) Read(p []byte) (int, error) { return c.zr.Read(p) }

func (c *archiveZ2Content) Close() error {
	err := c.zr.Close()
	if fErr := c.f.Close(); err == nil {
		err = fErr
	}
	return err
}

func (s *Store) openFileArchiveZ2(checksum plumbing.Checksum) (*object.FileHeader, io.ReadCloser, error) {
	path := s.Path(checksum, plumbing.FileKind)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, errs.NotFound("file object %s", checksum)
		}
		return nil, nil, errs.IO("open "+path, err)
	}

	header, err := object.DecodeFileHeader(f)
	if err != nil {
		_ = f.Close()
		return nil, nil, err
	}

	if !header.Mode.Canonical().IsRegular() {
		_ = f.Close()
		return header, io.NopCloser(bytes.NewReader(nil)), nil
	}

	zr, err := zlib.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, nil, errs.Corrupt("decompress archive-z2 content for %s: %v", checksum, err)
	}

	return header, &archiveZ2Content{zr: zr, f: f}, nil
}
