package objstore

import (
	"bytes"
	"io"
	"os"

	"github.com/dabukalam/ostree/errs"
	"github.com/dabukalam/ostree/plumbing"
	"github.com/dabukalam/ostree/plumbing/object"
)

// putFileArchive stores a FILE object as a header file plus, for
// regular files only, a companion raw content file chmod'd world
// readable so it can be served by a plain static file server. Per
// §4.1 the content file is committed before the header file, so a
// reader that sees the header already finds its content in place.
func (s *Store) putFileArchive(header *object.FileHeader, content io.Reader) (plumbing.Checksum, error) {
	hasher := plumbing.NewHasher()
	var headerBuf bytes.Buffer
	if err := header.Encode(io.MultiWriter(&headerBuf, hasher)); err != nil {
		return plumbing.Checksum{}, err
	}

	var contentFile *os.File
	if header.Mode.Canonical().IsRegular() && content != nil {
		f, err := s.tempFile("filecontent-")
		if err != nil {
			return plumbing.Checksum{}, err
		}
		if _, err := io.Copy(io.MultiWriter(f, hasher), content); err != nil {
			abort(f)
			return plumbing.Checksum{}, errs.IO("write temp archive content", err)
		}
		if err := f.Chmod(os.FileMode(header.Mode.ArchiveReadable())); err != nil {
			abort(f)
			return plumbing.Checksum{}, errs.IO("chmod temp archive content", err)
		}
		contentFile = f
	}

	checksum := hasher.Sum()
	alreadyExists := s.Exists(checksum, plumbing.FileKind)

	if contentFile != nil {
		if alreadyExists {
			abort(contentFile)
		} else if err := commit(contentFile, s.ContentPath(checksum), true); err != nil {
			return plumbing.Checksum{}, err
		}
	}

	if alreadyExists {
		return checksum, nil
	}

	headerFile, err := s.tempFile("file-")
	if err != nil {
		return plumbing.Checksum{}, err
	}
	if _, err := headerFile.Write(headerBuf.Bytes()); err != nil {
		abort(headerFile)
		return plumbing.Checksum{}, errs.IO("write temp archive header", err)
	}

	return checksum, commit(headerFile, s.Path(checksum, plumbing.FileKind), false)
}

func (s *Store) openFileArchive(checksum plumbing.Checksum) (*object.FileHeader, io.ReadCloser, error) {
	headerPath := s.Path(checksum, plumbing.FileKind)
	hf, err := os.Open(headerPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, errs.NotFound("file object %s", checksum)
		}
		return nil, nil, errs.IO("open "+headerPath, err)
	}
	defer hf.Close()

	header, err := object.DecodeFileHeader(hf)
	if err != nil {
		return nil, nil, err
	}

	if !header.Mode.Canonical().IsRegular() {
		return header, io.NopCloser(bytes.NewReader(nil)), nil
	}

	contentPath := s.ContentPath(checksum)
	cf, err := os.Open(contentPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, errs.NotFound("content for file object %s", checksum)
		}
		return nil, nil, errs.IO("open "+contentPath, err)
	}
	return header, cf, nil
}
