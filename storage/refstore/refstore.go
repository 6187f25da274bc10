// Package refstore implements the reference store: text files naming
// a checksum under refs/heads/<name> and refs/remotes/<remote>/<name>,
// plus the rev-parse style resolver (§4.5).
package refstore

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/sirupsen/logrus"

	"github.com/dabukalam/ostree/errs"
	"github.com/dabukalam/ostree/logging"
	"github.com/dabukalam/ostree/plumbing"
	"github.com/dabukalam/ostree/plumbing/object"
)

const (
	headsDir   = "refs/heads"
	remotesDir = "refs/remotes"
	summaryRel = "refs/summary"
)

// CommitLookup loads a commit's parent checksum, for Resolve's "^"
// parent-walk. Repo satisfies this with its own commit loader.
type CommitLookup func(checksum plumbing.Checksum) (parent plumbing.Checksum, hasParent bool, err error)

// ParentLookup resolves a rev against a configured parent repository
// when it is absent locally, or reports none is configured.
type ParentLookup func(rev string) (plumbing.Checksum, bool, error)

// Store is a handle on the refs/ tree of a single repository, using a
// go-billy filesystem rooted at the repository directory the same way
// the teacher's dotgit layer addresses refs/ under .git.
type Store struct {
	fs billy.Filesystem
}

// New returns a Store rooted at root (the repository directory, the
// parent of refs/).
func New(root string) *Store {
	return &Store{fs: osfs.New(root)}
}

// RefEntry is one line of refs/summary or a ListRefs result.
type RefEntry struct {
	Name     string // e.g. "main" or "origin/main"
	Remote   string // "" for refs/heads entries
	Checksum plumbing.Checksum
}

// Write stores rev under refs/heads/<name> (remote == "") or
// refs/remotes/<remote>/<name>, creating intermediate directories for
// any "/" in name. rev must already be a valid-looking checksum; name
// must not itself look like one (§4.5 invariant 6).
func (s *Store) Write(remote, name string, rev plumbing.Checksum) error {
	if !validRefName(name) {
		return errs.Invalid("ref name %q looks like a checksum", name)
	}

	relPath := refPath(remote, name)
	if err := s.fs.MkdirAll(s.fs.Join(path.Dir(relPath)), 0o755); err != nil {
		return errs.IO("create ref directory for "+relPath, err)
	}

	tmp, err := s.fs.TempFile(path.Dir(relPath), "ref-")
	if err != nil {
		return errs.IO("create temp ref file", err)
	}
	if _, err := tmp.Write([]byte(rev.String() + "\n")); err != nil {
		_ = tmp.Close()
		_ = s.fs.Remove(tmp.Name())
		return errs.IO("write temp ref file", err)
	}
	if err := tmp.Close(); err != nil {
		_ = s.fs.Remove(tmp.Name())
		return errs.IO("close temp ref file", err)
	}
	if err := s.fs.Rename(tmp.Name(), relPath); err != nil {
		_ = s.fs.Remove(tmp.Name())
		return errs.IO("rename ref into place at "+relPath, err)
	}

	logging.Log().WithFields(logrus.Fields{"ref": relPath, "checksum": rev}).Debug("wrote ref")
	return nil
}

// validRefName rejects names that have the syntactic shape of a
// checksum, so a caller cannot create a ref indistinguishable from a
// literal checksum in a rev string.
func validRefName(name string) bool {
	return name != "" && !plumbing.LooksLikeChecksum(name)
}

func refPath(remote, name string) string {
	if remote == "" {
		return path.Join(headsDir, name)
	}
	return path.Join(remotesDir, remote, name)
}

// readRefFile reads and parses a single ref file's checksum.
func (s *Store) readRefFile(relPath string) (plumbing.Checksum, error) {
	f, err := s.fs.Open(relPath)
	if err != nil {
		var zero plumbing.Checksum
		if os.IsNotExist(err) {
			return zero, errs.NotFound("ref %s", relPath)
		}
		return zero, errs.IO("open ref "+relPath, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return plumbing.Checksum{}, errs.Corrupt("ref %s is empty", relPath)
	}
	line := strings.TrimSpace(scanner.Text())
	checksum, err := plumbing.ParseChecksum(line)
	if err != nil {
		return plumbing.Checksum{}, err
	}
	return checksum, nil
}

// lookupLocal tries, in order, refs/heads/<rev>, refs/remotes/<rev>
// (the remote-as-single-segment form) and every refs/remotes/<remote>/<rev>,
// per §4.5's resolution order.
func (s *Store) lookupLocal(rev string) (plumbing.Checksum, bool, error) {
	if c, err := s.readRefFile(path.Join(headsDir, rev)); err == nil {
		return c, true, nil
	} else if !errs.IsNotFound(err) {
		return plumbing.Checksum{}, false, err
	}

	if c, err := s.readRefFile(path.Join(remotesDir, rev)); err == nil {
		return c, true, nil
	} else if !errs.IsNotFound(err) {
		return plumbing.Checksum{}, false, err
	}

	remotes, err := s.fs.ReadDir(remotesDir)
	if err != nil && !os.IsNotExist(err) {
		return plumbing.Checksum{}, false, errs.IO("read "+remotesDir, err)
	}
	for _, remote := range remotes {
		if !remote.IsDir() {
			continue
		}
		if c, err := s.readRefFile(path.Join(remotesDir, remote.Name(), rev)); err == nil {
			return c, true, nil
		} else if !errs.IsNotFound(err) {
			return plumbing.Checksum{}, false, err
		}
	}

	return plumbing.Checksum{}, false, nil
}

// Resolve implements §4.5's Resolve(rev): a literal checksum resolves
// to itself; a "^" suffix walks to the parent commit via lookupParent;
// otherwise the ref tree is searched and, failing that, parent falls
// back to parentLookup (a configured parent repository) when non-nil.
// missingOK suppresses ErrNotFound, returning the zero checksum instead.
func (s *Store) Resolve(ctx context.Context, rev string, lookupParent CommitLookup, parentLookup ParentLookup, missingOK bool) (plumbing.Checksum, error) {
	if err := ctx.Err(); err != nil {
		return plumbing.Checksum{}, errs.ErrCancelled
	}

	checksum, err := s.resolve(rev, lookupParent, parentLookup)
	if err != nil {
		if missingOK && errs.IsNotFound(err) {
			return plumbing.Checksum{}, nil
		}
		return plumbing.Checksum{}, err
	}
	return checksum, nil
}

func (s *Store) resolve(rev string, lookupParent CommitLookup, parentLookup ParentLookup) (plumbing.Checksum, error) {
	if plumbing.LooksLikeChecksum(rev) {
		return plumbing.ParseChecksum(rev)
	}

	if strings.HasSuffix(rev, "^") {
		base, err := s.resolve(rev[:len(rev)-1], lookupParent, parentLookup)
		if err != nil {
			return plumbing.Checksum{}, err
		}
		parent, hasParent, err := lookupParent(base)
		if err != nil {
			return plumbing.Checksum{}, err
		}
		if !hasParent {
			return plumbing.Checksum{}, fmt.Errorf("commit %s has no parent: %w: %w", base, errs.ErrNotFound, object.ErrNoParent)
		}
		return parent, nil
	}

	if checksum, ok, err := s.lookupLocal(rev); err != nil {
		return plumbing.Checksum{}, err
	} else if ok {
		return checksum, nil
	}

	if parentLookup != nil {
		if checksum, ok, err := parentLookup(rev); err != nil {
			return plumbing.Checksum{}, err
		} else if ok {
			return checksum, nil
		}
	}

	return plumbing.Checksum{}, errs.NotFound("rev %q", rev)
}

// ListRefs enumerates every ref under refs/heads and refs/remotes
// whose name has the given prefix ("" lists everything). Used directly
// by tests and internally by RegenerateSummary.
func (s *Store) ListRefs(prefix string) ([]RefEntry, error) {
	var entries []RefEntry

	heads, err := s.walk(headsDir, "")
	if err != nil {
		return nil, err
	}
	for _, e := range heads {
		entries = append(entries, RefEntry{Name: e.name, Checksum: e.checksum})
	}

	remoteDirs, err := s.fs.ReadDir(remotesDir)
	if err != nil && !os.IsNotExist(err) {
		return nil, errs.IO("read "+remotesDir, err)
	}
	for _, rd := range remoteDirs {
		if !rd.IsDir() {
			continue
		}
		remoteEntries, err := s.walk(path.Join(remotesDir, rd.Name()), "")
		if err != nil {
			return nil, err
		}
		for _, e := range remoteEntries {
			entries = append(entries, RefEntry{
				Name:     rd.Name() + "/" + e.name,
				Remote:   rd.Name(),
				Checksum: e.checksum,
			})
		}
	}

	if prefix != "" {
		filtered := entries[:0]
		for _, e := range entries {
			if strings.HasPrefix(e.Name, prefix) {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

type walkEntry struct {
	name     string
	checksum plumbing.Checksum
}

func (s *Store) walk(dir, prefix string) ([]walkEntry, error) {
	infos, err := s.fs.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errs.IO("read "+dir, err)
	}

	var out []walkEntry
	for _, info := range infos {
		childRel := prefix + info.Name()
		if info.IsDir() {
			sub, err := s.walk(path.Join(dir, info.Name()), childRel+"/")
			if err != nil {
				return nil, err
			}
			out = append(out, sub...)
			continue
		}
		checksum, err := s.readRefFile(path.Join(dir, info.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, walkEntry{name: childRel, checksum: checksum})
	}
	return out, nil
}

// RegenerateSummary rewrites refs/summary with one "<checksum> <name>"
// line per ref under refs/heads and refs/remotes, sorted by name for
// deterministic output. Store.Write does not call it; the repository's
// WriteRef calls it after each ref write when the mode is ARCHIVE or
// ARCHIVE_Z2 (§4.5).
func (s *Store) RegenerateSummary() error {
	entries, err := s.ListRefs("")
	if err != nil {
		return err
	}

	var buf strings.Builder
	for _, e := range entries {
		name := e.Name
		buf.WriteString(e.Checksum.String())
		buf.WriteByte(' ')
		buf.WriteString(name)
		buf.WriteByte('\n')
	}

	tmp, err := s.fs.TempFile(".", "summary-")
	if err != nil {
		return errs.IO("create temp summary file", err)
	}
	if _, err := tmp.Write([]byte(buf.String())); err != nil {
		_ = tmp.Close()
		_ = s.fs.Remove(tmp.Name())
		return errs.IO("write temp summary file", err)
	}
	if err := tmp.Close(); err != nil {
		_ = s.fs.Remove(tmp.Name())
		return errs.IO("close temp summary file", err)
	}
	if err := s.fs.Rename(tmp.Name(), summaryRel); err != nil {
		_ = s.fs.Remove(tmp.Name())
		return errs.IO("rename summary into place", err)
	}
	return nil
}
