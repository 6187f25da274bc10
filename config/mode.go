package config

import "github.com/dabukalam/ostree/errs"

// Mode is a repository's immutable storage mode, set once at init and
// recorded in the config file's core.mode key.
type Mode int8

const (
	// Bare stores file objects as the actual filesystem file (same
	// mode/owner/xattrs). Hardlinking into checkouts needs privilege.
	Bare Mode = iota
	// Archive splits a file object into a header file and a raw
	// content file, so the content can be served statically over HTTP.
	Archive
	// ArchiveZ2 stores a file object as a single zlib-compressed blob
	// combining header and content.
	ArchiveZ2
)

func (m Mode) String() string {
	switch m {
	case Bare:
		return "bare"
	case Archive:
		return "archive"
	case ArchiveZ2:
		return "archive-z2"
	default:
		return "unknown"
	}
}

// ParseMode parses the core.mode config value, including the legacy
// "archive=true" spelling which historically meant "archive".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "bare":
		return Bare, nil
	case "archive":
		return Archive, nil
	case "archive-z2":
		return ArchiveZ2, nil
	case "true":
		return Archive, nil
	default:
		return Bare, errs.Invalid("unrecognized repository mode %q", s)
	}
}
