// Package config loads and writes the repository's `config` file: a
// git-style key/value file with a single `core` section (§6).
package config

import (
	"bytes"
	"fmt"
	"io"

	"github.com/go-git/gcfg"

	"github.com/dabukalam/ostree/errs"
)

// RepoVersion is the only repo_version this implementation understands.
const RepoVersion = 1

// Config is the parsed content of a repository's `config` file.
type Config struct {
	// RepoVersion must be 1.
	RepoVersion int
	// Mode is the repository's storage mode (immutable after init).
	Mode Mode
	// Parent is the absolute path to a parent repository consulted
	// when a lookup misses locally, or "" if none.
	Parent string
	// EnableUncompressedCache controls whether ARCHIVE_Z2 checkouts
	// populate the uncompressed-objects-cache. Defaults to true.
	EnableUncompressedCache bool
}

// rawConfig mirrors the on-disk [core] section for gcfg's struct-tag
// based decoding; Config itself uses richer Go types (Mode, etc).
type rawConfig struct {
	Core struct {
		RepoVersion             int `gcfg:"repo_version"`
		Mode                    string
		Archive                 string
		Parent                  string
		EnableUncompressedCache *bool `gcfg:"enable-uncompressed-cache"`
	}
}

// Default returns the configuration written by a freshly initialized
// repository: repo_version=1, the given mode, uncompressed cache on.
func Default(mode Mode) *Config {
	return &Config{
		RepoVersion:             RepoVersion,
		Mode:                    mode,
		EnableUncompressedCache: true,
	}
}

// Decode parses a config file's content.
func Decode(r io.Reader) (*Config, error) {
	var raw rawConfig
	if err := gcfg.ReadInto(&raw, r); err != nil {
		return nil, errs.Corrupt("malformed config: %v", err)
	}

	if raw.Core.RepoVersion != RepoVersion {
		return nil, errs.Invalid("unsupported repo_version %d, want %d", raw.Core.RepoVersion, RepoVersion)
	}

	modeStr := raw.Core.Mode
	if modeStr == "" && raw.Core.Archive != "" {
		modeStr = raw.Core.Archive
	}
	if modeStr == "" {
		modeStr = "bare"
	}

	mode, err := ParseMode(modeStr)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		RepoVersion: raw.Core.RepoVersion,
		Mode:        mode,
		Parent:      raw.Core.Parent,
		EnableUncompressedCache: raw.Core.EnableUncompressedCache == nil ||
			*raw.Core.EnableUncompressedCache,
	}

	return cfg, nil
}

// Encode serializes c in git-config-file style.
func (c *Config) Encode(w io.Writer) error {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "[core]\n")
	fmt.Fprintf(&buf, "\trepo_version = %d\n", c.RepoVersion)
	fmt.Fprintf(&buf, "\tmode = %s\n", c.Mode)
	if c.Parent != "" {
		fmt.Fprintf(&buf, "\tparent = %s\n", c.Parent)
	}
	fmt.Fprintf(&buf, "\tenable-uncompressed-cache = %t\n", c.EnableUncompressedCache)

	_, err := w.Write(buf.Bytes())
	return errs.IO("encode config", err)
}
