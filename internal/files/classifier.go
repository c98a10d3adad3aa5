// Package files decides which files in a project are indexed.
//
// Classification has two phases. Eligible is a pure path check (extension
// allow-list, lockfile deny-list, skipped and dot directories) and is cheap
// enough to run on every watcher event. Validate reads file metadata and a
// byte prefix to reject empty, oversized, binary, undecodable and minified
// files. Neither phase returns an error: failures become a Reason.
package files

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"unicode/utf8"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/mvp-joe/greppy/internal/config"
)

// Options holds the classifier limits and lists.
type Options struct {
	Extensions         []string
	SkipDirs           []string
	SkipFiles          []string
	MaxFileSize        int64
	SniffBytes         int
	MaxLineLength      int
	MinifiedCheckLines int
}

// OptionsFromConfig builds classifier options from the files section of the config.
func OptionsFromConfig(cfg config.FilesConfig) Options {
	return Options{
		Extensions:         cfg.Extensions,
		SkipDirs:           cfg.SkipDirs,
		SkipFiles:          cfg.SkipFiles,
		MaxFileSize:        cfg.MaxFileSize,
		SniffBytes:         cfg.SniffBytes,
		MaxLineLength:      cfg.MaxLineLength,
		MinifiedCheckLines: cfg.MinifiedCheckLines,
	}
}

// DefaultOptions returns the options for the default configuration.
func DefaultOptions() Options {
	return OptionsFromConfig(config.Default().Files)
}

// Classification is the outcome of classifying one path.
type Classification struct {
	Eligible bool
	Reason   Reason
}

// Classifier applies eligibility and validity rules. It is safe for concurrent use.
type Classifier struct {
	opts       Options
	extensions mapset.Set[string]
	skipDirs   mapset.Set[string]
	skipFiles  mapset.Set[string]
}

// New creates a classifier.
func New(opts Options) *Classifier {
	exts := mapset.NewThreadUnsafeSet[string]()
	for _, ext := range opts.Extensions {
		exts.Add(strings.ToLower(ext))
	}
	return &Classifier{
		opts:       opts,
		extensions: exts,
		skipDirs:   mapset.NewThreadUnsafeSet(opts.SkipDirs...),
		skipFiles:  mapset.NewThreadUnsafeSet(opts.SkipFiles...),
	}
}

// Eligible reports whether a project-relative path may be indexed, judged on
// the path alone. Both slash and OS separators are accepted.
func (c *Classifier) Eligible(relPath string) bool {
	p := path.Clean(filepath.ToSlash(relPath))
	if p == "." || p == "" || strings.HasPrefix(p, "../") {
		return false
	}

	dir, name := path.Split(p)
	if c.skipFiles.Contains(name) {
		return false
	}
	if !c.extensions.Contains(strings.ToLower(path.Ext(name))) {
		return false
	}

	for _, part := range strings.Split(strings.TrimSuffix(dir, "/"), "/") {
		if part != "" && c.SkipDir(part) {
			return false
		}
	}
	return true
}

// SkipDir reports whether a directory with this base name is never descended into.
func (c *Classifier) SkipDir(name string) bool {
	return strings.HasPrefix(name, ".") || c.skipDirs.Contains(name)
}

// Validate runs the content heuristics against a file on disk. The checks run
// in order and the first failure wins. ReasonNone means the file is valid.
func (c *Classifier) Validate(absPath string) Reason {
	info, err := os.Stat(absPath)
	if err != nil || !info.Mode().IsRegular() {
		return ReasonError
	}
	if info.Size() == 0 {
		return ReasonEmpty
	}
	if info.Size() > c.opts.MaxFileSize {
		return ReasonLarge
	}

	prefix, err := readPrefix(absPath, c.opts.SniffBytes)
	if err != nil {
		return ReasonError
	}
	if bytes.IndexByte(prefix, 0) >= 0 {
		return ReasonBinary
	}

	text, err := DecodeStrict(trimPartialRune(prefix))
	if err != nil {
		return ReasonEncoding
	}

	lines := strings.SplitN(text, "\n", c.opts.MinifiedCheckLines+1)
	if len(lines) > c.opts.MinifiedCheckLines {
		lines = lines[:c.opts.MinifiedCheckLines]
	}
	for _, line := range lines {
		if utf8.RuneCountInString(line) > c.opts.MaxLineLength {
			return ReasonMinified
		}
	}

	return ReasonNone
}

// Classify combines Eligible and Validate for a file under root.
func (c *Classifier) Classify(root, relPath string) Classification {
	if !c.Eligible(relPath) {
		return Classification{Eligible: false}
	}
	reason := c.Validate(filepath.Join(root, filepath.FromSlash(relPath)))
	return Classification{Eligible: reason == ReasonNone, Reason: reason}
}

func readPrefix(absPath string, n int) ([]byte, error) {
	f, err := os.Open(absPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, n)
	read, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return buf[:read], nil
}

// trimPartialRune drops a multi-byte sequence cut off by the sniff window.
func trimPartialRune(b []byte) []byte {
	for i := 1; i < utf8.UTFMax && i <= len(b); i++ {
		r := b[len(b)-i]
		if r < utf8.RuneSelf {
			return b
		}
		if utf8.RuneStart(r) {
			if !utf8.FullRune(b[len(b)-i:]) {
				return b[:len(b)-i]
			}
			return b
		}
	}
	return b
}
