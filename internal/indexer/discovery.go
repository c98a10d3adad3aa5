package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
	gitignore "github.com/sabhiram/go-gitignore"

	"github.com/mvp-joe/greppy/internal/files"
	"github.com/mvp-joe/greppy/internal/git"
)

// ErrNotWorkTree is returned by the git lister when the root is not inside a git work tree.
var ErrNotWorkTree = errors.New("not a git work tree")

// Lister enumerates candidate files under a project root as slash-separated
// relative paths.
type Lister interface {
	Name() string
	List(ctx context.Context, root string) ([]string, error)
}

// compiledPattern holds both the pattern string and compiled glob
type compiledPattern struct {
	pattern string
	glob    glob.Glob
}

func compilePatterns(patterns []string) ([]compiledPattern, error) {
	var out []compiledPattern
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid ignore pattern %q: %w", pattern, err)
		}
		out = append(out, compiledPattern{pattern: pattern, glob: g})
	}
	return out, nil
}

// FileDiscovery lists eligible files by trying each Lister in order; the
// first one that succeeds wins. Paths are then filtered through the
// classifier's path rules and the configured ignore globs.
type FileDiscovery struct {
	rootDir        string
	listers        []Lister
	classifier     *files.Classifier
	ignorePatterns []compiledPattern
	logger         *slog.Logger
}

// NewFileDiscovery creates a discovery over rootDir. When useGit is set, git
// ls-files is tried before falling back to a directory walk.
func NewFileDiscovery(rootDir string, classifier *files.Classifier, ignorePatterns []string, useGit bool, gitOps git.Operations, logger *slog.Logger) (*FileDiscovery, error) {
	patterns, err := compilePatterns(ignorePatterns)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	fd := &FileDiscovery{
		rootDir:        rootDir,
		classifier:     classifier,
		ignorePatterns: patterns,
		logger:         logger,
	}
	if useGit && gitOps != nil {
		fd.listers = append(fd.listers, &gitLister{ops: gitOps})
	}
	fd.listers = append(fd.listers, &walkLister{classifier: classifier})
	return fd, nil
}

// RootDir returns the project root.
func (fd *FileDiscovery) RootDir() string {
	return fd.rootDir
}

// Classifier returns the classifier used to filter paths.
func (fd *FileDiscovery) Classifier() *files.Classifier {
	return fd.classifier
}

// DiscoverFiles returns the sorted, deduplicated relative paths of eligible files.
func (fd *FileDiscovery) DiscoverFiles(ctx context.Context) ([]string, error) {
	var errs []error
	for _, l := range fd.listers {
		paths, err := l.List(ctx, fd.rootDir)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			fd.logger.Debug("file lister unavailable", "lister", l.Name(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", l.Name(), err))
			continue
		}
		fd.logger.Debug("listed files", "lister", l.Name(), "count", len(paths))
		return fd.filter(paths), nil
	}
	return nil, fmt.Errorf("no file lister succeeded: %w", errors.Join(errs...))
}

// Ignored reports whether relPath is excluded by eligibility rules or ignore globs.
func (fd *FileDiscovery) Ignored(relPath string) bool {
	return !fd.classifier.Eligible(relPath) || fd.shouldIgnore(relPath)
}

func (fd *FileDiscovery) filter(paths []string) []string {
	seen := make(map[string]struct{}, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		p = filepath.ToSlash(p)
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		if fd.Ignored(p) {
			continue
		}
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// shouldIgnore checks if a path matches any ignore pattern.
func (fd *FileDiscovery) shouldIgnore(relPath string) bool {
	if fd.matchesAnyPattern(relPath, fd.ignorePatterns) {
		return true
	}

	// "generated" should match pattern "generated/**"
	for dir := relPath; ; {
		i := strings.LastIndex(dir, "/")
		if i < 0 {
			break
		}
		dir = dir[:i]
		if fd.matchesAnyPattern(dir+"/**", fd.ignorePatterns) {
			return true
		}
	}
	return false
}

// matchesAnyPattern checks if a path matches any of the given patterns.
func (fd *FileDiscovery) matchesAnyPattern(path string, patterns []compiledPattern) bool {
	for _, cp := range patterns {
		if cp.glob.Match(path) {
			return true
		}
	}

	// Root-level paths also match "**/" patterns with the prefix removed,
	// so "**/*.gen.go" matches "a.gen.go".
	if !strings.Contains(path, "/") {
		for _, cp := range patterns {
			if strings.HasPrefix(cp.pattern, "**/") {
				simplified := strings.TrimPrefix(cp.pattern, "**/")
				if g, err := glob.Compile(simplified, '/'); err == nil && g.Match(path) {
					return true
				}
			}
		}
	}
	return false
}

// gitLister lists tracked and untracked-but-not-ignored files.
type gitLister struct {
	ops git.Operations
}

func (g *gitLister) Name() string { return "git" }

func (g *gitLister) List(ctx context.Context, root string) ([]string, error) {
	if !g.ops.IsWorkTree(ctx, root) {
		return nil, ErrNotWorkTree
	}
	paths, err := g.ops.ListFiles(ctx, root)
	if err != nil {
		return nil, err
	}

	// The index can name files that were deleted from the working tree.
	out := paths[:0]
	for _, p := range paths {
		info, err := os.Lstat(filepath.Join(root, filepath.FromSlash(p)))
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// walkLister walks the tree, pruning skipped and dot directories and
// honouring the root .gitignore.
type walkLister struct {
	classifier *files.Classifier
}

func (w *walkLister) Name() string { return "walk" }

func (w *walkLister) List(ctx context.Context, root string) ([]string, error) {
	ignore, err := loadGitignore(root)
	if err != nil {
		return nil, err
	}

	var out []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			// Unreadable subtrees are skipped rather than failing the walk.
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path == root {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if w.classifier.SkipDir(d.Name()) || (ignore != nil && ignore.MatchesPath(rel+"/")) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if ignore != nil && ignore.MatchesPath(rel) {
			return nil
		}
		out = append(out, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// loadGitignore compiles the root .gitignore, or returns nil when there is none.
func loadGitignore(root string) (*gitignore.GitIgnore, error) {
	ignore, err := gitignore.CompileIgnoreFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read .gitignore: %w", err)
	}
	return ignore, nil
}
