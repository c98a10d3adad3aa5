// Package git wraps the handful of git commands greppy relies on.
package git

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Operations defines the interface for git operations.
// This allows mocking git commands in tests.
type Operations interface {
	// IsWorkTree reports whether projectPath is inside a git work tree.
	IsWorkTree(ctx context.Context, projectPath string) bool

	// ListFiles returns tracked and untracked-but-not-ignored files,
	// relative to projectPath, honouring .gitignore and exclude rules.
	ListFiles(ctx context.Context, projectPath string) ([]string, error)

	// GetWorktreeRoot returns the git worktree root path.
	// Falls back to projectPath if not a git repository.
	GetWorktreeRoot(ctx context.Context, projectPath string) string
}

// gitOps is the real implementation using exec.Command.
type gitOps struct{}

// NewOperations returns the default git operations implementation.
func NewOperations() Operations {
	return &gitOps{}
}

// Available reports whether a git binary is on PATH.
func Available() bool {
	_, err := exec.LookPath("git")
	return err == nil
}

func (g *gitOps) IsWorkTree(ctx context.Context, projectPath string) bool {
	cmd := exec.CommandContext(ctx, "git", "rev-parse", "--is-inside-work-tree")
	cmd.Dir = projectPath
	output, err := cmd.Output()
	return err == nil && strings.TrimSpace(string(output)) == "true"
}

func (g *gitOps) ListFiles(ctx context.Context, projectPath string) ([]string, error) {
	cmd := exec.CommandContext(ctx, "git", "ls-files", "--cached", "--others", "--exclude-standard", "-z")
	cmd.Dir = projectPath
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git ls-files failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	var files []string
	seen := make(map[string]struct{})
	for _, p := range strings.Split(string(output), "\x00") {
		if p == "" {
			continue
		}
		// Unmerged entries appear once per stage.
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		files = append(files, p)
	}
	return files, nil
}

func (g *gitOps) GetWorktreeRoot(ctx context.Context, projectPath string) string {
	cmd := exec.CommandContext(ctx, "git", "rev-parse", "--show-toplevel")
	cmd.Dir = projectPath
	output, err := cmd.Output()
	if err != nil {
		return projectPath
	}
	return strings.TrimSpace(string(output))
}
