package git

import (
	"context"
	"fmt"
)

// MockGitOps is a mock implementation of Operations for testing.
type MockGitOps struct {
	WorkTree     bool
	Files        []string
	ListError    error
	WorktreeRoot string
}

// NewMockGitOps creates a mock of a work tree with no files.
func NewMockGitOps() *MockGitOps {
	return &MockGitOps{
		WorkTree:     true,
		WorktreeRoot: "/tmp/test-repo",
	}
}

func (m *MockGitOps) IsWorkTree(ctx context.Context, projectPath string) bool {
	return m.WorkTree
}

func (m *MockGitOps) ListFiles(ctx context.Context, projectPath string) ([]string, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	return append([]string(nil), m.Files...), nil
}

func (m *MockGitOps) GetWorktreeRoot(ctx context.Context, projectPath string) string {
	return m.WorktreeRoot
}

// String returns a human-readable representation of the mock state.
func (m *MockGitOps) String() string {
	return fmt.Sprintf("MockGitOps{worktree=%t, files=%d}", m.WorkTree, len(m.Files))
}
