package pattern

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for Executor:
// - The first available provider answers and its name is reported
// - Exit status 1 is an empty success, not a fallback
// - Other exit statuses fall through to the next provider
// - Missing binaries are skipped; none available yields ErrNoProvider
// - Every provider failing yields ErrNoProvider wrapping their errors
// - Limits cap Matches while Total keeps the full count
// - Providers run in the search root
// - A real grep search finds matches in a temp tree

// shProvider runs a shell script in place of a search tool.
type shProvider struct {
	name   string
	script string
	binary string
}

func (p shProvider) Name() string { return p.name }

func (p shProvider) Binary() string {
	if p.binary != "" {
		return p.binary
	}
	return "sh"
}

func (p shProvider) Args(*Request) []string { return []string{"-c", p.script} }

func TestExecutor_FirstProviderWins(t *testing.T) {
	t.Parallel()

	e := NewExecutor(t.TempDir(), []Provider{
		shProvider{name: "first", script: `printf 'a.go:1:one\nb.go:2:two\n'`},
		shProvider{name: "second", script: `printf 'c.go:3:three\n'`},
	}, nil)

	resp, err := e.Search(context.Background(), &Request{Pattern: "x"})
	require.NoError(t, err)
	assert.Equal(t, "first", resp.Provider)
	assert.Equal(t, 2, resp.Total)
	assert.Equal(t, []Match{{FilePath: "a.go", Line: 1, Text: "one"}, {FilePath: "b.go", Line: 2, Text: "two"}}, resp.Matches)
}

func TestExecutor_ExitOneIsNoMatches(t *testing.T) {
	t.Parallel()

	e := NewExecutor(t.TempDir(), []Provider{
		shProvider{name: "first", script: "exit 1"},
		shProvider{name: "second", script: `printf 'c.go:3:three\n'`},
	}, nil)

	resp, err := e.Search(context.Background(), &Request{Pattern: "x"})
	require.NoError(t, err)
	assert.Equal(t, "first", resp.Provider)
	assert.Empty(t, resp.Matches)
	assert.Zero(t, resp.Total)
}

func TestExecutor_FallsBackOnError(t *testing.T) {
	t.Parallel()

	e := NewExecutor(t.TempDir(), []Provider{
		shProvider{name: "missing", binary: "greppy-no-such-tool"},
		shProvider{name: "broken", script: "echo 'bad flag' >&2; exit 2"},
		shProvider{name: "fallback", script: `printf 'c.go:3:three\n'`},
	}, nil)

	resp, err := e.Search(context.Background(), &Request{Pattern: "x"})
	require.NoError(t, err)
	assert.Equal(t, "fallback", resp.Provider)
	require.Len(t, resp.Matches, 1)
}

func TestExecutor_NoProvider(t *testing.T) {
	t.Parallel()

	e := NewExecutor(t.TempDir(), []Provider{shProvider{name: "missing", binary: "greppy-no-such-tool"}}, nil)
	_, err := e.Search(context.Background(), &Request{Pattern: "x"})
	require.ErrorIs(t, err, ErrNoProvider)

	e = NewExecutor(t.TempDir(), []Provider{shProvider{name: "broken", script: "echo boom >&2; exit 2"}}, nil)
	_, err = e.Search(context.Background(), &Request{Pattern: "x"})
	require.ErrorIs(t, err, ErrNoProvider)
	assert.Contains(t, err.Error(), "boom")
}

func TestExecutor_LimitKeepsTotal(t *testing.T) {
	t.Parallel()

	e := NewExecutor(t.TempDir(), []Provider{
		shProvider{name: "many", script: `for i in 1 2 3 4 5; do echo "f.go:$i:line $i"; done`},
	}, nil)

	resp, err := e.Search(context.Background(), &Request{Pattern: "x", Limit: 2})
	require.NoError(t, err)
	assert.Len(t, resp.Matches, 2)
	assert.Equal(t, 5, resp.Total)
}

func TestExecutor_RunsInRoot(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "marker.txt"), []byte("x"), 0o644))

	e := NewExecutor(root, []Provider{shProvider{name: "ls", script: `ls | sed 's/^/&:1:/'`}}, nil)
	resp, err := e.Search(context.Background(), &Request{Pattern: "x"})
	require.NoError(t, err)
	require.Len(t, resp.Matches, 1)
	assert.Equal(t, "marker.txt", resp.Matches[0].FilePath)
}

func TestExecutor_Timeout(t *testing.T) {
	t.Parallel()

	e := NewExecutor(t.TempDir(), []Provider{shProvider{name: "slow", script: "exec sleep 5"}}, nil)
	e.timeout = 50 * time.Millisecond

	_, err := e.Search(context.Background(), &Request{Pattern: "x"})
	require.ErrorIs(t, err, ErrNoProvider)
	assert.Contains(t, err.Error(), "timed out")
}

func TestExecutor_Grep(t *testing.T) {
	t.Parallel()
	if !Available(GrepProvider{}) {
		t.Skip("grep not installed")
	}
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "pkg"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "pkg", "a.go"), []byte("package pkg\n\nfunc Hello() {}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.txt"), []byte("say HELLO\n"), 0o644))

	e := NewExecutor(root, []Provider{GrepProvider{}}, nil)
	resp, err := e.Search(context.Background(), &Request{Pattern: "hello", IgnoreCase: true})
	require.NoError(t, err)
	assert.Equal(t, "grep", resp.Provider)
	assert.ElementsMatch(t, []Match{
		{FilePath: "pkg/a.go", Line: 3, Text: "func Hello() {}"},
		{FilePath: "b.txt", Line: 1, Text: "say HELLO"},
	}, resp.Matches)

	resp, err = e.Search(context.Background(), &Request{Pattern: "absent-token"})
	require.NoError(t, err)
	assert.Empty(t, resp.Matches)
}
