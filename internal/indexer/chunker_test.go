package indexer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/greppy/internal/config"
	"github.com/mvp-joe/greppy/internal/manifest"
)

// Test Plan for Chunker:
// - Small content yields one chunk spanning every line, trailing empty line included
// - Whitespace-only content yields no chunks
// - Boundaries close before the line that would exceed the budget
// - Closed chunks with more than 3 lines seed the next chunk with their last 3 lines
// - Chunks of 3 lines or fewer carry no overlap
// - Chunks cover [1, L] with no gaps
// - Same input gives identical chunks and ids; a different path or start line changes the id
// - Short and symbol-heavy chunks are dropped
// - Line cost counts runes, not bytes
// - ChunkFile decodes invalid UTF-8 with replacement and hashes the raw bytes

func defaultChunker() *Chunker {
	return NewChunker(ChunkerOptionsFromConfig(config.Default().Chunking))
}

// fixedLines returns n lines of exactly width characters, each ending in "\n".
func fixedLines(n, width int, tag string) string {
	var b strings.Builder
	for i := 1; i <= n; i++ {
		line := fmt.Sprintf("%s line %d alpha beta gamma delta", tag, i)
		if len(line) < width {
			line += strings.Repeat(" x", width)
		}
		b.WriteString(line[:width])
		b.WriteString("\n")
	}
	return b.String()
}

func TestChunker_SmallContentSingleChunk(t *testing.T) {
	t.Parallel()

	content := "package main\n\nfunc main() {\n\tprintln(\"hello world\")\n}\n"
	chunks := defaultChunker().ChunkContent("cmd/main.go", content)

	require.Len(t, chunks, 1)
	assert.Equal(t, "cmd/main.go", chunks[0].FilePath)
	assert.Equal(t, 1, chunks[0].StartLine)
	assert.Equal(t, 6, chunks[0].EndLine) // trailing newline yields a final empty line
	assert.Equal(t, content, chunks[0].Content)
	assert.Len(t, chunks[0].ID, 12)
}

func TestChunker_EmptyContent(t *testing.T) {
	t.Parallel()

	c := defaultChunker()
	assert.Empty(t, c.ChunkContent("a.go", ""))
	assert.Empty(t, c.ChunkContent("a.go", "  \n\t\n   \n"))
}

func TestChunker_BoundariesAndOverlap(t *testing.T) {
	t.Parallel()

	// 80 lines costing 60 each: chunks [1,33], [31,63], [61,81].
	content := fixedLines(80, 59, "f")
	chunks := defaultChunker().ChunkContent("big.py", content)

	require.Len(t, chunks, 3)
	assert.Equal(t, [2]int{1, 33}, [2]int{chunks[0].StartLine, chunks[0].EndLine})
	assert.Equal(t, [2]int{31, 63}, [2]int{chunks[1].StartLine, chunks[1].EndLine})
	assert.Equal(t, [2]int{61, 81}, [2]int{chunks[2].StartLine, chunks[2].EndLine})

	lines := strings.Split(content, "\n")
	for _, c := range chunks {
		assert.Equal(t, strings.Join(lines[c.StartLine-1:c.EndLine], "\n"), c.Content)
		assert.LessOrEqual(t, len([]rune(c.Content)), 2000)
	}
}

func TestChunker_NoOverlapForShortChunks(t *testing.T) {
	t.Parallel()

	// Lines of 900 characters: the first chunk holds two lines, so the next starts without overlap.
	line := strings.Repeat("word ", 180)
	content := strings.Join([]string{line, line, line}, "\n")
	chunks := defaultChunker().ChunkContent("long.txt", content)

	require.Len(t, chunks, 2)
	assert.Equal(t, 1, chunks[0].StartLine)
	assert.Equal(t, 2, chunks[0].EndLine)
	assert.Equal(t, 3, chunks[1].StartLine)
	assert.Equal(t, 3, chunks[1].EndLine)
}

func TestChunker_Coverage(t *testing.T) {
	t.Parallel()

	for _, n := range []int{1, 10, 34, 67, 200} {
		content := fixedLines(n, 47, "cov")
		chunks := defaultChunker().ChunkContent("c.go", content)
		total := len(strings.Split(content, "\n"))

		require.NotEmpty(t, chunks)
		assert.Equal(t, 1, chunks[0].StartLine, "n=%d", n)
		assert.Equal(t, total, chunks[len(chunks)-1].EndLine, "n=%d", n)
		for i := 1; i < len(chunks); i++ {
			assert.LessOrEqual(t, chunks[i].StartLine, chunks[i-1].EndLine+1, "gap at chunk %d, n=%d", i, n)
			assert.Greater(t, chunks[i].EndLine, chunks[i-1].EndLine)
		}
	}
}

func TestChunker_Determinism(t *testing.T) {
	t.Parallel()

	content := fixedLines(120, 70, "det")
	a := defaultChunker().ChunkContent("pkg/x.go", content)
	b := defaultChunker().ChunkContent("pkg/x.go", content)
	assert.Equal(t, a, b)

	other := defaultChunker().ChunkContent("pkg/y.go", content)
	require.Len(t, other, len(a))
	assert.NotEqual(t, a[0].ID, other[0].ID)

	assert.Equal(t, ChunkID("p", 1, "body"), ChunkID("p", 1, "body"))
	assert.NotEqual(t, ChunkID("p", 1, "body"), ChunkID("p", 2, "body"))
}

func TestChunker_Validity(t *testing.T) {
	t.Parallel()

	c := defaultChunker()
	assert.Empty(t, c.ChunkContent("a.txt", "tiny"), "fewer than 10 characters")
	assert.Empty(t, c.ChunkContent("a.txt", "{}[]()<>;;;{}[]()<>;;;{}[]()"), "mostly symbols")
	assert.Len(t, c.ChunkContent("a.txt", "ten chars!"), 1)
}

func TestChunker_RuneCost(t *testing.T) {
	t.Parallel()

	// 1500 runes of 3-byte characters fit in one chunk even though they are 4500 bytes.
	line := strings.Repeat("日本語", 500)
	chunks := defaultChunker().ChunkContent("ja.md", line+"\nsecond line here")
	require.Len(t, chunks, 1)
}

func TestChunker_ChunkFileInvalidUTF8(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	raw := []byte("caf\xe9 au lait is a coffee drink\nsecond line of text\n")
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), raw, 0o644))

	chunks, hash, err := defaultChunker().ChunkFile(root, "notes.txt")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0].Content, "caf� au lait")
	assert.Equal(t, manifest.HashBytes(raw), hash)
}

func TestChunker_ChunkFileMissing(t *testing.T) {
	t.Parallel()

	_, _, err := defaultChunker().ChunkFile(t.TempDir(), "gone.go")
	require.Error(t, err)
}
