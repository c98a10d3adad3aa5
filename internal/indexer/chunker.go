package indexer

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/mvp-joe/greppy/internal/config"
	"github.com/mvp-joe/greppy/internal/files"
	"github.com/mvp-joe/greppy/internal/manifest"
)

// Chunk is a contiguous, overlapping window of lines from one file.
// FilePath is project-relative and slash-separated.
type Chunk struct {
	ID        string
	FilePath  string
	StartLine int // 1-based, inclusive
	EndLine   int // inclusive
	Content   string
}

// ChunkerOptions configures chunk boundaries and validity.
type ChunkerOptions struct {
	MaxChunkSize  int
	OverlapLines  int
	MinChunkChars int
	MinAlnumRatio float64
}

// ChunkerOptionsFromConfig maps the chunking config onto chunker options.
func ChunkerOptionsFromConfig(cfg config.ChunkingConfig) ChunkerOptions {
	return ChunkerOptions{
		MaxChunkSize:  cfg.MaxChunkSize,
		OverlapLines:  cfg.OverlapLines,
		MinChunkChars: cfg.MinChunkChars,
		MinAlnumRatio: cfg.MinAlnumRatio,
	}
}

// Chunker splits file content into line-aligned chunks under a character budget.
type Chunker struct {
	opts ChunkerOptions
}

// NewChunker creates a chunker. Non-positive sizes fall back to the defaults.
func NewChunker(opts ChunkerOptions) *Chunker {
	defaults := config.Default().Chunking
	if opts.MaxChunkSize <= 0 {
		opts.MaxChunkSize = defaults.MaxChunkSize
	}
	if opts.OverlapLines < 0 {
		opts.OverlapLines = 0
	}
	if opts.MinChunkChars <= 0 {
		opts.MinChunkChars = defaults.MinChunkChars
	}
	return &Chunker{opts: opts}
}

// ChunkFile reads root/relPath once and chunks it. The returned hash is the
// sha256 of exactly the bytes that were chunked.
func (c *Chunker) ChunkFile(root, relPath string) ([]Chunk, string, error) {
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(relPath)))
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", relPath, err)
	}
	return c.ChunkContent(relPath, files.DecodeText(data)), manifest.HashBytes(data), nil
}

// ChunkContent splits content into chunks. Lines are accumulated until the
// next line would push the chunk past MaxChunkSize; the closed chunk's last
// OverlapLines lines seed the next one when it has more than that many.
// Chunks failing the validity check are dropped.
func (c *Chunker) ChunkContent(relPath, content string) []Chunk {
	if strings.TrimSpace(content) == "" {
		return nil
	}

	lines := strings.Split(content, "\n")
	var chunks []Chunk

	var current []string
	size := 0
	start := 1

	emit := func(end int) {
		text := strings.Join(current, "\n")
		if !c.valid(text) {
			return
		}
		chunks = append(chunks, Chunk{
			ID:        ChunkID(relPath, start, text),
			FilePath:  relPath,
			StartLine: start,
			EndLine:   end,
			Content:   text,
		})
	}

	for i, line := range lines {
		lineNo := i + 1
		cost := utf8.RuneCountInString(line) + 1

		if size+cost > c.opts.MaxChunkSize && len(current) > 0 {
			emit(lineNo - 1)

			var overlap []string
			if len(current) > c.opts.OverlapLines {
				overlap = append(overlap, current[len(current)-c.opts.OverlapLines:]...)
			}
			current = overlap
			size = 0
			for _, l := range overlap {
				size += utf8.RuneCountInString(l) + 1
			}
			start = max(1, lineNo-len(overlap))
		}

		current = append(current, line)
		size += cost
	}

	if len(current) > 0 {
		emit(len(lines))
	}
	return chunks
}

// valid rejects chunks that are too short or mostly symbols.
func (c *Chunker) valid(content string) bool {
	stripped := strings.TrimSpace(content)
	total := utf8.RuneCountInString(stripped)
	if total == 0 || total < c.opts.MinChunkChars {
		return false
	}

	wordy := 0
	for _, r := range stripped {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			wordy++
		}
	}
	return float64(wordy)/float64(total) >= c.opts.MinAlnumRatio
}

// ChunkID derives the stable chunk id from its path, start line and content.
func ChunkID(relPath string, startLine int, content string) string {
	sum := md5.Sum([]byte(fmt.Sprintf("%s:%d:%s", relPath, startLine, content)))
	return hex.EncodeToString(sum[:])[:12]
}
