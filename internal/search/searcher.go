// Package search answers natural-language queries against a project's
// vector store.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/maypok86/otter"

	"github.com/mvp-joe/greppy/internal/embed"
	"github.com/mvp-joe/greppy/internal/storage"
)

var (
	// ErrNotIndexed is returned when the project has no collection or an empty one.
	ErrNotIndexed = errors.New("project is not indexed")

	// ErrEmptyQuery is returned for blank queries.
	ErrEmptyQuery = errors.New("query is empty")
)

// Result is one ranked chunk. Score is cosine similarity, higher is closer.
type Result struct {
	FilePath  string
	StartLine int
	EndLine   int
	Content   string
	Score     float32
}

// FirstLine returns the first line of the chunk, trimmed and cut to max runes.
func (r Result) FirstLine(max int) string {
	line, _, _ := strings.Cut(r.Content, "\n")
	line = strings.TrimSpace(line)
	if runes := []rune(line); max > 0 && len(runes) > max {
		line = string(runes[:max])
	}
	return line
}

// Options configures a Searcher.
type Options struct {
	DefaultLimit int
	CacheSize    int           // cached query vectors, 0 disables
	CacheTTL     time.Duration // 0 keeps entries until evicted
	Logger       *slog.Logger
}

// Searcher embeds queries and ranks stored chunks by similarity.
type Searcher struct {
	store  storage.VectorStore
	pool   *embed.Pool
	limit  int
	cache  *otter.Cache[string, []float32]
	logger *slog.Logger
}

// New creates a Searcher over store, embedding queries with pool.
func New(store storage.VectorStore, pool *embed.Pool, opts Options) (*Searcher, error) {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = 10
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Searcher{
		store:  store,
		pool:   pool,
		limit:  opts.DefaultLimit,
		logger: opts.Logger,
	}

	if opts.CacheSize > 0 {
		b := otter.MustBuilder[string, []float32](opts.CacheSize)
		var (
			c   otter.Cache[string, []float32]
			err error
		)
		if opts.CacheTTL > 0 {
			c, err = b.WithTTL(opts.CacheTTL).Build()
		} else {
			c, err = b.Build()
		}
		if err != nil {
			return nil, fmt.Errorf("failed to build query cache: %w", err)
		}
		s.cache = &c
	}
	return s, nil
}

// Search returns up to limit chunks closest to query. A non-positive limit
// uses the default.
func (s *Searcher) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 {
		limit = s.limit
	}

	count, err := s.store.Count(ctx)
	if err != nil {
		return nil, err
	}
	if !s.store.Exists(ctx) || count == 0 {
		return nil, ErrNotIndexed
	}

	vector, err := s.embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	matches, err := s.store.Query(ctx, vector, limit)
	if err != nil {
		return nil, err
	}

	results := make([]Result, len(matches))
	for i, m := range matches {
		results[i] = Result{
			FilePath:  m.FilePath,
			StartLine: m.StartLine,
			EndLine:   m.EndLine,
			Content:   m.Content,
			Score:     1 - m.Distance,
		}
	}
	return results, nil
}

func (s *Searcher) embed(ctx context.Context, query string) ([]float32, error) {
	if s.cache != nil {
		if v, ok := s.cache.Get(query); ok {
			s.logger.Debug("query cache hit", "query", query)
			return v, nil
		}
	}

	v, err := s.pool.EmbedOne(ctx, query, embed.EmbedModeQuery)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Set(query, v)
	}
	return v, nil
}

// Close releases the query cache.
func (s *Searcher) Close() {
	if s.cache != nil {
		s.cache.Close()
	}
}
