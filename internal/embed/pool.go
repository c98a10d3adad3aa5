package embed

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/mvp-joe/greppy/internal/config"
)

// Result is the outcome of embedding one text: either Vector or Err is set.
type Result struct {
	Vector []float32
	Err    error
}

// OK reports whether the text was embedded.
func (r Result) OK() bool {
	return r.Err == nil
}

// PoolOptions configures a Pool.
type PoolOptions struct {
	BatchSize      int           // texts per provider request
	Concurrency    int           // in-flight provider requests
	Timeout        time.Duration // per request
	MaxRetries     int           // retries per batch before falling back to single items
	MaxTextChars   int           // texts are truncated to this many runes
	RateLimit      float64       // requests per second, 0 disables
	CacheSize      int           // LRU entries, 0 disables
	QueryPrefix    string
	DocumentPrefix string
}

// PoolOptionsFromConfig maps the embedding config onto pool options.
func PoolOptionsFromConfig(cfg config.EmbeddingConfig) PoolOptions {
	return PoolOptions{
		BatchSize:      cfg.BatchSize,
		Concurrency:    cfg.Concurrency,
		Timeout:        cfg.Timeout,
		MaxRetries:     cfg.MaxRetries,
		MaxTextChars:   cfg.MaxTextChars,
		RateLimit:      cfg.RateLimit,
		CacheSize:      cfg.CacheSize,
		QueryPrefix:    cfg.QueryPrefix,
		DocumentPrefix: cfg.DocumentPrefix,
	}
}

// BatchProgress reports embedding progress.
type BatchProgress struct {
	ProcessedTexts int
	TotalTexts     int
}

// Pool dispatches embedding requests to a provider through a bounded worker
// pool and reports a typed result per input text. Results are always
// returned in input order regardless of completion order.
type Pool struct {
	provider Provider
	opts     PoolOptions
	retry    RetryConfig
	limiter  *rate.Limiter
	cache    *Cache
	logger   *slog.Logger
}

// NewPool wraps provider. Zero-valued options fall back to single-request defaults.
func NewPool(provider Provider, opts PoolOptions, logger *slog.Logger) *Pool {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 32
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		burst := int(opts.RateLimit)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	return &Pool{
		provider: provider,
		opts:     opts,
		retry:    DefaultRetryConfig(opts.MaxRetries),
		limiter:  limiter,
		cache:    NewCache(opts.CacheSize),
		logger:   logger,
	}
}

// Provider returns the wrapped provider.
func (p *Pool) Provider() Provider {
	return p.provider
}

// Dimensions returns the provider's vector length.
func (p *Pool) Dimensions() int {
	return p.provider.Dimensions()
}

// EmbedAll embeds texts and returns one Result per text, in input order.
// A failing request never fails the whole call: its texts are retried
// individually and those that still fail carry Err. If ctx is cancelled,
// unfinished texts carry ctx.Err(). onProgress may be nil.
func (p *Pool) EmbedAll(ctx context.Context, texts []string, mode EmbedMode, onProgress func(BatchProgress)) []Result {
	results := make([]Result, len(texts))
	if len(texts) == 0 {
		return results
	}

	prepared := make([]string, len(texts))
	var pending []int
	for i, text := range texts {
		prepared[i] = p.prepare(text, mode)
		if v, ok := p.cache.Get(mode, prepared[i]); ok {
			results[i] = Result{Vector: v}
			continue
		}
		pending = append(pending, i)
	}

	var mu sync.Mutex
	processed := len(texts) - len(pending)
	report := func(n int) {
		if onProgress == nil {
			return
		}
		mu.Lock()
		processed += n
		progress := BatchProgress{ProcessedTexts: processed, TotalTexts: len(texts)}
		onProgress(progress)
		mu.Unlock()
	}
	if processed > 0 {
		report(0)
	}

	var g errgroup.Group
	g.SetLimit(p.opts.Concurrency)

	for start := 0; start < len(pending); start += p.opts.BatchSize {
		end := start + p.opts.BatchSize
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[start:end]

		g.Go(func() error {
			// Each index is written by exactly one goroutine.
			p.embedBatch(ctx, prepared, batch, mode, results)
			report(len(batch))
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// EmbedOne embeds a single text, returning its error rather than a sentinel.
func (p *Pool) EmbedOne(ctx context.Context, text string, mode EmbedMode) ([]float32, error) {
	r := p.EmbedAll(ctx, []string{text}, mode, nil)[0]
	return r.Vector, r.Err
}

func (p *Pool) prepare(text string, mode EmbedMode) string {
	switch mode {
	case EmbedModeQuery:
		text = p.opts.QueryPrefix + text
	case EmbedModePassage:
		text = p.opts.DocumentPrefix + text
	}
	return Truncate(text, p.opts.MaxTextChars)
}

func (p *Pool) embedBatch(ctx context.Context, prepared []string, indices []int, mode EmbedMode, results []Result) {
	if err := ctx.Err(); err != nil {
		for _, idx := range indices {
			results[idx] = Result{Err: err}
		}
		return
	}

	batch := make([]string, len(indices))
	for i, idx := range indices {
		batch[i] = prepared[idx]
	}

	vectors, err := retryWithBackoff(ctx, p.retry, func() ([][]float32, error) {
		return p.request(ctx, batch, mode)
	})
	if err == nil {
		for i, idx := range indices {
			results[idx] = Result{Vector: vectors[i]}
			p.cache.Add(mode, batch[i], vectors[i])
		}
		return
	}

	if len(indices) == 1 || ctx.Err() != nil {
		for _, idx := range indices {
			results[idx] = Result{Err: err}
		}
		return
	}

	// Isolate the failing texts so one bad input does not sink its neighbours.
	p.logger.Debug("embedding batch failed, retrying items individually", "size", len(indices), "error", err)
	for i, idx := range indices {
		v, itemErr := p.request(ctx, batch[i:i+1], mode)
		if itemErr != nil {
			results[idx] = Result{Err: itemErr}
			continue
		}
		results[idx] = Result{Vector: v[0]}
		p.cache.Add(mode, batch[i], v[0])
	}
}

// request performs one rate-limited provider call under the per-request timeout.
func (p *Pool) request(ctx context.Context, texts []string, mode EmbedMode) ([][]float32, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	reqCtx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
	defer cancel()

	vectors, err := p.provider.Embed(reqCtx, texts, mode)
	if err != nil {
		if reqCtx.Err() != nil && ctx.Err() == nil {
			return nil, fmt.Errorf("embedding request timed out after %s: %w", p.opts.Timeout, err)
		}
		return nil, err
	}
	if err := validateVectors(vectors, len(texts), p.provider.Dimensions()); err != nil {
		return nil, err
	}
	return vectors, nil
}
