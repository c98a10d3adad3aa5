package embed

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for Pool:
// - Zero texts return zero results without calling the provider
// - Results come back in input order even when batches finish out of order
// - Concurrency never exceeds the configured worker count
// - A failing batch falls back to single items; only the bad item carries Err
// - A request exceeding the per-request timeout becomes an Err result
// - Retries recover from a transient failure without per-item fallback
// - Cached texts are not sent again
// - Texts are truncated and prefixed by mode before submission
// - Cancelled context yields ctx.Err() results
// - Progress reports reach the total

// fakeProvider returns vectors encoding each text's length and first byte.
type fakeProvider struct {
	dims     int
	embedFn  func(ctx context.Context, texts []string) ([][]float32, error)
	calls    atomic.Int64
	inFlight atomic.Int64
	maxSeen  atomic.Int64

	mu   sync.Mutex
	seen []string
}

func (f *fakeProvider) Initialize(ctx context.Context) error { return nil }
func (f *fakeProvider) Dimensions() int                      { return f.dims }
func (f *fakeProvider) Close() error                         { return nil }
func (f *fakeProvider) Check(ctx context.Context) (Health, error) {
	return Health{Reachable: true, ModelAvailable: true}, nil
}

func (f *fakeProvider) Embed(ctx context.Context, texts []string, mode EmbedMode) ([][]float32, error) {
	f.calls.Add(1)
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		m := f.maxSeen.Load()
		if n <= m || f.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}

	f.mu.Lock()
	f.seen = append(f.seen, texts...)
	f.mu.Unlock()

	if f.embedFn != nil {
		return f.embedFn(ctx, texts)
	}
	return vectorsFor(texts, f.dims), nil
}

func vectorsFor(texts []string, dims int) [][]float32 {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, dims)
		v[0] = float32(len(t))
		if len(t) > 0 {
			v[1] = float32(t[0])
		}
		out[i] = v
	}
	return out
}

func texts(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = strings.Repeat("x", i+1)
	}
	return out
}

func TestPool_ZeroTexts(t *testing.T) {
	t.Parallel()

	f := &fakeProvider{dims: 2}
	results := NewPool(f, PoolOptions{}, nil).EmbedAll(context.Background(), nil, EmbedModePassage, nil)
	assert.Empty(t, results)
	assert.Zero(t, f.calls.Load())
}

func TestPool_PreservesOrderUnderOutOfOrderCompletion(t *testing.T) {
	t.Parallel()

	f := &fakeProvider{dims: 2}
	f.embedFn = func(ctx context.Context, in []string) ([][]float32, error) {
		time.Sleep(time.Duration(rand.Intn(5)) * time.Millisecond)
		return vectorsFor(in, 2), nil
	}

	in := texts(100)
	pool := NewPool(f, PoolOptions{BatchSize: 3, Concurrency: 8}, nil)
	results := pool.EmbedAll(context.Background(), in, EmbedModePassage, nil)

	require.Len(t, results, 100)
	for i, r := range results {
		require.NoError(t, r.Err)
		assert.Equal(t, float32(i+1), r.Vector[0], "result %d out of order", i)
	}
	assert.LessOrEqual(t, f.maxSeen.Load(), int64(8))
	assert.Equal(t, int64(34), f.calls.Load())
}

func TestPool_PerItemFailureIsIsolated(t *testing.T) {
	t.Parallel()

	bad := errors.New("cannot embed poison")
	f := &fakeProvider{dims: 2}
	f.embedFn = func(ctx context.Context, in []string) ([][]float32, error) {
		for _, s := range in {
			if s == "poison" {
				return nil, bad
			}
		}
		return vectorsFor(in, 2), nil
	}

	in := []string{"alpha", "poison", "gamma", "delta"}
	results := NewPool(f, PoolOptions{BatchSize: 4, Concurrency: 1}, nil).EmbedAll(context.Background(), in, EmbedModePassage, nil)

	require.Len(t, results, 4)
	assert.True(t, results[0].OK())
	assert.ErrorIs(t, results[1].Err, bad)
	assert.True(t, results[2].OK())
	assert.True(t, results[3].OK())
	assert.Equal(t, float32(len("gamma")), results[2].Vector[0])
}

func TestPool_TimeoutBecomesErrResult(t *testing.T) {
	t.Parallel()

	f := &fakeProvider{dims: 2}
	f.embedFn = func(ctx context.Context, in []string) ([][]float32, error) {
		if in[0] == "slow" {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return vectorsFor(in, 2), nil
	}

	results := NewPool(f, PoolOptions{BatchSize: 1, Concurrency: 2, Timeout: 20 * time.Millisecond}, nil).
		EmbedAll(context.Background(), []string{"fast", "slow"}, EmbedModePassage, nil)

	assert.True(t, results[0].OK())
	require.Error(t, results[1].Err)
	assert.Contains(t, results[1].Err.Error(), "timed out")
}

func TestPool_RetryRecoversTransientFailure(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int64
	f := &fakeProvider{dims: 2}
	f.embedFn = func(ctx context.Context, in []string) ([][]float32, error) {
		if attempts.Add(1) == 1 {
			return nil, ErrProviderUnavailable
		}
		return vectorsFor(in, 2), nil
	}

	results := NewPool(f, PoolOptions{BatchSize: 10, MaxRetries: 2}, nil).
		EmbedAll(context.Background(), texts(5), EmbedModePassage, nil)

	for _, r := range results {
		assert.True(t, r.OK())
	}
	assert.Equal(t, int64(2), f.calls.Load())
}

func TestPool_ValidatesProviderOutput(t *testing.T) {
	t.Parallel()

	f := &fakeProvider{dims: 3}
	f.embedFn = func(ctx context.Context, in []string) ([][]float32, error) {
		return vectorsFor(in, 2), nil
	}

	results := NewPool(f, PoolOptions{}, nil).EmbedAll(context.Background(), []string{"a"}, EmbedModePassage, nil)
	assert.ErrorIs(t, results[0].Err, ErrDimensionMismatch)
}

func TestPool_CacheSkipsRepeatedTexts(t *testing.T) {
	t.Parallel()

	f := &fakeProvider{dims: 2}
	pool := NewPool(f, PoolOptions{BatchSize: 10, CacheSize: 16}, nil)

	first := pool.EmbedAll(context.Background(), []string{"a", "bb"}, EmbedModePassage, nil)
	second := pool.EmbedAll(context.Background(), []string{"bb", "a"}, EmbedModePassage, nil)

	assert.Equal(t, int64(1), f.calls.Load())
	assert.Equal(t, first[0].Vector, second[1].Vector)
	assert.Equal(t, first[1].Vector, second[0].Vector)

	// Query mode has its own cache entries
	pool.EmbedAll(context.Background(), []string{"a"}, EmbedModeQuery, nil)
	assert.Equal(t, int64(2), f.calls.Load())
}

func TestPool_PrefixAndTruncate(t *testing.T) {
	t.Parallel()

	f := &fakeProvider{dims: 2}
	pool := NewPool(f, PoolOptions{MaxTextChars: 12, QueryPrefix: "query: ", DocumentPrefix: "doc: "}, nil)

	_, err := pool.EmbedOne(context.Background(), "find the handler", EmbedModeQuery)
	require.NoError(t, err)
	pool.EmbedAll(context.Background(), []string{"func main"}, EmbedModePassage, nil)

	assert.Equal(t, []string{"query: find ", "doc: func ma"}, f.seen)
}

func TestPool_CancelledContext(t *testing.T) {
	t.Parallel()

	f := &fakeProvider{dims: 2}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := NewPool(f, PoolOptions{}, nil).EmbedAll(ctx, texts(3), EmbedModePassage, nil)
	for _, r := range results {
		assert.ErrorIs(t, r.Err, context.Canceled)
	}
	assert.Zero(t, f.calls.Load())
}

func TestPool_ProgressReachesTotal(t *testing.T) {
	t.Parallel()

	f := &fakeProvider{dims: 2}
	var last BatchProgress
	var mu sync.Mutex
	NewPool(f, PoolOptions{BatchSize: 4, Concurrency: 3}, nil).EmbedAll(context.Background(), texts(10), EmbedModePassage, func(p BatchProgress) {
		mu.Lock()
		defer mu.Unlock()
		if p.ProcessedTexts > last.ProcessedTexts {
			last = p
		}
	})

	assert.Equal(t, BatchProgress{ProcessedTexts: 10, TotalTexts: 10}, last)
}
