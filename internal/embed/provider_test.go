package embed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/greppy/internal/config"
)

// Test Plan for Providers:
// - Ollama Embed posts model + input to /api/embed and returns vectors in order
// - Ollama Embed with zero texts makes no request
// - Ollama Embed rejects count and dimension mismatches and empty vectors
// - Ollama Embed maps non-2xx responses to *HTTPError
// - Ollama Embed maps connection failures to ErrProviderUnavailable
// - Ollama Check matches "model" against "model:latest" and reports missing models
// - OpenAI Embed sends the bearer key and reorders results by index
// - OpenAI Check lists /v1/models
// - Hash provider is deterministic, unit length, and places shared words closer
// - NewProvider selects providers by name and rejects unknown names
// - Truncate caps by runes, not bytes

func TestOllama_Embed(t *testing.T) {
	t.Parallel()

	var got ollamaEmbedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Embeddings: [][]float32{{1, 0, 0}, {0, 1, 0}}})
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL+"/", "nomic-embed-text", 3)
	require.NoError(t, p.Initialize(context.Background()))
	defer p.Close()

	vecs, err := p.Embed(context.Background(), []string{"a", "b"}, EmbedModePassage)
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0, 0}, {0, 1, 0}}, vecs)
	assert.Equal(t, "nomic-embed-text", got.Model)
	assert.Equal(t, []string{"a", "b"}, got.Input)
}

func TestOllama_EmbedZeroTexts(t *testing.T) {
	t.Parallel()

	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	vecs, err := NewOllamaProvider(srv.URL, "m", 3).Embed(context.Background(), nil, EmbedModePassage)
	require.NoError(t, err)
	assert.Empty(t, vecs)
	assert.False(t, called)
}

func TestOllama_EmbedMalformedResponses(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		resp string
		want error
	}{
		{"count mismatch", `{"embeddings":[[1,2,3]]}`, ErrCountMismatch},
		{"empty vector", `{"embeddings":[[],[1,2,3]]}`, ErrEmptyResponse},
		{"wrong dimension", `{"embeddings":[[1,2],[1,2]]}`, ErrDimensionMismatch},
		{"not json", `nope`, ErrEmptyResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.resp))
			}))
			defer srv.Close()

			_, err := NewOllamaProvider(srv.URL, "m", 3).Embed(context.Background(), []string{"a", "b"}, EmbedModePassage)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestOllama_HTTPError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewOllamaProvider(srv.URL, "m", 3).Embed(context.Background(), []string{"a"}, EmbedModePassage)
	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusInternalServerError, httpErr.StatusCode)
	assert.Contains(t, httpErr.Body, "model not loaded")
}

func TestOllama_Unreachable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	p := NewOllamaProvider(url, "m", 3)
	_, err := p.Embed(context.Background(), []string{"a"}, EmbedModePassage)
	assert.ErrorIs(t, err, ErrProviderUnavailable)

	health, err := p.Check(context.Background())
	assert.ErrorIs(t, err, ErrProviderUnavailable)
	assert.False(t, health.Reachable)
}

func TestOllama_Check(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		_, _ = w.Write([]byte(`{"models":[{"name":"nomic-embed-text:latest","model":"nomic-embed-text:latest"},{"name":"llama3:8b"}]}`))
	}))
	defer srv.Close()

	health, err := NewOllamaProvider(srv.URL, "nomic-embed-text", 768).Check(context.Background())
	require.NoError(t, err)
	assert.True(t, health.Reachable)
	assert.True(t, health.ModelAvailable)

	health, err = NewOllamaProvider(srv.URL, "llama3", 768).Check(context.Background())
	require.NoError(t, err)
	assert.True(t, health.Reachable)
	assert.False(t, health.ModelAvailable)

	health, err = NewOllamaProvider(srv.URL, "llama3:8b", 768).Check(context.Background())
	require.NoError(t, err)
	assert.True(t, health.ModelAvailable)
}

func TestOpenAI_EmbedAndCheck(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/v1/embeddings":
			_, _ = w.Write([]byte(`{"data":[{"index":1,"embedding":[0,1]},{"index":0,"embedding":[1,0]}]}`))
		case "/v1/models":
			_, _ = w.Write([]byte(`{"data":[{"id":"text-embedding-3-small"}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	p := NewOpenAIProvider(srv.URL+"/v1", "secret", "text-embedding-3-small", 2)
	vecs, err := p.Embed(context.Background(), []string{"first", "second"}, EmbedModePassage)
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, vecs)

	health, err := p.Check(context.Background())
	require.NoError(t, err)
	assert.True(t, health.ModelAvailable)
}

func TestHashProvider(t *testing.T) {
	t.Parallel()

	p := NewHashProvider(256)
	ctx := context.Background()

	a1, err := p.Embed(ctx, []string{"parse the config file"}, EmbedModePassage)
	require.NoError(t, err)
	a2, err := p.Embed(ctx, []string{"parse the config file"}, EmbedModePassage)
	require.NoError(t, err)
	assert.Equal(t, a1, a2)
	require.Len(t, a1[0], 256)

	var norm float64
	for _, x := range a1[0] {
		norm += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, norm, 1e-4)

	vecs, err := p.Embed(ctx, []string{"config file loader", "config file parser", "zebra giraffe"}, EmbedModeQuery)
	require.NoError(t, err)
	assert.Greater(t, dot(vecs[0], vecs[1]), dot(vecs[0], vecs[2]))

	punct, err := p.Embed(ctx, []string{"{}();"}, EmbedModePassage)
	require.NoError(t, err)
	assert.False(t, IsSentinel(punct[0]))
}

func dot(a, b []float32) float32 {
	var s float32
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func TestNewProvider(t *testing.T) {
	t.Parallel()

	cfg := config.Default().Embedding
	p, err := NewProvider(cfg)
	require.NoError(t, err)
	assert.IsType(t, &OllamaProvider{}, p)

	cfg.Provider = "openai"
	p, err = NewProvider(cfg)
	require.NoError(t, err)
	assert.IsType(t, &OpenAIProvider{}, p)

	cfg.Provider = "hash"
	p, err = NewProvider(cfg)
	require.NoError(t, err)
	assert.Equal(t, 768, p.Dimensions())

	cfg.Provider = "local"
	_, err = NewProvider(cfg)
	assert.Error(t, err)
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "héll", Truncate("héllo", 4))
	assert.Equal(t, "héllo", Truncate("héllo", 5))
	assert.Equal(t, "héllo", Truncate("héllo", 0))
}

func TestSentinel(t *testing.T) {
	t.Parallel()

	s := Sentinel(4)
	assert.Len(t, s, 4)
	assert.True(t, IsSentinel(s))
	assert.False(t, IsSentinel([]float32{0, 0.1}))
}
