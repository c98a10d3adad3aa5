package embed

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"
)

// EmbedMode specifies the type of embedding to generate.
type EmbedMode string

const (
	// EmbedModeQuery generates embeddings for search queries.
	EmbedModeQuery EmbedMode = "query"

	// EmbedModePassage generates embeddings for indexed chunks.
	EmbedModePassage EmbedMode = "passage"
)

var (
	// ErrProviderUnavailable indicates the embedding server could not be reached.
	ErrProviderUnavailable = errors.New("embedding provider unavailable")

	// ErrModelNotFound indicates the configured model is not installed on the server.
	ErrModelNotFound = errors.New("embedding model not found")

	// ErrEmptyResponse indicates a response without vectors, or with an empty vector.
	ErrEmptyResponse = errors.New("empty embedding response")

	// ErrCountMismatch indicates the server returned a different number of vectors than texts.
	ErrCountMismatch = errors.New("embedding count mismatch")

	// ErrDimensionMismatch indicates a vector of unexpected length.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// HTTPError is returned for non-2xx provider responses.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("embedding request failed with status %d: %s", e.StatusCode, e.Body)
}

// Health is the result of a provider capability check.
type Health struct {
	Reachable      bool
	Model          string
	ModelAvailable bool
}

// Provider defines the interface for embedding text into vectors.
// Providers are constructed explicitly and passed to their users; the
// caller owns the lifecycle (Initialize before use, Close when done).
type Provider interface {
	// Initialize prepares the provider. Must be called before Embed().
	Initialize(ctx context.Context) error

	// Embed converts texts into vectors, one per text, in input order.
	// Zero texts yield an empty result without contacting the server.
	Embed(ctx context.Context, texts []string, mode EmbedMode) ([][]float32, error)

	// Dimensions returns the length of the vectors produced by this provider.
	Dimensions() int

	// Check reports whether the server is reachable and the model is installed.
	// An unreachable server is returned as an error wrapping ErrProviderUnavailable.
	Check(ctx context.Context) (Health, error)

	// Close releases any resources held by the provider.
	Close() error
}

// Sentinel returns the placeholder vector used for texts that could not be embedded.
func Sentinel(dimensions int) []float32 {
	return make([]float32, dimensions)
}

// IsSentinel reports whether v is the all-zero placeholder.
func IsSentinel(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// Truncate caps text at maxChars runes.
func Truncate(text string, maxChars int) string {
	if maxChars <= 0 || utf8.RuneCountInString(text) <= maxChars {
		return text
	}
	n := 0
	for i := range text {
		if n == maxChars {
			return text[:i]
		}
		n++
	}
	return text
}

// validateVectors checks a provider response against the request.
func validateVectors(vectors [][]float32, want, dimensions int) error {
	if len(vectors) != want {
		return fmt.Errorf("%w: got %d vectors for %d texts", ErrCountMismatch, len(vectors), want)
	}
	for i, v := range vectors {
		if len(v) == 0 {
			return fmt.Errorf("%w: vector %d", ErrEmptyResponse, i)
		}
		if dimensions > 0 && len(v) != dimensions {
			return fmt.Errorf("%w: vector %d has %d dimensions, expected %d", ErrDimensionMismatch, i, len(v), dimensions)
		}
	}
	return nil
}
