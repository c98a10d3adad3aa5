package embed

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	json "github.com/goccy/go-json"
)

// OllamaProvider embeds text through a local Ollama server.
type OllamaProvider struct {
	baseURL    string
	model      string
	dimensions int
	httpClient *http.Client
}

// NewOllamaProvider creates a provider for the Ollama server at baseURL.
func NewOllamaProvider(baseURL, model string, dimensions int) *OllamaProvider {
	return &OllamaProvider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		dimensions: dimensions,
		httpClient: &http.Client{},
	}
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
}

type ollamaTagsResponse struct {
	Models []struct {
		Name  string `json:"name"`
		Model string `json:"model"`
	} `json:"models"`
}

func (p *OllamaProvider) Initialize(ctx context.Context) error {
	if p.baseURL == "" {
		return fmt.Errorf("%w: no endpoint configured", ErrProviderUnavailable)
	}
	return nil
}

func (p *OllamaProvider) Embed(ctx context.Context, texts []string, mode EmbedMode) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	body, err := json.Marshal(ollamaEmbedRequest{Model: p.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	var resp ollamaEmbedResponse
	if err := doJSON(ctx, p.httpClient, http.MethodPost, p.baseURL+"/api/embed", body, nil, &resp); err != nil {
		return nil, err
	}

	if err := validateVectors(resp.Embeddings, len(texts), p.dimensions); err != nil {
		return nil, err
	}
	return resp.Embeddings, nil
}

func (p *OllamaProvider) Dimensions() int {
	return p.dimensions
}

// Check lists the installed models. "nomic-embed-text" matches "nomic-embed-text:latest".
func (p *OllamaProvider) Check(ctx context.Context) (Health, error) {
	health := Health{Model: p.model}

	var tags ollamaTagsResponse
	if err := doJSON(ctx, p.httpClient, http.MethodGet, p.baseURL+"/api/tags", nil, nil, &tags); err != nil {
		return health, err
	}
	health.Reachable = true

	for _, m := range tags.Models {
		if modelMatches(m.Name, p.model) || modelMatches(m.Model, p.model) {
			health.ModelAvailable = true
			break
		}
	}
	return health, nil
}

func (p *OllamaProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

func modelMatches(installed, wanted string) bool {
	if installed == "" {
		return false
	}
	if installed == wanted {
		return true
	}
	if !strings.Contains(wanted, ":") {
		return installed == wanted+":latest"
	}
	return false
}

// doJSON performs a request and decodes a JSON response into out.
// Transport failures wrap ErrProviderUnavailable; non-2xx statuses become *HTTPError.
func doJSON(ctx context.Context, client *http.Client, method, url string, body []byte, headers map[string]string, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: malformed response: %v", ErrEmptyResponse, err)
	}
	return nil
}
