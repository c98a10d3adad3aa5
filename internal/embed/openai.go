package embed

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"

	json "github.com/goccy/go-json"
)

// OpenAIProvider embeds text through an OpenAI-compatible /v1/embeddings endpoint.
type OpenAIProvider struct {
	baseURL    string
	apiKey     string
	model      string
	dimensions int
	httpClient *http.Client
}

// NewOpenAIProvider creates a provider. baseURL is the server root, without "/v1".
func NewOpenAIProvider(baseURL, apiKey, model string, dimensions int) *OpenAIProvider {
	return &OpenAIProvider{
		baseURL:    strings.TrimSuffix(strings.TrimRight(baseURL, "/"), "/v1"),
		apiKey:     apiKey,
		model:      model,
		dimensions: dimensions,
		httpClient: &http.Client{},
	}
}

type openAIEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type openAIEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

type openAIModelsResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

func (p *OpenAIProvider) Initialize(ctx context.Context) error {
	if p.baseURL == "" {
		return fmt.Errorf("%w: no endpoint configured", ErrProviderUnavailable)
	}
	return nil
}

func (p *OpenAIProvider) headers() map[string]string {
	if p.apiKey == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + p.apiKey}
}

func (p *OpenAIProvider) Embed(ctx context.Context, texts []string, mode EmbedMode) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	body, err := json.Marshal(openAIEmbedRequest{Model: p.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	var resp openAIEmbedResponse
	if err := doJSON(ctx, p.httpClient, http.MethodPost, p.baseURL+"/v1/embeddings", body, p.headers(), &resp); err != nil {
		return nil, err
	}

	// The API may return items out of order; index is authoritative.
	sort.SliceStable(resp.Data, func(i, j int) bool { return resp.Data[i].Index < resp.Data[j].Index })
	vectors := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vectors[i] = d.Embedding
	}

	if err := validateVectors(vectors, len(texts), p.dimensions); err != nil {
		return nil, err
	}
	return vectors, nil
}

func (p *OpenAIProvider) Dimensions() int {
	return p.dimensions
}

func (p *OpenAIProvider) Check(ctx context.Context) (Health, error) {
	health := Health{Model: p.model}

	var models openAIModelsResponse
	if err := doJSON(ctx, p.httpClient, http.MethodGet, p.baseURL+"/v1/models", nil, p.headers(), &models); err != nil {
		return health, err
	}
	health.Reachable = true

	for _, m := range models.Data {
		if modelMatches(m.ID, p.model) {
			health.ModelAvailable = true
			break
		}
	}
	return health, nil
}

func (p *OpenAIProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}
