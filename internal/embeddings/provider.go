package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"
)

// Default model chain, cheapest first. When a model fails the next one
// in the chain is tried before giving up.
var DefaultModelChain = []string{
	"text-embedding-3-small",
	"text-embedding-3-large",
	"text-embedding-ada-002",
}

// Embedder turns texts into vectors. Implemented by Provider and by
// test fakes.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Provider calls an OpenAI-compatible embeddings endpoint with a model
// fallback chain.
type Provider struct {
	httpClient *http.Client

	mu      sync.RWMutex
	baseURL string
	apiKey  string
	models  []string
}

// NewProvider creates an embeddings provider. baseURL points at an
// OpenAI-compatible API root (e.g. https://api.openai.com/v1). An empty
// model list falls back to DefaultModelChain.
func NewProvider(baseURL, apiKey string, models []string) *Provider {
	if len(models) == 0 {
		models = DefaultModelChain
	}
	return &Provider{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		baseURL:    baseURL,
		apiKey:     apiKey,
		models:     models,
	}
}

// Reconfigure swaps the endpoint and model chain in place so a
// providers file reload takes effect without invalidating the caches
// built on top of this provider.
func (p *Provider) Reconfigure(baseURL, apiKey string, models []string) {
	if len(models) == 0 {
		models = DefaultModelChain
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.baseURL = baseURL
	p.apiKey = apiKey
	p.models = models
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Embed generates embeddings for texts, walking the model chain until
// one succeeds. All texts go out in a single request per attempt.
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	p.mu.RLock()
	models := p.models
	p.mu.RUnlock()

	var lastErr error
	for i, model := range models {
		vectors, err := p.embedWithModel(ctx, model, texts)
		if err == nil {
			if i > 0 {
				log.Printf("⚠️  [EMBEDDINGS] Fell back to model %s after %d failed attempt(s)", model, i)
			}
			return vectors, nil
		}
		lastErr = err
		log.Printf("⚠️  [EMBEDDINGS] Model %s failed: %v", model, err)
	}

	return nil, fmt.Errorf("all embedding models failed: %w", lastErr)
}

func (p *Provider) embedWithModel(ctx context.Context, model string, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embeddingRequest{Model: model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	p.mu.RLock()
	baseURL, apiKey := p.baseURL, p.apiKey
	p.mu.RUnlock()

	req, err := http.NewRequestWithContext(ctx, "POST", baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var embResp embeddingResponse
	if err := json.Unmarshal(respBody, &embResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if embResp.Error != nil {
		return nil, fmt.Errorf("API error: %s", embResp.Error.Message)
	}
	if len(embResp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(embResp.Data))
	}

	// The API may return data out of order; index is authoritative.
	vectors := make([][]float32, len(texts))
	for _, d := range embResp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}
