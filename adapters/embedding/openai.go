// Package embedding adapts the OpenAI embeddings API to EmbeddingPort.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"personaforge/domain/core"
)

// Known model widths; unknown models fall back to defaultDimensions.
var modelDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

const defaultDimensions = 1536

const (
	maxAttempts    = 3
	initialBackoff = time.Second
)

// Config holds embedder settings
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// OpenAIEmbedder implements ports.EmbeddingPort with one batched request
// per Embed call.
type OpenAIEmbedder struct {
	apiKey     string
	baseURL    string
	model      string
	timeout    time.Duration
	dimensions int
}

// NewOpenAIEmbedder creates an embedder from config
func NewOpenAIEmbedder(config Config) (*OpenAIEmbedder, error) {
	if config.APIKey == "" {
		return nil, core.NewConfigurationError("missing OpenAI API key")
	}
	model := strings.TrimSpace(config.Model)
	if model == "" {
		model = "text-embedding-3-small"
	}
	baseURL := strings.TrimSpace(config.BaseURL)
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}

	dimensions, ok := modelDimensions[model]
	if !ok {
		dimensions = defaultDimensions
	}
	return &OpenAIEmbedder{
		apiKey:     config.APIKey,
		baseURL:    baseURL,
		model:      model,
		timeout:    config.Timeout,
		dimensions: dimensions,
	}, nil
}

// Dimensions returns the vector width of the configured model.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dimensions
}

// Embed returns one vector per input text, in input order. Transient
// failures retry with doubling backoff before escalating to permanent.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var lastErr error
	backoff := initialBackoff
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		vectors, err := e.embedOnce(ctx, texts)
		if err == nil {
			return vectors, nil
		}
		lastErr = err
		if !core.IsTransientError(err) {
			return nil, err
		}
		if attempt < maxAttempts {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			backoff *= 2
		}
	}
	return nil, fmt.Errorf("%w: retries exhausted: %v", core.ErrEmbeddingFailure, lastErr)
}

func (e *OpenAIEmbedder) embedOnce(ctx context.Context, texts []string) ([][]float64, error) {
	type reqBody struct {
		Model string   `json:"model"`
		Input []string `json:"input"`
	}
	raw, err := json.Marshal(reqBody{Model: e.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	client := &http.Client{Timeout: e.timeout}
	url := strings.TrimRight(e.baseURL, "/") + "/embeddings"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+e.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, core.NewTransientError("embeddings", err)
	}
	defer resp.Body.Close()

	respRaw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, core.NewTransientError("read embeddings response", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, core.NewTransientError("embeddings", fmt.Errorf("openai http %d: %s", resp.StatusCode, string(respRaw)))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, core.NewPermanentError("embeddings", fmt.Errorf("openai http %d: %s", resp.StatusCode, string(respRaw)))
	}

	type item struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	}
	type respBody struct {
		Data []item `json:"data"`
	}
	var decoded respBody
	if err := json.Unmarshal(respRaw, &decoded); err != nil {
		return nil, core.NewPermanentError("decode embeddings response", err)
	}
	if len(decoded.Data) != len(texts) {
		return nil, core.NewPermanentError("embeddings", fmt.Errorf("got %d vectors for %d inputs", len(decoded.Data), len(texts)))
	}

	// The API may reorder items; Index restores input order.
	vectors := make([][]float64, len(texts))
	for _, it := range decoded.Data {
		if it.Index < 0 || it.Index >= len(vectors) {
			return nil, core.NewPermanentError("embeddings", fmt.Errorf("vector index %d out of range", it.Index))
		}
		if len(it.Embedding) != e.dimensions {
			return nil, core.NewDimensionMismatchError(e.dimensions, len(it.Embedding))
		}
		vectors[it.Index] = it.Embedding
	}
	return vectors, nil
}
