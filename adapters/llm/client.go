// Package llm adapts an OpenAI-style chat completion API to the
// GenerativePort used by the generation and expansion services.
package llm

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

// Config holds client settings
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Timeout     time.Duration
	Temperature float64
	MaxTokens   int
}

// ChatClient is the minimal completion surface the adapter builds on
type ChatClient interface {
	ChatCompletion(ctx context.Context, prompt string, jsonMode bool) (string, error)
}

// retry tuning for rate limits and upstream flakiness
const (
	maxAttempts    = 3
	initialBackoff = time.Second
)

// NewChatClient creates a chat client from config
func NewChatClient(config Config) (ChatClient, error) {
	if config.APIKey == "" {
		return nil, core.NewConfigurationError("missing OpenAI API key")
	}
	if strings.TrimSpace(config.Model) == "" {
		return nil, core.NewConfigurationError("missing chat model")
	}

	baseURL := strings.TrimSpace(config.BaseURL)
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if config.Timeout == 0 {
		config.Timeout = 120 * time.Second
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = 4000
	}

	return &OpenAIClient{
		APIKey:      config.APIKey,
		BaseURL:     baseURL,
		Model:       config.Model,
		Timeout:     config.Timeout,
		Temperature: config.Temperature,
		MaxTokens:   config.MaxTokens,
	}, nil
}

// OpenAIClient implements ChatClient against the OpenAI chat completions API
type OpenAIClient struct {
	APIKey      string
	BaseURL     string
	Model       string
	Timeout     time.Duration
	Temperature float64
	MaxTokens   int
}

// ChatCompletion runs one completion, retrying rate limits and server
// errors with doubling backoff. When retries exhaust, the last transient
// failure escalates to a permanent gateway error.
func (c *OpenAIClient) ChatCompletion(ctx context.Context, prompt string, jsonMode bool) (string, error) {
	var lastErr error
	backoff := initialBackoff
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		content, err := c.completeOnce(ctx, prompt, jsonMode)
		if err == nil {
			return content, nil
		}
		lastErr = err
		if !core.IsTransientError(err) {
			return "", err
		}
		if attempt < maxAttempts {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
			backoff *= 2
		}
	}
	return "", fmt.Errorf("%w: retries exhausted: %v", core.ErrGenerationFailure, lastErr)
}

func (c *OpenAIClient) completeOnce(ctx context.Context, prompt string, jsonMode bool) (string, error) {
	type msg struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	type respFormat struct {
		Type string `json:"type"`
	}
	type reqBody struct {
		Model          string      `json:"model"`
		Messages       []msg       `json:"messages"`
		Temperature    float64     `json:"temperature,omitempty"`
		MaxTokens      int         `json:"max_tokens,omitempty"`
		ResponseFormat *respFormat `json:"response_format,omitempty"`
	}
	body := reqBody{
		Model: c.Model,
		Messages: []msg{
			{Role: "system", Content: "You are a UX research assistant producing evidence-grounded user personas. Output exactly what the user asks for."},
			{Role: "user", Content: prompt},
		},
		Temperature: c.Temperature,
		MaxTokens:   c.MaxTokens,
	}
	if jsonMode {
		body.ResponseFormat = &respFormat{Type: "json_object"}
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	client := &http.Client{Timeout: c.Timeout}
	url := strings.TrimRight(c.BaseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		return "", core.NewTransientError("chat completion", err)
	}
	defer resp.Body.Close()

	respRaw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", core.NewTransientError("read completion response", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return "", core.NewTransientError("chat completion", fmt.Errorf("openai http %d: %s", resp.StatusCode, string(respRaw)))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", core.NewPermanentError("chat completion", fmt.Errorf("openai http %d: %s", resp.StatusCode, string(respRaw)))
	}

	type choice struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	type respBody struct {
		Choices []choice `json:"choices"`
	}
	var decoded respBody
	if err := json.Unmarshal(respRaw, &decoded); err != nil {
		return "", core.NewPermanentError("decode completion response", err)
	}
	if len(decoded.Choices) == 0 {
		return "", core.NewPermanentError("chat completion", fmt.Errorf("response missing choices"))
	}
	return decoded.Choices[0].Message.Content, nil
}

// MockChatClient is a canned chat client for testing
type MockChatClient struct {
	Response string // Set this for testing
	Error    error  // Set this to simulate errors
	Prompts  []string
}

func (m *MockChatClient) ChatCompletion(_ context.Context, prompt string, _ bool) (string, error) {
	m.Prompts = append(m.Prompts, prompt)
	if m.Error != nil {
		return "", m.Error
	}
	if m.Response != "" {
		return m.Response, nil
	}
	// Default mock response
	return `{
		"personas": [
			{
				"name": "Ana Ferreira",
				"age": 34,
				"occupation": "Nurse",
				"background": "Works rotating night shifts at a regional hospital.",
				"goals": ["Save money", "Travel more"],
				"frustrations": ["Chaotic scheduling"],
				"quote": "I just want tools that work."
			}
		]
	}`, nil
}
