package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	defaultBaseURL    = "https://api.openai.com/v1"
	defaultMaxRetries = 3
	requestTimeout    = 30 * time.Second
)

// OpenAIClient talks to any OpenAI-compatible /embeddings endpoint. Failed
// requests are retried up to the configured attempt budget; exhausting the
// budget surfaces an error to the caller, never a placeholder vector.
type OpenAIClient struct {
	config *ClientConfig
	http   *http.Client
}

func NewOpenAIClient(config *ClientConfig) *OpenAIClient {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	if config.EmbedModel == "" {
		config.EmbedModel = "text-embedding-3-small"
	}
	if config.Dim == 0 {
		config.Dim = 1024
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = defaultMaxRetries
	}

	return &OpenAIClient{
		config: config,
		http:   &http.Client{Timeout: requestTimeout},
	}
}

// Embed requests a single embedding for text. Transport errors, timeouts,
// non-2xx statuses, and malformed responses (wrong embedding count or
// dimension) all consume one attempt.
func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if c.config.APIKey == "" {
		return nil, errors.New("embedding API key unset")
	}

	payload, _ := json.Marshal(map[string]string{
		"input":           text,
		"model":           c.config.EmbedModel,
		"encoding_format": "float",
	})
	url := c.config.BaseURL + "/embeddings"

	var lastErr error
	for attempt := 0; attempt < c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(retryDelay(attempt - 1)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		vec, retryAfter, err := c.embedOnce(ctx, url, payload)
		if err == nil {
			return vec, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		log.Warn().Err(err).Int("attempt", attempt+1).Int("budget", c.config.MaxRetries).
			Msg("embedding request failed")
		if retryAfter > 0 {
			select {
			case <-time.After(retryAfter):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, fmt.Errorf("embedding failed after %d attempts: %w", c.config.MaxRetries, lastErr)
}

// embedOnce performs one request. A positive retryAfter conveys the server's
// Retry-After hint on throttling responses.
func (c *OpenAIClient) embedOnce(ctx context.Context, url string, payload []byte) (vec []float32, retryAfter time.Duration, err error) {
	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, convErr := strconv.Atoi(ra); convErr == nil {
				retryAfter = time.Duration(secs) * time.Second
			}
		}
		return nil, retryAfter, fmt.Errorf("embedding endpoint returned %s", resp.Status)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, 0, fmt.Errorf("embedding endpoint returned %s", resp.Status)
	}

	var out struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, 0, fmt.Errorf("decode embedding response: %w", err)
	}
	if len(out.Data) != 1 {
		return nil, 0, fmt.Errorf("expected exactly one embedding, got %d", len(out.Data))
	}
	if got := len(out.Data[0].Embedding); got != c.config.Dim {
		return nil, 0, fmt.Errorf("embedding dimension %d, want %d", got, c.config.Dim)
	}
	return out.Data[0].Embedding, 0, nil
}

// Dim returns the embedding dimension
func (c *OpenAIClient) Dim() int {
	return c.config.Dim
}

// retryDelay is exponential backoff capped at 5s.
func retryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := 200 * time.Millisecond << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}
