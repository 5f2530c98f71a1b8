package ai

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
)

// Client converts text into a fixed-dimension embedding vector.
type Client interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dim() int
}

// Provider is enumeration of supported embedding providers
type Provider string

const (
	ProviderOpenAI   Provider = "openai"
	ProviderVertexAI Provider = "vertexai"
	ProviderStub     Provider = "stub"
)

// ClientConfig holds configuration for embedding clients
type ClientConfig struct {
	Provider   Provider
	APIKey     string
	BaseURL    string
	EmbedModel string
	Dim        int
	ProjectID  string
	Location   string
	MaxRetries int
}

// NewClient creates a new embedding client based on configuration
func NewClient(config *ClientConfig) (Client, error) {
	if config == nil {
		return nil, errors.New("client config is required")
	}

	switch config.Provider {
	case ProviderOpenAI:
		return NewOpenAIClient(config), nil
	case ProviderVertexAI:
		return NewVertexAIClient(context.Background(), config)
	case ProviderStub:
		return NewStubClient(config.Dim), nil
	default:
		return nil, errors.New("unsupported provider: " + string(config.Provider))
	}
}

// StubClient produces deterministic local embeddings for tests and offline
// development. Similar texts do not get similar vectors; the stub only
// guarantees that equal texts embed equally.
type StubClient struct {
	dim int
}

// NewStubClient creates a new StubClient
func NewStubClient(dim int) *StubClient {
	if dim <= 0 {
		dim = 1024
	}
	return &StubClient{dim: dim}
}

// Embed hashes the text into a unit-norm pseudo-random vector.
func (s *StubClient) Embed(_ context.Context, text string) ([]float32, error) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	state := h.Sum64()

	v := make([]float32, s.dim)
	var sum float64
	for i := range v {
		// xorshift64 keeps the sequence deterministic per input text.
		state ^= state << 13
		state ^= state >> 7
		state ^= state << 17
		v[i] = float32(int64(state%2000)-1000) / 1000
		sum += float64(v[i]) * float64(v[i])
	}
	norm := math.Sqrt(sum)
	if norm > 0 {
		for i := range v {
			v[i] = float32(float64(v[i]) / norm)
		}
	}
	return v, nil
}

// Dim returns the embedding dimension
func (s *StubClient) Dim() int {
	return s.dim
}
