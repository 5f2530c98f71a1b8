package ai

import (
	"context"
	"testing"
)

// NewVertexAIClient only needs credentials at request time when an API key
// is supplied, so defaulting behavior is testable offline.
func TestNewVertexAIClientDefaults(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name          string
		config        *ClientConfig
		expectedModel string
		expectedDim   int
	}{
		{
			name:          "defaults applied",
			config:        &ClientConfig{Provider: ProviderVertexAI, APIKey: "test-api-key"},
			expectedModel: "text-embedding-005",
			expectedDim:   768,
		},
		{
			name: "explicit model and dimension",
			config: &ClientConfig{
				Provider:   ProviderVertexAI,
				APIKey:     "test-api-key",
				EmbedModel: "custom-embed-model",
				Dim:        1024,
			},
			expectedModel: "custom-embed-model",
			expectedDim:   1024,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewVertexAIClient(ctx, tt.config)
			if err != nil {
				t.Fatalf("NewVertexAIClient: %v", err)
			}
			if c.config.EmbedModel != tt.expectedModel {
				t.Errorf("EmbedModel = %q, want %q", c.config.EmbedModel, tt.expectedModel)
			}
			if c.Dim() != tt.expectedDim {
				t.Errorf("Dim() = %d, want %d", c.Dim(), tt.expectedDim)
			}
		})
	}
}

func TestNewVertexAIClientNilConfig(t *testing.T) {
	if _, err := NewVertexAIClient(context.Background(), nil); err == nil {
		t.Fatal("expected error for nil config")
	}
}
