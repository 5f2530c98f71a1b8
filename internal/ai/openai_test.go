package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// embedServer fakes an OpenAI-compatible /embeddings endpoint. Each entry in
// script is consumed by one request; a status of 200 answers with a vector
// of the given dimension.
type embedServer struct {
	t        *testing.T
	script   []scriptedResponse
	requests int
}

type scriptedResponse struct {
	status int
	dim    int
	count  int
}

func (s *embedServer) handler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/embeddings" {
		s.t.Errorf("unexpected path %s", r.URL.Path)
	}
	if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
		s.t.Errorf("unexpected auth header %q", got)
	}
	step := scriptedResponse{status: http.StatusOK, dim: 4, count: 1}
	if s.requests < len(s.script) {
		step = s.script[s.requests]
	}
	s.requests++

	if step.status != http.StatusOK {
		w.WriteHeader(step.status)
		return
	}
	type item struct {
		Embedding []float32 `json:"embedding"`
	}
	data := make([]item, step.count)
	for i := range data {
		vec := make([]float32, step.dim)
		for j := range vec {
			vec[j] = float32(j + 1)
		}
		data[i] = item{Embedding: vec}
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
}

func newTestClient(srv *httptest.Server, maxRetries int) *OpenAIClient {
	return NewOpenAIClient(&ClientConfig{
		Provider:   ProviderOpenAI,
		APIKey:     "test-key",
		BaseURL:    srv.URL,
		EmbedModel: "test-model",
		Dim:        4,
		MaxRetries: maxRetries,
	})
}

func TestOpenAIEmbedSuccess(t *testing.T) {
	es := &embedServer{t: t}
	srv := httptest.NewServer(http.HandlerFunc(es.handler))
	defer srv.Close()

	vec, err := newTestClient(srv, 3).Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 4 {
		t.Errorf("got dimension %d, want 4", len(vec))
	}
	if es.requests != 1 {
		t.Errorf("made %d requests, want 1", es.requests)
	}
}

func TestOpenAIEmbedRetriesServerErrors(t *testing.T) {
	es := &embedServer{t: t, script: []scriptedResponse{
		{status: http.StatusInternalServerError},
		{status: http.StatusTooManyRequests},
		{status: http.StatusOK, dim: 4, count: 1},
	}}
	srv := httptest.NewServer(http.HandlerFunc(es.handler))
	defer srv.Close()

	vec, err := newTestClient(srv, 3).Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed should succeed within the retry budget: %v", err)
	}
	if len(vec) != 4 {
		t.Errorf("got dimension %d, want 4", len(vec))
	}
	if es.requests != 3 {
		t.Errorf("made %d requests, want 3", es.requests)
	}
}

func TestOpenAIEmbedExhaustsRetryBudget(t *testing.T) {
	es := &embedServer{t: t, script: []scriptedResponse{
		{status: http.StatusBadGateway},
		{status: http.StatusBadGateway},
		{status: http.StatusBadGateway},
		{status: http.StatusBadGateway},
	}}
	srv := httptest.NewServer(http.HandlerFunc(es.handler))
	defer srv.Close()

	_, err := newTestClient(srv, 3).Embed(context.Background(), "hello")
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if es.requests != 3 {
		t.Errorf("made %d requests, want exactly the budget of 3", es.requests)
	}
}

func TestOpenAIEmbedRejectsWrongDimension(t *testing.T) {
	es := &embedServer{t: t, script: []scriptedResponse{
		{status: http.StatusOK, dim: 2, count: 1},
		{status: http.StatusOK, dim: 2, count: 1},
	}}
	srv := httptest.NewServer(http.HandlerFunc(es.handler))
	defer srv.Close()

	_, err := newTestClient(srv, 2).Embed(context.Background(), "hello")
	if err == nil {
		t.Fatal("expected dimension-mismatch failure")
	}
}

func TestOpenAIEmbedRejectsMultipleEmbeddings(t *testing.T) {
	es := &embedServer{t: t, script: []scriptedResponse{
		{status: http.StatusOK, dim: 4, count: 2},
	}}
	srv := httptest.NewServer(http.HandlerFunc(es.handler))
	defer srv.Close()

	_, err := newTestClient(srv, 1).Embed(context.Background(), "hello")
	if err == nil {
		t.Fatal("expected failure for response with two embeddings")
	}
}

func TestOpenAIEmbedRequiresAPIKey(t *testing.T) {
	c := NewOpenAIClient(&ClientConfig{Provider: ProviderOpenAI, Dim: 4})
	if _, err := c.Embed(context.Background(), "hello"); err == nil {
		t.Fatal("expected error without API key")
	}
}

func TestOpenAIEmbedHonorsCancelledContext(t *testing.T) {
	es := &embedServer{t: t, script: []scriptedResponse{
		{status: http.StatusInternalServerError},
	}}
	srv := httptest.NewServer(http.HandlerFunc(es.handler))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestClient(srv, 3).Embed(ctx, "hello")
	if err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestOpenAIDefaults(t *testing.T) {
	c := NewOpenAIClient(&ClientConfig{Provider: ProviderOpenAI, APIKey: "k"})
	if c.config.BaseURL != defaultBaseURL {
		t.Errorf("BaseURL default = %q", c.config.BaseURL)
	}
	if c.config.MaxRetries != defaultMaxRetries {
		t.Errorf("MaxRetries default = %d", c.config.MaxRetries)
	}
	if c.Dim() != 1024 {
		t.Errorf("Dim default = %d", c.Dim())
	}
}

func TestRetryDelayCapped(t *testing.T) {
	for attempt := 0; attempt < 12; attempt++ {
		d := retryDelay(attempt)
		if d <= 0 {
			t.Errorf("retryDelay(%d) = %v, want positive", attempt, d)
		}
		if d.Seconds() > 5 {
			t.Errorf("retryDelay(%d) = %v exceeds the 5s cap", attempt, d)
		}
	}
}
