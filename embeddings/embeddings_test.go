package embeddings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fabfab/fin-agent/config"
)

func TestNewEmbedderDefaults(t *testing.T) {
	cfg := config.Config{
		Embeddings: config.EmbeddingConfig{
			Provider:  config.ProviderOllama,
			Model:     "all-minilm",
			Dimension: 384,
		},
		OllamaHost: "http://localhost:11434",
	}

	embedder, err := NewEmbedder(cfg)
	if err != nil {
		t.Fatalf("expected embedder, got error: %v", err)
	}

	if embedder == nil {
		t.Fatal("expected non-nil embedder")
	}
}

func TestNewEmbedderOpenAIMissingKey(t *testing.T) {
	cfg := config.Config{
		Embeddings: config.EmbeddingConfig{
			Provider:  config.ProviderOpenAI,
			Model:     "text-embedding-3-small",
			Dimension: 1536,
		},
	}

	if _, err := NewEmbedder(cfg); err == nil {
		t.Fatal("expected error for missing OPENAI_API_KEY")
	}
}

func TestNewEmbedderUnknownProvider(t *testing.T) {
	cfg := config.Config{
		Embeddings: config.EmbeddingConfig{Provider: "mystery"},
	}

	if _, err := NewEmbedder(cfg); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestOllamaEmbedderBatchesTexts(t *testing.T) {
	var requests int
	var got ollamaEmbedRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if r.URL.Path != "/api/embed" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"embeddings": [[0.1, 0.2, 0.3], [0.4, 0.5, 0.6]]}`))
	}))
	defer server.Close()

	embedder := NewOllamaEmbedder(Options{
		Model:      "all-minilm",
		Dimension:  3,
		OllamaHost: server.URL,
	})

	vectors, err := embedder.Embed(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if requests != 1 {
		t.Fatalf("expected a single batch request, got %d", requests)
	}
	if len(got.Input) != 2 || got.Input[0] != "first" || got.Input[1] != "second" {
		t.Fatalf("unexpected request input: %v", got.Input)
	}
	if len(vectors) != 2 {
		t.Fatalf("expected one vector per text, got %d", len(vectors))
	}
	if vectors[0][0] != 0.1 || vectors[1][0] != 0.4 {
		t.Fatalf("vectors out of order: %v", vectors)
	}
}

func TestOllamaEmbedderSurfacesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "model not found"}`, http.StatusNotFound)
	}))
	defer server.Close()

	embedder := NewOllamaEmbedder(Options{
		Model:      "missing",
		Dimension:  384,
		OllamaHost: server.URL,
	})

	_, err := embedder.Embed(context.Background(), []string{"text"})
	if err == nil {
		t.Fatal("expected error for API failure")
	}
	if !strings.Contains(err.Error(), "model not found") {
		t.Fatalf("error should carry the API message, got: %v", err)
	}
	if strings.Contains(err.Error(), "dimension") {
		t.Fatalf("API failure must not masquerade as a dimension error: %v", err)
	}
}

func TestOllamaEmbedderCountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"embeddings": [[0.1, 0.2, 0.3]]}`))
	}))
	defer server.Close()

	embedder := NewOllamaEmbedder(Options{
		Model:      "all-minilm",
		Dimension:  3,
		OllamaHost: server.URL,
	})

	if _, err := embedder.Embed(context.Background(), []string{"first", "second"}); err == nil {
		t.Fatal("expected error when vector count differs from text count")
	}
}

func TestOllamaEmbedderDimensionMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"embeddings": [[0.1, 0.2]]}`))
	}))
	defer server.Close()

	embedder := NewOllamaEmbedder(Options{
		Model:      "all-minilm",
		Dimension:  384,
		OllamaHost: server.URL,
	})

	if _, err := embedder.Embed(context.Background(), []string{"text"}); err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}

func TestOpenAIEmbedderOrdersByIndex(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"object": "list",
			"model": "text-embedding-3-small",
			"data": [
				{"object": "embedding", "index": 1, "embedding": [0.4, 0.5, 0.6]},
				{"object": "embedding", "index": 0, "embedding": [0.1, 0.2, 0.3]}
			]
		}`))
	}))
	defer server.Close()

	embedder := NewOpenAIEmbedder(Options{
		Model:         "text-embedding-3-small",
		Dimension:     3,
		OpenAIAPIKey:  "test-key",
		OpenAIBaseURL: server.URL,
	})

	vectors, err := embedder.Embed(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vectors) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(vectors))
	}
	if vectors[0][0] != 0.1 || vectors[1][0] != 0.4 {
		t.Fatalf("vectors should follow input order, got %v", vectors)
	}
}

func TestOpenAIEmbedderCountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"object": "list",
			"model": "text-embedding-3-small",
			"data": [
				{"object": "embedding", "index": 0, "embedding": [0.1, 0.2, 0.3]}
			]
		}`))
	}))
	defer server.Close()

	embedder := NewOpenAIEmbedder(Options{
		Model:         "text-embedding-3-small",
		Dimension:     3,
		OpenAIAPIKey:  "test-key",
		OpenAIBaseURL: server.URL,
	})

	if _, err := embedder.Embed(context.Background(), []string{"first", "second"}); err == nil {
		t.Fatal("expected error when vector count differs from text count")
	}
}
