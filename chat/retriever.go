package chat

import (
	"context"
	"fmt"

	"github.com/fabfab/fin-agent/embeddings"
	"github.com/fabfab/fin-agent/vectorindex"
)

// Retriever embeds a query and finds its nearest indexed chunks.
type Retriever interface {
	Retrieve(ctx context.Context, query, indexName string, topK int) ([]vectorindex.SearchResult, error)
}

// VectorRetriever queries a vector index with the same embedder used at
// ingestion time, so query and index vectors always share a model.
type VectorRetriever struct {
	index    vectorindex.Index
	embedder embeddings.Embedder
}

func NewVectorRetriever(index vectorindex.Index, embedder embeddings.Embedder) *VectorRetriever {
	return &VectorRetriever{index: index, embedder: embedder}
}

func (r *VectorRetriever) Retrieve(ctx context.Context, query, indexName string, topK int) ([]vectorindex.SearchResult, error) {
	if r.index == nil {
		return nil, fmt.Errorf("vector index is nil")
	}
	if r.embedder == nil {
		return nil, fmt.Errorf("embedder is nil")
	}

	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedder returned no vectors")
	}

	results, err := r.index.Query(ctx, indexName, vectors[0], topK)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	return results, nil
}

var _ Retriever = (*VectorRetriever)(nil)
