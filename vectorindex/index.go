// Package vectorindex provides named cosine-similarity indexes over
// Postgres with pgvector.
package vectorindex

import (
	"context"
	"fmt"
	"strings"
)

// Record is the persisted unit of an index: one chunk's embedding plus its
// text and provenance. Records are written once and never mutated.
type Record struct {
	Embedding  []float32
	Content    string
	SourcePath string
	PageIndex  int
	ChunkIndex int
}

// SearchResult is one match of a similarity query. Score is descending cosine
// similarity in [0, 1]-ish range (1 - cosine distance).
type SearchResult struct {
	Content    string
	SourcePath string
	PageIndex  int
	Score      float64
}

type Index interface {
	// EnsureIndex creates the named index if it does not exist. Idempotent.
	EnsureIndex(ctx context.Context, name string) error
	// Upsert persists records into the named index.
	Upsert(ctx context.Context, name string, records []Record) error
	// Query returns at most topK records ordered by descending similarity.
	Query(ctx context.Context, name string, embedding []float32, topK int) ([]SearchResult, error)
}

// tableName maps an index name onto a safe SQL identifier. Anything outside
// [a-z0-9_] becomes an underscore.
func tableName(name string) (string, error) {
	trimmed := strings.TrimSpace(strings.ToLower(name))
	if trimmed == "" {
		return "", fmt.Errorf("index name cannot be empty")
	}

	var sb strings.Builder
	sb.WriteString("rag_")
	for _, r := range trimmed {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}
	return sb.String(), nil
}
