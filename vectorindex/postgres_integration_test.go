package vectorindex_test

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/fabfab/fin-agent/config"
	"github.com/fabfab/fin-agent/database"
	"github.com/fabfab/fin-agent/vectorindex"
)

func TestEnsureIndexIsIdempotent(t *testing.T) {
	if os.Getenv("RUN_DB_INTEGRATION_TESTS") != "1" {
		t.Skip("set RUN_DB_INTEGRATION_TESTS=1 to run database connectivity checks")
	}

	cfg := config.Load()
	ctx := context.Background()

	pool, err := database.NewPostgresPool(ctx, cfg.PostgresDSN)
	if err != nil {
		t.Fatalf("postgres connection: %v", err)
	}
	defer pool.Close()

	dim := 8
	index := vectorindex.NewPostgresIndex(pool, dim)

	name := "itest_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	t.Cleanup(func() {
		_ = index.Drop(ctx, name)
	})

	if err := index.EnsureIndex(ctx, name); err != nil {
		t.Fatalf("first ensure: %v", err)
	}

	makeVector := func(weight float32) []float32 {
		vec := make([]float32, dim)
		vec[0] = weight
		return vec
	}

	records := []vectorindex.Record{
		{Embedding: makeVector(1.0), Content: "revenue grew", SourcePath: "test/a.pdf", PageIndex: 0, ChunkIndex: 0},
		{Embedding: makeVector(0.2), Content: "costs fell", SourcePath: "test/b.pdf", PageIndex: 1, ChunkIndex: 0},
	}
	if err := index.Upsert(ctx, name, records); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	// A repeat ensure must neither fail nor disturb existing records.
	if err := index.EnsureIndex(ctx, name); err != nil {
		t.Fatalf("second ensure: %v", err)
	}

	var count int
	table := "rag_" + name
	if err := pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count); err != nil {
		t.Fatalf("count records: %v", err)
	}
	if count != len(records) {
		t.Fatalf("expected %d records after repeat ensure, got %d", len(records), count)
	}

	results, err := index.Query(ctx, name, makeVector(0.9), 2)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].SourcePath != "test/a.pdf" {
		t.Fatalf("expected closest record first, got %q", results[0].SourcePath)
	}
}
