package vectorindex

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

type PostgresIndex struct {
	pool      *pgxpool.Pool
	dimension int
}

func NewPostgresIndex(pool *pgxpool.Pool, dimension int) *PostgresIndex {
	return &PostgresIndex{pool: pool, dimension: dimension}
}

func (ix *PostgresIndex) EnsureIndex(ctx context.Context, name string) error {
	if ix.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if ix.dimension <= 0 {
		return fmt.Errorf("embedding dimension must be positive")
	}

	table, err := tableName(name)
	if err != nil {
		return err
	}

	stmts := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id UUID PRIMARY KEY,
			source_path TEXT NOT NULL,
			page_index INT NOT NULL,
			chunk_index INT NOT NULL,
			content TEXT NOT NULL,
			embedding VECTOR(%d) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, table, ix.dimension),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_source ON %s(source_path)", table, table),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_embedding ON %s USING ivfflat (embedding vector_cosine_ops)", table, table),
	}

	for _, stmt := range stmts {
		if _, err := ix.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("execute index statement: %w", err)
		}
	}

	return nil
}

func (ix *PostgresIndex) Upsert(ctx context.Context, name string, records []Record) error {
	if ix.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	table, err := tableName(name)
	if err != nil {
		return err
	}

	for i, record := range records {
		if ix.dimension > 0 && len(record.Embedding) != ix.dimension {
			return fmt.Errorf("record %d embedding dimension mismatch: expected %d, got %d", i, ix.dimension, len(record.Embedding))
		}
		if _, err := ix.pool.Exec(ctx, fmt.Sprintf(`
			INSERT INTO %s (id, source_path, page_index, chunk_index, content, embedding, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, NOW())
		`, table), uuid.New(), record.SourcePath, record.PageIndex, record.ChunkIndex, record.Content, pgvector.NewVector(record.Embedding)); err != nil {
			return fmt.Errorf("insert record %d: %w", i, err)
		}
	}

	return nil
}

func (ix *PostgresIndex) Query(ctx context.Context, name string, embedding []float32, topK int) ([]SearchResult, error) {
	if ix.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if len(embedding) == 0 {
		return nil, fmt.Errorf("embedding is empty")
	}
	if topK <= 0 {
		topK = 5
	}
	table, err := tableName(name)
	if err != nil {
		return nil, err
	}

	conn, err := ix.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	probes := topK * 10
	if probes < 10 {
		probes = 10
	}
	if _, err := conn.Exec(ctx, fmt.Sprintf("SET ivfflat.probes = %d", probes)); err != nil {
		return nil, fmt.Errorf("set ivfflat probes: %w", err)
	}

	rows, err := conn.Query(ctx, fmt.Sprintf(`
        SELECT
            source_path,
            page_index,
            content,
            (embedding <=> $1::vector) AS distance
        FROM %s
        ORDER BY embedding <=> $1::vector
        LIMIT $2
    `, table), pgvector.NewVector(embedding), topK)
	if err != nil {
		return nil, fmt.Errorf("query similar records: %w", err)
	}
	defer rows.Close()

	results := make([]SearchResult, 0)
	for rows.Next() {
		var item SearchResult
		var distance float64
		if scanErr := rows.Scan(&item.SourcePath, &item.PageIndex, &item.Content, &distance); scanErr != nil {
			return nil, fmt.Errorf("scan similar record: %w", scanErr)
		}
		item.Score = 1 - distance
		results = append(results, item)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return results, nil
}

// Drop removes the named index entirely. Maintenance operation; not part of
// the Index contract.
func (ix *PostgresIndex) Drop(ctx context.Context, name string) error {
	if ix.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	table, err := tableName(name)
	if err != nil {
		return err
	}
	if _, err := ix.pool.Exec(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
		return fmt.Errorf("drop index table: %w", err)
	}
	return nil
}

var _ Index = (*PostgresIndex)(nil)
