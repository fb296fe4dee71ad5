// Package ingestion orchestrates the offline pipeline: load PDFs, chunk their
// text, embed the chunks, and upsert them into the vector index.
package ingestion

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/fabfab/fin-agent/documents"
	"github.com/fabfab/fin-agent/embeddings"
	"github.com/fabfab/fin-agent/knowledge"
	"github.com/fabfab/fin-agent/vectorindex"
)

type Service struct {
	index    vectorindex.Index
	embedder embeddings.Embedder
	splitter *documents.Splitter
	driver   neo4j.DriverWithContext
	logger   *log.Logger
}

// NewService wires the pipeline. driver may be nil; the provenance graph is
// then skipped.
func NewService(index vectorindex.Index, embedder embeddings.Embedder, splitter *documents.Splitter, driver neo4j.DriverWithContext, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}

	return &Service{
		index:    index,
		embedder: embedder,
		splitter: splitter,
		driver:   driver,
		logger:   logger,
	}
}

// IngestDirectory runs Load, Chunk, Embed, Upsert strictly in sequence. A
// directory with zero usable documents is a successful no-op. Embedding and
// index failures abort the run.
func (s *Service) IngestDirectory(ctx context.Context, dir, indexName string) error {
	if s.embedder == nil {
		return fmt.Errorf("embedder not configured")
	}
	if s.index == nil {
		return fmt.Errorf("vector index not configured")
	}
	if s.splitter == nil {
		return fmt.Errorf("splitter not configured")
	}

	if err := s.index.EnsureIndex(ctx, indexName); err != nil {
		return fmt.Errorf("ensure index %s: %w", indexName, err)
	}

	s.logger.Printf("loading PDF documents from %s", dir)
	docs := documents.LoadDirectory(dir, s.logger)
	s.logger.Printf("loaded %d pages", len(docs))

	chunks := s.splitter.SplitDocuments(docs, s.logger)
	s.logger.Printf("split pages into %d chunks", len(chunks))
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("generate embeddings: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedding count mismatch: have %d chunks, %d embeddings", len(chunks), len(vectors))
	}
	s.logger.Printf("embedded %d chunks", len(vectors))

	records := make([]vectorindex.Record, len(chunks))
	for i, chunk := range chunks {
		records[i] = vectorindex.Record{
			Embedding:  vectors[i],
			Content:    chunk.Text,
			SourcePath: chunk.SourcePath,
			PageIndex:  chunk.PageIndex,
			ChunkIndex: chunk.SequenceIndex,
		}
	}

	if err := s.index.Upsert(ctx, indexName, records); err != nil {
		return fmt.Errorf("upsert records: %w", err)
	}
	s.logger.Printf("upserted %d records into index %s", len(records), indexName)

	if s.driver != nil {
		s.syncGraph(ctx, dir, docs, chunks)
	}

	return nil
}

// syncGraph mirrors the ingested documents into the provenance graph. Graph
// failures are logged, not fatal; the vector index is already up to date.
func (s *Service) syncGraph(ctx context.Context, root string, docs []documents.SourceDocument, chunks []documents.Chunk) {
	pages := make(map[string]int)
	for _, doc := range docs {
		if doc.PageIndex+1 > pages[doc.SourcePath] {
			pages[doc.SourcePath] = doc.PageIndex + 1
		}
	}

	grouped := make(map[string][]knowledge.Chunk)
	order := make([]string, 0)
	for _, chunk := range chunks {
		if _, ok := grouped[chunk.SourcePath]; !ok {
			order = append(order, chunk.SourcePath)
		}
		grouped[chunk.SourcePath] = append(grouped[chunk.SourcePath], knowledge.Chunk{
			ID:        uuid.New().String(),
			Index:     len(grouped[chunk.SourcePath]),
			PageIndex: chunk.PageIndex,
			Text:      chunk.Text,
		})
	}

	for _, path := range order {
		doc := knowledge.Document{
			Path:   path,
			Title:  strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
			Folder: folderOf(root, path),
			Pages:  pages[path],
			Chunks: grouped[path],
		}
		if err := knowledge.SyncDocument(ctx, s.driver, doc); err != nil {
			s.logger.Printf("graph sync failed for %s: %v", path, err)
			continue
		}
		s.logger.Printf("synced %s to provenance graph (%d chunks)", path, len(doc.Chunks))
	}
}

func folderOf(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	folder := filepath.ToSlash(filepath.Dir(rel))
	if folder == "." || folder == "/" {
		return ""
	}
	return folder
}
