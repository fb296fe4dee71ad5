// Package knowledge mirrors ingested documents into a Neo4j provenance graph
// so query-time answers can report where their context came from.
package knowledge

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

type Document struct {
	Path   string
	Title  string
	Folder string
	Pages  int
	Chunks []Chunk
}

type Chunk struct {
	ID        string
	Index     int
	PageIndex int
	Text      string
}

// SyncDocument upserts one document's node, folder relation, and chunk nodes.
// Documents are keyed by source path; re-ingesting a path replaces its chunks.
func SyncDocument(ctx context.Context, driver neo4j.DriverWithContext, doc Document) error {
	if driver == nil {
		return fmt.Errorf("neo4j driver is nil")
	}

	session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	params := map[string]any{
		"path":   doc.Path,
		"title":  doc.Title,
		"folder": doc.Folder,
		"pages":  doc.Pages,
	}

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if _, err := tx.Run(ctx, `
			MERGE (d:Document {path: $path})
			SET d.title = $title,
			    d.pages = $pages,
			    d.updated_at = datetime()
		`, params); err != nil {
			return nil, fmt.Errorf("upsert document node: %w", err)
		}

		if doc.Folder != "" {
			if _, err := tx.Run(ctx, `
				MATCH (d:Document {path: $path})-[r:IN_FOLDER]->(:Folder)
				DELETE r
			`, params); err != nil {
				return nil, fmt.Errorf("remove stale folder relation: %w", err)
			}
			if _, err := tx.Run(ctx, `
				MATCH (d:Document {path: $path})
				MERGE (f:Folder {name: $folder})
				MERGE (d)-[:IN_FOLDER]->(f)
			`, params); err != nil {
				return nil, fmt.Errorf("upsert folder relation: %w", err)
			}
		} else {
			if _, err := tx.Run(ctx, `
				MATCH (d:Document {path: $path})-[r:IN_FOLDER]->(f:Folder)
				DELETE r
				WITH f
				WHERE NOT (f)<-[:IN_FOLDER]-(:Document)
				DETACH DELETE f
			`, params); err != nil {
				return nil, fmt.Errorf("cleanup folder relation: %w", err)
			}
		}

		if _, err := tx.Run(ctx, `
			MATCH (d:Document {path: $path})-[:HAS_CHUNK]->(c:Chunk)
			DETACH DELETE c
		`, map[string]any{"path": doc.Path}); err != nil {
			return nil, fmt.Errorf("clear existing chunk nodes: %w", err)
		}

		for _, chunk := range doc.Chunks {
			if _, err := tx.Run(ctx, `
				MATCH (d:Document {path: $doc_path})
				MERGE (c:Chunk {id: $chunk_id})
				SET c.index = $chunk_index,
				    c.page = $chunk_page,
				    c.text = $chunk_text
				MERGE (d)-[:HAS_CHUNK {order: $chunk_index}]->(c)
			`, map[string]any{
				"doc_path":    doc.Path,
				"chunk_id":    chunk.ID,
				"chunk_index": chunk.Index,
				"chunk_page":  chunk.PageIndex,
				"chunk_text":  chunk.Text,
			}); err != nil {
				return nil, fmt.Errorf("upsert chunk node: %w", err)
			}
		}

		return nil, nil
	})

	return err
}
