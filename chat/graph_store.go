package chat

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

type GraphStore interface {
	DocumentInsights(ctx context.Context, paths []string) (map[string]DocumentInsight, error)
}

type Neo4jGraphStore struct {
	driver neo4j.DriverWithContext
}

func NewNeo4jGraphStore(driver neo4j.DriverWithContext) *Neo4jGraphStore {
	return &Neo4jGraphStore{driver: driver}
}

// DocumentInsights returns provenance detail for the given source paths:
// indexed chunk count, page count, folders, and other documents sharing a
// folder.
func (s *Neo4jGraphStore) DocumentInsights(ctx context.Context, paths []string) (map[string]DocumentInsight, error) {
	if s.driver == nil {
		return nil, fmt.Errorf("neo4j driver is nil")
	}
	if len(paths) == 0 {
		return map[string]DocumentInsight{}, nil
	}

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.Run(ctx, `
		MATCH (d:Document)
		WHERE d.path IN $paths
		OPTIONAL MATCH (d)-[:HAS_CHUNK]->(c:Chunk)
		OPTIONAL MATCH (d)-[:IN_FOLDER]->(folder:Folder)
		OPTIONAL MATCH (folder)<-[:IN_FOLDER]-(related:Document)
		WITH d,
		     count(DISTINCT c) AS chunkCount,
		     collect(DISTINCT folder.name) AS folders,
		     collect(DISTINCT related) AS relatedNodes
		RETURN d.path AS path,
		       d.pages AS pages,
		       chunkCount,
		       [f IN folders WHERE f IS NOT NULL] AS folders,
		       [r IN relatedNodes WHERE r IS NOT NULL AND r.path <> d.path | {path: r.path, title: r.title}] AS relatedDocuments
	`, map[string]any{"paths": paths})
	if err != nil {
		return nil, fmt.Errorf("run neo4j insights query: %w", err)
	}

	insights := make(map[string]DocumentInsight, len(paths))
	for result.Next(ctx) {
		record := result.Record()
		pathVal, _ := record.Get("path")
		pagesVal, _ := record.Get("pages")
		countVal, _ := record.Get("chunkCount")
		foldersVal, _ := record.Get("folders")
		relatedVal, _ := record.Get("relatedDocuments")

		path, ok := pathVal.(string)
		if !ok {
			continue
		}

		chunkCount, _ := toInt(countVal)
		pageCount, _ := toInt(pagesVal)

		insights[path] = DocumentInsight{
			ChunkCount:       chunkCount,
			PageCount:        pageCount,
			Folders:          convertStringSlice(foldersVal),
			RelatedDocuments: convertRelated(relatedVal),
		}
	}

	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("neo4j insights result error: %w", err)
	}

	return insights, nil
}

var _ GraphStore = (*Neo4jGraphStore)(nil)

func convertStringSlice(value any) []string {
	raw, ok := value.([]any)
	if !ok {
		if v, ok := value.([]string); ok {
			return v
		}
		return nil
	}

	result := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok && s != "" {
			result = append(result, s)
		}
	}
	return result
}

func convertRelated(value any) []RelatedDocument {
	raw, ok := value.([]any)
	if !ok {
		return nil
	}

	related := make([]RelatedDocument, 0, len(raw))
	for _, item := range raw {
		data, ok := item.(map[string]any)
		if !ok {
			continue
		}
		path, _ := data["path"].(string)
		title, _ := data["title"].(string)
		if path == "" {
			continue
		}
		related = append(related, RelatedDocument{Path: path, Title: title})
	}

	return related
}

func toInt(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
