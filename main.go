package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/fabfab/fin-agent/chat"
	"github.com/fabfab/fin-agent/config"
	"github.com/fabfab/fin-agent/database"
	"github.com/fabfab/fin-agent/documents"
	"github.com/fabfab/fin-agent/embeddings"
	"github.com/fabfab/fin-agent/ingestion"
	"github.com/fabfab/fin-agent/llm"
	"github.com/fabfab/fin-agent/markets"
	"github.com/fabfab/fin-agent/vectorindex"
)

func main() {
	logger := log.New(os.Stdout, "", log.LstdFlags)

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg := config.Load()

	switch os.Args[1] {
	case "ingest":
		ingestCmd(cfg, logger, os.Args[2:])
	case "ask":
		askCmd(cfg, logger, os.Args[2:])
	case "clear":
		clearCmd(cfg, logger, os.Args[2:])
	default:
		logger.Printf("unknown command: %s", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func ingestCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("ingest", flag.ExitOnError)
	dataDir := flags.String("dir", cfg.DataDir, "path to directory containing PDF documents")
	indexName := flags.String("index", cfg.IndexName, "vector index to ingest into")
	chunkSize := flags.Int("chunk-size", documents.DefaultChunkSize, "maximum chunk length in characters")
	chunkOverlap := flags.Int("chunk-overlap", documents.DefaultChunkOverlap, "characters shared between consecutive chunks")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse ingest flags: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pgPool, err := database.NewPostgresPool(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatalf("postgres connection: %v", err)
	}
	defer pgPool.Close()

	var neo4jDriver neo4j.DriverWithContext
	if cfg.GraphEnabled() {
		neo4jDriver, err = database.NewNeo4jDriver(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPass)
		if err != nil {
			logger.Fatalf("neo4j connection: %v", err)
		}
		defer neo4jDriver.Close(ctx)
	}

	embedder, err := embeddings.NewEmbedder(cfg)
	if err != nil {
		logger.Fatalf("embedder setup: %v", err)
	}

	splitter, err := documents.NewSplitter(*chunkSize, *chunkOverlap)
	if err != nil {
		logger.Fatalf("splitter setup: %v", err)
	}

	index := vectorindex.NewPostgresIndex(pgPool, cfg.Embeddings.Dimension)
	svc := ingestion.NewService(index, embedder, splitter, neo4jDriver, logger)
	logger.Printf("ingesting PDFs from %s into index %s using %s/%s embeddings", *dataDir, *indexName, strings.ToUpper(cfg.Embeddings.Provider), cfg.Embeddings.Model)

	if err := svc.IngestDirectory(ctx, *dataDir, *indexName); err != nil {
		logger.Fatalf("ingestion failed: %v", err)
	}
}

func askCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("ask", flag.ExitOnError)
	question := flags.String("question", "", "question to ask the assistant")
	indexName := flags.String("index", cfg.IndexName, "vector index to search")
	limit := flags.Int("limit", 5, "number of context chunks to retrieve")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse ask flags: %v", err)
	}

	if strings.TrimSpace(*question) == "" {
		fmt.Print("Enter your question: ")
		scanner := bufio.NewScanner(os.Stdin)
		if scanner.Scan() {
			*question = scanner.Text()
		}
		if err := scanner.Err(); err != nil {
			logger.Fatalf("read question: %v", err)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pgPool, err := database.NewPostgresPool(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatalf("postgres connection: %v", err)
	}
	defer pgPool.Close()

	var graphStore chat.GraphStore
	if cfg.GraphEnabled() {
		neo4jDriver, err := database.NewNeo4jDriver(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPass)
		if err != nil {
			logger.Fatalf("neo4j connection: %v", err)
		}
		defer neo4jDriver.Close(ctx)
		graphStore = chat.NewNeo4jGraphStore(neo4jDriver)
	}

	embedder, err := embeddings.NewEmbedder(cfg)
	if err != nil {
		logger.Fatalf("embedder setup: %v", err)
	}

	llmClient, err := llm.NewClient(cfg)
	if err != nil {
		logger.Fatalf("llm setup: %v", err)
	}

	index := vectorindex.NewPostgresIndex(pgPool, cfg.Embeddings.Dimension)
	retriever := chat.NewVectorRetriever(index, embedder)
	dispatcher := markets.NewDispatcher(markets.NewClient(cfg.FinanceAPIKey), logger)
	svc := chat.NewService(retriever, dispatcher, graphStore, llmClient, logger)

	resp, err := svc.Answer(ctx, *question, chat.Config{IndexName: *indexName, TopK: *limit})
	if err != nil {
		logger.Fatalf("answer failed: %v", err)
	}

	fmt.Println(resp.Answer)
	if len(resp.Signals) > 0 {
		fmt.Println()
		fmt.Printf("Market data: %s\n", strings.Join(resp.Signals, ", "))
	}
	if len(resp.Sources) > 0 {
		fmt.Println()
		fmt.Println("Sources:")
		for idx, source := range resp.Sources {
			fmt.Printf("%d. %s (page %d)\n", idx+1, source.SourcePath, source.PageIndex+1)
			if source.Insight.ChunkCount > 0 {
				fmt.Printf("   Indexed chunks: %d across %d pages\n", source.Insight.ChunkCount, source.Insight.PageCount)
			}
			if len(source.Insight.Folders) > 0 {
				fmt.Printf("   Folders: %s\n", strings.Join(source.Insight.Folders, ", "))
			}
			if len(source.Insight.RelatedDocuments) > 0 {
				fmt.Println("   Related documents:")
				for _, related := range source.Insight.RelatedDocuments {
					fmt.Printf("     - %s (%s)\n", related.Title, related.Path)
				}
			}
		}
	}
}

func clearCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("clear", flag.ExitOnError)
	indexName := flags.String("index", cfg.IndexName, "vector index to remove")
	confirmed := flags.Bool("confirm", false, "skip confirmation prompt")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse clear flags: %v", err)
	}

	if !*confirmed {
		fmt.Printf("This will permanently delete index %q and its provenance graph. Continue? [y/N]: ", *indexName)
		scanner := bufio.NewScanner(os.Stdin)
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				logger.Fatalf("read confirmation: %v", err)
			}
			logger.Println("clear aborted")
			return
		}
		answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if answer != "y" && answer != "yes" {
			logger.Println("clear aborted")
			return
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pgPool, err := database.NewPostgresPool(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatalf("postgres connection: %v", err)
	}
	defer pgPool.Close()

	index := vectorindex.NewPostgresIndex(pgPool, cfg.Embeddings.Dimension)
	if err := index.Drop(ctx, *indexName); err != nil {
		logger.Fatalf("drop index: %v", err)
	}
	logger.Printf("dropped index %s", *indexName)

	if !cfg.GraphEnabled() {
		return
	}

	neo4jDriver, err := database.NewNeo4jDriver(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPass)
	if err != nil {
		logger.Fatalf("neo4j connection: %v", err)
	}
	defer neo4jDriver.Close(ctx)

	session := neo4jDriver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	if err := purgeNeo4j(ctx, session); err != nil {
		logger.Fatalf("clear neo4j: %v", err)
	}

	logger.Println("provenance graph cleared")
}

func purgeNeo4j(ctx context.Context, session neo4j.SessionWithContext) error {
	queries := []string{
		"MATCH (d:Document) DETACH DELETE d",
		"MATCH (c:Chunk) DETACH DELETE c",
		"MATCH (f:Folder) DETACH DELETE f",
	}

	for _, query := range queries {
		result, err := session.Run(ctx, query, nil)
		if err != nil {
			return err
		}
		if _, err := result.Consume(ctx); err != nil {
			return err
		}
	}
	return nil
}

func printUsage() {
	fmt.Println("Usage: fin-agent <command> [options]")
	fmt.Println("Commands:")
	fmt.Println("  ingest   Ingest PDF documents into the vector index (use --dir to override data directory)")
	fmt.Println("  ask      Ask a finance question against the ingested knowledge base")
	fmt.Println("  clear    Remove the vector index and provenance graph")
}
