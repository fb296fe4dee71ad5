// Package chat answers finance questions by joining vector retrieval with
// keyword-triggered market data and a single generation call.
package chat

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"

	"github.com/fabfab/fin-agent/llm"
	"github.com/fabfab/fin-agent/markets"
	"github.com/fabfab/fin-agent/vectorindex"
)

const defaultTopK = 5

// Dispatcher fetches the market-data signals a query triggers.
type Dispatcher interface {
	Dispatch(ctx context.Context, query string) markets.Results
}

type Service struct {
	retriever  Retriever
	dispatcher Dispatcher
	graph      GraphStore
	llm        llm.Client
	logger     *log.Logger
}

type Config struct {
	IndexName string
	TopK      int
}

// NewService wires the query path. graph may be nil; sources are then
// reported without provenance insights.
func NewService(retriever Retriever, dispatcher Dispatcher, graph GraphStore, llmClient llm.Client, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}

	return &Service{
		retriever:  retriever,
		dispatcher: dispatcher,
		graph:      graph,
		llm:        llmClient,
		logger:     logger,
	}
}

// Answer retrieves context and dispatches market-data fetches concurrently,
// merges both into one prompt, and returns the model's trimmed continuation.
// Retrieval and provider failures degrade the context; only an empty question,
// missing wiring, or a generation failure is fatal.
func (s *Service) Answer(ctx context.Context, question string, cfg Config) (Response, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Response{}, fmt.Errorf("question cannot be empty")
	}
	if s.retriever == nil {
		return Response{}, fmt.Errorf("retriever is not configured")
	}
	if s.dispatcher == nil {
		return Response{}, fmt.Errorf("dispatcher is not configured")
	}
	if s.llm == nil {
		return Response{}, fmt.Errorf("llm client is not configured")
	}

	topK := cfg.TopK
	if topK <= 0 {
		topK = defaultTopK
	}

	// Retrieval and signal dispatch have no dependency on each other.
	var (
		wg          sync.WaitGroup
		retrieved   []vectorindex.SearchResult
		retrieveErr error
		signals     markets.Results
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		retrieved, retrieveErr = s.retriever.Retrieve(ctx, question, cfg.IndexName, topK)
	}()
	go func() {
		defer wg.Done()
		signals = s.dispatcher.Dispatch(ctx, question)
	}()
	wg.Wait()

	if retrieveErr != nil {
		s.logger.Printf("retrieval unavailable, answering from market data only: %v", retrieveErr)
		retrieved = nil
	}
	if len(retrieved) == 0 && retrieveErr == nil {
		s.logger.Printf("no indexed context matched the question")
	}

	chunkTexts := make([]string, len(retrieved))
	for i, result := range retrieved {
		chunkTexts[i] = result.Content
	}

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt()},
		{Role: llm.RoleUser, Content: buildPrompt(question, chunkTexts, signals)},
	}

	answer, err := s.llm.Generate(ctx, messages)
	if err != nil {
		return Response{}, fmt.Errorf("llm generate: %w", err)
	}

	return Response{
		Answer:  strings.TrimSpace(answer),
		Sources: s.mergeSources(ctx, retrieved),
		Signals: signalSummary(signals),
	}, nil
}

// buildPrompt is the fixed template: retrieved chunks joined with single
// spaces, one line per signal payload, then the literal question. Empty
// context and empty market data still produce a well-formed prompt.
func buildPrompt(question string, chunks []string, signals markets.Results) string {
	var sb strings.Builder
	sb.WriteString("Use the internal context and market data below to answer the question.\n\n")
	sb.WriteString("Internal context:\n")
	sb.WriteString(strings.Join(chunks, " "))
	sb.WriteString("\n\nMarket data:\n")
	sb.WriteString(strings.Join(signals.ContextLines(), "\n"))
	sb.WriteString("\n\nQuestion: ")
	sb.WriteString(question)
	return sb.String()
}

func systemPrompt() string {
	return "You are a financial research assistant. Ground your answer in the internal context and market data supplied with the question. When the supplied material does not cover the question, say so and answer from general knowledge, noting the uncertainty. This is research assistance, not investment advice."
}

func (s *Service) mergeSources(ctx context.Context, results []vectorindex.SearchResult) []Source {
	if len(results) == 0 {
		return nil
	}

	grouped := make(map[string]*Source, len(results))
	order := make([]string, 0, len(results))
	for _, result := range results {
		source, ok := grouped[result.SourcePath]
		if !ok {
			source = &Source{
				SourcePath: result.SourcePath,
				PageIndex:  result.PageIndex,
				Score:      result.Score,
			}
			grouped[result.SourcePath] = source
			order = append(order, result.SourcePath)
			continue
		}
		if result.Score > source.Score {
			source.Score = result.Score
			source.PageIndex = result.PageIndex
		}
	}

	if s.graph != nil {
		insights, err := s.graph.DocumentInsights(ctx, order)
		if err != nil {
			s.logger.Printf("graph insights error: %v", err)
		} else {
			for path, insight := range insights {
				if source, ok := grouped[path]; ok {
					source.Insight = insight
				}
			}
		}
	}

	sources := make([]Source, 0, len(grouped))
	for _, path := range order {
		sources = append(sources, *grouped[path])
	}
	sort.Slice(sources, func(i, j int) bool {
		return sources[i].Score > sources[j].Score
	})

	return sources
}

func signalSummary(signals markets.Results) []string {
	summary := make([]string, 0, len(signals))
	for _, signal := range markets.AllSignals {
		result, ok := signals[signal]
		if !ok {
			continue
		}
		if result.Err != nil {
			summary = append(summary, string(signal)+" (unavailable)")
			continue
		}
		summary = append(summary, string(signal))
	}
	return summary
}
