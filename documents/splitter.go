package documents

import (
	"fmt"
	"log"
	"strings"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// separators is the cut-point preference order: paragraph break, line break,
// sentence boundary, then word boundary. Raw characters are the fallback when
// none of these occurs inside the window.
var separators = []string{"\n\n", "\n", ". ", " "}

// Chunk is a bounded-length slice of one source page's text, the unit that is
// embedded and indexed.
type Chunk struct {
	Text          string
	SourcePath    string
	PageIndex     int
	SequenceIndex int
}

// Splitter cuts page text into chunks of at most chunkSize characters where
// consecutive chunks of the same page share exactly chunkOverlap characters.
type Splitter struct {
	chunkSize    int
	chunkOverlap int
}

func NewSplitter(chunkSize, chunkOverlap int) (*Splitter, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("chunk overlap must be in [0, chunk size), got %d", chunkOverlap)
	}
	return &Splitter{chunkSize: chunkSize, chunkOverlap: chunkOverlap}, nil
}

// SplitDocuments chunks every document, carrying source path and page index
// through as provenance. An empty input yields an empty output.
func (s *Splitter) SplitDocuments(docs []SourceDocument, logger *log.Logger) []Chunk {
	if logger == nil {
		logger = log.Default()
	}
	if len(docs) == 0 {
		logger.Printf("warning: no documents to split")
		return nil
	}

	chunks := make([]Chunk, 0, len(docs))
	for _, doc := range docs {
		for idx, text := range s.Split(doc.Text) {
			chunks = append(chunks, Chunk{
				Text:          text,
				SourcePath:    doc.SourcePath,
				PageIndex:     doc.PageIndex,
				SequenceIndex: idx,
			})
		}
	}

	return chunks
}

// Split cuts text into chunks. Each cut prefers the coarsest separator that
// still advances the window past the carried-over overlap, so boundaries land
// on paragraph, line, sentence, or word edges whenever the text allows it.
// The result is deterministic for fixed input and parameters.
func (s *Splitter) Split(text string) []string {
	if text == "" {
		return nil
	}
	if len(text) <= s.chunkSize {
		return []string{text}
	}

	chunks := make([]string, 0, len(text)/(s.chunkSize-s.chunkOverlap)+1)
	start := 0
	for {
		end := start + s.chunkSize
		if end >= len(text) {
			chunks = append(chunks, text[start:])
			return chunks
		}
		cut := s.cutPoint(text, start, end)
		chunks = append(chunks, text[start:cut])
		start = cut - s.chunkOverlap
	}
}

func (s *Splitter) cutPoint(text string, start, end int) int {
	for _, sep := range separators {
		idx := strings.LastIndex(text[start:end], sep)
		if idx < 0 {
			continue
		}
		cut := start + idx + len(sep)
		// The next chunk starts chunkOverlap characters before the cut, so a
		// cut inside the overlap region would make no progress.
		if cut > start+s.chunkOverlap {
			return cut
		}
	}
	return end
}
