// Package documents loads PDF source files and splits their text into
// overlapping chunks sized for embedding.
package documents

import (
	"fmt"
	"io/fs"
	"log"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// SourceDocument is one extracted page of one ingested file.
type SourceDocument struct {
	SourcePath string
	PageIndex  int
	Text       string
}

// LoadDirectory recursively discovers PDF files under root and extracts one
// SourceDocument per page. A file that cannot be parsed is logged and skipped;
// a missing or empty directory yields zero documents.
func LoadDirectory(root string, logger *log.Logger) []SourceDocument {
	if logger == nil {
		logger = log.Default()
	}

	paths := make([]string, 0)
	if err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			logger.Printf("skip %s: %v", path, walkErr)
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if strings.EqualFold(filepath.Ext(d.Name()), ".pdf") {
			paths = append(paths, path)
		}
		return nil
	}); err != nil {
		logger.Printf("walk %s: %v", root, err)
		return nil
	}

	logger.Printf("found %d PDF files in %s", len(paths), root)

	documents := make([]SourceDocument, 0)
	for _, path := range paths {
		pages, err := loadFile(path)
		if err != nil {
			logger.Printf("load failed for %s: %v", path, err)
			continue
		}
		documents = append(documents, pages...)
		logger.Printf("loaded %s (%d pages)", path, len(pages))
	}

	return documents
}

func loadFile(path string) (docs []SourceDocument, err error) {
	// The pdf library panics on some malformed files; treat that the same as
	// a parse error so one bad file never aborts the whole load.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse pdf: %v", r)
		}
	}()

	file, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer file.Close()

	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, pageErr := page.GetPlainText(nil)
		if pageErr != nil {
			return nil, fmt.Errorf("extract page %d: %w", i, pageErr)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		docs = append(docs, SourceDocument{
			SourcePath: path,
			PageIndex:  i - 1,
			Text:       text,
		})
	}

	return docs, nil
}
