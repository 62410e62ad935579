// Package chunker splits raw policy documents into atomic retrievable
// statements. One statement per line keeps retrieval granular: a match is a
// single auditable sentence, not a page of policy text.
package chunker

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrEmptyCorpus indicates the documents yielded no statements at all.
// Ingestion aborts on it; an empty index would make every control Not Met
// for the wrong reason.
var ErrEmptyCorpus = errors.New("policy corpus is empty")

// Document is one raw policy text blob with its origin.
type Document struct {
	Source string // file path or logical name
	Text   string
}

// Statement is a single retrievable policy statement.
type Statement struct {
	ID     string
	Text   string
	Source string
}

// Chunk splits each document on line boundaries, trims surrounding
// whitespace, and discards empty lines. Output preserves document order,
// then line order. Duplicate lines across documents are kept as separate
// statements; retrieval tolerates the redundancy.
func Chunk(docs []Document) ([]Statement, error) {
	var statements []Statement
	for _, doc := range docs {
		for i, line := range strings.Split(doc.Text, "\n") {
			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}
			statements = append(statements, Statement{
				ID:     fmt.Sprintf("%s:%d", doc.Source, i+1),
				Text:   text,
				Source: doc.Source,
			})
		}
	}
	if len(statements) == 0 {
		return nil, ErrEmptyCorpus
	}
	return statements, nil
}

// LoadDir reads all .txt files in dir as Documents, sorted by filename so
// statement order is stable across runs.
func LoadDir(dir string) ([]Document, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("policy data directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("policy data path %s is not a directory", dir)
	}

	paths, err := filepath.Glob(filepath.Join(dir, "*.txt"))
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no .txt files found in %s: provide policy files with one statement per line", dir)
	}
	sort.Strings(paths)

	docs := make([]Document, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		docs = append(docs, Document{Source: filepath.Base(path), Text: string(data)})
	}
	return docs, nil
}
