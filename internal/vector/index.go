// Package vector defines the vector index contract shared by the ingestion
// and analysis paths.
package vector

import (
	"context"
	"errors"
)

var (
	// ErrCollectionNotFound indicates the named collection was never created.
	// The remediation is to run ingestion first.
	ErrCollectionNotFound = errors.New("collection not found (run ingestion first)")
	// ErrEmptyCollection indicates the collection exists but holds no points.
	// Distinguished from an empty search result: the analysis path checks it
	// up front instead of producing all-Not-Met verdicts from silence.
	ErrEmptyCollection = errors.New("collection is empty (run ingestion first)")
)

// Document is one policy statement with its embedding.
type Document struct {
	ID       string
	Content  string
	Vector   []float32
	Metadata map[string]string
}

// SearchResult is a single match from a similarity search. Score is a
// similarity in [0,1], higher is more relevant.
type SearchResult struct {
	ID       string
	Score    float32
	Content  string
	Metadata map[string]string
}

// Index provides collection-scoped vector storage and similarity search.
// Every vector in one collection has the same dimensionality, fixed at
// Reset time.
type Index interface {
	// Reset drops the named collection if it exists, then creates it fresh
	// with the given vector dimensionality. Always succeeds on a repeat call.
	Reset(ctx context.Context, name string, dim uint64) error
	// Upsert bulk-inserts documents. No deduplication.
	Upsert(ctx context.Context, name string, docs []Document) error
	// Search returns up to topK results ordered by descending score.
	Search(ctx context.Context, name string, vector []float32, topK int) ([]SearchResult, error)
	// Count returns the number of stored documents.
	Count(ctx context.Context, name string) (uint64, error)
	// Close releases resources.
	Close() error
}
