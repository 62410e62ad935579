package vector

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// MemoryIndex is an in-process Index backed by brute-force cosine
// similarity. It serves tests and small local corpora; production runs use
// the qdrant adapter.
type MemoryIndex struct {
	mu          sync.RWMutex
	collections map[string]*memoryCollection
}

type memoryCollection struct {
	dim  uint64
	docs []Document
}

// NewMemoryIndex creates an empty in-memory index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{collections: make(map[string]*memoryCollection)}
}

func (m *MemoryIndex) Reset(_ context.Context, name string, dim uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.collections, name)
	m.collections[name] = &memoryCollection{dim: dim}
	return nil
}

func (m *MemoryIndex) Upsert(_ context.Context, name string, docs []Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	coll, ok := m.collections[name]
	if !ok {
		return fmt.Errorf("upsert %q: %w", name, ErrCollectionNotFound)
	}
	for _, d := range docs {
		if coll.dim != 0 && uint64(len(d.Vector)) != coll.dim {
			return fmt.Errorf("upsert %q: vector dimensionality %d, collection expects %d", name, len(d.Vector), coll.dim)
		}
		coll.docs = append(coll.docs, d)
	}
	return nil
}

func (m *MemoryIndex) Search(_ context.Context, name string, vector []float32, topK int) ([]SearchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	coll, ok := m.collections[name]
	if !ok {
		return nil, fmt.Errorf("search %q: %w", name, ErrCollectionNotFound)
	}

	results := make([]SearchResult, 0, len(coll.docs))
	for _, d := range coll.docs {
		results = append(results, SearchResult{
			ID:       d.ID,
			Score:    cosine(vector, d.Vector),
			Content:  d.Content,
			Metadata: d.Metadata,
		})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })

	if topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

func (m *MemoryIndex) Count(_ context.Context, name string) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	coll, ok := m.collections[name]
	if !ok {
		return 0, fmt.Errorf("count %q: %w", name, ErrCollectionNotFound)
	}
	return uint64(len(coll.docs)), nil
}

func (m *MemoryIndex) Close() error { return nil }

func cosine(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

var _ Index = (*MemoryIndex)(nil)
