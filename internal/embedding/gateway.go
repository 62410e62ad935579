// Package embedding wraps an LLM provider's embedding capability behind the
// narrow interface the ingestion and retrieval paths share.
package embedding

import (
	"context"
	"fmt"

	"github.com/gapscan/gapscan/internal/llm"
)

// Gateway produces embedding vectors through a configured provider. It adds
// no retry policy of its own; wrap the provider instead.
type Gateway struct {
	provider llm.Provider
}

// NewGateway creates a Gateway over the given provider.
func NewGateway(provider llm.Provider) *Gateway {
	return &Gateway{provider: provider}
}

// Provider returns the underlying provider.
func (g *Gateway) Provider() llm.Provider {
	return g.provider
}

// One embeds a single text.
func (g *Gateway) One(ctx context.Context, text string) ([]float32, error) {
	vectors, err := g.Many(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// Many embeds a batch of texts. The result is order-preserving and always
// the same length as the input; a provider returning a different count is
// an error, not a silent truncation.
func (g *Gateway) Many(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := g.provider.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(vectors), len(texts))
	}
	return vectors, nil
}

// QueryAggregate embeds each text and returns the element-wise mean vector.
// Used when a query is a multi-sentence expansion of a control description.
func (g *Gateway) QueryAggregate(ctx context.Context, texts []string) ([]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("query aggregate: no texts given")
	}

	vectors, err := g.Many(ctx, texts)
	if err != nil {
		return nil, err
	}

	dim := len(vectors[0])
	mean := make([]float32, dim)
	for _, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("query aggregate: dimensionality mismatch: %d vs %d", len(v), dim)
		}
		for i, x := range v {
			mean[i] += x
		}
	}
	n := float32(len(vectors))
	for i := range mean {
		mean[i] /= n
	}
	return mean, nil
}
