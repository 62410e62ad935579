// Package ingest builds the vector index from a policy corpus: load
// documents, chunk into statements, embed, then reset and refill the
// collection. The rebuild is full, never incremental, so a repeat run is
// idempotent.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gapscan/gapscan/internal/chunker"
	"github.com/gapscan/gapscan/internal/embedding"
	"github.com/gapscan/gapscan/internal/observability"
	"github.com/gapscan/gapscan/internal/vector"
)

// DefaultBatchSize is the number of statements embedded per provider call.
const DefaultBatchSize = 64

// Config holds the ingestion run parameters.
type Config struct {
	DataDir    string
	Collection string
	BatchSize  int
}

// Result summarizes a completed ingestion run.
type Result struct {
	Documents     int
	Statements    int
	Dimension     uint64
	EmbedDuration time.Duration
	IndexDuration time.Duration
}

// Pipeline runs the ingestion path against one index.
type Pipeline struct {
	gateway *embedding.Gateway
	index   vector.Index
	audit   *observability.AuditLogger
}

// New creates a Pipeline.
func New(gateway *embedding.Gateway, index vector.Index) *Pipeline {
	return &Pipeline{gateway: gateway, index: index}
}

// SetAuditLogger attaches an audit logger. Nil disables audit events.
func (p *Pipeline) SetAuditLogger(l *observability.AuditLogger) {
	p.audit = l
}

// Run executes the full ingestion pipeline. Any error aborts the run; the
// collection is only reset once every statement has an embedding, so a
// failed run never leaves a half-built index behind.
func (p *Pipeline) Run(ctx context.Context, cfg Config) (Result, error) {
	ctx, span := observability.StartIngestSpan(ctx, cfg.DataDir)
	defer span.End()

	res, err := p.run(ctx, cfg)
	if err != nil {
		observability.RecordError(span, err)
		return Result{}, err
	}
	observability.RecordIngestResult(span, res.Documents, res.Statements, res.Dimension)
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, cfg Config) (Result, error) {
	docs, err := chunker.LoadDir(cfg.DataDir)
	if err != nil {
		return Result{}, err
	}

	statements, err := chunker.Chunk(docs)
	if err != nil {
		return Result{}, err
	}
	p.audit.LogIngestChunk(len(docs), len(statements))

	embedStart := time.Now()
	vectors, err := p.embed(ctx, statements, cfg.BatchSize)
	if err != nil {
		return Result{}, err
	}
	embedDur := time.Since(embedStart)
	p.audit.LogIngestEmbed(p.gateway.Provider().Name(), len(vectors), embedDur)

	dim := uint64(len(vectors[0]))

	indexStart := time.Now()
	if err := p.index.Reset(ctx, cfg.Collection, dim); err != nil {
		return Result{}, fmt.Errorf("resetting collection %s: %w", cfg.Collection, err)
	}

	points := make([]vector.Document, len(statements))
	for i, s := range statements {
		points[i] = vector.Document{
			ID:      uuid.NewString(),
			Content: s.Text,
			Vector:  vectors[i],
			Metadata: map[string]string{
				"statement_id": s.ID,
				"source":       s.Source,
			},
		}
	}
	if err := p.index.Upsert(ctx, cfg.Collection, points); err != nil {
		return Result{}, fmt.Errorf("indexing %d statements: %w", len(points), err)
	}
	indexDur := time.Since(indexStart)
	p.audit.LogIngestIndex(cfg.Collection, len(points), dim)

	return Result{
		Documents:     len(docs),
		Statements:    len(statements),
		Dimension:     dim,
		EmbedDuration: embedDur,
		IndexDuration: indexDur,
	}, nil
}

// embed computes embeddings in batches, preserving statement order.
func (p *Pipeline) embed(ctx context.Context, statements []chunker.Statement, batchSize int) ([][]float32, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	texts := make([]string, len(statements))
	for i, s := range statements {
		texts[i] = s.Text
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := p.gateway.Many(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embedding statements %d-%d: %w", start, end-1, err)
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}
