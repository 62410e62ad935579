// Package analyzer orchestrates the analysis path: per-control retrieval,
// LLM completion and verdict classification. Setup failures abort the run
// before any control is touched; per-control failures never do.
package analyzer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gapscan/gapscan/internal/controls"
	"github.com/gapscan/gapscan/internal/llm"
	"github.com/gapscan/gapscan/internal/observability"
	"github.com/gapscan/gapscan/internal/retrieval"
	"github.com/gapscan/gapscan/internal/vector"
	"github.com/gapscan/gapscan/internal/verdict"
)

const (
	// DefaultTopK is the number of policy statements retrieved per control.
	DefaultTopK = 3

	auditSystemPrompt = "You are a compliance auditor evaluating a CMMC policy document."

	auditUserTemplate = `Based on the following policy excerpts:

%s

Does the organization fully meet, partially meet, or not meet the following requirement?

Requirement: %s

Respond with 'Fully Met', 'Partially Met', or 'Not Met' and provide a one-line explanation.`
)

// Config holds the analysis run parameters.
type Config struct {
	Collection string
	TopK       int
}

// Analyzer runs the per-control evaluation loop against one collection.
type Analyzer struct {
	provider   llm.Provider
	retriever  *retrieval.Retriever
	classifier *verdict.Classifier
	index      vector.Index
	collection string
	topK       int
	opts       *llm.RequestOptions
	audit      *observability.AuditLogger
}

// New creates an Analyzer. TopK defaults to DefaultTopK when unset.
func New(provider llm.Provider, retriever *retrieval.Retriever, index vector.Index, cfg Config) *Analyzer {
	topK := cfg.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Analyzer{
		provider:   provider,
		retriever:  retriever,
		classifier: verdict.NewClassifier(),
		index:      index,
		collection: cfg.Collection,
		topK:       topK,
	}
}

// SetRequestOptions sets generation parameters passed to every completion.
func (a *Analyzer) SetRequestOptions(opts *llm.RequestOptions) {
	a.opts = opts
}

// SetAuditLogger attaches an audit logger. Nil disables audit events.
func (a *Analyzer) SetAuditLogger(l *observability.AuditLogger) {
	a.audit = l
}

// Setup verifies the run can proceed: the provider answers and the
// collection exists with at least one indexed statement. Nothing is written
// when Setup fails.
func (a *Analyzer) Setup(ctx context.Context) error {
	if err := llm.Ping(ctx, a.provider); err != nil {
		return err
	}

	count, err := a.index.Count(ctx, a.collection)
	if err != nil {
		return fmt.Errorf("checking collection %s: %w", a.collection, err)
	}
	if count == 0 {
		return fmt.Errorf("collection %s: %w", a.collection, vector.ErrEmptyCollection)
	}
	return nil
}

// Run evaluates every control sequentially and returns exactly one outcome
// per control, in input order. A failing control yields a failed outcome and
// the loop continues.
func (a *Analyzer) Run(ctx context.Context, cs []controls.Control) []verdict.Outcome {
	outcomes := make([]verdict.Outcome, 0, len(cs))
	for _, c := range cs {
		start := time.Now()
		o := a.evaluate(ctx, c)

		v := o.Resolve()
		a.audit.LogControlEvaluate(c.ControlID, string(v.Status), v.ConfidenceScore, time.Since(start), o.Err)
		outcomes = append(outcomes, o)
	}
	return outcomes
}

// evaluate runs retrieval, completion and classification for one control.
func (a *Analyzer) evaluate(ctx context.Context, c controls.Control) verdict.Outcome {
	ctx, span := observability.StartControlSpan(ctx, c.ControlID)
	defer span.End()

	if strings.TrimSpace(c.Description) == "" {
		v := verdict.NoDescription(c)
		observability.RecordControlVerdict(span, string(v.Status), v.ConfidenceScore)
		return verdict.Success(v)
	}

	ev, err := a.retriever.Retrieve(ctx, c, a.topK)
	if err != nil {
		observability.RecordError(span, err)
		return verdict.Failure(c, err)
	}

	answer := ""
	if ev.Found() {
		answer, err = a.complete(ctx, c, ev)
		if err != nil {
			observability.RecordError(span, err)
			return verdict.Failure(c, err)
		}
	}

	v := a.classifier.Classify(c, ev, answer)
	observability.RecordControlVerdict(span, string(v.Status), v.ConfidenceScore)
	return verdict.Success(v)
}

// complete asks the provider for the compliance determination.
func (a *Analyzer) complete(ctx context.Context, c controls.Control, ev retrieval.Evidence) (string, error) {
	prompt := &llm.Prompt{
		SystemPrompt: auditSystemPrompt,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: fmt.Sprintf(auditUserTemplate, ev.Joined, c.Description)},
		},
	}

	a.audit.LogLLMRequest(a.provider.Name(), c.ControlID)
	start := time.Now()

	resp, err := a.provider.Complete(ctx, prompt, a.opts)
	if err != nil {
		a.audit.LogLLMError(a.provider.Name(), c.ControlID, err)
		return "", fmt.Errorf("completing control %s: %w", c.ControlID, err)
	}

	a.audit.LogLLMResponse(a.provider.Name(), c.ControlID, time.Since(start), resp.InputTokens, resp.OutputTokens)
	return resp.Content, nil
}
