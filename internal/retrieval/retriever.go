// Package retrieval finds the policy statements most relevant to a
// compliance control.
package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/gapscan/gapscan/internal/controls"
	"github.com/gapscan/gapscan/internal/embedding"
	"github.com/gapscan/gapscan/internal/vector"
)

const (
	// evidenceCharBudget caps the joined matched text carried into the
	// report. Retrieved statements beyond it are cut, not dropped from
	// scoring.
	evidenceCharBudget = 1500
	evidenceDelimiter  = "\n---\n"
	truncationMarker   = "..."

	// NoEvidence is the sentinel matched text when retrieval returns
	// nothing usable.
	NoEvidence = "N/A"
)

// Match is one retrieved policy statement with its similarity score.
type Match struct {
	Text  string
	Score float32
}

// Evidence is the retrieval result for a single control. Joined holds the
// rank-ordered matched texts as one delimited, budget-capped string for the
// report; TopScore is the best similarity and feeds the classifier's score
// fallback.
type Evidence struct {
	Matches  []Match
	Joined   string
	TopScore float32
}

// Found reports whether retrieval produced any matches.
func (e Evidence) Found() bool { return len(e.Matches) > 0 }

// Retriever embeds control descriptions and queries the vector index.
type Retriever struct {
	gateway    *embedding.Gateway
	index      vector.Index
	collection string
}

// New creates a Retriever bound to one collection.
func New(gateway *embedding.Gateway, index vector.Index, collection string) *Retriever {
	return &Retriever{gateway: gateway, index: index, collection: collection}
}

// Retrieve embeds the control's description and returns the topK most
// similar policy statements. Zero matches yields the no-evidence sentinel,
// not an error; a missing collection is an error.
func (r *Retriever) Retrieve(ctx context.Context, control controls.Control, topK int) (Evidence, error) {
	queryVec, err := r.gateway.One(ctx, control.Description)
	if err != nil {
		return Evidence{}, fmt.Errorf("embedding control %s: %w", control.ControlID, err)
	}

	results, err := r.index.Search(ctx, r.collection, queryVec, topK)
	if err != nil {
		return Evidence{}, fmt.Errorf("searching for control %s: %w", control.ControlID, err)
	}

	if len(results) == 0 {
		return Evidence{Joined: NoEvidence}, nil
	}

	matches := make([]Match, len(results))
	texts := make([]string, len(results))
	for i, res := range results {
		matches[i] = Match{Text: res.Content, Score: res.Score}
		texts[i] = res.Content
	}

	return Evidence{
		Matches:  matches,
		Joined:   joinAndTruncate(texts),
		TopScore: results[0].Score,
	}, nil
}

// joinAndTruncate concatenates matched texts in rank order and enforces the
// character budget, appending a marker when anything was cut.
func joinAndTruncate(texts []string) string {
	joined := strings.Join(texts, evidenceDelimiter)
	if len(joined) > evidenceCharBudget {
		return joined[:evidenceCharBudget] + truncationMarker
	}
	return joined
}
