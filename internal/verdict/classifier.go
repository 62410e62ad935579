package verdict

import (
	"math"
	"strings"

	"github.com/gapscan/gapscan/internal/controls"
	"github.com/gapscan/gapscan/internal/llm"
	"github.com/gapscan/gapscan/internal/retrieval"
)

// Status vocabularies, matched case-insensitively against the LLM answer.
// A similar passage can still describe non-compliance, so lexical cues in
// the answer outrank the raw similarity score.
var (
	notMetPhrases = []string{
		"no evidence", "not found", "does not mention", "not addressed", "not implemented",
	}
	fullyMetPhrases = []string{
		"fully implemented", "fully met", "is in place", "compliant", "satisfied", "is addressed",
	}
	partiallyMetPhrases = []string{
		"partially", "some aspects", "incomplete", "part of", "lacks", "needs improvement",
	}
)

const (
	// scoreFallbackThreshold decides status when the answer matches no
	// vocabulary. The boundary is exclusive: exactly 0.35 is Not Met.
	scoreFallbackThreshold = 0.35

	emptyAnswerExplanation = "The language model returned no answer."
	noEvidenceExplanation  = "No relevant policy statements were found in the vector index."
)

// Classifier turns evidence plus an LLM answer into a verdict. Confidence
// is the raw top retrieval score rounded to four decimals; the vocabulary
// check never feeds it.
type Classifier struct{}

// NewClassifier creates a Classifier.
func NewClassifier() *Classifier {
	return &Classifier{}
}

// Classify produces the verdict for one control. The decision is
// two-tiered: vocabulary lookup in strict not-met, fully-met, partially-met
// priority order, then the retrieval-score fallback. The order must not
// change; an answer naming both outcomes is deliberately read as Not Met.
func (c *Classifier) Classify(control controls.Control, ev retrieval.Evidence, llmAnswer string) Verdict {
	answer := normalizeAnswer(llmAnswer)

	matched := ev.Joined
	if !ev.Found() {
		matched = retrieval.NoEvidence
		answer = noEvidenceExplanation
	}

	if answer == "" {
		return Verdict{
			ControlID:       control.ControlID,
			Status:          StatusNotMet,
			ConfidenceScore: roundScore(ev.TopScore),
			MatchedText:     matched,
			Explanation:     emptyAnswerExplanation,
		}
	}

	return Verdict{
		ControlID:       control.ControlID,
		Status:          determineStatus(ev.TopScore, answer),
		ConfidenceScore: roundScore(ev.TopScore),
		MatchedText:     matched,
		Explanation:     answer,
	}
}

// determineStatus applies the two-tier decision procedure.
func determineStatus(topScore float32, answer string) Status {
	lower := strings.ToLower(answer)

	if containsAny(lower, notMetPhrases) {
		return StatusNotMet
	}
	if containsAny(lower, fullyMetPhrases) {
		return StatusFullyMet
	}
	if containsAny(lower, partiallyMetPhrases) {
		return StatusPartiallyMet
	}

	if topScore > scoreFallbackThreshold {
		return StatusPartiallyMet
	}
	return StatusNotMet
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

// normalizeAnswer strips reasoning-model thinking tags and collapses runs
// of whitespace to single spaces.
func normalizeAnswer(s string) string {
	return strings.Join(strings.Fields(llm.StripThinkingTags(s)), " ")
}

func roundScore(s float32) float64 {
	return math.Round(float64(s)*10000) / 10000
}
