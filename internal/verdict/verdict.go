// Package verdict maps retrieval evidence and an LLM answer onto the
// compliance status taxonomy. This is the decision core of the pipeline:
// everything upstream exists to feed Classify, everything downstream
// reports its output.
package verdict

import (
	"fmt"

	"github.com/gapscan/gapscan/internal/controls"
)

// Status is the compliance determination for one control.
type Status string

const (
	StatusFullyMet     Status = "Fully Met"
	StatusPartiallyMet Status = "Partially Met"
	StatusNotMet       Status = "Not Met"
)

// Verdict is the immutable classification result for one control.
type Verdict struct {
	ControlID       string  `json:"control_id"`
	Status          Status  `json:"status"`
	ConfidenceScore float64 `json:"confidence_score"`
	MatchedText     string  `json:"matched_text"`
	Explanation     string  `json:"explanation"`
}

// Outcome is the explicit success/failure variant returned from the
// per-control evaluation step. The report assembler pattern-matches on it
// instead of relying on a surrounding recover; a failed outcome still
// yields exactly one verdict.
type Outcome struct {
	Verdict Verdict
	Err     error
}

// Success wraps a classified verdict.
func Success(v Verdict) Outcome {
	return Outcome{Verdict: v}
}

// Failure records a per-control processing error. Resolve converts it into
// a Not Met verdict carrying the failure reason, so no control is ever
// silently omitted from the report.
func Failure(c controls.Control, err error) Outcome {
	return Outcome{
		Verdict: Verdict{
			ControlID:       c.ControlID,
			Status:          StatusNotMet,
			ConfidenceScore: 0.0,
			MatchedText:     "N/A",
			Explanation:     fmt.Sprintf("An error occurred during processing: %v", err),
		},
		Err: err,
	}
}

// Failed reports whether this outcome carries a processing error.
func (o Outcome) Failed() bool { return o.Err != nil }

// Resolve returns the verdict for this outcome, success or failure.
func (o Outcome) Resolve() Verdict { return o.Verdict }

// NoDescription is the short-circuit verdict for a control with an empty
// description. Neither retrieval nor the LLM is consulted.
func NoDescription(c controls.Control) Verdict {
	return Verdict{
		ControlID:       c.ControlID,
		Status:          StatusNotMet,
		ConfidenceScore: 0.0,
		MatchedText:     "N/A",
		Explanation:     "No description provided for this control.",
	}
}
