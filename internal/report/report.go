// Package report aggregates per-control verdicts into the gap report, the
// single terminal artifact of an analysis run.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gapscan/gapscan/internal/verdict"
)

// DefaultTitle is used when the caller does not name the report.
const DefaultTitle = "Compliance Gap Analysis Report"

// Summary holds the per-status verdict counts. All three are always
// present, zero-filled.
type Summary struct {
	FullyMet     int `json:"fully_met"`
	PartiallyMet int `json:"partially_met"`
	NotMet       int `json:"not_met"`
}

// Metadata describes one analysis run.
type Metadata struct {
	ReportTitle           string    `json:"report_title"`
	TotalControlsAnalyzed int       `json:"total_controls_analyzed"`
	GeneratedAt           time.Time `json:"generated_at"`
	Summary               Summary   `json:"summary"`
}

// GapReport is the aggregated, persisted output of a full analysis run.
// Results keep the input control order; they are never re-sorted by status
// or score.
type GapReport struct {
	Metadata Metadata          `json:"metadata"`
	Results  []verdict.Verdict `json:"results"`
}

// Assemble resolves each outcome to its verdict and computes the summary.
// Every outcome contributes exactly one result, failed or not, so the
// report is always total over the input controls.
func Assemble(title string, outcomes []verdict.Outcome) GapReport {
	if title == "" {
		title = DefaultTitle
	}

	results := make([]verdict.Verdict, len(outcomes))
	var summary Summary
	for i, o := range outcomes {
		v := o.Resolve()
		results[i] = v
		switch v.Status {
		case verdict.StatusFullyMet:
			summary.FullyMet++
		case verdict.StatusPartiallyMet:
			summary.PartiallyMet++
		default:
			summary.NotMet++
		}
	}

	return GapReport{
		Metadata: Metadata{
			ReportTitle:           title,
			TotalControlsAnalyzed: len(results),
			GeneratedAt:           time.Now(),
			Summary:               summary,
		},
		Results: results,
	}
}

// Write persists the report as indented JSON, creating parent directories
// as needed. Callers invoke it once, after all controls are processed; a
// run that aborts mid-way leaves no artifact behind.
func Write(r GapReport, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}

// Read loads a previously written report, for export and inspection.
func Read(path string) (GapReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return GapReport{}, fmt.Errorf("reading report: %w", err)
	}
	var r GapReport
	if err := json.Unmarshal(data, &r); err != nil {
		return GapReport{}, fmt.Errorf("invalid report JSON in %s: %w", path, err)
	}
	return r, nil
}

// PrintSummary writes the per-status breakdown with percentages.
func PrintSummary(w io.Writer, r GapReport) {
	total := r.Metadata.TotalControlsAnalyzed
	if total == 0 {
		return
	}
	pct := func(n int) float64 { return float64(n) / float64(total) * 100 }

	fmt.Fprintf(w, "\n--- Analysis Summary ---\n")
	fmt.Fprintf(w, "  Fully Met:     %3d (%5.1f%%)\n", r.Metadata.Summary.FullyMet, pct(r.Metadata.Summary.FullyMet))
	fmt.Fprintf(w, "  Partially Met: %3d (%5.1f%%)\n", r.Metadata.Summary.PartiallyMet, pct(r.Metadata.Summary.PartiallyMet))
	fmt.Fprintf(w, "  Not Met:       %3d (%5.1f%%)\n", r.Metadata.Summary.NotMet, pct(r.Metadata.Summary.NotMet))
	fmt.Fprintf(w, "------------------------\n")
}
