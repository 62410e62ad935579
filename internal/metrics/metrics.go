// Package metrics collects statistics for ingestion and analysis runs.
package metrics

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// RunMetrics collects statistics for one command invocation.
type RunMetrics struct {
	Command    string        `json:"command"`
	Provider   string        `json:"provider,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at,omitempty"`
	Duration   time.Duration `json:"duration_ms,omitempty"`

	Ingest  IngestMetrics  `json:"ingest,omitempty"`
	Analyze AnalyzeMetrics `json:"analyze,omitempty"`

	Errors []string `json:"errors,omitempty"`
}

// IngestMetrics covers the corpus ingestion phase.
type IngestMetrics struct {
	DocumentCount   int           `json:"document_count"`
	StatementCount  int           `json:"statement_count"`
	VectorDimension uint64        `json:"vector_dimension"`
	EmbedDuration   time.Duration `json:"embed_duration_ms"`
	IndexDuration   time.Duration `json:"index_duration_ms"`
}

// AnalyzeMetrics covers the per-control evaluation phase.
type AnalyzeMetrics struct {
	ControlCount int `json:"control_count"`
	FullyMet     int `json:"fully_met"`
	PartiallyMet int `json:"partially_met"`
	NotMet       int `json:"not_met"`
	Failures     int `json:"failures"`
}

// New starts tracking a run.
func New(command, provider string) *RunMetrics {
	return &RunMetrics{
		Command:   command,
		Provider:  provider,
		StartedAt: time.Now(),
	}
}

// CollectIngest records ingestion-phase counts and timings.
func (m *RunMetrics) CollectIngest(docs, statements int, dim uint64, embedDur, indexDur time.Duration) {
	m.Ingest = IngestMetrics{
		DocumentCount:   docs,
		StatementCount:  statements,
		VectorDimension: dim,
		EmbedDuration:   embedDur,
		IndexDuration:   indexDur,
	}
}

// CollectAnalyze records the per-status verdict counts.
func (m *RunMetrics) CollectAnalyze(controls, fullyMet, partiallyMet, notMet, failures int) {
	m.Analyze = AnalyzeMetrics{
		ControlCount: controls,
		FullyMet:     fullyMet,
		PartiallyMet: partiallyMet,
		NotMet:       notMet,
		Failures:     failures,
	}
}

// AddError records a non-fatal error for the run summary.
func (m *RunMetrics) AddError(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err.Error())
	}
}

// Finish marks the run as complete.
func (m *RunMetrics) Finish() {
	m.FinishedAt = time.Now()
	m.Duration = m.FinishedAt.Sub(m.StartedAt)
}

// PrintSummary writes a human-readable summary.
func (m *RunMetrics) PrintSummary(w io.Writer) {
	fmt.Fprintf(w, "\n=== Run Metrics (%s) ===\n", m.Command)
	fmt.Fprintf(w, "Provider:  %s\n", m.Provider)
	fmt.Fprintf(w, "Duration:  %s\n", m.Duration.Round(time.Millisecond))
	if m.Ingest.StatementCount > 0 {
		fmt.Fprintf(w, "Ingest:    %d documents, %d statements, dim %d\n",
			m.Ingest.DocumentCount, m.Ingest.StatementCount, m.Ingest.VectorDimension)
		fmt.Fprintf(w, "           embed %s, index %s\n",
			m.Ingest.EmbedDuration.Round(time.Millisecond), m.Ingest.IndexDuration.Round(time.Millisecond))
	}
	if m.Analyze.ControlCount > 0 {
		fmt.Fprintf(w, "Controls:  %d (fully met %d, partially met %d, not met %d)\n",
			m.Analyze.ControlCount, m.Analyze.FullyMet, m.Analyze.PartiallyMet, m.Analyze.NotMet)
		if m.Analyze.Failures > 0 {
			fmt.Fprintf(w, "Failures:  %d\n", m.Analyze.Failures)
		}
	}
	for _, e := range m.Errors {
		fmt.Fprintf(w, "Error:     %s\n", e)
	}
}

// JSON returns the metrics as formatted JSON.
func (m *RunMetrics) JSON() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}
